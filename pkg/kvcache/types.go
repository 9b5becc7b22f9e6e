package kvcache

import (
	"errors"
	"time"
)

// NoExpiry is reported by TTL for keys that exist without an expiration.
const NoExpiry time.Duration = -1

// Status classifies the outcome of a Lookup.
type Status int

const (
	// StatusMiss means the key is absent, empty, or holds a JSON null.
	StatusMiss Status = iota
	// StatusHit means the payload decoded into the requested type.
	StatusHit
	// StatusCorrupt means a payload exists but is not valid JSON for the type.
	StatusCorrupt
	// StatusUnavailable means the backend could not serve the read.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusMiss:
		return "miss"
	case StatusHit:
		return "hit"
	case StatusCorrupt:
		return "corrupt"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is the outcome of reading and decoding a single key.
type Result[T any] struct {
	Key    string
	Status Status
	Value  T
	// Err holds the decode or backend error for StatusCorrupt and
	// StatusUnavailable.
	Err error
}

// Found reports whether the lookup produced a value.
func (r Result[T]) Found() bool {
	return r.Status == StatusHit
}

// Ptr returns a pointer to the decoded value, or nil on anything but a hit.
func (r Result[T]) Ptr() *T {
	if r.Status != StatusHit {
		return nil
	}
	v := r.Value
	return &v
}

// SetOptions controls write semantics for Set operations.
type SetOptions struct {
	// TTL expires the key after the given duration. Zero keeps it forever.
	TTL time.Duration
}

var (
	// ErrNotFound is returned when a key is missing.
	ErrNotFound = errors.New("kvcache: not found")
	// ErrKeyRequired is returned for empty keys.
	ErrKeyRequired = errors.New("kvcache: key is required")
	// ErrClosed is returned by operations on a closed Client.
	ErrClosed = errors.New("kvcache: client is closed")
)
