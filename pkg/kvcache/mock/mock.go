package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Ratio1/kvcache_sdk_go/internal/devseed"
)

// ErrClosed is returned by operations on a closed Mock.
var ErrClosed = errors.New("mock kvcache: closed")

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Mock implements an in-memory kvcache.Backend with TTL semantics.
type Mock struct {
	mu     sync.RWMutex
	items  map[string]*entry
	now    func() time.Time
	closed bool
}

// Option configures the mock instance.
type Option func(*Mock)

// WithClock overrides the clock used for TTL bookkeeping (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// New creates an empty mock store.
func New(opts ...Option) *Mock {
	m := &Mock{
		items: make(map[string]*entry),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed loads initial items from seed entries (typically decoded via devseed.Load).
func (m *Mock) Seed(entries []devseed.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("mock kvcache: seed entry missing key")
		}
		m.items[e.Key] = newEntry(e.Value, now, e.TTL)
	}
	return nil
}

func newEntry(data []byte, now time.Time, ttl time.Duration) *entry {
	e := &entry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	return e
}

// lookup returns the live entry for key, dropping it if expired. Callers must
// hold the write lock.
func (m *Mock) lookup(key string) (*entry, bool) {
	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if e.expired(m.now()) {
		delete(m.items, key)
		return nil, false
	}
	return e, true
}

func (m *Mock) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Get returns a copy of the value stored under key.
func (m *Mock) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return nil, false, err
	}
	e, ok := m.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.data...), true, nil
}

// Set stores value under key, replacing any previous value and TTL.
func (m *Mock) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("mock kvcache: key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return err
	}
	m.items[key] = newEntry(value, m.now(), ttl)
	return nil
}

// Delete removes keys and returns how many were live.
func (m *Mock) Delete(ctx context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return 0, err
	}
	var n int64
	for _, key := range keys {
		if _, ok := m.lookup(key); ok {
			delete(m.items, key)
			n++
		}
	}
	return n, nil
}

// Exists reports whether key is live.
func (m *Mock) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return false, err
	}
	_, ok := m.lookup(key)
	return ok, nil
}

// Expire sets a TTL on an existing key.
func (m *Mock) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return false, err
	}
	e, ok := m.lookup(key)
	if !ok {
		return false, nil
	}
	if ttl <= 0 {
		delete(m.items, key)
		return true, nil
	}
	e.expiresAt = m.now().Add(ttl)
	return true, nil
}

// TTL returns the remaining lifetime of key: -2 when missing, -1 when the key
// has no expiry.
func (m *Mock) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(ctx); err != nil {
		return 0, err
	}
	e, ok := m.lookup(key)
	if !ok {
		return -2, nil
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(m.now()), nil
}

// Ping fails only once the mock is closed.
func (m *Mock) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready(ctx)
}

// Close marks the mock closed; stored data is kept for inspection.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of live keys.
func (m *Mock) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.items {
		if _, ok := m.lookup(key); ok {
			n++
		}
	}
	return n
}
