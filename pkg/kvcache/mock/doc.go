// Package mock provides an in-memory backend for kvcache.Client. It keeps
// values as opaque bytes, honours TTLs against an injectable clock, and can be
// pre-populated from devseed fixtures.
package mock
