// Package kvcache provides a small read-through cache accessor on top of a
// Redis connection. The public Go API centres around the Client type, which
// owns a single Backend (normally a go-redis client) and exposes typed JSON
// helpers. Lookups are fail-soft: a missing key, a malformed payload and an
// unreachable server all surface as "no value", while Lookup reports which
// of those happened through Result.Status.
//
// A Client is meant to be constructed once per process, via New, NewFromEnv,
// NewWithRedisClient or NewWithBackend, and shared between goroutines.
package kvcache
