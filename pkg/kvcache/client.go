package kvcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Backend is the raw key/value surface a Client delegates to. Values are
// opaque bytes; TTL follows the Redis convention of -2 for a missing key and
// -1 for a key without an expiry.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
	Close() error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for decode diagnostics and connection
// errors. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is a shared handle over a single Backend. It is safe for concurrent
// use to the extent the Backend is; both bundled backends are.
type Client struct {
	backend Backend
	logger  *zap.Logger
	closed  atomic.Bool
}

// New parses redisURL (redis://, rediss:// or unix://), opens a go-redis
// client and pings it once. A failed ping is logged through the client's
// error hook rather than returned, since go-redis dials again on demand.
func New(ctx context.Context, redisURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("kvcache: redis URL is required")
	}
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("kvcache: invalid redis URL: %w", err)
	}

	c := NewWithRedisClient(redis.NewClient(ropts), opts...)
	if ctx == nil {
		ctx = context.Background()
	}
	_ = c.backend.Ping(ctx)
	return c, nil
}

// NewWithRedisClient wraps an existing go-redis client and attaches the
// error-logging hook to it. The Client takes ownership: Close closes rc.
func NewWithRedisClient(rc *redis.Client, opts ...Option) *Client {
	c := newClient(opts)
	if rc != nil {
		c.backend = newRedisBackend(rc, c.logger)
	}
	return c
}

// NewWithBackend allows callers to supply a custom backend (e.g., mocks).
func NewWithBackend(b Backend, opts ...Option) *Client {
	c := newClient(opts)
	c.backend = b
	return c
}

func newClient(opts []Option) *Client {
	c := &Client{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches key and decodes it into T. It returns nil when the key is
// absent, the payload is malformed, or the backend fails; it never returns an
// error. Use Lookup to tell those cases apart.
func GetJSON[T any](ctx context.Context, client *Client, key string) *T {
	return Lookup[T](ctx, client, key).Ptr()
}

// Lookup fetches key and decodes it into T, reporting the outcome as a
// Result. Malformed payloads are logged with the offending key.
func Lookup[T any](ctx context.Context, client *Client, key string) Result[T] {
	res := Result[T]{Key: key}
	if err := client.check(); err != nil {
		res.Status = StatusUnavailable
		res.Err = err
		return res
	}
	if key == "" {
		res.Err = ErrKeyRequired
		return res
	}

	data, found, err := client.backend.Get(ctx, key)
	if err != nil {
		client.logger.Debug("kvcache: lookup failed", zap.String("key", key), zap.Error(err))
		res.Status = StatusUnavailable
		res.Err = fmt.Errorf("kvcache: get %q: %w", key, err)
		return res
	}

	trimmed := bytes.TrimSpace(data)
	if !found || len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return res
	}

	var value T
	if err := json.Unmarshal(trimmed, &value); err != nil {
		client.logger.Warn("kvcache: discarding malformed JSON payload", zap.String("key", key), zap.Error(err))
		res.Status = StatusCorrupt
		res.Err = fmt.Errorf("kvcache: decode %q: %w", key, err)
		return res
	}
	res.Status = StatusHit
	res.Value = value
	return res
}

// LookupMany runs Lookup for every key concurrently, at most limit at a time
// (limit <= 0 means unbounded). Results are returned in input order.
func LookupMany[T any](ctx context.Context, client *Client, keys []string, limit int) []Result[T] {
	results := make([]Result[T], len(keys))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, key := range keys {
		g.Go(func() error {
			results[i] = Lookup[T](ctx, client, key)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SetJSON encodes value as JSON and stores it under key.
func SetJSON[T any](ctx context.Context, client *Client, key string, value T, opts *SetOptions) error {
	if key == "" {
		return ErrKeyRequired
	}
	payload, err := jsonMarshal(value)
	if err != nil {
		return fmt.Errorf("kvcache: encode value: %w", err)
	}
	return client.Set(ctx, key, payload, opts)
}

// GetRaw returns the stored bytes for key, or ErrNotFound.
func (c *Client) GetRaw(ctx context.Context, key string) ([]byte, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrKeyRequired
	}
	data, found, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("kvcache: get %q: %w", key, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return data, nil
}

// Set stores raw bytes under key without interpreting them.
func (c *Client) Set(ctx context.Context, key string, raw []byte, opts *SetOptions) error {
	if err := c.check(); err != nil {
		return err
	}
	if key == "" {
		return ErrKeyRequired
	}
	var ttl time.Duration
	if opts != nil {
		if opts.TTL < 0 {
			return fmt.Errorf("kvcache: negative TTL %s", opts.TTL)
		}
		ttl = opts.TTL
	}
	if err := c.backend.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("kvcache: set %q: %w", key, err)
	}
	return nil
}

// Delete removes the given keys and returns how many existed.
func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.backend.Delete(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("kvcache: delete: %w", err)
	}
	return n, nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	if key == "" {
		return false, ErrKeyRequired
	}
	ok, err := c.backend.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("kvcache: exists %q: %w", key, err)
	}
	return ok, nil
}

// Expire sets a TTL on an existing key. It reports false when the key is
// missing.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := c.check(); err != nil {
		return false, err
	}
	if key == "" {
		return false, ErrKeyRequired
	}
	if ttl <= 0 {
		return false, fmt.Errorf("kvcache: expire requires a positive TTL, got %s", ttl)
	}
	ok, err := c.backend.Expire(ctx, key, ttl)
	if err != nil {
		return false, fmt.Errorf("kvcache: expire %q: %w", key, err)
	}
	return ok, nil
}

// TTL returns the remaining lifetime of key, NoExpiry for persistent keys,
// or ErrNotFound.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	if key == "" {
		return 0, ErrKeyRequired
	}
	d, err := c.backend.TTL(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("kvcache: ttl %q: %w", key, err)
	}
	switch {
	case d == -2:
		return 0, ErrNotFound
	case d < 0:
		return NoExpiry, nil
	}
	return d, nil
}

// Ping checks connectivity to the backend.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.check(); err != nil {
		return err
	}
	return c.backend.Ping(ctx)
}

// Close releases the backend. Later calls are no-ops.
func (c *Client) Close() error {
	if c == nil || c.backend == nil {
		return nil
	}
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.backend.Close()
}

func (c *Client) check() error {
	if c == nil || c.backend == nil {
		return errors.New("kvcache: client is nil")
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

func jsonMarshal[T any](value T) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
