package kvcache

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Ratio1/kvcache_sdk_go/internal/devseed"
	"github.com/Ratio1/kvcache_sdk_go/pkg/kvcache/mock"
)

const (
	envMode     = "KVCACHE_RUNTIME_MODE"
	envRedisURL = "REDIS_URL"
	envMockSeed = "KVCACHE_MOCK_SEED"
	modeAuto    = "auto"

	// ModeRedis is reported by NewFromEnv when backed by a Redis server.
	ModeRedis = "redis"
	// ModeMock is reported by NewFromEnv when backed by the in-memory mock.
	ModeMock = "mock"
)

// NewFromEnv initialises a Client from REDIS_URL and KVCACHE_RUNTIME_MODE and
// returns the resolved mode (ModeRedis or ModeMock). In auto mode (the
// default) a set REDIS_URL selects Redis; otherwise an in-memory mock is used,
// optionally seeded from KVCACHE_MOCK_SEED.
func NewFromEnv(ctx context.Context, opts ...Option) (client *Client, mode string, err error) {
	mode = strings.ToLower(strings.TrimSpace(os.Getenv(envMode)))
	redisURL := strings.TrimSpace(os.Getenv(envRedisURL))

	switch mode {
	case "", modeAuto:
		if redisURL != "" {
			return newRedisClient(ctx, redisURL, opts)
		}
		return newMockClient(opts)
	case ModeRedis:
		if redisURL == "" {
			return nil, "", fmt.Errorf("kvcache: redis mode requires %s", envRedisURL)
		}
		return newRedisClient(ctx, redisURL, opts)
	case ModeMock:
		return newMockClient(opts)
	default:
		return nil, "", fmt.Errorf("kvcache: unsupported %s value %q", envMode, mode)
	}
}

func newRedisClient(ctx context.Context, redisURL string, opts []Option) (*Client, string, error) {
	client, err := New(ctx, redisURL, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("kvcache: init redis client: %w", err)
	}
	return client, ModeRedis, nil
}

func newMockClient(opts []Option) (*Client, string, error) {
	store := mock.New()
	if path := strings.TrimSpace(os.Getenv(envMockSeed)); path != "" {
		entries, err := devseed.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("kvcache: load mock seed: %w", err)
		}
		if err := store.Seed(entries); err != nil {
			return nil, "", fmt.Errorf("kvcache: apply mock seed: %w", err)
		}
	}
	return NewWithBackend(store, opts...), ModeMock, nil
}
