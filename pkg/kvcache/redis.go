package kvcache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type redisBackend struct {
	client *redis.Client
}

func newRedisBackend(rc *redis.Client, logger *zap.Logger) *redisBackend {
	rc.AddHook(errorHook{logger: logger})
	return &redisBackend{client: rc}
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *redisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *redisBackend) Delete(ctx context.Context, keys ...string) (int64, error) {
	return b.client.Del(ctx, keys...).Result()
}

func (b *redisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *redisBackend) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return b.client.Expire(ctx, key, ttl).Result()
}

func (b *redisBackend) TTL(ctx context.Context, key string) (time.Duration, error) {
	return b.client.TTL(ctx, key).Result()
}

func (b *redisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}

// errorHook logs command failures reported by go-redis. A redis.Nil reply is
// a normal miss and caller cancellation is not a connection problem, so
// neither is logged.
type errorHook struct {
	logger *zap.Logger
}

func (h errorHook) BeforeProcess(ctx context.Context, _ redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h errorHook) AfterProcess(_ context.Context, cmd redis.Cmder) error {
	h.report(cmd)
	return nil
}

func (h errorHook) BeforeProcessPipeline(ctx context.Context, _ []redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h errorHook) AfterProcessPipeline(_ context.Context, cmds []redis.Cmder) error {
	for _, cmd := range cmds {
		h.report(cmd)
	}
	return nil
}

func (h errorHook) report(cmd redis.Cmder) {
	err := cmd.Err()
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return
	}
	h.logger.Error("kvcache: redis client error", zap.String("cmd", cmd.Name()), zap.Error(err))
}
