package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/dugout/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "dugout:"

// RedisCache is a LeaderboardCache backed by Redis string keys with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration, opts ...RedisOption) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrCacheUnavailable, addr, err)
	}
	return newRedisCache(client, ttl, opts...), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client, ttl: ttl, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss()
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordErrorByComponent("cache", "get")
		return nil, false, fmt.Errorf("%w: get %s: %w", ErrCacheUnavailable, key, err)
	}
	metrics.RecordCacheHit()
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		metrics.RecordErrorByComponent("cache", "set")
		return fmt.Errorf("%w: set %s: %w", ErrCacheUnavailable, key, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		metrics.RecordErrorByComponent("cache", "invalidate")
		return fmt.Errorf("%w: del: %w", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
