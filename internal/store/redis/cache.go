package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/metrics"
)

const backendName = "redis"

// Cache stores JSON encoded values under a key prefix with a fixed TTL.
// It is shared between processes, unlike the in-memory LRU.
type Cache[K fmt.Stringer, V any] struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewCache[K fmt.Stringer, V any](client redis.Cmdable, prefix string, ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache[K, V]) redisKey(key K) string {
	return c.prefix + ":" + key.String()
}

// Get returns the stored value. A missing key is a miss, not an error.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues(backendName).Inc()
		return zero, false, nil
	}
	if err != nil {
		metrics.CacheErrors.WithLabelValues(backendName, "get").Inc()
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		metrics.CacheErrors.WithLabelValues(backendName, "decode").Inc()
		return zero, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	metrics.CacheHits.WithLabelValues(backendName).Inc()
	return v, true, nil
}

func (c *Cache[K, V]) Put(ctx context.Context, key K, v V) error {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.CacheErrors.WithLabelValues(backendName, "encode").Inc()
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		metrics.CacheErrors.WithLabelValues(backendName, "put").Inc()
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
