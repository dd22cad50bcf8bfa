package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/cache"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/metrics"
)

// Key identifies one cached run. Generation is the start of the cache window
// the run belongs to, so a new window produces a new key.
type Key struct {
	Program    string
	Generation int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", strings.ToLower(k.Program), k.Generation)
}

// Generation buckets now into windows of ttl, in unix seconds.
func Generation(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return now.Unix()
	}
	return now.Truncate(ttl).Unix()
}

// ReportCache stores finished results. Implementations report a miss with
// (nil, false, nil); errors are never fatal to a run.
type ReportCache interface {
	Get(ctx context.Context, key Key) (*Result, bool, error)
	Put(ctx context.Context, key Key, res *Result) error
}

// MemoryCache is an in-process LRU with a TTL.
type MemoryCache struct {
	lru *cache.LRU[Key, *Result]
}

func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: cache.NewLRU[Key, *Result](capacity, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key Key) (*Result, bool, error) {
	res, ok := c.lru.Get(key)
	if ok {
		metrics.CacheHits.WithLabelValues("memory").Inc()
	} else {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
	}
	return res, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key Key, res *Result) error {
	c.lru.Put(key, res)
	return nil
}

// TieredCache reads through its caches in order and back-fills the faster
// ones on a hit further down. Writes go to every tier.
type TieredCache struct {
	tiers []ReportCache
}

func NewTieredCache(tiers ...ReportCache) *TieredCache {
	return &TieredCache{tiers: tiers}
}

func (c *TieredCache) Get(ctx context.Context, key Key) (*Result, bool, error) {
	var firstErr error
	for i, tier := range c.tiers {
		res, ok, err := tier.Get(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}
		for _, faster := range c.tiers[:i] {
			_ = faster.Put(ctx, key, res)
		}
		return res, true, nil
	}
	return nil, false, firstErr
}

func (c *TieredCache) Put(ctx context.Context, key Key, res *Result) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.Put(ctx, key, res); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
