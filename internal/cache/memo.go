package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Memo fronts a loader with an LRU and collapses concurrent loads of the
// same key into one call. Failed loads are not cached.
type Memo[K comparable, V any] struct {
	lru   *LRU[K, V]
	group singleflight.Group
}

func NewMemo[K comparable, V any](capacity int, ttl time.Duration) *Memo[K, V] {
	return &Memo[K, V]{lru: NewLRU[K, V](capacity, ttl)}
}

// Get returns the cached value for key or calls load once to fill it. The
// bool result reports whether the value came from the cache.
func (m *Memo[K, V]) Get(ctx context.Context, key K, load func(ctx context.Context) (V, error)) (V, bool, error) {
	if v, ok := m.lru.Get(key); ok {
		return v, true, nil
	}

	res, err, _ := m.group.Do(fmt.Sprint(key), func() (any, error) {
		if v, ok := m.lru.Get(key); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		m.lru.Put(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}

func (m *Memo[K, V]) Forget(key K) {
	m.lru.Delete(key)
}

func (m *Memo[K, V]) LRU() *LRU[K, V] {
	return m.lru
}
