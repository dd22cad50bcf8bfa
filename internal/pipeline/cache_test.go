package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneration(t *testing.T) {
	base := time.Date(2023, 8, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		ttl  time.Duration
		want int64
	}{
		{name: "window start", now: base, ttl: 15 * time.Minute, want: base.Unix()},
		{name: "inside window", now: base.Add(14*time.Minute + 59*time.Second), ttl: 15 * time.Minute, want: base.Unix()},
		{name: "next window", now: base.Add(15 * time.Minute), ttl: 15 * time.Minute, want: base.Add(15 * time.Minute).Unix()},
		{name: "no ttl", now: base.Add(time.Second), ttl: 0, want: base.Unix() + 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Generation(tc.now, tc.ttl))
		})
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "gg18:1692100800", Key{Program: "GG18", Generation: 1692100800}.String())
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(2, time.Hour)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, Key{Program: "GG18"})
	require.NoError(t, err)
	assert.False(t, ok)

	res := &Result{Program: "GG18"}
	require.NoError(t, c.Put(ctx, Key{Program: "GG18"}, res))
	got, ok, err := c.Get(ctx, Key{Program: "GG18"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, res, got)
}

func TestTieredCache(t *testing.T) {
	ctx := context.Background()
	fast := NewMemoryCache(4, time.Hour)
	slow := NewMemoryCache(4, time.Hour)
	tiered := NewTieredCache(fast, slow)
	key := Key{Program: "GG18", Generation: 1}

	res := &Result{Program: "GG18"}
	require.NoError(t, slow.Put(ctx, key, res))

	got, ok, err := tiered.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, res, got)

	backfilled, ok, _ := fast.Get(ctx, key)
	assert.True(t, ok, "hit in the slow tier fills the fast one")
	assert.Same(t, res, backfilled)

	t.Run("error in one tier falls through", func(t *testing.T) {
		c := NewTieredCache(failingCache{}, slow)
		got, ok, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Same(t, res, got)

		_, ok, err = c.Get(ctx, Key{Program: "missing"})
		assert.Error(t, err)
		assert.False(t, ok)
		assert.Error(t, c.Put(ctx, key, res))
	})
}
