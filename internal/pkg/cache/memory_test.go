package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetNX(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache("storefront")
	key := c.GenerateKey("submit", "ORD-1")
	assert.Equal(t, "storefront:submit:ORD-1", key)

	ok, err := c.SetNX(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, key, "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "pending", val)

	require.NoError(t, c.Delete(ctx, key))
	val, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache("storefront").(*memoryCache)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	now = now.Add(2 * time.Second)

	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, val)

	ok, err := c.SetNX(ctx, "k", "fresh", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheSweepsExpiredEntriesOnWrite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache("storefront").(*memoryCache)
	c.now = func() time.Time { return now }

	for i := 0; i < sweepThreshold-1; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("old-%d", i), "v", time.Hour))
	}
	require.NoError(t, c.Set(ctx, "kept", "v", 0))
	require.Len(t, c.entries, sweepThreshold)

	now = now.Add(25 * time.Hour)
	ok, err := c.SetNX(ctx, "new", "v", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Len(t, c.entries, 2)
	assert.Contains(t, c.entries, "kept")
	assert.Contains(t, c.entries, "new")
	assert.Equal(t, sweepThreshold, c.sweepAt)
}

func TestMemoryCacheSetNXConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache("storefront")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := c.SetNX(ctx, "same", "x", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
