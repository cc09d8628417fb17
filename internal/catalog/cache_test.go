package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *ProductCache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProductCache(client, time.Minute)
}

func TestProductCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)

	product := Product{ID: 1, Code: "SKU-1", Name: "Widget", Quantity: 10, SellingPrice: 99.5}
	require.NoError(t, cache.Set(ctx, product))

	got, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	require.Equal(t, product.Code, got.Code)
	require.EqualValues(t, 10, got.Quantity)
}

func TestProductCacheInvalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, Product{ID: 1, Code: "SKU-1"}))
	require.NoError(t, cache.Invalidate(ctx, 1))

	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)

	// Invalidating an absent key is not an error.
	require.NoError(t, cache.Invalidate(ctx, 42))
}

func TestProductCacheDisabled(t *testing.T) {
	var cache *ProductCache
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)
	require.NoError(t, cache.Set(ctx, Product{ID: 1}))
	require.NoError(t, cache.Invalidate(ctx, 1))
}
