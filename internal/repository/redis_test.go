package repository

import (
	"context"
	"testing"
	"time"

	"stocksync/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCache(t *testing.T, ttl time.Duration) (*RedisProductCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisProductCache(client, ttl), mr
}

func testProduct() *models.CachedProduct {
	return &models.CachedProduct{
		Site:          "shop-eu",
		ProductID:     42,
		SKU:           "A1",
		Name:          "Widget",
		PublishStatus: "publish",
		StockStatus:   models.StockStatusInStock,
		Quantity:      5,
		LastSyncedAt:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRedisProductCache_RoundTrip(t *testing.T) {
	cache, _ := setupRedisCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testProduct()))

	got, err := cache.Get(ctx, "shop-eu", "A1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.ProductID)
	assert.Equal(t, models.StockStatusInStock, got.StockStatus)
	assert.Equal(t, float64(5), got.Quantity)
}

func TestRedisProductCache_MissReturnsNil(t *testing.T) {
	cache, _ := setupRedisCache(t, time.Hour)

	got, err := cache.Get(context.Background(), "shop-eu", "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisProductCache_TTLExpiry(t *testing.T) {
	cache, mr := setupRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testProduct()))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, "shop-eu", "A1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisProductCache_Invalidate(t *testing.T) {
	cache, _ := setupRedisCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testProduct()))
	require.NoError(t, cache.Invalidate(ctx, "shop-eu", "A1"))

	got, err := cache.Get(ctx, "shop-eu", "A1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisProductCache_ServerDownReturnsError(t *testing.T) {
	cache, mr := setupRedisCache(t, time.Hour)
	mr.Close()

	_, err := cache.Get(context.Background(), "shop-eu", "A1")
	assert.Error(t, err)
}
