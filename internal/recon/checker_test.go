package recon

import (
	"context"
	"testing"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/domain"
	"stocksync/internal/models"
	"stocksync/internal/repository"
	"stocksync/internal/storefront"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerControllerConfig() config.ControllerConfig {
	return config.ControllerConfig{
		InitialWindow: 5,
		MinWindow:     1,
		MaxWindow:     10,
		MaxDelay:      time.Second,
	}
}

func TestChecker_CacheHitSkipsRemote(t *testing.T) {
	db := setupTestDB(t)
	cache := repository.NewMemoryProductCache(time.Hour)
	require.NoError(t, cache.Set(context.Background(), &models.CachedProduct{
		Site: "shop-eu", SKU: "A1", StockStatus: models.StockStatusInStock, Quantity: 4,
	}))

	remoteCalled := false
	client := &fakeStorefront{
		findFunc: func(ctx context.Context, sku string) (*domain.StorefrontProduct, error) {
			remoteCalled = true
			return nil, storefront.ErrProductNotFound
		},
	}
	logger := zerolog.Nop()
	checker := NewChecker("shop-eu", client, db, cache, checkerControllerConfig(), &logger)

	statuses := checker.Check(context.Background(), []string{"A1"})
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Found)
	assert.True(t, statuses[0].FromCache)
	assert.Equal(t, models.StockStatusInStock, statuses[0].StockStatus)
	assert.False(t, remoteCalled)
}

func TestChecker_MirrorHitWarmsHotCache(t *testing.T) {
	db := setupTestDB(t)
	cache := repository.NewMemoryProductCache(time.Hour)
	require.NoError(t, db.UpsertCachedProduct(context.Background(), &models.CachedProduct{
		Site: "shop-eu", ProductID: 9, SKU: "A1",
		StockStatus: models.StockStatusOutOfStock, LastSyncedAt: time.Now().UTC(),
	}))

	logger := zerolog.Nop()
	checker := NewChecker("shop-eu", &fakeStorefront{}, db, cache, checkerControllerConfig(), &logger)

	statuses := checker.Check(context.Background(), []string{"A1"})
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Found)
	assert.True(t, statuses[0].FromCache)

	warmed, err := cache.Get(context.Background(), "shop-eu", "A1")
	require.NoError(t, err)
	assert.NotNil(t, warmed)
}

func TestChecker_MissFallsThroughAndBackfills(t *testing.T) {
	db := setupTestDB(t)
	cache := repository.NewMemoryProductCache(time.Hour)
	client := &fakeStorefront{
		findFunc: func(ctx context.Context, sku string) (*domain.StorefrontProduct, error) {
			return &domain.StorefrontProduct{
				ID: 5, SKU: sku, StockStatus: models.StockStatusInStock, Quantity: 2,
			}, nil
		},
	}
	logger := zerolog.Nop()
	checker := NewChecker("shop-eu", client, db, cache, checkerControllerConfig(), &logger)

	statuses := checker.Check(context.Background(), []string{"A1"})
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Found)
	assert.False(t, statuses[0].FromCache)
	assert.Equal(t, models.StockStatusInStock, statuses[0].StockStatus)

	// Backfilled into the mirror: a second check is served locally.
	mirrored, err := db.GetCachedProductBySKU(context.Background(), "shop-eu", "A1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), mirrored.ProductID)

	again := checker.Check(context.Background(), []string{"A1"})
	assert.True(t, again[0].FromCache)
}

func TestChecker_UnknownSKUReportedNotFound(t *testing.T) {
	db := setupTestDB(t)
	client := &fakeStorefront{
		findFunc: func(ctx context.Context, sku string) (*domain.StorefrontProduct, error) {
			return nil, storefront.ErrProductNotFound
		},
	}
	logger := zerolog.Nop()
	checker := NewChecker("shop-eu", client, db, nil, checkerControllerConfig(), &logger)

	statuses := checker.Check(context.Background(), []string{"ghost"})
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Found)
	assert.Empty(t, statuses[0].Error)
}
