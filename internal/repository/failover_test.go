package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"stocksync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyCache fails while broken is true.
type flakyCache struct {
	inner  *MemoryProductCache
	broken bool
	calls  int
}

func (f *flakyCache) Get(ctx context.Context, site, sku string) (*models.CachedProduct, error) {
	f.calls++
	if f.broken {
		return nil, errors.New("connection refused")
	}
	return f.inner.Get(ctx, site, sku)
}

func (f *flakyCache) Set(ctx context.Context, product *models.CachedProduct) error {
	f.calls++
	if f.broken {
		return errors.New("connection refused")
	}
	return f.inner.Set(ctx, product)
}

func (f *flakyCache) Invalidate(ctx context.Context, site, sku string) error {
	f.calls++
	if f.broken {
		return errors.New("connection refused")
	}
	return f.inner.Invalidate(ctx, site, sku)
}

func newFailover(primary *flakyCache) (*FailoverProductCache, *MemoryProductCache) {
	fallback := NewMemoryProductCache(time.Hour)
	logger := zerolog.Nop()
	return NewFailoverProductCache(primary, fallback, &logger), fallback
}

func TestFailover_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := &flakyCache{inner: NewMemoryProductCache(time.Hour)}
	cache, fallback := newFailover(primary)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testProduct()))

	got, err := cache.Get(ctx, "shop-eu", "A1")
	require.NoError(t, err)
	require.NotNil(t, got)

	// The fallback never saw the write.
	missed, err := fallback.Get(ctx, "shop-eu", "A1")
	require.NoError(t, err)
	assert.Nil(t, missed)
}

func TestFailover_SwitchesToFallbackOnError(t *testing.T) {
	primary := &flakyCache{inner: NewMemoryProductCache(time.Hour), broken: true}
	cache, fallback := newFailover(primary)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testProduct()))

	got, err := fallback.Get(ctx, "shop-eu", "A1")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Subsequent reads skip the primary entirely until the probe window.
	callsBefore := primary.calls
	_, err = cache.Get(ctx, "shop-eu", "A1")
	require.NoError(t, err)
	assert.Equal(t, callsBefore, primary.calls)
}

func TestFailover_GetFallsBackAfterPrimaryError(t *testing.T) {
	primary := &flakyCache{inner: NewMemoryProductCache(time.Hour)}
	cache, fallback := newFailover(primary)
	ctx := context.Background()

	// Keep a copy in the fallback so the read still resolves.
	require.NoError(t, fallback.Set(ctx, testProduct()))
	primary.broken = true

	got, err := cache.Get(ctx, "shop-eu", "A1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A1", got.SKU)
}
