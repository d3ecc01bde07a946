package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stocksync/internal/domain"
	"stocksync/internal/models"

	"github.com/rs/zerolog"
)

// FailoverProductCache fronts a primary cache (Redis) with a fallback
// (memory). After a primary failure all traffic goes to the fallback;
// the primary is probed again after a recovery interval.
type FailoverProductCache struct {
	primary   domain.ProductCache
	fallback  domain.ProductCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

const recoveryInterval = time.Minute

func NewFailoverProductCache(primary, fallback domain.ProductCache, logger *zerolog.Logger) *FailoverProductCache {
	return &FailoverProductCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverProductCache) markDown() {
	f.isDown.Store(true)
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverProductCache) shouldProbe() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) < recoveryInterval {
		return false
	}
	f.lastCheck = time.Now()
	return true
}

func (f *FailoverProductCache) Get(ctx context.Context, site, sku string) (*models.CachedProduct, error) {
	if !f.isDown.Load() {
		product, err := f.primary.Get(ctx, site, sku)
		if err == nil {
			return product, nil
		}
		f.logger.Error().Err(err).Msg("primary product cache failed, falling back to memory")
		f.markDown()
	} else if f.shouldProbe() {
		product, err := f.primary.Get(ctx, site, sku)
		if err == nil {
			f.isDown.Store(false)
			return product, nil
		}
	}

	return f.fallback.Get(ctx, site, sku)
}

func (f *FailoverProductCache) Set(ctx context.Context, product *models.CachedProduct) error {
	if !f.isDown.Load() {
		err := f.primary.Set(ctx, product)
		if err == nil {
			return nil
		}
		f.logger.Error().Err(err).Msg("primary product cache failed, falling back to memory")
		f.markDown()
	}
	return f.fallback.Set(ctx, product)
}

func (f *FailoverProductCache) Invalidate(ctx context.Context, site, sku string) error {
	if !f.isDown.Load() {
		if err := f.primary.Invalidate(ctx, site, sku); err != nil {
			f.logger.Error().Err(err).Msg("primary product cache failed, falling back to memory")
			f.markDown()
		}
	}
	return f.fallback.Invalidate(ctx, site, sku)
}
