package recon

import (
	"context"
	"errors"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/domain"
	"stocksync/internal/models"
	"stocksync/internal/storefront"

	"github.com/rs/zerolog"
)

// ProductStatus is the answer of an ad-hoc status check for one SKU.
type ProductStatus struct {
	SKU         string  `json:"sku"`
	Found       bool    `json:"found"`
	FromCache   bool    `json:"from_cache"`
	StockStatus string  `json:"stock_status,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Checker answers ad-hoc status lookups for a batch of SKUs. Cache
// misses fall through to a live storefront lookup and backfill the
// mirror, so repeated checks get cheaper. Live calls go through the
// adaptive concurrency controller.
type Checker struct {
	site   string
	client domain.StorefrontClient
	repo   domain.Repository
	cache  domain.ProductCache
	ctrl   config.ControllerConfig
	logger zerolog.Logger
}

func NewChecker(site string, client domain.StorefrontClient, repo domain.Repository, cache domain.ProductCache, ctrl config.ControllerConfig, logger *zerolog.Logger) *Checker {
	return &Checker{
		site:   site,
		client: client,
		repo:   repo,
		cache:  cache,
		ctrl:   ctrl,
		logger: logger.With().Str("component", "status-checker").Str("site", site).Logger(),
	}
}

// Check resolves each SKU, preferring the hot cache, then the
// relational mirror, then a live lookup with backfill.
func (c *Checker) Check(ctx context.Context, skus []string) []ProductStatus {
	statuses := make([]ProductStatus, len(skus))
	var missIdx []int

	for i, sku := range skus {
		statuses[i] = ProductStatus{SKU: sku}

		if c.cache != nil {
			if product, err := c.cache.Get(ctx, c.site, sku); err == nil && product != nil {
				statuses[i].Found = true
				statuses[i].FromCache = true
				statuses[i].StockStatus = product.StockStatus
				statuses[i].Quantity = product.Quantity
				continue
			}
		}

		product, err := c.repo.GetCachedProductBySKU(ctx, c.site, sku)
		if err == nil {
			statuses[i].Found = true
			statuses[i].FromCache = true
			statuses[i].StockStatus = product.StockStatus
			statuses[i].Quantity = product.Quantity
			if c.cache != nil {
				_ = c.cache.Set(ctx, product)
			}
			continue
		}

		missIdx = append(missIdx, i)
	}

	if len(missIdx) == 0 {
		return statuses
	}

	controller := NewController(c.ctrl, storefront.IsRateLimited, &c.logger)
	controller.Run(ctx, len(missIdx), func(ctx context.Context, n int) error {
		i := missIdx[n]
		sku := skus[i]

		product, err := c.client.FindProductBySKU(ctx, sku)
		if err != nil {
			if errors.Is(err, storefront.ErrProductNotFound) {
				return nil
			}
			statuses[i].Error = err.Error()
			return err
		}

		statuses[i].Found = true
		statuses[i].StockStatus = product.StockStatus
		statuses[i].Quantity = product.Quantity
		statuses[i].Error = ""
		c.backfill(ctx, product)
		return nil
	})

	return statuses
}

func (c *Checker) backfill(ctx context.Context, product *domain.StorefrontProduct) {
	mirror := &models.CachedProduct{
		Site:          c.site,
		ProductID:     product.ID,
		ParentID:      product.ParentID,
		SKU:           product.SKU,
		Name:          product.Name,
		PublishStatus: product.PublishStatus,
		StockStatus:   product.StockStatus,
		Quantity:      product.Quantity,
		LastSyncedAt:  time.Now().UTC(),
	}
	if err := c.repo.UpsertCachedProduct(ctx, mirror); err != nil {
		c.logger.Warn().Err(err).Str("sku", mirror.SKU).Msg("backfill write failed")
	}
	if c.cache != nil {
		_ = c.cache.Set(ctx, mirror)
	}
}
