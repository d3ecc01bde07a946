package recon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocksync/internal/domain"
	"stocksync/internal/models"
	"stocksync/internal/storefront"

	"github.com/rs/zerolog"
)

// Executor applies one decision against the storefront and writes the
// confirmed remote state back into the local mirror. Failures are
// isolated per item.
type Executor struct {
	site   string
	client domain.StorefrontClient
	repo   domain.Repository
	cache  domain.ProductCache
	logger zerolog.Logger
}

func NewExecutor(site string, client domain.StorefrontClient, repo domain.Repository, cache domain.ProductCache, logger *zerolog.Logger) *Executor {
	return &Executor{
		site:   site,
		client: client,
		repo:   repo,
		cache:  cache,
		logger: logger.With().Str("component", "update-executor").Str("site", site).Logger(),
	}
}

// Apply resolves the SKU on the storefront, issues the stock update
// through the right endpoint (simple product or variation via its
// parent), and writes the confirmed response through to the cache.
// A cache write-back failure is logged but does not downgrade a
// successful remote update.
//
// The returned error, when non-nil, is the raw remote error so the
// concurrency controller can classify it; the ItemResult already
// carries the same failure as data.
func (e *Executor) Apply(ctx context.Context, decision Decision) (models.ItemResult, error) {
	product, err := e.client.FindProductBySKU(ctx, decision.SKU)
	if err != nil {
		if errors.Is(err, storefront.ErrProductNotFound) {
			// Permanent for this run; not worth a retry.
			return models.ItemResult{
				SKU:    decision.SKU,
				Target: decision.Target,
				Status: models.ItemFailed,
				Reason: "product not found on storefront",
			}, nil
		}
		wrapped := fmt.Errorf("lookup: %w", err)
		return e.failed(decision, wrapped), wrapped
	}

	update := buildStockUpdate(decision.Target)

	var updated *domain.StorefrontProduct
	if product.ParentID != 0 {
		updated, err = e.client.UpdateVariationStock(ctx, product.ParentID, product.ID, update)
	} else {
		updated, err = e.client.UpdateProductStock(ctx, product.ID, update)
	}
	if err != nil {
		wrapped := fmt.Errorf("update: %w", err)
		return e.failed(decision, wrapped), wrapped
	}

	e.writeThrough(ctx, updated, product.ParentID)

	return models.ItemResult{
		SKU:    decision.SKU,
		Target: decision.Target,
		Status: models.ItemSynced,
	}, nil
}

// buildStockUpdate encodes the storefront contract: going out of
// stock forces inventory-managed mode with quantity zero, going in
// stock disables inventory management.
func buildStockUpdate(target string) domain.StockUpdate {
	if target == models.StockStatusOutOfStock {
		return domain.StockUpdate{
			StockStatus:   models.StockStatusOutOfStock,
			ManageStock:   true,
			StockQuantity: 0,
		}
	}
	return domain.StockUpdate{
		StockStatus: models.StockStatusInStock,
		ManageStock: false,
	}
}

func (e *Executor) writeThrough(ctx context.Context, updated *domain.StorefrontProduct, parentID int64) {
	mirror := &models.CachedProduct{
		Site:          e.site,
		ProductID:     updated.ID,
		ParentID:      parentID,
		SKU:           updated.SKU,
		Name:          updated.Name,
		PublishStatus: updated.PublishStatus,
		StockStatus:   updated.StockStatus,
		Quantity:      updated.Quantity,
		LastSyncedAt:  time.Now().UTC(),
	}

	if err := e.repo.UpsertCachedProduct(ctx, mirror); err != nil {
		e.logger.Error().Err(err).Str("sku", mirror.SKU).Msg("cache write-back failed after successful remote update")
	}
	if e.cache != nil {
		if err := e.cache.Set(ctx, mirror); err != nil {
			e.logger.Warn().Err(err).Str("sku", mirror.SKU).Msg("hot cache write-back failed")
		}
	}
}

func (e *Executor) failed(decision Decision, err error) models.ItemResult {
	e.logger.Warn().Err(err).Str("sku", decision.SKU).Str("target", decision.Target).Msg("item update failed")
	return models.ItemResult{
		SKU:    decision.SKU,
		Target: decision.Target,
		Status: models.ItemFailed,
		Reason: err.Error(),
	}
}
