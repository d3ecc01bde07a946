// Package ordersync pulls changed orders and products from a
// storefront into the relational mirror, incrementally via the
// checkpoint store.
package ordersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocksync/internal/database"
	"stocksync/internal/domain"
	"stocksync/internal/models"

	"github.com/rs/zerolog"
)

// maxPages caps one pass so a runaway remote pagination cannot spin
// forever; the next scheduled task resumes from the checkpoint.
const maxPages = 200

// Summary accumulates one pass's counters.
type Summary struct {
	Pages      int `json:"pages"`
	Fetched    int `json:"fetched"`
	Persisted  int `json:"persisted"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

// ProgressFunc receives a snapshot after each page.
type ProgressFunc func(progress models.TaskProgress)

// Syncer drives incremental order/product sync for one site.
type Syncer struct {
	site     string
	client   domain.StorefrontClient
	repo     domain.Repository
	cache    domain.ProductCache
	logger   zerolog.Logger
	progress ProgressFunc
}

func NewSyncer(site string, client domain.StorefrontClient, repo domain.Repository, cache domain.ProductCache, logger *zerolog.Logger) *Syncer {
	return &Syncer{
		site:   site,
		client: client,
		repo:   repo,
		cache:  cache,
		logger: logger.With().Str("component", "ordersync").Str("site", site).Logger(),
	}
}

// SetProgress registers a per-page progress hook.
func (s *Syncer) SetProgress(fn ProgressFunc) { s.progress = fn }

// SyncOrders fetches pages of changed orders since the checkpoint and
// upserts them into the mirror. Duplicated ids within the fetch are
// dropped with a warning; rows with out-of-range numerics are
// excluded on a one-shot batch retry and counted as failed. The
// checkpoint only advances to the last record of a page that was at
// least partially persisted; a failed pass records the error and
// leaves the cursor untouched.
func (s *Syncer) SyncOrders(ctx context.Context) (*Summary, error) {
	started := time.Now()
	summary := &Summary{}

	since, err := s.checkpointSince(ctx, models.TaskKindOrders)
	if err != nil {
		return summary, err
	}

	seen := make(map[int64]bool)
	advanced := false

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return summary, s.failPass(ctx, models.TaskKindOrders, summary, err)
		}

		orders, err := s.client.FetchOrdersPage(ctx, since, page)
		if err != nil {
			return summary, s.failPass(ctx, models.TaskKindOrders, summary, fmt.Errorf("fetch orders page %d: %w", page, err))
		}
		if len(orders) == 0 {
			break
		}
		summary.Pages = page
		summary.Fetched += len(orders)

		// Upstream pagination can drift and repeat an id; the second
		// occurrence is dropped.
		batch := orders[:0:0]
		for _, order := range orders {
			if seen[order.ExternalID] {
				summary.Duplicates++
				s.logger.Warn().Int64("order_id", order.ExternalID).Msg("duplicate order id in fetch, dropping")
				continue
			}
			seen[order.ExternalID] = true
			batch = append(batch, order)
		}
		if len(batch) == 0 {
			continue
		}

		persisted, failed, err := s.upsertWithRetry(ctx, batch)
		if err != nil {
			return summary, s.failPass(ctx, models.TaskKindOrders, summary, fmt.Errorf("persist orders page %d: %w", page, err))
		}
		summary.Persisted += len(persisted)
		summary.Failed += failed

		if len(persisted) > 0 {
			last := persisted[len(persisted)-1]
			cursor := models.Cursor{LastID: last.ExternalID, LastModified: last.ModifiedAt}
			if err := s.repo.AdvanceCheckpoint(ctx, s.site, models.TaskKindOrders, cursor, int64(len(persisted)), time.Since(started)); err != nil {
				return summary, fmt.Errorf("advance checkpoint: %w", err)
			}
			advanced = true
		}

		s.report(summary, page)
	}

	if !advanced && summary.Fetched == 0 {
		s.logger.Debug().Msg("no changed orders since checkpoint")
	}
	return summary, nil
}

// SyncProducts refreshes the product mirror from pages of changed
// products. Rows are upserted individually; a failed row is counted
// and skipped without aborting its siblings.
func (s *Syncer) SyncProducts(ctx context.Context) (*Summary, error) {
	started := time.Now()
	summary := &Summary{}

	since, err := s.checkpointSince(ctx, models.TaskKindProducts)
	if err != nil {
		return summary, err
	}

	seen := make(map[int64]bool)

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return summary, s.failPass(ctx, models.TaskKindProducts, summary, err)
		}

		products, err := s.client.FetchProductsPage(ctx, since, page)
		if err != nil {
			return summary, s.failPass(ctx, models.TaskKindProducts, summary, fmt.Errorf("fetch products page %d: %w", page, err))
		}
		if len(products) == 0 {
			break
		}
		summary.Pages = page
		summary.Fetched += len(products)

		var lastPersisted *models.CachedProduct
		persistedCount := 0
		for i := range products {
			product := products[i]
			if seen[product.ProductID] {
				summary.Duplicates++
				s.logger.Warn().Int64("product_id", product.ProductID).Msg("duplicate product id in fetch, dropping")
				continue
			}
			seen[product.ProductID] = true

			if err := s.repo.UpsertCachedProduct(ctx, &product); err != nil {
				summary.Failed++
				s.logger.Warn().Err(err).Int64("product_id", product.ProductID).Msg("product upsert failed")
				continue
			}
			persistedCount++
			lastPersisted = &product
			if s.cache != nil {
				_ = s.cache.Set(ctx, &product)
			}
		}
		summary.Persisted += persistedCount

		if lastPersisted != nil {
			cursor := models.Cursor{LastID: lastPersisted.ProductID, LastModified: lastPersisted.ModifiedAt}
			if err := s.repo.AdvanceCheckpoint(ctx, s.site, models.TaskKindProducts, cursor, int64(persistedCount), time.Since(started)); err != nil {
				return summary, fmt.Errorf("advance checkpoint: %w", err)
			}
		}

		s.report(summary, page)
	}

	return summary, nil
}

// upsertWithRetry tries the whole batch once; when the store rejects
// it for out-of-range numerics it retries once with the offending
// rows excluded. Returns the rows actually persisted, in input order.
func (s *Syncer) upsertWithRetry(ctx context.Context, batch []models.OrderRecord) ([]models.OrderRecord, int, error) {
	err := s.repo.UpsertOrders(ctx, s.site, batch)
	if err == nil {
		return batch, 0, nil
	}

	var rangeErr *database.RangeError
	if !errors.As(err, &rangeErr) {
		return nil, 0, err
	}

	offending := make(map[int64]bool, len(rangeErr.ExternalIDs))
	for _, id := range rangeErr.ExternalIDs {
		offending[id] = true
	}

	retry := batch[:0:0]
	for _, order := range batch {
		if offending[order.ExternalID] {
			s.logger.Warn().Int64("order_id", order.ExternalID).Msg("order excluded for out-of-range numerics")
			continue
		}
		retry = append(retry, order)
	}

	if len(retry) > 0 {
		if err := s.repo.UpsertOrders(ctx, s.site, retry); err != nil {
			return nil, 0, err
		}
	}
	return retry, len(offending), nil
}

func (s *Syncer) checkpointSince(ctx context.Context, kind string) (time.Time, error) {
	cp, err := s.repo.GetCheckpoint(ctx, s.site, kind)
	if err != nil {
		return time.Time{}, fmt.Errorf("read checkpoint: %w", err)
	}
	if cp == nil {
		return time.Time{}, nil
	}
	return cp.LastModified, nil
}

func (s *Syncer) failPass(ctx context.Context, kind string, summary *Summary, cause error) error {
	if err := s.repo.MarkCheckpointFailed(ctx, s.site, kind, cause.Error()); err != nil {
		s.logger.Error().Err(err).Msg("failed to record checkpoint failure")
	}
	s.logger.Error().Err(cause).Int("fetched", summary.Fetched).Int("persisted", summary.Persisted).Msg("sync pass failed")
	return cause
}

func (s *Syncer) report(summary *Summary, page int) {
	if s.progress == nil {
		return
	}
	s.progress(models.TaskProgress{
		Fetched:   summary.Fetched,
		Persisted: summary.Persisted,
		Failed:    summary.Failed,
		Page:      page,
	})
}
