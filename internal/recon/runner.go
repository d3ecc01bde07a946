package recon

import (
	"context"
	"fmt"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/domain"
	"stocksync/internal/inventory"
	"stocksync/internal/mapping"
	"stocksync/internal/models"
	"stocksync/internal/storefront"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventRunCompleted is published after every reconciliation run.
const EventRunCompleted = "run_completed"

// errorSampleLimit bounds the per-item error detail kept in a run result.
const errorSampleLimit = 10

// ClientFactory builds a storefront client for a site.
type ClientFactory func(site config.SiteConfig) domain.StorefrontClient

// Runner drives one full reconciliation pass per site: fetch the ERP
// state, normalize it, decide the changes and execute them, then
// persist the run log.
type Runner struct {
	cfg     *config.Config
	erp     domain.ERPClient
	clients ClientFactory
	repo    domain.Repository
	cache   domain.ProductCache
	events  domain.EventPublisher
	logger  zerolog.Logger

	onWindow func(site string, window int)
}

func NewRunner(cfg *config.Config, erp domain.ERPClient, clients ClientFactory, repo domain.Repository, cache domain.ProductCache, events domain.EventPublisher, logger *zerolog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		erp:     erp,
		clients: clients,
		repo:    repo,
		cache:   cache,
		events:  events,
		logger:  logger.With().Str("component", "recon-runner").Logger(),
	}
}

// SetWindowObserver registers a hook invoked with the controller's
// window size after each run, for metrics.
func (r *Runner) SetWindowObserver(fn func(site string, window int)) {
	r.onWindow = fn
}

// RunResult is the outcome of one reconciliation run, including a
// bounded sample of per-item failures.
type RunResult struct {
	Run    *models.RunLog
	Errors []models.ItemResult
}

// RunSite executes one reconciliation run. It never returns an error
// or a nil result: every outcome, including a run-level panic, is
// represented in the persisted RunLog. The named return lets the
// deferred recovery hand back the populated result.
func (r *Runner) RunSite(ctx context.Context, siteName string) (result *RunResult) {
	started := time.Now()
	run := &models.RunLog{
		RunID: uuid.NewString(),
		Site:  siteName,
	}
	logger := r.logger.With().Str("site", siteName).Str("run_id", run.RunID).Logger()

	result = &RunResult{Run: run}

	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("panic: %v", rec)
			run.Status = models.RunStatusFailed
			run.Error = &msg
			logger.Error().Str("panic", msg).Msg("reconciliation run panicked")
		}
		run.Duration = time.Since(started)
		r.finish(ctx, result, &logger)
	}()

	site := r.cfg.SiteByName(siteName)
	if site == nil || !site.Enabled {
		// Configuration error: short-circuit before any remote call.
		msg := "site is unknown or disabled"
		run.Status = models.RunStatusFailed
		run.Error = &msg
		return result
	}

	rows, err := r.erp.FetchInventory(ctx)
	if err != nil {
		r.fail(run, fmt.Errorf("fetch inventory: %w", err))
		return result
	}

	mappings, err := r.erp.FetchMappings(ctx)
	if err != nil {
		r.fail(run, fmt.Errorf("fetch mappings: %w", err))
		return result
	}

	normalized := inventory.Normalize(rows, r.cfg.FiltersFor(siteName))
	netStock := inventory.NetStockByCode(normalized)
	resolver := mapping.NewResolver(mappings)

	cached, err := r.loadCachedState(ctx, siteName)
	if err != nil {
		r.fail(run, fmt.Errorf("load cached state: %w", err))
		return result
	}

	decisions, counters := Decide(netStock, resolver, cached, r.cfg.PolicyFor(siteName))
	run.Checked = counters.Checked
	run.Skipped = counters.Skipped

	if len(decisions) == 0 {
		run.Status = models.RunStatusNoChanges
		return result
	}

	client := r.clients(*site)
	executor := NewExecutor(siteName, client, r.repo, r.cache, &logger)
	controller := NewController(r.cfg.Controller, storefront.IsRateLimited, &logger)

	// The controller retries transient remote errors with adaptive
	// backoff; outcomes hold the final per-item result after retries.
	outcomes := make([]models.ItemResult, len(decisions))
	controller.Run(ctx, len(decisions), func(ctx context.Context, i int) error {
		outcome, err := executor.Apply(ctx, decisions[i])
		outcomes[i] = outcome
		return err
	})

	for _, outcome := range outcomes {
		switch outcome.Status {
		case models.ItemSynced:
			if outcome.Target == models.StockStatusInStock {
				run.SyncedInStock++
			} else {
				run.SyncedOutOfStock++
			}
		case models.ItemFailed:
			run.Failed++
			if len(result.Errors) < errorSampleLimit {
				result.Errors = append(result.Errors, outcome)
			}
		default:
			run.Skipped++
		}
	}

	if r.onWindow != nil {
		r.onWindow(siteName, controller.Window())
	}

	switch {
	case run.Failed > 0:
		run.Status = models.RunStatusPartial
	default:
		run.Status = models.RunStatusSuccess
	}
	return result
}

// loadCachedState reads the site's product mirror keyed by SKU. The
// mirror is revalidated here at decision time; stale rows beyond the
// write-through and periodic sync never enter a decision silently.
func (r *Runner) loadCachedState(ctx context.Context, site string) (map[string]models.CachedProduct, error) {
	products, err := r.repo.ListCachedProducts(ctx, site)
	if err != nil {
		return nil, err
	}
	cached := make(map[string]models.CachedProduct, len(products))
	for _, p := range products {
		if existing, ok := cached[p.SKU]; ok && existing.LastSyncedAt.After(p.LastSyncedAt) {
			continue
		}
		cached[p.SKU] = p
	}
	return cached, nil
}

func (r *Runner) fail(run *models.RunLog, err error) {
	msg := err.Error()
	run.Status = models.RunStatusFailed
	run.Error = &msg
}

func (r *Runner) finish(ctx context.Context, result *RunResult, logger *zerolog.Logger) {
	run := result.Run
	if err := r.repo.InsertRunLog(ctx, run); err != nil {
		logger.Error().Err(err).Msg("failed to persist run log")
	}

	if r.events != nil {
		if err := r.events.PublishJSON(EventRunCompleted, run); err != nil {
			logger.Warn().Err(err).Msg("failed to publish run event")
		}
	}

	logger.Info().
		Str("status", run.Status).
		Int("checked", run.Checked).
		Int("instock", run.SyncedInStock).
		Int("outofstock", run.SyncedOutOfStock).
		Int("failed", run.Failed).
		Int("skipped", run.Skipped).
		Dur("duration", run.Duration).
		Msg("reconciliation run finished")
}
