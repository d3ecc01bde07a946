package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stocksync/internal/api"
	"stocksync/internal/config"
	"stocksync/internal/database"
	"stocksync/internal/domain"
	"stocksync/internal/erp"
	"stocksync/internal/events"
	"stocksync/internal/export"
	"stocksync/internal/logging"
	"stocksync/internal/metrics"
	"stocksync/internal/models"
	"stocksync/internal/notify"
	"stocksync/internal/ordersync"
	"stocksync/internal/queue"
	"stocksync/internal/recon"
	"stocksync/internal/repository"
	"stocksync/internal/storefront"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return err
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	cache := initCache(ctx, cfg, &logger)

	erpClient := erp.NewClient(cfg.ERP, &logger)
	clientFactory := func(site config.SiteConfig) domain.StorefrontClient {
		return storefront.NewClient(site, &logger)
	}

	eventBus := events.NewEventBus()
	notifier := notify.New(cfg.Notify, &logger)
	subscribeEvents(ctx, eventBus, notifier, &logger)

	runner := recon.NewRunner(cfg, erpClient, clientFactory, db, cache, eventBus, &logger)
	runner.SetWindowObserver(metrics.SetWindow)

	taskService := queue.NewService(db, cfg.Scheduler.MaxRetries, &logger)
	processor := queue.NewProcessor(db, eventBus, cfg.Scheduler.PollInterval, cfg.Scheduler.ClaimBatch, &logger)
	registerExecutors(processor, cfg, runner, clientFactory, db, cache, &logger)
	go processor.Start(ctx)

	go runScheduler(ctx, cfg, taskService, &logger)

	if cfg.API.Enabled {
		exporter := export.NewExporter(db, cfg.Exports.Path)
		checkerFactory := func(siteName string) *recon.Checker {
			site := cfg.SiteByName(siteName)
			if site == nil {
				return nil
			}
			return recon.NewChecker(site.Name, clientFactory(*site), db, cache, cfg.Controller, &logger)
		}
		apiServer := api.NewServer(cfg.API, db, taskService, exporter, checkerFactory, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().
		Str("version", cfg.App.Version).
		Int("sites", len(cfg.Sites)).
		Msg("stock sync daemon started")

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return nil
}

// initCache builds the product cache: Redis fronted by an in-memory
// fallback when Redis is enabled, memory only otherwise.
func initCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.ProductCache {
	memory := repository.NewMemoryProductCache(cfg.Redis.TTL)
	if !cfg.Redis.Enabled {
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable at startup, failover cache will probe")
	}

	redisCache := repository.NewRedisProductCache(client, cfg.Redis.TTL)
	return repository.NewFailoverProductCache(redisCache, memory, logger)
}

func registerExecutors(processor *queue.Processor, cfg *config.Config, runner *recon.Runner, clients recon.ClientFactory, repo domain.Repository, cache domain.ProductCache, logger *zerolog.Logger) {
	processor.Register(models.TaskKindReconcile, queue.ExecutorFunc(func(ctx context.Context, task *models.SyncTask, progress func(models.TaskProgress)) (interface{}, error) {
		result := runner.RunSite(ctx, task.Site)
		return result.Run, nil
	}))

	newSyncer := func(task *models.SyncTask) (*ordersync.Syncer, error) {
		site := cfg.SiteByName(task.Site)
		if site == nil {
			return nil, fmt.Errorf("unknown site: %s", task.Site)
		}
		return ordersync.NewSyncer(site.Name, clients(*site), repo, cache, logger), nil
	}

	processor.Register(models.TaskKindOrders, queue.ExecutorFunc(func(ctx context.Context, task *models.SyncTask, progress func(models.TaskProgress)) (interface{}, error) {
		syncer, err := newSyncer(task)
		if err != nil {
			return nil, err
		}
		syncer.SetProgress(progress)
		return syncer.SyncOrders(ctx)
	}))

	processor.Register(models.TaskKindProducts, queue.ExecutorFunc(func(ctx context.Context, task *models.SyncTask, progress func(models.TaskProgress)) (interface{}, error) {
		syncer, err := newSyncer(task)
		if err != nil {
			return nil, err
		}
		syncer.SetProgress(progress)
		return syncer.SyncProducts(ctx)
	}))
}

// runScheduler periodically enqueues sync tasks for every enabled
// site. A still-active task for the same site and kind makes the
// enqueue a no-op.
func runScheduler(ctx context.Context, cfg *config.Config, tasks *queue.Service, logger *zerolog.Logger) {
	schedLogger := logger.With().Str("component", "scheduler").Logger()

	intervals := []struct {
		kind     string
		interval time.Duration
	}{
		{models.TaskKindReconcile, cfg.Scheduler.ReconcileInterval},
		{models.TaskKindOrders, cfg.Scheduler.OrderInterval},
		{models.TaskKindProducts, cfg.Scheduler.ProductInterval},
	}

	for _, entry := range intervals {
		if entry.interval <= 0 {
			continue
		}
		go func(kind string, interval time.Duration) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					enqueueForSites(ctx, cfg, tasks, kind, &schedLogger)
				}
			}
		}(entry.kind, entry.interval)
	}

	<-ctx.Done()
}

func enqueueForSites(ctx context.Context, cfg *config.Config, tasks *queue.Service, kind string, logger *zerolog.Logger) {
	for _, site := range cfg.Sites {
		if !site.Enabled {
			continue
		}
		if _, err := tasks.Enqueue(ctx, site.Name, kind, 0, ""); err != nil {
			if errors.Is(err, database.ErrDuplicateTask) {
				logger.Debug().Str("site", site.Name).Str("kind", kind).Msg("task already queued")
				continue
			}
			logger.Error().Err(err).Str("site", site.Name).Str("kind", kind).Msg("enqueue scheduled task")
		}
	}
}

func subscribeEvents(ctx context.Context, bus *events.EventBus, notifier *notify.Notifier, logger *zerolog.Logger) {
	bus.Subscribe(recon.EventRunCompleted, func(event *events.Event) error {
		var run models.RunLog
		if err := json.Unmarshal(event.Payload, &run); err != nil {
			return err
		}
		metrics.ObserveRun(run.Site, run.Status, run.SyncedInStock+run.SyncedOutOfStock, run.Failed, run.Skipped)
		metrics.ObserveRunDuration(run.Site, run.Duration.Seconds())
		if notifier.Wants(run.Status) {
			if err := notifier.NotifyRun(ctx, &run); err != nil {
				logger.Warn().Err(err).Str("site", run.Site).Msg("run notification failed")
			}
		}
		return nil
	})

	bus.Subscribe(queue.EventTaskCompleted, func(event *events.Event) error {
		var payload struct {
			Kind   string `json:"kind"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		metrics.ObserveTask(payload.Kind, payload.Status)
		return nil
	})
}
