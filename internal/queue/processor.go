package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stocksync/internal/database"
	"stocksync/internal/domain"
	"stocksync/internal/models"

	"github.com/rs/zerolog"
)

// EventTaskCompleted is published after every task reaches a terminal
// state through the processor.
const EventTaskCompleted = "task_completed"

// Executor runs one task kind. Progress snapshots are persisted
// through the supplied callback; the returned payload becomes the
// task result.
type Executor interface {
	Execute(ctx context.Context, task *models.SyncTask, progress func(models.TaskProgress)) (result interface{}, err error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task *models.SyncTask, progress func(models.TaskProgress)) (interface{}, error)

func (f ExecutorFunc) Execute(ctx context.Context, task *models.SyncTask, progress func(models.TaskProgress)) (interface{}, error) {
	return f(ctx, task, progress)
}

// Processor drains the task queue serially: exactly one task executes
// at a time system-wide, so cross-task races on shared per-site state
// (checkpoints, cache rows) cannot occur.
type Processor struct {
	repo         domain.Repository
	executors    map[string]Executor
	events       domain.EventPublisher
	pollInterval time.Duration
	claimBatch   int
	logger       zerolog.Logger
}

func NewProcessor(repo domain.Repository, events domain.EventPublisher, pollInterval time.Duration, claimBatch int, logger *zerolog.Logger) *Processor {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if claimBatch <= 0 {
		claimBatch = 20
	}
	return &Processor{
		repo:         repo,
		executors:    make(map[string]Executor),
		events:       events,
		pollInterval: pollInterval,
		claimBatch:   claimBatch,
		logger:       logger.With().Str("component", "batch-processor").Logger(),
	}
}

// Register binds an executor to a task kind.
func (p *Processor) Register(kind string, executor Executor) {
	p.executors[kind] = executor
}

// Start runs the drain loop until ctx is done. Tasks stranded in
// processing by a previous run are returned to pending first, so a
// crash cannot hold a per-(site, kind) slot forever.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info().Msg("batch processor started")
	defer p.logger.Info().Msg("batch processor stopped")

	if n, err := p.repo.RequeueProcessingTasks(ctx); err != nil {
		p.logger.Error().Err(err).Msg("requeue orphaned tasks")
	} else if n > 0 {
		p.logger.Warn().Int64("count", n).Msg("requeued tasks orphaned in processing")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tasks, err := p.repo.ClaimPendingTasks(ctx, p.claimBatch)
		if err != nil {
			p.logger.Error().Err(err).Msg("claim pending tasks")
			sleep(ctx, p.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			sleep(ctx, p.pollInterval)
			continue
		}

		for i := range tasks {
			if ctx.Err() != nil {
				return
			}
			p.processTask(ctx, &tasks[i])
		}
	}
}

// processTask moves one task through processing to a terminal state.
// Cancellation is observed cooperatively: a task cancelled after the
// claim is skipped without execution.
func (p *Processor) processTask(ctx context.Context, task *models.SyncTask) {
	current, err := p.repo.GetTask(ctx, task.ID)
	if err != nil {
		p.logger.Error().Err(err).Int64("task_id", task.ID).Msg("re-read claimed task")
		return
	}
	if current.Status != models.TaskStatusPending {
		// Cancelled (or mutated) between claim and execution.
		p.logger.Info().Int64("task_id", task.ID).Str("status", current.Status).Msg("skipping task no longer pending")
		return
	}

	executor, ok := p.executors[task.Kind]
	if !ok {
		p.finish(task, models.TaskStatusFailed, fmt.Sprintf("no executor for kind %s", task.Kind))
		return
	}

	if err := p.repo.UpdateTaskStatus(ctx, task.ID, models.TaskStatusProcessing, ""); err != nil {
		p.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark task processing")
		return
	}

	logger := p.logger.With().Int64("task_id", task.ID).Str("site", task.Site).Str("kind", task.Kind).Logger()
	logger.Info().Msg("task started")
	started := time.Now()

	result, execErr := p.execute(ctx, executor, task)

	if execErr != nil {
		logger.Error().Err(execErr).Dur("duration", time.Since(started)).Msg("task failed")
		p.finish(task, models.TaskStatusFailed, execErr.Error())
		return
	}

	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := p.repo.SetTaskResult(ctx, task.ID, string(data)); err != nil {
				logger.Warn().Err(err).Msg("persist task result")
			}
		}
	}

	logger.Info().Dur("duration", time.Since(started)).Msg("task completed")
	p.finish(task, models.TaskStatusCompleted, "")
}

// execute isolates executor panics so one bad task cannot take the
// drain loop down.
func (p *Processor) execute(ctx context.Context, executor Executor, task *models.SyncTask) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	progress := func(snapshot models.TaskProgress) {
		data, marshalErr := json.Marshal(snapshot)
		if marshalErr != nil {
			return
		}
		if updateErr := p.repo.UpdateTaskProgress(ctx, task.ID, string(data)); updateErr != nil {
			p.logger.Warn().Err(updateErr).Int64("task_id", task.ID).Msg("persist task progress")
		}
	}

	return executor.Execute(ctx, task, progress)
}

// finish records the terminal state on a context detached from the
// drain loop: a shutdown arriving after execution must not strand the
// task in processing. A task cancelled while it ran stays cancelled.
func (p *Processor) finish(task *models.SyncTask, status, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.repo.UpdateTaskStatus(ctx, task.ID, status, errMsg); err != nil {
		if errors.Is(err, database.ErrTerminalState) {
			p.logger.Info().Int64("task_id", task.ID).Str("status", status).Msg("task already terminal, keeping existing state")
			return
		}
		p.logger.Error().Err(err).Int64("task_id", task.ID).Str("status", status).Msg("finalize task")
		return
	}
	if p.events != nil {
		payload := map[string]interface{}{
			"task_id": task.ID,
			"site":    task.Site,
			"kind":    task.Kind,
			"status":  status,
		}
		if err := p.events.PublishJSON(EventTaskCompleted, payload); err != nil {
			p.logger.Warn().Err(err).Msg("publish task event")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
