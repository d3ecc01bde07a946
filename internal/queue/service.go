// Package queue holds the durable task queue's control surface and
// the serial batch processor that drains it.
package queue

import (
	"context"
	"errors"
	"fmt"

	"stocksync/internal/domain"
	"stocksync/internal/models"

	"github.com/rs/zerolog"
)

// ErrRetriesExhausted is returned by Retry when a task already spent
// its retry budget.
var ErrRetriesExhausted = errors.New("task retries exhausted")

// Service implements the queue control operations consumed by the
// HTTP API: enqueue, list, cancel, retry, delete.
type Service struct {
	repo       domain.Repository
	maxRetries int
	logger     zerolog.Logger
}

func NewService(repo domain.Repository, maxRetries int, logger *zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		maxRetries: maxRetries,
		logger:     logger.With().Str("component", "task-service").Logger(),
	}
}

// Enqueue creates one pending task. A pending or processing task for
// the same (site, kind) makes this a conflict; no row is created.
func (s *Service) Enqueue(ctx context.Context, site, kind string, priority int, metadata string) (*models.SyncTask, error) {
	switch kind {
	case models.TaskKindOrders, models.TaskKindProducts, models.TaskKindReconcile:
	default:
		return nil, fmt.Errorf("unknown task kind: %s", kind)
	}

	task := &models.SyncTask{
		Site:     site,
		Kind:     kind,
		Priority: priority,
		Metadata: metadata,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info().Str("site", site).Str("kind", kind).Int64("task_id", task.ID).Msg("task enqueued")
	return task, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.SyncTask, error) {
	return s.repo.GetTask(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, limit int) ([]models.SyncTask, error) {
	return s.repo.ListTasks(ctx, status, limit)
}

// Cancel marks a pending or processing task cancelled. The batch
// processor observes the state cooperatively; in-flight remote calls
// are not aborted, the task's remaining work is discarded.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Terminal() {
		return fmt.Errorf("task %d is already %s", id, task.Status)
	}
	if err := s.repo.UpdateTaskStatus(ctx, id, models.TaskStatusCancelled, ""); err != nil {
		return err
	}
	s.logger.Info().Int64("task_id", id).Msg("task cancelled")
	return nil
}

// Retry re-enqueues a failed task, bumping its retry count.
func (s *Service) Retry(ctx context.Context, id int64) (*models.SyncTask, error) {
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.maxRetries > 0 && task.RetryCount >= s.maxRetries {
		return nil, fmt.Errorf("task %d: %w", id, ErrRetriesExhausted)
	}

	if err := s.repo.ResetTaskForRetry(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("task_id", id).Msg("task re-enqueued for retry")
	return s.repo.GetTask(ctx, id)
}

// Delete removes a task in a terminal state.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteTask(ctx, id)
}
