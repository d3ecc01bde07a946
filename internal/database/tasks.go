package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stocksync/internal/models"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const taskColumns = `id, site, kind, status, priority, retry_count, metadata, progress, result, last_error, created_at, started_at, completed_at`

// CreateTask inserts a new pending task. Returns ErrDuplicateTask when
// a pending/processing task for the same (site, kind) already exists;
// the partial unique index enforces this atomically.
func (db *DB) CreateTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	now := time.Now().UTC()

	result, err := db.db.ExecContext(ctx,
		`INSERT INTO tasks (site, kind, status, priority, retry_count, metadata, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.Site, task.Kind, task.Status, task.Priority, task.RetryCount, task.Metadata, now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateTask
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

func (db *DB) GetTask(ctx context.Context, id int64) (*models.SyncTask, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks returns tasks, newest first, optionally filtered by status.
func (db *DB) ListTasks(ctx context.Context, status string, limit int) ([]models.SyncTask, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ClaimPendingTasks returns up to limit pending tasks in execution
// order: highest priority first, oldest first within a priority.
func (db *DB) ClaimPendingTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
         WHERE status = ?
         ORDER BY priority DESC, created_at ASC
         LIMIT ?`,
		models.TaskStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (db *DB) HasActiveTask(ctx context.Context, site, kind string) (bool, error) {
	var count int
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE site = ? AND kind = ? AND status IN (?, ?)`,
		site, kind, models.TaskStatusPending, models.TaskStatusProcessing).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check active task: %w", err)
	}
	return count > 0, nil
}

// UpdateTaskStatus moves a task through the state machine. Timestamps
// follow the transition: started_at on processing, completed_at on a
// terminal state. Terminal states are final: a completed, failed or
// cancelled task is never moved again, and the attempt returns
// ErrTerminalState.
func (db *DB) UpdateTaskStatus(ctx context.Context, id int64, status string, errMsg string) error {
	now := time.Now().UTC()
	var lastError interface{}
	if errMsg != "" {
		lastError = errMsg
	}

	notTerminal := ` AND status NOT IN (?, ?, ?)`
	terminalArgs := []interface{}{models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusCancelled}

	var query string
	var args []interface{}
	switch status {
	case models.TaskStatusProcessing:
		query = `UPDATE tasks SET status = ?, started_at = ?, last_error = NULL WHERE id = ?` + notTerminal
		args = append([]interface{}{status, now, id}, terminalArgs...)
	case models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusCancelled:
		query = `UPDATE tasks SET status = ?, last_error = ?, completed_at = ? WHERE id = ?` + notTerminal
		args = append([]interface{}{status, lastError, now, id}, terminalArgs...)
	default:
		query = `UPDATE tasks SET status = ?, last_error = ? WHERE id = ?` + notTerminal
		args = append([]interface{}{status, lastError, id}, terminalArgs...)
	}

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := db.GetTask(ctx, id); err != nil {
			return err
		}
		return ErrTerminalState
	}
	return nil
}

// RequeueProcessingTasks returns tasks stranded in processing back to
// pending. Called once at startup: a crash or shutdown mid-execution
// must not hold the per-(site, kind) slot forever.
func (db *DB) RequeueProcessingTasks(ctx context.Context) (int64, error) {
	res, err := db.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, started_at = NULL, progress = ''
         WHERE status = ?`,
		models.TaskStatusPending, models.TaskStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue processing tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (db *DB) UpdateTaskProgress(ctx context.Context, id int64, progress string) error {
	_, err := db.db.ExecContext(ctx,
		`UPDATE tasks SET progress = ? WHERE id = ?`, progress, id)
	if err != nil {
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

func (db *DB) SetTaskResult(ctx context.Context, id int64, result string) error {
	_, err := db.db.ExecContext(ctx,
		`UPDATE tasks SET result = ? WHERE id = ?`, result, id)
	if err != nil {
		return fmt.Errorf("failed to set task result: %w", err)
	}
	return nil
}

// ResetTaskForRetry re-enqueues a failed task: retry_count is
// incremented, timestamps and progress are cleared.
func (db *DB) ResetTaskForRetry(ctx context.Context, id int64) error {
	res, err := db.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, retry_count = retry_count + 1,
            started_at = NULL, completed_at = NULL, progress = '', result = '', last_error = NULL
         WHERE id = ? AND status = ?`,
		models.TaskStatusPending, id, models.TaskStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to reset task for retry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotRetryable
	}
	return nil
}

// DeleteTask removes a task; only terminal tasks may be deleted.
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	res, err := db.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND status IN (?, ?, ?)`,
		id, models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := db.GetTask(ctx, id); err != nil {
			return err
		}
		return ErrNotTerminal
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.SyncTask, error) {
	var t models.SyncTask
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.Site, &t.Kind, &t.Status, &t.Priority, &t.RetryCount,
		&t.Metadata, &t.Progress, &t.Result, &t.LastError,
		&t.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]models.SyncTask, error) {
	var tasks []models.SyncTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
