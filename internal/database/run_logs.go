package database

import (
	"context"
	"fmt"
	"time"

	"stocksync/internal/models"
)

// InsertRunLog appends one immutable run record.
func (db *DB) InsertRunLog(ctx context.Context, run *models.RunLog) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	result, err := db.db.ExecContext(ctx,
		`INSERT INTO run_logs (run_id, site, status, checked, synced_instock, synced_outofstock, failed, skipped, duration_ms, error, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Site, run.Status, run.Checked, run.SyncedInStock,
		run.SyncedOutOfStock, run.Failed, run.Skipped,
		run.Duration.Milliseconds(), run.Error, run.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// ListRunLogs returns run history, newest first, optionally for one site.
func (db *DB) ListRunLogs(ctx context.Context, site string, limit int) ([]models.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, run_id, site, status, checked, synced_instock, synced_outofstock, failed, skipped, duration_ms, error, created_at
              FROM run_logs`
	args := []interface{}{}
	if site != "" {
		query += ` WHERE site = ?`
		args = append(args, site)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunLog
	for rows.Next() {
		var r models.RunLog
		var durationMs int64
		err := rows.Scan(&r.ID, &r.RunID, &r.Site, &r.Status, &r.Checked,
			&r.SyncedInStock, &r.SyncedOutOfStock, &r.Failed, &r.Skipped,
			&durationMs, &r.Error, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run log: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
