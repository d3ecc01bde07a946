package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stocksync/internal/models"
)

// GetCheckpoint returns the checkpoint for (site, kind), or nil when
// no pass has run yet.
func (db *DB) GetCheckpoint(ctx context.Context, site, kind string) (*models.Checkpoint, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT site, kind, last_id, last_modified, synced_count, last_status, last_error, last_duration_ms, updated_at
         FROM checkpoints WHERE site = ? AND kind = ?`, site, kind)

	var cp models.Checkpoint
	var durationMs int64
	err := row.Scan(&cp.Site, &cp.Kind, &cp.LastID, &cp.LastModified, &cp.SyncedCount,
		&cp.LastStatus, &cp.LastError, &durationMs, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	cp.LastDuration = time.Duration(durationMs) * time.Millisecond
	return &cp, nil
}

// AdvanceCheckpoint moves the cursor forward and accumulates the
// synced count. The cursor never rewinds: a cursor at or behind the
// stored one only updates counters and status. Callers invoke this
// only after at least one record of the pass was durably written.
func (db *DB) AdvanceCheckpoint(ctx context.Context, site, kind string, cursor models.Cursor, deltaCount int64, duration time.Duration) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint tx: %w", err)
	}
	defer tx.Rollback()

	var lastID int64
	var lastModified time.Time
	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx,
		`SELECT last_id, last_modified FROM checkpoints WHERE site = ? AND kind = ?`,
		site, kind).Scan(&lastID, &lastModified)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO checkpoints (site, kind, last_id, last_modified, synced_count, last_status, last_error, last_duration_ms, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
			site, kind, cursor.LastID, cursor.LastModified.UTC(), deltaCount,
			models.CheckpointStatusOK, duration.Milliseconds(), now)
		if err != nil {
			return fmt.Errorf("failed to insert checkpoint: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read checkpoint: %w", err)
	default:
		stored := models.Cursor{LastID: lastID, LastModified: lastModified}
		next := cursor
		if !next.After(stored) {
			next = stored
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE checkpoints SET last_id = ?, last_modified = ?, synced_count = synced_count + ?,
                last_status = ?, last_error = NULL, last_duration_ms = ?, updated_at = ?
             WHERE site = ? AND kind = ?`,
			next.LastID, next.LastModified.UTC(), deltaCount,
			models.CheckpointStatusOK, duration.Milliseconds(), now, site, kind)
		if err != nil {
			return fmt.Errorf("failed to advance checkpoint: %w", err)
		}
	}

	return tx.Commit()
}

// MarkCheckpointFailed records a failed pass. The cursor stays where
// it was so the next run retries from the same point.
func (db *DB) MarkCheckpointFailed(ctx context.Context, site, kind string, errMsg string) error {
	now := time.Now().UTC()
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO checkpoints (site, kind, last_status, last_error, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(site, kind) DO UPDATE SET
            last_status = excluded.last_status,
            last_error = excluded.last_error,
            updated_at = excluded.updated_at`,
		site, kind, models.CheckpointStatusFailed, errMsg, now)
	if err != nil {
		return fmt.Errorf("failed to mark checkpoint failed: %w", err)
	}
	return nil
}
