package models

import "time"

// Checkpoint run statuses.
const (
	CheckpointStatusOK     = "ok"
	CheckpointStatusFailed = "failed"
)

// Checkpoint marks how far an incremental fetch has progressed for
// one (site, kind) pair. The cursor only moves forward: a failed pass
// records the error and leaves LastID/LastModified untouched.
type Checkpoint struct {
	Site         string        `json:"site"`
	Kind         string        `json:"kind"`
	LastID       int64         `json:"last_id"`
	LastModified time.Time     `json:"last_modified"`
	SyncedCount  int64         `json:"synced_count"`
	LastStatus   string        `json:"last_status"`
	LastError    *string       `json:"last_error,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Cursor is the externally visible position of a checkpoint.
type Cursor struct {
	LastID       int64     `json:"last_id"`
	LastModified time.Time `json:"last_modified"`
}

// After reports whether c is strictly ahead of other.
func (c Cursor) After(other Cursor) bool {
	if c.LastModified.After(other.LastModified) {
		return true
	}
	return c.LastModified.Equal(other.LastModified) && c.LastID > other.LastID
}
