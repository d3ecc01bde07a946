package models

import "time"

// Task kinds drained by the batch processor.
const (
	TaskKindOrders    = "orders"
	TaskKindProducts  = "products"
	TaskKindReconcile = "reconcile"
)

// Task statuses. Completed, failed and cancelled are terminal.
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
	TaskStatusCancelled  = "cancelled"
)

// SyncTask is one queued unit of work: one sync kind for one site.
type SyncTask struct {
	ID          int64      `json:"id"`
	Site        string     `json:"site"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	RetryCount  int        `json:"retry_count"`
	Metadata    string     `json:"metadata,omitempty"`
	Progress    string     `json:"progress,omitempty"`
	Result      string     `json:"result,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the task may no longer change state
// (other than a failed task being re-enqueued via retry).
func (t *SyncTask) Terminal() bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskProgress is the snapshot persisted in SyncTask.Progress as JSON.
type TaskProgress struct {
	Fetched   int    `json:"fetched"`
	Persisted int    `json:"persisted"`
	Failed    int    `json:"failed"`
	Page      int    `json:"page"`
	Note      string `json:"note,omitempty"`
}
