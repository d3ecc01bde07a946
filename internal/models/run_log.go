package models

import "time"

// Run statuses recorded per reconciliation execution.
const (
	RunStatusSuccess   = "success"
	RunStatusPartial   = "partial"
	RunStatusNoChanges = "no_changes"
	RunStatusFailed    = "failed"
)

// RunLog is the immutable record of one reconciliation run.
type RunLog struct {
	ID               int64         `json:"id"`
	RunID            string        `json:"run_id"`
	Site             string        `json:"site"`
	Status           string        `json:"status"`
	Checked          int           `json:"checked"`
	SyncedInStock    int           `json:"synced_to_instock"`
	SyncedOutOfStock int           `json:"synced_to_outofstock"`
	Failed           int           `json:"failed"`
	Skipped          int           `json:"skipped"`
	Duration         time.Duration `json:"duration"`
	Error            *string       `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// ItemOutcome classifies the result of one per-item action.
const (
	ItemSynced  = "synced"
	ItemSkipped = "skipped"
	ItemFailed  = "failed"
)

// ItemResult is the per-item outcome of a reconciliation or sync pass.
// Failures are data here; no error crosses an item boundary.
type ItemResult struct {
	SKU    string `json:"sku"`
	Target string `json:"target,omitempty"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
