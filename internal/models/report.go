package models

import "time"

// Reconciliation statuses. A fresh report fully replaces the prior one.
const (
	ReconcileNeverRun   = "never_run"
	ReconcileChecking   = "checking"
	ReconcileConsistent = "consistent"
	ReconcileReindexed  = "reindexed"
	ReconcileError      = "error"
)

// ReconciliationReport is the outcome of the last reconciliation run
// against the authoritative FAQ source.
type ReconciliationReport struct {
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	MissingIDs  []int64   `json:"missing_ids"`
	OrphanedIDs []int64   `json:"orphaned_ids"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
