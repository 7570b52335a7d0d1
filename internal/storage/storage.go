// Package storage defines the persistence interface for index snapshots
// and reconciliation reports.
package storage

import (
	"context"
	"time"

	"github.com/warunglabs/tanya/internal/models"
)

// Store persists the record-store snapshot (the position -> FAQ mapping
// paired with the vector file) and the last reconciliation report. The
// in-memory index stays authoritative: persistence failures are reported
// to the caller, who logs them and carries on.
type Store interface {
	// SaveSnapshot atomically replaces the persisted records with recs,
	// which are ordered by position (recs[i] occupies position i).
	SaveSnapshot(ctx context.Context, recs []*models.FAQ, lastUpdated time.Time) error
	// LoadSnapshot returns the persisted records in position order. An
	// empty store yields an empty slice and a zero time.
	LoadSnapshot(ctx context.Context) ([]*models.FAQ, time.Time, error)

	SaveReport(ctx context.Context, report *models.ReconciliationReport) error
	// LoadReport returns the last persisted report, or nil when
	// reconciliation has never run.
	LoadReport(ctx context.Context) (*models.ReconciliationReport, error)

	Close() error
}
