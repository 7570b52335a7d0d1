package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warunglabs/tanya/internal/faqindex"
	"github.com/warunglabs/tanya/internal/models"
	"github.com/warunglabs/tanya/internal/storage"
)

// Reconciler compares the id set held by the index against the
// authoritative source, inserts missing records, removes orphaned ones,
// and keeps a single overwritten status report.
type Reconciler struct {
	manager *faqindex.Manager
	source  Source
	store   storage.Store // optional report persistence
	logger  *zap.Logger

	mu   sync.RWMutex
	last *models.ReconciliationReport
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets a logger for run progress and failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithReportStore persists each report so status survives restarts.
func WithReportStore(store storage.Store) Option {
	return func(r *Reconciler) { r.store = store }
}

// NewReconciler creates a reconciler over manager and source.
func NewReconciler(manager *faqindex.Manager, source Source, opts ...Option) *Reconciler {
	r := &Reconciler{manager: manager, source: source}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one reconciliation pass and returns the report it recorded.
// A source fetch failure terminates the run with status "error" before any
// index mutation. Mutation failures also yield "error", keeping whatever
// records were already applied (no rollback). Otherwise the status is
// "reindexed" when either id set was non-empty, else "consistent".
func (r *Reconciler) Run(ctx context.Context) (*models.ReconciliationReport, error) {
	report := &models.ReconciliationReport{
		Status:      models.ReconcileChecking,
		MissingIDs:  []int64{},
		OrphanedIDs: []int64{},
	}

	items, err := r.source.ListAll(ctx)
	if err != nil {
		report.Status = models.ReconcileError
		report.Error = err.Error()
		report.Timestamp = time.Now()
		r.record(ctx, report)
		return report, err
	}

	authoritative := make(map[int64]models.FAQItem, len(items))
	for _, item := range items {
		authoritative[item.ID] = item
	}
	indexed := make(map[int64]struct{})
	for _, id := range r.manager.IDs() {
		indexed[id] = struct{}{}
	}

	for id := range authoritative {
		if _, ok := indexed[id]; !ok {
			report.MissingIDs = append(report.MissingIDs, id)
		}
	}
	for id := range indexed {
		if _, ok := authoritative[id]; !ok {
			report.OrphanedIDs = append(report.OrphanedIDs, id)
		}
	}
	sortIDs(report.MissingIDs)
	sortIDs(report.OrphanedIDs)
	report.Total = len(items)

	if r.logger != nil && (len(report.MissingIDs) > 0 || len(report.OrphanedIDs) > 0) {
		r.logger.Info("reconciling index against source",
			zap.Int("missing", len(report.MissingIDs)),
			zap.Int("orphaned", len(report.OrphanedIDs)))
	}

	for _, id := range report.MissingIDs {
		item := authoritative[id]
		if _, err := r.manager.CreateOrUpdate(ctx, item.ID, item.Question, item.Answer); err != nil {
			return r.fail(ctx, report, err)
		}
	}
	for _, id := range report.OrphanedIDs {
		if _, err := r.manager.Delete(ctx, id); err != nil {
			return r.fail(ctx, report, err)
		}
	}

	if len(report.MissingIDs) > 0 || len(report.OrphanedIDs) > 0 {
		report.Status = models.ReconcileReindexed
	} else {
		report.Status = models.ReconcileConsistent
	}
	report.Timestamp = time.Now()
	r.record(ctx, report)
	return report, nil
}

// LastReport returns the most recent report, falling back to the persisted
// one, or a never_run report when reconciliation has not happened.
func (r *Reconciler) LastReport(ctx context.Context) *models.ReconciliationReport {
	r.mu.RLock()
	last := r.last
	r.mu.RUnlock()
	if last != nil {
		cp := *last
		return &cp
	}
	if r.store != nil {
		persisted, err := r.store.LoadReport(ctx)
		if err != nil && r.logger != nil {
			r.logger.Warn("load reconciliation report failed", zap.Error(err))
		}
		if persisted != nil {
			r.mu.Lock()
			r.last = persisted
			r.mu.Unlock()
			cp := *persisted
			return &cp
		}
	}
	return &models.ReconciliationReport{
		Status:      models.ReconcileNeverRun,
		MissingIDs:  []int64{},
		OrphanedIDs: []int64{},
	}
}

func (r *Reconciler) fail(ctx context.Context, report *models.ReconciliationReport, err error) (*models.ReconciliationReport, error) {
	report.Status = models.ReconcileError
	report.Error = err.Error()
	report.Timestamp = time.Now()
	r.record(ctx, report)
	return report, err
}

// record overwrites the active report in memory and, when configured, in
// the store. Persistence failures are logged only.
func (r *Reconciler) record(ctx context.Context, report *models.ReconciliationReport) {
	r.mu.Lock()
	cp := *report
	r.last = &cp
	r.mu.Unlock()
	if r.store != nil {
		if err := r.store.SaveReport(ctx, report); err != nil && r.logger != nil {
			r.logger.Warn("persist reconciliation report failed", zap.Error(err))
		}
	}
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
