package faqindex

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warunglabs/tanya/internal/config"
	"github.com/warunglabs/tanya/internal/embedding"
	"github.com/warunglabs/tanya/internal/keyword"
	"github.com/warunglabs/tanya/internal/models"
	"github.com/warunglabs/tanya/internal/storage"
	"github.com/warunglabs/tanya/internal/vector"
)

// ErrNotFound is returned for lookups on an unknown FAQ id.
var ErrNotFound = errors.New("faq not found")

// Manager is the only component allowed to mutate the vector index and the
// record store. A single read-write lock covers both structures: reads take
// shared access, every mutation executes its remove/add/renumber sequence as
// one exclusive critical section, so callers never observe the pair in an
// inconsistent relative state. Embedding happens outside the lock.
type Manager struct {
	mu       sync.RWMutex
	index    *vector.FlatIndex
	records  *recordStore
	embedder embedding.Embedder
	cfg      *config.QueryConfig

	store       storage.Store
	vectorPath  string
	keywords    keyword.Index
	logger      *zap.Logger
	lastUpdated time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a logger for persistence warnings and debug events.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithSnapshotStore enables persistence: the record snapshot goes to store
// and the raw vectors to vectorPath after every mutation. Failures are
// logged; the in-memory state stays authoritative.
func WithSnapshotStore(store storage.Store, vectorPath string) Option {
	return func(m *Manager) {
		m.store = store
		m.vectorPath = vectorPath
	}
}

// WithKeywordIndex keeps a lexical index over questions in sync with the
// vector index, for the admin search endpoint.
func WithKeywordIndex(k keyword.Index) Option {
	return func(m *Manager) { m.keywords = k }
}

// NewManager creates a manager over index using embedder for all text.
func NewManager(embedder embedding.Embedder, index *vector.FlatIndex, cfg *config.QueryConfig, opts ...Option) *Manager {
	m := &Manager{
		index:    index,
		records:  newRecordStore(),
		embedder: embedder,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateOrUpdate embeds question and indexes it under id, returning the new
// position. An existing id is updated as delete + insert: the old vector
// slot is removed (renumbering every higher position down by one) before
// the fresh embedding is appended at the top position.
func (m *Manager) CreateOrUpdate(ctx context.Context, id int64, question, answer string) (int, error) {
	emb, err := m.embedder.Embed(ctx, question)
	if err != nil {
		return 0, fmt.Errorf("embed question: %w", err)
	}
	if dims := m.Dimensions(); len(emb) != dims {
		return 0, fmt.Errorf("%w: embedder returned %d, index expects %d",
			vector.ErrDimensionMismatch, len(emb), dims)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if oldPos, ok := m.records.position(id); ok {
		if err := m.index.RemoveAt(oldPos); err != nil {
			return 0, fmt.Errorf("remove old vector: %w", err)
		}
		m.records.removeAt(oldPos)
	}
	pos, err := m.index.Add(emb)
	if err != nil {
		return 0, err
	}
	m.records.insert(&models.FAQ{ID: id, Question: question, Answer: answer})
	m.lastUpdated = time.Now()

	if m.keywords != nil {
		if err := m.keywords.Index(ctx, id, question, answer); err != nil && m.logger != nil {
			m.logger.Warn("keyword index update failed", zap.Int64("faq_id", id), zap.Error(err))
		}
	}
	m.persistLocked(ctx)
	return pos, nil
}

// Delete removes id from the index. Returns false when id is unknown.
// Every record at a higher position shifts down by one.
func (m *Manager) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.records.position(id)
	if !ok {
		return false, nil
	}
	if err := m.index.RemoveAt(pos); err != nil {
		return false, fmt.Errorf("remove vector: %w", err)
	}
	m.records.removeAt(pos)
	m.lastUpdated = time.Now()

	if m.keywords != nil {
		if err := m.keywords.Delete(ctx, id); err != nil && m.logger != nil {
			m.logger.Warn("keyword index delete failed", zap.Int64("faq_id", id), zap.Error(err))
		}
	}
	m.persistLocked(ctx)
	return true, nil
}

// Query embeds text, searches the index, and classifies the result set.
// Candidates below threshold are dropped (inclusive: similarity equal to
// the threshold survives). The best survivor is answered only when its
// similarity strictly exceeds the configured high-confidence threshold;
// otherwise all survivors come back as alternatives with answers stripped.
// An empty index yields empty alternatives, never an error.
func (m *Manager) Query(ctx context.Context, text string, topK int, threshold float64) (*models.Classification, error) {
	start := time.Now()
	emb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := m.search(emb, topK)
	if err != nil {
		return nil, err
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if c.Similarity >= threshold {
			filtered = append(filtered, c)
		}
	}

	out := &models.Classification{
		Alternatives: make([]models.Alternative, 0, len(filtered)),
		QueryTimeMs:  time.Since(start).Milliseconds(),
	}
	if len(filtered) > 0 && filtered[0].Similarity > m.cfg.HighConfidence {
		best := filtered[0]
		out.Answered = true
		out.BestMatch = &models.BestMatch{
			Question:   best.Question,
			Answer:     best.Answer,
			Similarity: best.Similarity,
		}
		return out, nil
	}
	for _, c := range filtered {
		out.Alternatives = append(out.Alternatives, models.Alternative{
			ID:         c.ID,
			Question:   c.Question,
			Similarity: c.Similarity,
		})
	}
	return out, nil
}

// SimilarQuestions returns other FAQs whose questions are similar to the
// one stored under id, filtered by threshold (inclusive). The record
// itself is excluded from the results.
func (m *Manager) SimilarQuestions(ctx context.Context, id int64, topK int, threshold float64) ([]models.Candidate, error) {
	rec, _, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	emb, err := m.embedder.Embed(ctx, rec.Question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	// One extra hit because the record matches itself.
	candidates, err := m.search(emb, topK+1)
	if err != nil {
		return nil, err
	}
	out := make([]models.Candidate, 0, topK)
	for _, c := range candidates {
		if c.ID == id || c.Similarity < threshold {
			continue
		}
		if len(out) == topK {
			break
		}
		out = append(out, c)
	}
	return out, nil
}

// search joins index hits with their records under shared access.
func (m *Manager) search(emb []float32, topK int) ([]models.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits, err := m.index.Search(emb, topK)
	if err != nil {
		return nil, err
	}
	candidates := make([]models.Candidate, 0, len(hits))
	for _, hit := range hits {
		rec := m.records.at(hit.Position)
		if rec == nil {
			continue
		}
		candidates = append(candidates, models.Candidate{
			ID:         rec.ID,
			Question:   rec.Question,
			Answer:     rec.Answer,
			Similarity: hit.Score,
			Position:   hit.Position,
		})
	}
	return candidates, nil
}

// Get returns the record and current position for id.
func (m *Manager) Get(id int64) (*models.FAQ, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.records.position(id)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	rec := *m.records.at(pos)
	return &rec, pos, nil
}

// List returns records ordered by position ascending, skipping skip rows
// and returning at most limit.
func (m *Manager) List(skip, limit int) []models.ListEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if skip < 0 {
		skip = 0
	}
	size := m.records.size()
	if skip >= size || limit <= 0 {
		return []models.ListEntry{}
	}
	end := skip + limit
	if end > size {
		end = size
	}
	out := make([]models.ListEntry, 0, end-skip)
	for pos := skip; pos < end; pos++ {
		rec := m.records.at(pos)
		out = append(out, models.ListEntry{
			Position: pos,
			ID:       rec.ID,
			Question: rec.Question,
			Answer:   rec.Answer,
		})
	}
	return out
}

// IDs returns all indexed FAQ ids in position order.
func (m *Manager) IDs() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records.ids()
}

// Size returns the number of indexed records.
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records.size()
}

// Dimensions returns the vector dimension of the index.
func (m *Manager) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index.Dimensions()
}

// Stats reports index cardinality and duplicate-id detection. Duplicates
// indicate a broken bijection from a prior bug; they are reported rather
// than repaired or hidden.
func (m *Manager) Stats() models.IndexStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dups := m.records.duplicates()
	unique := make(map[int64]struct{}, m.records.size())
	for _, id := range m.records.ids() {
		unique[id] = struct{}{}
	}
	stats := models.IndexStats{
		TotalVectors:  m.index.Size(),
		Dimensions:    m.index.Dimensions(),
		UniqueIDs:     len(unique),
		HasDuplicates: len(dups) > 0,
	}
	if len(dups) > 0 {
		stats.Duplicates = dups
	}
	if !m.lastUpdated.IsZero() {
		stats.LastUpdated = m.lastUpdated.UTC().Format(time.RFC3339)
	}
	return stats
}

// Reset clears the index and record store back to empty, keeping the
// dimension. Destructive and persisted immediately.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keywords != nil {
		for _, id := range m.records.ids() {
			if err := m.keywords.Delete(ctx, id); err != nil && m.logger != nil {
				m.logger.Warn("keyword index delete failed", zap.Int64("faq_id", id), zap.Error(err))
			}
		}
	}
	m.index.Reset()
	m.records.reset()
	m.lastUpdated = time.Now()
	m.persistLocked(ctx)
	return nil
}

// BulkIndex applies items sequentially, each as its own atomic critical
// section, so concurrent readers observe every record either before or
// after its mutation but never mid-way. Returns the number of records
// applied; a failure stops the batch without rolling back prior records.
func (m *Manager) BulkIndex(ctx context.Context, items []models.FAQItem) (int, error) {
	for i, item := range items {
		if _, err := m.CreateOrUpdate(ctx, item.ID, item.Question, item.Answer); err != nil {
			return i, fmt.Errorf("bulk index faq %d: %w", item.ID, err)
		}
	}
	return len(items), nil
}

// Snapshot persists the current vector file and record snapshot.
func (m *Manager) Snapshot(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(ctx)
}

// Restore reloads the vector file and record snapshot. The restored pair
// must agree on cardinality; on any failure the previous in-memory state
// is kept.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return fmt.Errorf("no snapshot store configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restored, err := vector.NewFlatIndex(m.index.Dimensions())
	if err != nil {
		return err
	}
	if err := restored.Load(m.vectorPath); err != nil {
		return fmt.Errorf("load vector index: %w", err)
	}
	recs, lastUpdated, err := m.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load record snapshot: %w", err)
	}
	if restored.Size() != len(recs) {
		return fmt.Errorf("snapshot mismatch: %d vectors, %d records", restored.Size(), len(recs))
	}
	if err := m.records.restore(recs); err != nil {
		return err
	}
	m.index = restored
	m.lastUpdated = lastUpdated
	return nil
}

// Export writes timestamped copies of the vector file and records under an
// exports/ directory next to the vector index path, returning both paths.
func (m *Manager) Export(ctx context.Context) (string, string, error) {
	return m.copyTo("exports")
}

// Backup is Export into the backups/ directory.
func (m *Manager) Backup(ctx context.Context) (string, string, error) {
	return m.copyTo("backups")
}

func (m *Manager) copyTo(subdir string) (string, string, error) {
	if m.vectorPath == "" {
		return "", "", fmt.Errorf("no persistence configured")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stamp := time.Now().Format("20060102_150405")
	dir := filepath.Join(filepath.Dir(m.vectorPath), subdir)
	vecPath := filepath.Join(dir, fmt.Sprintf("faqs_index_%s.vec", stamp))
	recPath := filepath.Join(dir, fmt.Sprintf("faqs_records_%s.json", stamp))
	if err := m.index.Save(vecPath); err != nil {
		return "", "", fmt.Errorf("export vector index: %w", err)
	}
	if err := storage.WriteRecordsJSON(recPath, m.records.records()); err != nil {
		return "", "", err
	}
	return vecPath, recPath, nil
}

// snapshotLocked persists under the caller's lock and returns the error.
func (m *Manager) snapshotLocked(ctx context.Context) error {
	if m.vectorPath != "" {
		if err := m.index.Save(m.vectorPath); err != nil {
			return fmt.Errorf("save vector index: %w", err)
		}
	}
	if m.store != nil {
		if err := m.store.SaveSnapshot(ctx, m.records.records(), m.lastUpdated); err != nil {
			return fmt.Errorf("save record snapshot: %w", err)
		}
	}
	return nil
}

// persistLocked persists after a mutation. Failures are logged only: the
// in-memory state remains authoritative and the mutation still succeeds.
func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.snapshotLocked(ctx); err != nil && m.logger != nil {
		m.logger.Warn("index snapshot failed", zap.Error(err))
	}
}

// CheckInvariant verifies the position bijection and the index/record
// cardinality agreement. Exposed for tests and debugging endpoints.
func (m *Manager) CheckInvariant() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.records.checkDense(); err != nil {
		return err
	}
	if m.index.Size() != m.records.size() {
		return fmt.Errorf("index holds %d vectors, record store %d records", m.index.Size(), m.records.size())
	}
	return nil
}
