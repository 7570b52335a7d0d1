package faqindex

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/warunglabs/tanya/internal/config"
	"github.com/warunglabs/tanya/internal/embedding"
	"github.com/warunglabs/tanya/internal/models"
	"github.com/warunglabs/tanya/internal/storage"
	"github.com/warunglabs/tanya/internal/vector"
)

// stubEmbedder returns fixed vectors per text so tests control similarity
// scores exactly. Unknown texts map to the last axis.
type stubEmbedder struct {
	dims int
	vecs map[string][]float32
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vecs[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out, nil
	}
	out := make([]float32, e.dims)
	out[e.dims-1] = 1
	return out, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int { return e.dims }
func (e *stubEmbedder) Close() error    { return nil }

func testConfig() *config.QueryConfig {
	return &config.QueryConfig{
		DefaultTopK:    3,
		MaxTopK:        100,
		Threshold:      0.5,
		HighConfidence: 0.75,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	index, err := vector.NewFlatIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	return NewManager(embedding.NewMockEmbedder(8), index, testConfig())
}

func TestManager_CreateOrUpdate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for i, id := range []int64{10, 20, 30} {
		pos, err := m.CreateOrUpdate(ctx, id, fmt.Sprintf("question %d", id), "answer")
		if err != nil {
			t.Fatal(err)
		}
		if pos != i {
			t.Errorf("id %d at position %d, want %d", id, pos, i)
		}
	}
	if m.Size() != 3 {
		t.Errorf("Size=%d", m.Size())
	}
	if err := m.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestManager_UpdateKeepsCardinality(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreateOrUpdate(ctx, 1, "how do I reset my password", "click forgot"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateOrUpdate(ctx, 2, "what are the opening hours", "9 to 5"); err != nil {
		t.Fatal(err)
	}
	before := m.Size()

	// Same arguments again: old vector removed, one new added, net zero.
	pos, err := m.CreateOrUpdate(ctx, 1, "how do I reset my password", "click forgot")
	if err != nil {
		t.Fatal(err)
	}
	if m.Size() != before {
		t.Errorf("Size=%d after repeat update, want %d", m.Size(), before)
	}
	// Update re-appends at the top position.
	if pos != before-1 {
		t.Errorf("updated record at position %d, want %d", pos, before-1)
	}
	if err := m.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestManager_DeleteRenumbers(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, id := range []int64{10, 20, 30, 40} {
		if _, err := m.CreateOrUpdate(ctx, id, fmt.Sprintf("q%d", id), ""); err != nil {
			t.Fatal(err)
		}
	}

	found, err := m.Delete(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("Delete(30) = false")
	}

	wantPositions := map[int64]int{10: 0, 20: 1, 40: 2}
	for id, want := range wantPositions {
		_, pos, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		if pos != want {
			t.Errorf("id %d at position %d, want %d", id, pos, want)
		}
	}
	if m.Size() != 3 {
		t.Errorf("Size=%d", m.Size())
	}
	if err := m.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}

	found, err = m.Delete(ctx, 999)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("Delete(999) = true for unknown id")
	}
}

func TestManager_QueryClassificationBoundaries(t *testing.T) {
	// Exactly representable similarities: dot products against the query
	// vector [1,0,0] are 1.0, 0.75, 0.5, and 0.25.
	y75 := float32(math.Sqrt(1 - 0.75*0.75))
	y50 := float32(math.Sqrt(1 - 0.5*0.5))
	y25 := float32(math.Sqrt(1 - 0.25*0.25))
	emb := &stubEmbedder{dims: 3, vecs: map[string][]float32{
		"the question":  {1, 0, 0},
		"exact match":   {1, 0, 0},
		"at confidence": {0.75, y75, 0},
		"at threshold":  {0.5, y50, 0},
		"below cutoff":  {0.25, y25, 0},
	}}
	index, _ := vector.NewFlatIndex(3)
	m := NewManager(emb, index, testConfig())
	ctx := context.Background()

	t.Run("exactly high confidence is an alternative", func(t *testing.T) {
		if err := m.Reset(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := m.CreateOrUpdate(ctx, 1, "at confidence", "hidden"); err != nil {
			t.Fatal(err)
		}
		res, err := m.Query(ctx, "the question", 5, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		if res.Answered {
			t.Error("similarity == high confidence must not answer (strict >)")
		}
		if len(res.Alternatives) != 1 {
			t.Fatalf("alternatives = %v", res.Alternatives)
		}
		if res.Alternatives[0].Similarity != 0.75 {
			t.Errorf("similarity = %v, want 0.75", res.Alternatives[0].Similarity)
		}
	})

	t.Run("above high confidence answers", func(t *testing.T) {
		if err := m.Reset(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := m.CreateOrUpdate(ctx, 2, "exact match", "the answer"); err != nil {
			t.Fatal(err)
		}
		res, err := m.Query(ctx, "the question", 5, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Answered || res.BestMatch == nil {
			t.Fatal("expected an answered classification")
		}
		if res.BestMatch.Answer != "the answer" {
			t.Errorf("answer = %q", res.BestMatch.Answer)
		}
		if len(res.Alternatives) != 0 {
			t.Errorf("answered result must carry no alternatives, got %v", res.Alternatives)
		}
	})

	t.Run("exactly threshold survives the filter", func(t *testing.T) {
		if err := m.Reset(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := m.CreateOrUpdate(ctx, 3, "at threshold", ""); err != nil {
			t.Fatal(err)
		}
		if _, err := m.CreateOrUpdate(ctx, 4, "below cutoff", ""); err != nil {
			t.Fatal(err)
		}
		res, err := m.Query(ctx, "the question", 5, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Alternatives) != 1 {
			t.Fatalf("alternatives = %v, want only the threshold-equal candidate", res.Alternatives)
		}
		if res.Alternatives[0].ID != 3 {
			t.Errorf("survivor id = %d, want 3", res.Alternatives[0].ID)
		}
	})
}

func TestManager_QueryEmptyIndex(t *testing.T) {
	m := newTestManager(t)
	res, err := m.Query(context.Background(), "anything", 5, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answered {
		t.Error("empty index must not answer")
	}
	if len(res.Alternatives) != 0 {
		t.Errorf("alternatives = %v, want none", res.Alternatives)
	}
}

func TestManager_StatsDuplicateDetection(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	if _, err := m.CreateOrUpdate(ctx, 1, "a", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateOrUpdate(ctx, 2, "b", ""); err != nil {
		t.Fatal(err)
	}

	stats := m.Stats()
	if stats.HasDuplicates {
		t.Errorf("unexpected duplicates: %v", stats.Duplicates)
	}
	if stats.UniqueIDs != 2 {
		t.Errorf("UniqueIDs=%d", stats.UniqueIDs)
	}

	// Injected corruption: the same id at a second position.
	m.records.byPosition = append(m.records.byPosition, &models.FAQ{ID: 1, Question: "a"})

	stats = m.Stats()
	if !stats.HasDuplicates {
		t.Fatal("corrupted store must report duplicates")
	}
	if stats.Duplicates[1] != 2 {
		t.Errorf("Duplicates = %v, want id 1 counted twice", stats.Duplicates)
	}
	if stats.UniqueIDs != 2 {
		t.Errorf("UniqueIDs=%d", stats.UniqueIDs)
	}
}

func TestManager_List(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	for _, id := range []int64{5, 6, 7} {
		if _, err := m.CreateOrUpdate(ctx, id, fmt.Sprintf("q%d", id), ""); err != nil {
			t.Fatal(err)
		}
	}

	entries := m.List(1, 1)
	if len(entries) != 1 || entries[0].Position != 1 || entries[0].ID != 6 {
		t.Errorf("List(1,1) = %+v", entries)
	}
	if entries := m.List(10, 5); len(entries) != 0 {
		t.Errorf("List past the end = %+v", entries)
	}
	if entries := m.List(0, 100); len(entries) != 3 {
		t.Errorf("List(0,100) returned %d entries", len(entries))
	}
}

func TestManager_SimilarQuestionsExcludesSelf(t *testing.T) {
	emb := &stubEmbedder{dims: 3, vecs: map[string][]float32{
		"close a":  {1, 0, 0},
		"close b":  {0.9, float32(math.Sqrt(1 - 0.81)), 0},
		"far away": {0, 0, 1},
	}}
	index, _ := vector.NewFlatIndex(3)
	m := NewManager(emb, index, testConfig())
	ctx := context.Background()

	for id, q := range map[int64]string{1: "close a", 2: "close b", 3: "far away"} {
		if _, err := m.CreateOrUpdate(ctx, id, q, ""); err != nil {
			t.Fatal(err)
		}
	}

	similar, err := m.SimilarQuestions(ctx, 1, 5, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	if len(similar) != 1 || similar[0].ID != 2 {
		t.Errorf("similar = %+v, want only id 2", similar)
	}

	if _, err := m.SimilarQuestions(ctx, 99, 5, 0.7); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestManager_BulkIndex(t *testing.T) {
	m := newTestManager(t)
	items := []models.FAQItem{
		{ID: 1, Question: "a", Answer: "x"},
		{ID: 2, Question: "b", Answer: "y"},
		{ID: 1, Question: "a updated", Answer: "z"},
	}
	n, err := m.BulkIndex(context.Background(), items)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("applied %d items", n)
	}
	// The duplicate id in the batch updates in place: two records total.
	if m.Size() != 2 {
		t.Errorf("Size=%d, want 2", m.Size())
	}
	rec, _, err := m.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Question != "a updated" {
		t.Errorf("question = %q", rec.Question)
	}
	if err := m.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
}

func TestManager_SnapshotRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "faqs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	vectorPath := filepath.Join(dir, "faqs.vec")

	emb := embedding.NewMockEmbedder(8)
	index, _ := vector.NewFlatIndex(8)
	m := NewManager(emb, index, testConfig(), WithSnapshotStore(store, vectorPath))
	ctx := context.Background()

	for _, id := range []int64{10, 20, 30, 40} {
		if _, err := m.CreateOrUpdate(ctx, id, fmt.Sprintf("q%d", id), "a"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.Delete(ctx, 20); err != nil {
		t.Fatal(err)
	}

	// A fresh manager over the same store must reproduce the exact
	// position-to-id mapping.
	index2, _ := vector.NewFlatIndex(8)
	restored := NewManager(emb, index2, testConfig(), WithSnapshotStore(store, vectorPath))
	if err := restored.Restore(ctx); err != nil {
		t.Fatal(err)
	}

	if restored.Size() != 3 {
		t.Fatalf("restored Size=%d", restored.Size())
	}
	for _, id := range []int64{10, 30, 40} {
		_, origPos, err := m.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		_, restPos, err := restored.Get(id)
		if err != nil {
			t.Fatalf("restored Get(%d): %v", id, err)
		}
		if origPos != restPos {
			t.Errorf("id %d at position %d after restore, want %d", id, restPos, origPos)
		}
	}
	if err := restored.CheckInvariant(); err != nil {
		t.Errorf("invariant: %v", err)
	}
}
