package vector

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatal(err)
	}

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	for i, vec := range vecs {
		pos, err := idx.Add(vec)
		if err != nil {
			t.Fatal(err)
		}
		if pos != i {
			t.Errorf("Add returned position %d, want %d", pos, i)
		}
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	hits, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Position != 0 {
		t.Errorf("top hit should be position 0, got %d", hits[0].Position)
	}
	if hits[1].Position != 1 {
		t.Errorf("second hit should be position 1, got %d", hits[1].Position)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("hits not ordered by descending score: %v", hits)
	}
}

func TestFlatIndex_SearchTiesBrokenByPosition(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	// Two identical vectors: equal similarity, lower position wins.
	_, _ = idx.Add([]float32{0, 1})
	_, _ = idx.Add([]float32{1, 0})
	_, _ = idx.Add([]float32{1, 0})

	hits, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Position != 1 || hits[1].Position != 2 {
		t.Errorf("tie not broken by position: %v", hits)
	}
}

func TestFlatIndex_SearchEmpty(t *testing.T) {
	idx, _ := NewFlatIndex(4)
	hits, err := idx.Search([]float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits on empty index, got %d", len(hits))
	}
}

func TestFlatIndex_SearchFewerThanK(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_, _ = idx.Add([]float32{1, 0})
	hits, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("expected 1 hit, got %d", len(hits))
	}
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if _, err := idx.Add([]float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Add: expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := idx.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFlatIndex_RemoveAtShiftsLeft(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_, _ = idx.Add([]float32{1, 0})
	_, _ = idx.Add([]float32{0, 1})
	_, _ = idx.Add([]float32{0.6, 0.8})

	if err := idx.RemoveAt(1); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Fatalf("Size=%d after remove", idx.Size())
	}
	// The vector formerly at position 2 now occupies position 1.
	moved := idx.At(1)
	if moved[0] != 0.6 || moved[1] != 0.8 {
		t.Errorf("position 1 holds %v, want [0.6 0.8]", moved)
	}
	// Position 0 is untouched.
	kept := idx.At(0)
	if kept[0] != 1 || kept[1] != 0 {
		t.Errorf("position 0 holds %v, want [1 0]", kept)
	}
}

func TestFlatIndex_RemoveAtOutOfRange(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	if err := idx.RemoveAt(0); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("expected ErrPositionOutOfRange, got %v", err)
	}
	_, _ = idx.Add([]float32{1, 0})
	if err := idx.RemoveAt(-1); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("expected ErrPositionOutOfRange for -1, got %v", err)
	}
	if err := idx.RemoveAt(1); !errors.Is(err, ErrPositionOutOfRange) {
		t.Errorf("expected ErrPositionOutOfRange for 1, got %v", err)
	}
}

func TestFlatIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.vec")

	idx, _ := NewFlatIndex(3)
	_, _ = idx.Add([]float32{1, 0, 0})
	_, _ = idx.Add([]float32{0, 0.5, 0.25})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewFlatIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded Size=%d, want 2", loaded.Size())
	}
	got := loaded.At(1)
	want := []float32{0, 0.5, 0.25}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vector at position 1 = %v, want %v", got, want)
			break
		}
	}

	wrongDim, _ := NewFlatIndex(4)
	if err := wrongDim.Load(path); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on load, got %v", err)
	}
}

func TestFlatIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	_, _ = idx.Add([]float32{1, 0, 0})
	if err := idx.Load(filepath.Join(t.TempDir(), "nope.vec")); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("missing file must leave index unchanged, Size=%d", idx.Size())
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if norm := L2Norm(v); math.Abs(norm-1) > 1e-6 {
		t.Errorf("norm after Normalize = %v", norm)
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
