// Package vector provides a flat inner-product index addressed by position.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrDimensionMismatch is returned when a vector's length does not
	// match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrPositionOutOfRange is returned by RemoveAt for a position that
	// holds no vector.
	ErrPositionOutOfRange = errors.New("position out of range")
)

// Hit is a single search result: the slot the vector occupies and its
// inner-product similarity to the query.
type Hit struct {
	Position int
	Score    float64
}

// FlatIndex is a brute-force inner-product index over fixed-dimension
// vectors. Slots are dense: positions always cover [0, Size()). RemoveAt
// compacts by shifting higher slots left, so every position greater than
// the removed one decreases by exactly one. Callers that pair positions
// with external metadata rely on that shift when renumbering.
//
// FlatIndex is not safe for concurrent use; the owner serializes access
// together with whatever metadata it keys by position.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
}

// NewFlatIndex creates an empty index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Add appends vec at the next free slot and returns its position.
func (f *FlatIndex) Add(vec []float32) (int, error) {
	if len(vec) != f.dimensions {
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), f.dimensions)
	}
	stored := make([]float32, f.dimensions)
	copy(stored, vec)
	f.vectors = append(f.vectors, stored)
	return len(f.vectors) - 1, nil
}

// Search returns up to k hits ordered by descending inner product
// (cosine similarity for unit vectors). Ties are broken by lowest
// position. An empty index yields an empty slice, never an error.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	if k <= 0 || len(f.vectors) == 0 {
		return []Hit{}, nil
	}
	hits := make([]Hit, len(f.vectors))
	for i, vec := range f.vectors {
		hits[i] = Hit{Position: i, Score: InnerProduct(query, vec)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// RemoveAt removes the vector at pos and shifts every higher slot left by
// one, preserving relative order. Cardinality decreases by exactly one.
func (f *FlatIndex) RemoveAt(pos int) error {
	if pos < 0 || pos >= len(f.vectors) {
		return fmt.Errorf("%w: %d (size %d)", ErrPositionOutOfRange, pos, len(f.vectors))
	}
	f.vectors = append(f.vectors[:pos], f.vectors[pos+1:]...)
	return nil
}

// Reset discards all vectors, keeping the dimension.
func (f *FlatIndex) Reset() {
	f.vectors = f.vectors[:0]
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	return len(f.vectors)
}

// Dimensions returns the fixed vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// At returns a copy of the vector at pos, or nil if pos holds no vector.
func (f *FlatIndex) At(pos int) []float32 {
	if pos < 0 || pos >= len(f.vectors) {
		return nil
	}
	out := make([]float32, f.dimensions)
	copy(out, f.vectors[pos])
	return out
}

// Save persists the index to path. The directory is created if needed.
// Format: dimension (4), count (4), then count vectors of dimension*4
// bytes each, little-endian. Positions are implicit in file order.
func (f *FlatIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()
	if err := binary.Write(file, binary.LittleEndian, uint32(f.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(len(f.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, vec := range f.vectors {
		if _, err := file.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path, replacing the in-memory contents.
// Dimensions must match. A missing file leaves the index unchanged and
// returns nil.
func (f *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	var dim, n uint32
	if err := binary.Read(file, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != f.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, f.dimensions)
	}
	if err := binary.Read(file, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	vectors := make([][]float32, 0, n)
	buf := make([]byte, f.dimensions*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(file, buf); err != nil {
			return fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	f.vectors = vectors
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
