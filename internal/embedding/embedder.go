// Package embedding provides text embedding providers (OpenAI, ONNX) and caching.
package embedding

import "context"

// Embedder produces fixed-dimension, unit-normalized vector embeddings for
// text. Implementations must be deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
