// Package embedding provides text embedding backends (ONNX, OpenAI, mock) and caching.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text.
//
// All implementations map empty or whitespace-only text to the zero vector of
// the embedder's dimension, and EmbedBatch preserves index alignment with its
// input (including zero vectors for empty elements).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
