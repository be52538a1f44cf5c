// Package vector provides vector indexing and cosine similarity search.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length disagrees with the
	// index dimension. The call fails without mutating index state.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNotFound is returned by Load when the vector blob does not exist.
	ErrNotFound = errors.New("index file not found")
)

// Metadata is the fixed per-handle record kept alongside each vector.
// A zero Metadata is valid and means "no metadata".
type Metadata struct {
	BookID       int64 `json:"book_id,omitempty"`
	ChapterID    int64 `json:"chapter_id,omitempty"`
	ChunkOrdinal int   `json:"chunk_ordinal,omitempty"`
}

// IsZero reports whether the record carries no information.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// Hit is a single similarity search result. Handle is the dense insertion-order
// position of the matched vector.
type Hit struct {
	Handle     int     `json:"handle"`
	Similarity float64 `json:"similarity"`
}

// MetaHit is a Hit merged with the stored metadata for its handle.
type MetaHit struct {
	Handle     int      `json:"handle"`
	Similarity float64  `json:"similarity"`
	Meta       Metadata `json:"meta"`
}

// Stats summarizes index contents.
type Stats struct {
	Vectors     int  `json:"vectors"`
	Dimension   int  `json:"dimension"`
	HasMetadata bool `json:"has_metadata"`
}

// Index defines vector storage and top-k cosine similarity search over dense
// integer handles. Handles are assigned sequentially from 0 in insertion order
// and are never reused or skipped. Writers must be externally serialized;
// searches may run concurrently.
type Index interface {
	// Add normalizes and appends vectors, returning the first handle assigned.
	// meta, when non-nil, must have one record per vector.
	Add(ctx context.Context, vectors [][]float32, meta []Metadata) (first int, err error)
	// Search returns up to k hits ordered by similarity descending, ties broken
	// by lower handle.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	SearchWithMetadata(ctx context.Context, query []float32, k int) ([]MetaHit, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimension() int
	Stats() Stats
	Close() error
}
