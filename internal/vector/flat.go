package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	blobExt = ".vec"
	metaExt = ".meta.json"

	metaSchemaVersion = 1
)

// FlatIndex is the reference Index implementation: brute-force inner product
// search over unit-normalized vectors held in memory. Suitable for libraries
// up to a few hundred thousand chunks.
type FlatIndex struct {
	dimension int
	vectors   [][]float32 // stored normalized
	meta      []Metadata  // parallel to vectors; zero value = no metadata
	mu        sync.RWMutex
}

// NewFlatIndex creates a flat index with the given fixed dimension.
func NewFlatIndex(dimension int) (*FlatIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	return &FlatIndex{dimension: dimension}, nil
}

// Add normalizes and appends vectors, assigning handles sequentially from the
// current count, and returns the first handle assigned. All vectors are
// validated before any state changes, so a dimension mismatch leaves the index
// untouched. Adding zero vectors is a no-op that returns the current count.
func (x *FlatIndex) Add(ctx context.Context, vectors [][]float32, meta []Metadata) (int, error) {
	if meta != nil && len(meta) != len(vectors) {
		return 0, fmt.Errorf("metadata length %d does not match vector count %d", len(meta), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != x.dimension {
			return 0, fmt.Errorf("vector %d has length %d, index dimension is %d: %w",
				i, len(v), x.dimension, ErrDimensionMismatch)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	first := len(x.vectors)
	for i, v := range vectors {
		x.vectors = append(x.vectors, Normalized(v))
		if meta != nil {
			x.meta = append(x.meta, meta[i])
		} else {
			x.meta = append(x.meta, Metadata{})
		}
	}
	return first, nil
}

// Search returns up to min(k, count) hits ordered by similarity descending.
// Equal similarities rank lower handles first. k <= 0 yields no hits.
func (x *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("query has length %d, index dimension is %d: %w",
			len(query), x.dimension, ErrDimensionMismatch)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if k <= 0 || len(x.vectors) == 0 {
		return nil, nil
	}

	q := Normalized(query)
	hits := make([]Hit, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = Hit{Handle: i, Similarity: InnerProduct(q, v)}
	}
	// Stable sort preserves insertion order among equal scores, which is
	// exactly "lower handle first".
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// SearchWithMetadata merges Search results with the stored per-handle metadata.
func (x *FlatIndex) SearchWithMetadata(ctx context.Context, query []float32, k int) ([]MetaHit, error) {
	hits, err := x.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]MetaHit, len(hits))
	for i, h := range hits {
		mh := MetaHit{Handle: h.Handle, Similarity: h.Similarity}
		if h.Handle < len(x.meta) {
			mh.Meta = x.meta[h.Handle]
		}
		out[i] = mh
	}
	return out, nil
}

// metaFile is the on-disk shape of the metadata side-table.
type metaFile struct {
	SchemaVersion int        `json:"schema_version"`
	Dimension     int        `json:"dimension"`
	Metadata      []Metadata `json:"metadata"`
}

// Save persists the index as two artifacts: the vector blob at path+".vec"
// (dimension uint32, count uint32, then count rows of dimension float32, all
// little-endian) and the metadata side-table at path+".meta.json". The blob is
// written first; a crash between the two leaves metadata stale, which Load
// tolerates.
func (x *FlatIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}
	}

	f, err := os.Create(path + blobExt)
	if err != nil {
		return fmt.Errorf("create vector blob: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(x.dimension)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write dimension: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(x.vectors))); err != nil {
		_ = f.Close()
		return fmt.Errorf("write count: %w", err)
	}
	buf := make([]byte, x.dimension*4)
	for _, v := range x.vectors {
		for i, val := range v {
			binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(val))
		}
		if _, err := f.Write(buf); err != nil {
			_ = f.Close()
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close vector blob: %w", err)
	}

	mf := metaFile{SchemaVersion: metaSchemaVersion, Dimension: x.dimension, Metadata: x.meta}
	data, err := json.Marshal(mf)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+metaExt, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents with the artifacts at path. The blob
// must exist (ErrNotFound otherwise) and its dimension must match the index's.
// A missing or short metadata side-table yields empty metadata for the
// affected handles rather than an error.
func (x *FlatIndex) Load(path string) error {
	f, err := os.Open(path + blobExt)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s%s: %w", path, blobExt, ErrNotFound)
		}
		return fmt.Errorf("open vector blob: %w", err)
	}
	defer f.Close()

	var dim, count uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimension: %w", err)
	}
	if int(dim) != x.dimension {
		return fmt.Errorf("blob has dimension %d, index expects %d: %w", dim, x.dimension, ErrDimensionMismatch)
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	vectors := make([][]float32, 0, count)
	buf := make([]byte, x.dimension*4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector %d: %w", i, err)
		}
		v := make([]float32, x.dimension)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4 : (j+1)*4]))
		}
		vectors = append(vectors, v)
	}

	meta := loadMetadata(path+metaExt, int(count))

	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = vectors
	x.meta = meta
	return nil
}

// loadMetadata reads the side-table, padding or truncating to want entries.
// Any read or decode failure degrades to empty metadata for all handles.
func loadMetadata(path string, want int) []Metadata {
	meta := make([]Metadata, want)
	data, err := os.ReadFile(path)
	if err != nil {
		return meta
	}
	var mf metaFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return meta
	}
	n := len(mf.Metadata)
	if n > want {
		n = want
	}
	copy(meta, mf.Metadata[:n])
	return meta
}

// Size returns the number of vectors (equal to the next handle to assign).
func (x *FlatIndex) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Dimension returns the fixed vector dimension.
func (x *FlatIndex) Dimension() int {
	return x.dimension
}

// Stats returns vector count, dimension, and whether any handle has metadata.
func (x *FlatIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	st := Stats{Vectors: len(x.vectors), Dimension: x.dimension}
	for _, m := range x.meta {
		if !m.IsZero() {
			st.HasMetadata = true
			break
		}
	}
	return st
}

// Close is a no-op for FlatIndex.
func (x *FlatIndex) Close() error {
	return nil
}
