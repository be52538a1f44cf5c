// Package search translates free-text queries into enriched, context-joined results.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/takebo/hondana/internal/embedding"
	"github.com/takebo/hondana/internal/models"
	"github.com/takebo/hondana/internal/storage"
	"github.com/takebo/hondana/internal/vector"
	"github.com/takebo/hondana/pkg/utils"
)

// DefaultSnippetLength is the maximum snippet size in runes.
const DefaultSnippetLength = 200

// Engine embeds queries, searches the vector index, and joins hits back
// through the chunk store.
type Engine struct {
	store      storage.Store
	embedder   embedding.Embedder
	index      vector.Index
	snippetLen int
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnippetLength sets the maximum snippet size in runes.
func WithSnippetLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.snippetLen = n
		}
	}
}

// WithLogger sets a logger for query timing output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine over the given store, embedder, and index.
func NewEngine(store storage.Store, embedder embedding.Embedder, index vector.Index, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		embedder:   embedder,
		index:      index,
		snippetLen: DefaultSnippetLength,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ready reports whether the index holds any vectors. An empty index cannot
// answer queries; the API layer maps this to a "not ready" signal.
func (e *Engine) Ready() bool {
	return e.index.Size() > 0
}

// IndexTexts embeds texts and adds them to the index with the given metadata,
// returning the first assigned handle. Chunk rows are not written; this is
// the direct path used when vectors and text are indexed together.
func (e *Engine) IndexTexts(ctx context.Context, texts []string, meta []vector.Metadata) (int, error) {
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed texts: %w", err)
	}
	first, err := e.index.Add(ctx, vectors, meta)
	if err != nil {
		return 0, fmt.Errorf("failed to index vectors: %w", err)
	}
	return first, nil
}

// Search embeds the query and returns up to k hits with similarity at or
// above minSimilarity. Filtering happens after retrieval; a high threshold
// can yield fewer than k results and no deeper search is attempted.
func (e *Engine) Search(ctx context.Context, query string, k int, minSimilarity float64) ([]vector.MetaHit, error) {
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := e.index.SearchWithMetadata(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if minSimilarity <= 0 {
		return hits, nil
	}
	filtered := hits[:0]
	for _, h := range hits {
		if h.Similarity >= minSimilarity {
			filtered = append(filtered, h)
		}
	}
	return filtered, nil
}

// SearchChunks runs a query and joins each hit back through the chunk store,
// producing book and chapter context with a text snippet. Hits whose handle
// has no chunk row (orphan vectors from an interrupted indexing run) are
// dropped.
func (e *Engine) SearchChunks(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	hits, err := e.Search(ctx, query.Query, query.Limit, query.MinSimilarity)
	if err != nil {
		return nil, err
	}

	results := make([]*models.SearchResult, 0, len(hits))
	for _, h := range hits {
		cc, err := e.store.GetChunkWithContext(ctx, h.Handle)
		if errors.Is(err, storage.ErrNotFound) {
			e.logger.Debug("dropping hit without chunk row", zap.Int("handle", h.Handle))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve handle %d: %w", h.Handle, err)
		}
		results = append(results, &models.SearchResult{
			BookID:         cc.BookID,
			LibraryID:      cc.LibraryID,
			Title:          cc.BookTitle,
			Author:         cc.Author,
			Similarity:     h.Similarity,
			ChapterID:      cc.ChapterID,
			ChapterTitle:   cc.ChapterTitle,
			ChapterOrdinal: cc.ChapterOrdinal,
			Snippet:        utils.Snippet(cc.Text, e.snippetLen),
			VectorHandle:   h.Handle,
		})
	}

	took := time.Since(start)
	e.logger.Debug("search completed",
		zap.String("query", query.Query),
		zap.Int("results", len(results)),
		zap.Duration("took", took))
	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: took.Milliseconds(),
		Query:     query.Query,
	}, nil
}

// IndexStats exposes the underlying vector index statistics.
func (e *Engine) IndexStats() vector.Stats {
	return e.index.Stats()
}

// Save persists the vector index to path.
func (e *Engine) Save(path string) error {
	return e.index.Save(path)
}

// Load restores the vector index from path.
func (e *Engine) Load(path string) error {
	return e.index.Load(path)
}
