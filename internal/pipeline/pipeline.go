package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/takebo/hondana/internal/embedding"
	"github.com/takebo/hondana/internal/models"
	"github.com/takebo/hondana/internal/source"
	"github.com/takebo/hondana/internal/storage"
	"github.com/takebo/hondana/internal/vector"
	"github.com/takebo/hondana/pkg/utils"
)

// ErrInconsistentState is returned by Reconcile when a chunk row references a
// vector handle at or beyond the index's current count.
var ErrInconsistentState = errors.New("chunk store and vector index are inconsistent")

// Pipeline indexes books: chunk chapter text, embed, insert vectors, record
// chunk rows keyed by the assigned vector handles, and track progress in a
// persisted State. Indexing is single-writer; searches may run concurrently.
type Pipeline struct {
	store     storage.Store
	embedder  embedding.Embedder
	index     vector.Index
	chunker   *Chunker
	state     *State
	indexPath string // when set, the vector index is saved here after each book
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for progress and debug output.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithIndexPath makes the pipeline persist the vector index to path after
// each successfully indexed book.
func WithIndexPath(path string) Option {
	return func(p *Pipeline) { p.indexPath = path }
}

// WithChunker overrides the default chunking parameters.
func WithChunker(c *Chunker) Option {
	return func(p *Pipeline) { p.chunker = c }
}

// New creates a pipeline over the given store, embedder, index, and state.
func New(store storage.Store, embedder embedding.Embedder, index vector.Index, state *State, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		embedder: embedder,
		index:    index,
		chunker:  NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		state:    state,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsBookProcessed reports whether the book was already fully indexed.
func (p *Pipeline) IsBookProcessed(libraryID int64) bool {
	return p.state.IsProcessed(libraryID)
}

// MarkBookProcessed records the book as done, persisting state immediately.
func (p *Pipeline) MarkBookProcessed(libraryID int64) error {
	return p.state.MarkProcessed(libraryID)
}

// ProcessTexts embeds a batch of chunk texts, adds the batch size to the
// emitted-chunk counter, and persists state. Callers feed the returned
// vectors together with the corresponding chunk rows into the index and
// the store.
func (p *Pipeline) ProcessTexts(ctx context.Context, texts []string, description string) ([][]float32, error) {
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", description, err)
	}
	if err := p.state.AddChunks(len(texts)); err != nil {
		return nil, fmt.Errorf("failed to persist state after %s: %w", description, err)
	}
	return vectors, nil
}

// Stats returns pipeline progress counters.
func (p *Pipeline) Stats() Stats {
	return p.state.Stats()
}

// Reset clears pipeline progress. The chunk store and vector index are left
// untouched; resetting state does not discard already-stored data.
func (p *Pipeline) Reset() error {
	return p.state.Reset()
}

// IndexBook indexes one book from its extracted source. Already-processed
// books are skipped. A book present in the store but absent from the
// processed set is a leftover of an interrupted run; its rows are purged
// before reindexing so chunk insertion cannot collide.
//
// Write order within a book: vectors are added to the index and the index is
// persisted before chunk rows commit, so a reader never sees a chunk row
// whose vector is missing. The book is marked processed only after the chunk
// rows are durable.
func (p *Pipeline) IndexBook(ctx context.Context, src *models.BookSource) error {
	if p.state.IsProcessed(src.LibraryID) {
		p.logger.Debug("book already indexed, skipping",
			zap.Int64("library_id", src.LibraryID),
			zap.String("title", src.Title))
		return nil
	}
	runID := uuid.New().String()[:8]
	log := p.logger.With(
		zap.String("run_id", runID),
		zap.Int64("library_id", src.LibraryID),
		zap.String("title", src.Title))

	if err := p.purgeLeftovers(ctx, src.LibraryID, log); err != nil {
		return err
	}

	start := time.Now()
	book := &models.Book{
		LibraryID: src.LibraryID,
		Title:     src.Title,
		Author:    src.Author,
		Path:      src.Path,
		Summary:   src.Summary,
		Tags:      src.Tags,
		PubDate:   src.PubDate,
	}
	bookID, err := p.store.AddBook(ctx, book)
	if err != nil {
		return fmt.Errorf("failed to add book %d: %w", src.LibraryID, err)
	}

	var texts []string
	var rows []*models.Chunk
	var meta []vector.Metadata
	for _, chSrc := range src.Chapters {
		chapter := &models.Chapter{
			BookID:     bookID,
			Ordinal:    chSrc.Ordinal,
			Title:      chSrc.Title,
			SourcePath: chSrc.SourcePath,
			WordCount:  utils.WordCount(chSrc.Text),
		}
		chapterID, err := p.store.AddChapter(ctx, chapter)
		if err != nil {
			return fmt.Errorf("failed to add chapter %d of book %d: %w", chSrc.Ordinal, src.LibraryID, err)
		}
		for _, tc := range p.chunker.Chunk(chSrc.Text) {
			texts = append(texts, tc.Text)
			rows = append(rows, &models.Chunk{
				ChapterID:   chapterID,
				Ordinal:     tc.Ordinal,
				Text:        tc.Text,
				StartOffset: tc.StartWord,
				EndOffset:   tc.EndWord,
			})
			meta = append(meta, vector.Metadata{
				BookID:       bookID,
				ChapterID:    chapterID,
				ChunkOrdinal: tc.Ordinal,
			})
		}
	}
	if len(texts) == 0 {
		return fmt.Errorf("book %d has no chunkable text", src.LibraryID)
	}

	log.Info("embedding book chunks", zap.Int("chunks", len(texts)))
	vectors, err := p.ProcessTexts(ctx, texts, fmt.Sprintf("book %d", src.LibraryID))
	if err != nil {
		return err
	}

	firstHandle, err := p.index.Add(ctx, vectors, meta)
	if err != nil {
		return fmt.Errorf("failed to add vectors for book %d: %w", src.LibraryID, err)
	}
	if p.indexPath != "" {
		if err := p.index.Save(p.indexPath); err != nil {
			return fmt.Errorf("failed to persist vector index: %w", err)
		}
	}

	for i, row := range rows {
		row.VectorHandle = firstHandle + i
	}
	if err := p.store.AddChunksBatch(ctx, rows); err != nil {
		return fmt.Errorf("failed to store chunks for book %d: %w", src.LibraryID, err)
	}

	if err := p.state.MarkProcessed(src.LibraryID); err != nil {
		return fmt.Errorf("failed to mark book %d processed: %w", src.LibraryID, err)
	}
	log.Info("book indexed",
		zap.Int("chapters", len(src.Chapters)),
		zap.Int("chunks", len(rows)),
		zap.Int("first_handle", firstHandle),
		zap.Duration("took", time.Since(start)))
	return nil
}

// IndexBookFile loads a book source JSON file and indexes it.
func (p *Pipeline) IndexBookFile(ctx context.Context, path string) error {
	src, err := source.LoadBookFile(path)
	if err != nil {
		return err
	}
	return p.IndexBook(ctx, src)
}

// purgeLeftovers removes rows of a book that exists in the store but was
// never marked processed (an interrupted earlier run). Its vectors stay in
// the index; handles are append-only and cannot be reclaimed. Reconcile
// surfaces them rather than repairing silently.
func (p *Pipeline) purgeLeftovers(ctx context.Context, libraryID int64, log *zap.Logger) error {
	book, err := p.store.GetBookByLibraryID(ctx, libraryID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check for leftover book %d: %w", libraryID, err)
	}
	log.Warn("purging partially indexed book before reprocessing",
		zap.Int64("book_id", book.ID))
	if err := p.store.DeleteBookData(ctx, book.ID); err != nil {
		return fmt.Errorf("failed to purge book %d: %w", libraryID, err)
	}
	return nil
}

// Report is the result of a reconciliation check between the chunk store and
// the vector index.
type Report struct {
	IndexVectors  int  `json:"index_vectors"`
	MaxHandle     int  `json:"max_handle"`
	HasChunks     bool `json:"has_chunks"`
	OrphanVectors int  `json:"orphan_vectors"`
}

// Reconcile compares the highest stored vector handle against the index
// count. A chunk row whose handle is at or beyond the count references a
// vector that does not exist; that is reported as ErrInconsistentState.
// Vectors beyond the highest handle are counted as orphans (leftovers of an
// interrupted run) but are not an error.
func (p *Pipeline) Reconcile(ctx context.Context) (*Report, error) {
	maxHandle, hasChunks, err := p.store.MaxVectorHandle(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read max vector handle: %w", err)
	}
	r := &Report{
		IndexVectors: p.index.Size(),
		MaxHandle:    maxHandle,
		HasChunks:    hasChunks,
	}
	if !hasChunks {
		r.MaxHandle = -1
		r.OrphanVectors = r.IndexVectors
		return r, nil
	}
	if maxHandle >= r.IndexVectors {
		return r, fmt.Errorf("%w: max chunk handle %d, index has %d vectors",
			ErrInconsistentState, maxHandle, r.IndexVectors)
	}
	r.OrphanVectors = r.IndexVectors - maxHandle - 1
	return r, nil
}
