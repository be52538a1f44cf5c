// Package storage defines the persistence interface for books, chapters, and chunks.
package storage

import (
	"context"
	"errors"

	"github.com/takebo/hondana/internal/models"
)

// Sentinel errors for constraint and lookup failures. Callers match with errors.Is.
var (
	// ErrNotFound is returned when a requested book, chapter, chunk, or handle does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert violates a uniqueness constraint
	// (book library_id, chapter (book_id, ordinal), chunk (chapter_id, ordinal), vector handle).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrForeignKey is returned when an insert references a missing parent row.
	ErrForeignKey = errors.New("foreign key violation")
)

// Store defines book, chapter, and chunk persistence operations.
// All mutating operations are durable before returning.
type Store interface {
	// Book operations
	AddBook(ctx context.Context, book *models.Book) (int64, error)
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	GetBookByLibraryID(ctx context.Context, libraryID int64) (*models.Book, error)
	BookExists(ctx context.Context, libraryID int64) (bool, error)
	ListBooks(ctx context.Context, offset, limit int) ([]*models.Book, error)
	// DeleteBookData removes a book together with all its chapters and chunks.
	// Used to purge leftovers of a partially indexed book before reprocessing.
	DeleteBookData(ctx context.Context, bookID int64) error

	// Chapter operations
	AddChapter(ctx context.Context, chapter *models.Chapter) (int64, error)
	GetChapter(ctx context.Context, id int64) (*models.Chapter, error)
	GetChapters(ctx context.Context, bookID int64) ([]*models.Chapter, error)

	// Chunk operations
	AddChunk(ctx context.Context, chunk *models.Chunk) (int64, error)
	AddChunksBatch(ctx context.Context, chunks []*models.Chunk) error
	GetChunks(ctx context.Context, chapterID int64) ([]*models.Chunk, error)
	GetChunksByHandles(ctx context.Context, handles []int) ([]*models.Chunk, error)
	// GetChunkWithContext joins a chunk with its chapter and book by vector handle.
	GetChunkWithContext(ctx context.Context, handle int) (*models.ChunkContext, error)
	// MaxVectorHandle returns the highest vector handle present, or ok=false when
	// there are no chunks. Used by the pipeline's reconciliation check.
	MaxVectorHandle(ctx context.Context) (handle int, ok bool, err error)

	// Stats
	Stats(ctx context.Context) (*models.StoreStats, error)

	Close() error
}
