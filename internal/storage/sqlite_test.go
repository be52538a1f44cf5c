package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/takebo/hondana/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Books(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	book := &models.Book{LibraryID: 42, Title: "Moby Dick", Author: "Herman Melville", Path: "melville/moby-dick"}
	id, err := store.AddBook(ctx, book)
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("expected non-zero book id")
	}
	if book.IndexedAt.IsZero() {
		t.Error("IndexedAt should be set")
	}

	got, err := store.GetBookByLibraryID(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Moby Dick" || got.Author != "Herman Melville" {
		t.Errorf("got %+v", got)
	}

	exists, err := store.BookExists(ctx, 42)
	if err != nil || !exists {
		t.Errorf("BookExists(42) = %v, %v", exists, err)
	}
	exists, err = store.BookExists(ctx, 7)
	if err != nil || exists {
		t.Errorf("BookExists(7) = %v, %v", exists, err)
	}

	// Same library ID again must be rejected.
	_, err = store.AddBook(ctx, &models.Book{LibraryID: 42, Title: "Duplicate"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	_, err = store.GetBookByLibraryID(ctx, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	books, err := store.ListBooks(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 {
		t.Errorf("expected 1 book, got %d", len(books))
	}
}

func TestSQLiteStore_Chapters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bookID, err := store.AddBook(ctx, &models.Book{LibraryID: 1, Title: "Book"})
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		_, err := store.AddChapter(ctx, &models.Chapter{
			BookID: bookID, Ordinal: i, Title: "Chapter", WordCount: 100 * i,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	// (book_id, ordinal) collision
	_, err = store.AddChapter(ctx, &models.Chapter{BookID: bookID, Ordinal: 1, Title: "Again"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Unknown book
	_, err = store.AddChapter(ctx, &models.Chapter{BookID: 12345, Ordinal: 1})
	if !errors.Is(err, ErrForeignKey) {
		t.Errorf("expected ErrForeignKey, got %v", err)
	}

	chapters, err := store.GetChapters(ctx, bookID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}
	for i, ch := range chapters {
		if ch.Ordinal != i+1 {
			t.Errorf("chapter %d ordinal = %d, want %d", i, ch.Ordinal, i+1)
		}
	}
}

func TestSQLiteStore_Chunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bookID, _ := store.AddBook(ctx, &models.Book{LibraryID: 1, Title: "Book"})
	chapterID, _ := store.AddChapter(ctx, &models.Chapter{BookID: bookID, Ordinal: 1, Title: "One"})

	chunks := []*models.Chunk{
		{ChapterID: chapterID, Ordinal: 0, Text: "first", VectorHandle: 0, StartOffset: 0, EndOffset: 5},
		{ChapterID: chapterID, Ordinal: 1, Text: "second", VectorHandle: 1, StartOffset: 4, EndOffset: 10},
		{ChapterID: chapterID, Ordinal: 2, Text: "third", VectorHandle: 2, StartOffset: 9, EndOffset: 14},
	}
	if err := store.AddChunksBatch(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		if c.ID == 0 {
			t.Error("batch insert should assign chunk IDs")
		}
	}

	// Duplicate vector handle: whole batch must be rejected.
	err := store.AddChunksBatch(ctx, []*models.Chunk{
		{ChapterID: chapterID, Ordinal: 3, Text: "ok", VectorHandle: 3},
		{ChapterID: chapterID, Ordinal: 4, Text: "dup", VectorHandle: 0},
	})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	got, _ := store.GetChunks(ctx, chapterID)
	if len(got) != 3 {
		t.Errorf("failed batch must not leave partial rows: got %d chunks", len(got))
	}

	byHandle, err := store.GetChunksByHandles(ctx, []int{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(byHandle) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(byHandle))
	}

	max, ok, err := store.MaxVectorHandle(ctx)
	if err != nil || !ok || max != 2 {
		t.Errorf("MaxVectorHandle = %d, %v, %v; want 2, true, nil", max, ok, err)
	}
}

func TestSQLiteStore_ChunkWithContext(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bookID, _ := store.AddBook(ctx, &models.Book{LibraryID: 7, Title: "Walden", Author: "Thoreau"})
	chapterID, _ := store.AddChapter(ctx, &models.Chapter{BookID: bookID, Ordinal: 2, Title: "Economy"})
	_, err := store.AddChunk(ctx, &models.Chunk{
		ChapterID: chapterID, Ordinal: 0, Text: "I went to the woods", VectorHandle: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	cc, err := store.GetChunkWithContext(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if cc.BookTitle != "Walden" || cc.Author != "Thoreau" {
		t.Errorf("book context = %q by %q", cc.BookTitle, cc.Author)
	}
	if cc.ChapterTitle != "Economy" || cc.ChapterOrdinal != 2 {
		t.Errorf("chapter context = %q (%d)", cc.ChapterTitle, cc.ChapterOrdinal)
	}
	if cc.LibraryID != 7 {
		t.Errorf("library id = %d, want 7", cc.LibraryID)
	}

	if _, err := store.GetChunkWithContext(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown handle, got %v", err)
	}
}

func TestSQLiteStore_DeleteBookData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bookID, _ := store.AddBook(ctx, &models.Book{LibraryID: 1, Title: "Book"})
	chapterID, _ := store.AddChapter(ctx, &models.Chapter{BookID: bookID, Ordinal: 1, WordCount: 50})
	_ = store.AddChunksBatch(ctx, []*models.Chunk{
		{ChapterID: chapterID, Ordinal: 0, Text: "x", VectorHandle: 0},
	})

	if err := store.DeleteBookData(ctx, bookID); err != nil {
		t.Fatal(err)
	}

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Books != 0 || st.Chapters != 0 || st.Chunks != 0 {
		t.Errorf("cascade delete left rows behind: %+v", st)
	}
}

func TestSQLiteStore_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Books != 0 || st.TotalWords != 0 {
		t.Errorf("empty store stats = %+v", st)
	}

	bookID, _ := store.AddBook(ctx, &models.Book{LibraryID: 1, Title: "Book"})
	_, _ = store.AddChapter(ctx, &models.Chapter{BookID: bookID, Ordinal: 1, WordCount: 300})
	_, _ = store.AddChapter(ctx, &models.Chapter{BookID: bookID, Ordinal: 2, WordCount: 200})

	st, _ = store.Stats(ctx)
	if st.Books != 1 || st.Chapters != 2 || st.TotalWords != 500 {
		t.Errorf("stats = %+v", st)
	}
}
