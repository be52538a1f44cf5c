// Package storage provides the SQLite implementation of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/takebo/hondana/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		library_id INTEGER NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT,
		path TEXT,
		summary TEXT,
		tags TEXT,
		pubdate TEXT,
		indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_books_library_id ON books(library_id);

	CREATE TABLE IF NOT EXISTS chapters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		book_id INTEGER NOT NULL,
		ordinal INTEGER NOT NULL,
		title TEXT,
		source_path TEXT,
		word_count INTEGER,
		FOREIGN KEY (book_id) REFERENCES books(id) ON DELETE CASCADE,
		UNIQUE(book_id, ordinal)
	);

	CREATE INDEX IF NOT EXISTS idx_chapters_book_id ON chapters(book_id);

	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chapter_id INTEGER NOT NULL,
		ordinal INTEGER NOT NULL,
		text TEXT NOT NULL,
		vector_handle INTEGER NOT NULL UNIQUE,
		start_offset INTEGER,
		end_offset INTEGER,
		FOREIGN KEY (chapter_id) REFERENCES chapters(id) ON DELETE CASCADE,
		UNIQUE(chapter_id, ordinal)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_chapter_id ON chunks(chapter_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_vector_handle ON chunks(vector_handle);
	`
	_, err := db.Exec(schema)
	return err
}

// mapConstraintErr translates sqlite constraint failures into the package
// sentinel errors so callers can match with errors.Is.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		switch serr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrForeignKey, err)
		}
	}
	return err
}

// AddBook inserts a book and returns its local ID.
// Returns ErrDuplicateKey if the library ID is already present.
func (s *SQLiteStore) AddBook(ctx context.Context, book *models.Book) (int64, error) {
	book.IndexedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO books (library_id, title, author, path, summary, tags, pubdate, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		book.LibraryID, book.Title, book.Author, book.Path, book.Summary, book.Tags, book.PubDate, book.IndexedAt,
	)
	if err != nil {
		return 0, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	book.ID = id
	return id, nil
}

func scanBook(row interface{ Scan(...interface{}) error }) (*models.Book, error) {
	var b models.Book
	err := row.Scan(&b.ID, &b.LibraryID, &b.Title, &b.Author, &b.Path, &b.Summary, &b.Tags, &b.PubDate, &b.IndexedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const bookColumns = `id, library_id, title, COALESCE(author, ''), COALESCE(path, ''),
	COALESCE(summary, ''), COALESCE(tags, ''), COALESCE(pubdate, ''), indexed_at`

// GetBook returns a book by local ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	book, err := scanBook(s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return book, err
}

// GetBookByLibraryID returns a book by its external library ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetBookByLibraryID(ctx context.Context, libraryID int64) (*models.Book, error) {
	book, err := scanBook(s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE library_id = ?`, libraryID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book library_id %d: %w", libraryID, ErrNotFound)
	}
	return book, err
}

// BookExists reports whether a book with the given library ID has been indexed.
func (s *SQLiteStore) BookExists(ctx context.Context, libraryID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM books WHERE library_id = ?`, libraryID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListBooks returns indexed books ordered by indexing time, newest first.
func (s *SQLiteStore) ListBooks(ctx context.Context, offset, limit int) ([]*models.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY indexed_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// DeleteBookData removes a book and, via cascade, all of its chapters and chunks.
func (s *SQLiteStore) DeleteBookData(ctx context.Context, bookID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, bookID)
	return err
}

// AddChapter inserts a chapter and returns its ID.
// Returns ErrDuplicateKey on a (book_id, ordinal) collision and ErrForeignKey
// when the book does not exist.
func (s *SQLiteStore) AddChapter(ctx context.Context, chapter *models.Chapter) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chapters (book_id, ordinal, title, source_path, word_count)
		 VALUES (?, ?, ?, ?, ?)`,
		chapter.BookID, chapter.Ordinal, chapter.Title, chapter.SourcePath, chapter.WordCount,
	)
	if err != nil {
		return 0, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	chapter.ID = id
	return id, nil
}

// GetChapter returns a chapter by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetChapter(ctx context.Context, id int64) (*models.Chapter, error) {
	var ch models.Chapter
	err := s.db.QueryRowContext(ctx,
		`SELECT id, book_id, ordinal, COALESCE(title, ''), COALESCE(source_path, ''), COALESCE(word_count, 0)
		 FROM chapters WHERE id = ?`, id,
	).Scan(&ch.ID, &ch.BookID, &ch.Ordinal, &ch.Title, &ch.SourcePath, &ch.WordCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chapter %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChapters returns all chapters for a book ordered by ordinal.
func (s *SQLiteStore) GetChapters(ctx context.Context, bookID int64) ([]*models.Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, ordinal, COALESCE(title, ''), COALESCE(source_path, ''), COALESCE(word_count, 0)
		 FROM chapters WHERE book_id = ? ORDER BY ordinal`, bookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []*models.Chapter
	for rows.Next() {
		var ch models.Chapter
		if err := rows.Scan(&ch.ID, &ch.BookID, &ch.Ordinal, &ch.Title, &ch.SourcePath, &ch.WordCount); err != nil {
			return nil, err
		}
		chapters = append(chapters, &ch)
	}
	return chapters, rows.Err()
}

// AddChunk inserts a single chunk and returns its ID.
func (s *SQLiteStore) AddChunk(ctx context.Context, chunk *models.Chunk) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (chapter_id, ordinal, text, vector_handle, start_offset, end_offset)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		chunk.ChapterID, chunk.Ordinal, chunk.Text, chunk.VectorHandle, chunk.StartOffset, chunk.EndOffset,
	)
	if err != nil {
		return 0, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	chunk.ID = id
	return id, nil
}

// AddChunksBatch inserts multiple chunks in a single transaction.
// Either all rows become visible or none do.
func (s *SQLiteStore) AddChunksBatch(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (chapter_id, ordinal, text, vector_handle, start_offset, end_offset)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		res, err := stmt.ExecContext(ctx, c.ChapterID, c.Ordinal, c.Text, c.VectorHandle, c.StartOffset, c.EndOffset)
		if err != nil {
			return mapConstraintErr(err)
		}
		if id, err := res.LastInsertId(); err == nil {
			c.ID = id
		}
	}
	return tx.Commit()
}

// GetChunks returns all chunks for a chapter ordered by ordinal.
func (s *SQLiteStore) GetChunks(ctx context.Context, chapterID int64) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chapter_id, ordinal, text, vector_handle, COALESCE(start_offset, 0), COALESCE(end_offset, 0)
		 FROM chunks WHERE chapter_id = ? ORDER BY ordinal`, chapterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetChunksByHandles returns the chunks matching the given vector handles.
// Result order is not guaranteed to match the input; callers re-associate by handle.
func (s *SQLiteStore) GetChunksByHandles(ctx context.Context, handles []int) ([]*models.Chunk, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(handles)), ",")
	args := make([]interface{}, len(handles))
	for i, h := range handles {
		args[i] = h
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chapter_id, ordinal, text, vector_handle, COALESCE(start_offset, 0), COALESCE(end_offset, 0)
		 FROM chunks WHERE vector_handle IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.ChapterID, &c.Ordinal, &c.Text, &c.VectorHandle, &c.StartOffset, &c.EndOffset); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// GetChunkWithContext joins a chunk with its chapter and book by vector handle.
// Returns ErrNotFound for an unknown handle.
func (s *SQLiteStore) GetChunkWithContext(ctx context.Context, handle int) (*models.ChunkContext, error) {
	var cc models.ChunkContext
	err := s.db.QueryRowContext(ctx,
		`SELECT
			c.id, c.text, c.ordinal,
			ch.id, COALESCE(ch.title, ''), ch.ordinal,
			b.id, b.library_id, b.title, COALESCE(b.author, '')
		 FROM chunks c
		 JOIN chapters ch ON c.chapter_id = ch.id
		 JOIN books b ON ch.book_id = b.id
		 WHERE c.vector_handle = ?`, handle,
	).Scan(
		&cc.ChunkID, &cc.Text, &cc.ChunkOrdinal,
		&cc.ChapterID, &cc.ChapterTitle, &cc.ChapterOrdinal,
		&cc.BookID, &cc.LibraryID, &cc.BookTitle, &cc.Author,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vector handle %d: %w", handle, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

// MaxVectorHandle returns the highest vector handle stored, or ok=false when no chunks exist.
func (s *SQLiteStore) MaxVectorHandle(ctx context.Context) (int, bool, error) {
	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(vector_handle) FROM chunks`).Scan(&max); err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

// Stats returns book, chapter, chunk, and word counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	var st models.StoreStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&st.Books); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters`).Scan(&st.Chapters); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.Chunks); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(word_count), 0) FROM chapters`).Scan(&st.TotalWords); err != nil {
		return nil, err
	}
	return &st, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
