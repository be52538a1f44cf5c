// Package models defines core data structures for books, chapters, chunks, and search results.
package models

import "time"

// Book is an indexed book. LibraryID is the stable identifier assigned by the
// external library the book came from; ID is local to the chunk store.
type Book struct {
	ID        int64     `json:"id" db:"id"`
	LibraryID int64     `json:"library_id" db:"library_id"`
	Title     string    `json:"title" db:"title"`
	Author    string    `json:"author,omitempty" db:"author"`
	Path      string    `json:"path,omitempty" db:"path"`
	Summary   string    `json:"summary,omitempty" db:"summary"`
	Tags      string    `json:"tags,omitempty" db:"tags"`
	PubDate   string    `json:"pubdate,omitempty" db:"pubdate"`
	IndexedAt time.Time `json:"indexed_at" db:"indexed_at"`
}

// Chapter is one chapter of a book, unique per (BookID, Ordinal).
type Chapter struct {
	ID         int64  `json:"id" db:"id"`
	BookID     int64  `json:"book_id" db:"book_id"`
	Ordinal    int    `json:"ordinal" db:"ordinal"`
	Title      string `json:"title" db:"title"`
	SourcePath string `json:"source_path,omitempty" db:"source_path"`
	WordCount  int    `json:"word_count" db:"word_count"`
}

// Chunk is an embedded window of chapter text. VectorHandle is the dense
// insertion-order position of its vector in the vector index; it is the join
// key between the index and the chunk store and is unique globally.
type Chunk struct {
	ID           int64  `json:"id" db:"id"`
	ChapterID    int64  `json:"chapter_id" db:"chapter_id"`
	Ordinal      int    `json:"ordinal" db:"ordinal"`
	Text         string `json:"text" db:"text"`
	VectorHandle int    `json:"vector_handle" db:"vector_handle"`
	StartOffset  int    `json:"start_offset" db:"start_offset"`
	EndOffset    int    `json:"end_offset" db:"end_offset"`
}

// ChunkContext is the denormalized projection of a chunk joined with its
// chapter and book, produced at query time.
type ChunkContext struct {
	ChunkID        int64  `json:"chunk_id"`
	Text           string `json:"text"`
	ChunkOrdinal   int    `json:"chunk_ordinal"`
	ChapterID      int64  `json:"chapter_id"`
	ChapterTitle   string `json:"chapter_title"`
	ChapterOrdinal int    `json:"chapter_ordinal"`
	BookID         int64  `json:"book_id"`
	LibraryID      int64  `json:"library_id"`
	BookTitle      string `json:"book_title"`
	Author         string `json:"author"`
}

// StoreStats summarizes chunk store contents.
type StoreStats struct {
	Books      int64 `json:"books"`
	Chapters   int64 `json:"chapters"`
	Chunks     int64 `json:"chunks"`
	TotalWords int64 `json:"total_words"`
}
