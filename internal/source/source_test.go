package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/takebo/hondana/internal/models"
)

const sampleBook = `{
  "library_id": 42,
  "title": "Moby-Dick",
  "author": "Herman Melville",
  "chapters": [
    {"ordinal": 2, "title": "The Carpet-Bag", "text": "I stuffed a shirt or two"},
    {"ordinal": 1, "title": "Loomings", "text": "Call me Ishmael"}
  ]
}`

func TestLoadBookFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moby.json")
	if err := os.WriteFile(path, []byte(sampleBook), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := LoadBookFile(path)
	if err != nil {
		t.Fatalf("LoadBookFile failed: %v", err)
	}
	if src.LibraryID != 42 || src.Title != "Moby-Dick" {
		t.Errorf("unexpected book: %+v", src)
	}
	if src.Path != path {
		t.Errorf("Path = %q, want file path fallback", src.Path)
	}
	// Chapters come back in ordinal order regardless of file order.
	if src.Chapters[0].Ordinal != 1 || src.Chapters[0].Title != "Loomings" {
		t.Errorf("chapters not sorted by ordinal: %+v", src.Chapters)
	}
}

func TestLoadBookFileMissing(t *testing.T) {
	if _, err := LoadBookFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadBookFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBookFile(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		src  models.BookSource
		ok   bool
	}{
		{"valid", models.BookSource{LibraryID: 1, Title: "T", Chapters: []models.ChapterSource{{Ordinal: 1, Text: "x"}}}, true},
		{"zero library id", models.BookSource{Title: "T", Chapters: []models.ChapterSource{{Ordinal: 1, Text: "x"}}}, false},
		{"empty title", models.BookSource{LibraryID: 1, Chapters: []models.ChapterSource{{Ordinal: 1, Text: "x"}}}, false},
		{"no chapters", models.BookSource{LibraryID: 1, Title: "T"}, false},
		{"empty chapter text", models.BookSource{LibraryID: 1, Title: "T", Chapters: []models.ChapterSource{{Ordinal: 1, Text: "  "}}}, false},
		{"duplicate ordinals", models.BookSource{LibraryID: 1, Title: "T", Chapters: []models.ChapterSource{
			{Ordinal: 1, Text: "a"}, {Ordinal: 1, Text: "b"},
		}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.src)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsBookFile(t *testing.T) {
	if !IsBookFile("/x/book.json") || !IsBookFile("B.JSON") {
		t.Error("json files should match")
	}
	if IsBookFile("book.txt") || IsBookFile("book") {
		t.Error("non-json files should not match")
	}
}

func TestListBookFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"z.json", "a.json", "skip.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	files, err := ListBookFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files: %v", len(files), files)
	}
	if filepath.Base(files[0]) != "a.json" || filepath.Base(files[1]) != "z.json" {
		t.Errorf("files not sorted: %v", files)
	}
}
