// Package source reads book source files: JSON documents carrying a book's
// metadata and already-extracted chapter text. Parsing of publisher formats
// (EPUB, PDF, ...) happens upstream; this package consumes the result.
package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/takebo/hondana/internal/models"
)

// LoadBookFile reads and validates a book source JSON file.
func LoadBookFile(path string) (*models.BookSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read book file: %w", err)
	}
	var src models.BookSource
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("failed to parse book file %s: %w", path, err)
	}
	if src.Path == "" {
		src.Path = path
	}
	if err := Validate(&src); err != nil {
		return nil, fmt.Errorf("invalid book file %s: %w", path, err)
	}
	// Chapters arrive in file order; index in ordinal order regardless.
	sort.SliceStable(src.Chapters, func(i, j int) bool {
		return src.Chapters[i].Ordinal < src.Chapters[j].Ordinal
	})
	return &src, nil
}

// Validate checks the structural requirements of a book source.
func Validate(src *models.BookSource) error {
	if src.LibraryID <= 0 {
		return fmt.Errorf("library_id must be positive, got %d", src.LibraryID)
	}
	if strings.TrimSpace(src.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(src.Chapters) == 0 {
		return fmt.Errorf("at least one chapter is required")
	}
	seen := make(map[int]struct{}, len(src.Chapters))
	for i, ch := range src.Chapters {
		if _, dup := seen[ch.Ordinal]; dup {
			return fmt.Errorf("duplicate chapter ordinal %d", ch.Ordinal)
		}
		seen[ch.Ordinal] = struct{}{}
		if strings.TrimSpace(ch.Text) == "" {
			return fmt.Errorf("chapter %d (%q) has no text", i, ch.Title)
		}
	}
	return nil
}

// IsBookFile reports whether path looks like a book source file.
func IsBookFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// ListBookFiles returns the book source files directly inside dir, sorted by name.
func ListBookFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsBookFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
