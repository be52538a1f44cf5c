package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const stateSchemaVersion = 1

// stateFile is the on-disk representation of pipeline progress.
type stateFile struct {
	SchemaVersion int     `json:"schema_version"`
	ProcessedIDs  []int64 `json:"processed_book_ids"`
	TotalChunks   int     `json:"total_chunks"`
	LastBookID    int64   `json:"last_book_id"`
}

// State tracks which books have been indexed and how many chunks were
// emitted. It is persisted after every book-level change so progress
// survives restarts. Callers construct one and hand it to the Pipeline.
type State struct {
	path        string
	mu          sync.Mutex
	processed   map[int64]struct{}
	totalChunks int
	lastBookID  int64
}

// NewState creates an empty state persisted at path. An empty path keeps the
// state memory-only (useful in tests).
func NewState(path string) *State {
	return &State{
		path:      path,
		processed: make(map[int64]struct{}),
	}
}

// LoadState reads state from path. A missing file yields a fresh empty state;
// a malformed or wrong-version file is an error.
func LoadState(path string) (*State, error) {
	s := NewState(path)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if f.SchemaVersion != stateSchemaVersion {
		return nil, fmt.Errorf("unsupported state schema version %d in %s", f.SchemaVersion, path)
	}
	for _, id := range f.ProcessedIDs {
		s.processed[id] = struct{}{}
	}
	s.totalChunks = f.TotalChunks
	s.lastBookID = f.LastBookID
	return s, nil
}

// IsProcessed reports whether the book with the given library ID is marked done.
func (s *State) IsProcessed(libraryID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[libraryID]
	return ok
}

// MarkProcessed records the book as done and persists immediately.
// Marking an already-processed book is a no-op.
func (s *State) MarkProcessed(libraryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[libraryID]; ok {
		return nil
	}
	s.processed[libraryID] = struct{}{}
	s.lastBookID = libraryID
	return s.saveLocked()
}

// AddChunks adds n to the emitted-chunk counter and persists.
func (s *State) AddChunks(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalChunks += n
	return s.saveLocked()
}

// Stats summarizes pipeline progress.
type Stats struct {
	ProcessedBooks int   `json:"processed_books"`
	TotalChunks    int   `json:"total_chunks"`
	LastBookID     int64 `json:"last_book_id"`
}

// Stats returns current progress counters.
func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ProcessedBooks: len(s.processed),
		TotalChunks:    s.totalChunks,
		LastBookID:     s.lastBookID,
	}
}

// Reset clears all progress and persists the empty state. It does not touch
// the chunk store or the vector index.
func (s *State) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = make(map[int64]struct{})
	s.totalChunks = 0
	s.lastBookID = 0
	return s.saveLocked()
}

// saveLocked writes the state atomically via a temp file and rename.
// Caller holds s.mu.
func (s *State) saveLocked() error {
	if s.path == "" {
		return nil
	}
	ids := make([]int64, 0, len(s.processed))
	for id := range s.processed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	data, err := json.MarshalIndent(stateFile{
		SchemaVersion: stateSchemaVersion,
		ProcessedIDs:  ids,
		TotalChunks:   s.totalChunks,
		LastBookID:    s.lastBookID,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
