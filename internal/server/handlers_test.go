package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"github.com/takebo/hondana/internal/config"
	"github.com/takebo/hondana/internal/embedding"
	"github.com/takebo/hondana/internal/models"
	"github.com/takebo/hondana/internal/pipeline"
	"github.com/takebo/hondana/internal/search"
	"github.com/takebo/hondana/internal/storage"
	"github.com/takebo/hondana/internal/vector"
)

func newTestServer(t *testing.T) (*Server, *pipeline.Pipeline) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "books.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	idx, err := vector.NewFlatIndex(32)
	if err != nil {
		t.Fatal(err)
	}
	embedder := embedding.NewMockEmbedder(32)
	engine := search.NewEngine(store, embedder, idx)
	p := pipeline.New(store, embedder, idx, pipeline.NewState(""),
		pipeline.WithChunker(pipeline.NewChunker(20, 5)))
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "books.db")
	cfg.Storage.VectorIndexPath = filepath.Join(dir, "books")
	return NewServer(engine, p, store, cfg, "test", zap.NewNop()), p
}

func indexTestBook(t *testing.T, p *pipeline.Pipeline, libraryID int64) {
	t.Helper()
	err := p.IndexBook(context.Background(), &models.BookSource{
		LibraryID: libraryID,
		Title:     "Voyages",
		Author:    "I. Author",
		Chapters: []models.ChapterSource{
			{Ordinal: 1, Title: "Setting Sail", Text: "the ship left harbor under a clear morning sky"},
			{Ordinal: 2, Title: "Open Water", Text: "waves and wind carried the crew far from land"},
		},
	})
	if err != nil {
		t.Fatalf("IndexBook failed: %v", err)
	}
}

func TestHandleSearchNotReady(t *testing.T) {
	srv, _ := newTestServer(t)
	body := bytes.NewBufferString(`{"query": "ships"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, p := newTestServer(t)
	indexTestBook(t, p, 1)

	body := bytes.NewBufferString(`{"query": "ship harbor morning", "limit": 5}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", body)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total < 1 {
		t.Fatal("expected results")
	}
	if resp.Results[0].Title != "Voyages" {
		t.Errorf("top result book = %q", resp.Results[0].Title)
	}
}

func TestHandleSearchBadRequest(t *testing.T) {
	srv, p := newTestServer(t)
	indexTestBook(t, p, 1)

	for _, body := range []string{`not json`, `{"query": ""}`} {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, r)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestHandleHealth(t *testing.T) {
	srv, p := newTestServer(t)
	indexTestBook(t, p, 1)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Status       string `json:"status"`
		Version      string `json:"version"`
		IndexedBooks int    `json:"indexed_books"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ok" || out.Version != "test" || out.IndexedBooks != 1 {
		t.Errorf("unexpected health payload: %+v", out)
	}
}

func TestHandleStats(t *testing.T) {
	srv, p := newTestServer(t)
	indexTestBook(t, p, 1)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"store", "index", "pipeline"} {
		if _, ok := out[key]; !ok {
			t.Errorf("stats missing %q section", key)
		}
	}
}

func TestHandleBooks(t *testing.T) {
	srv, p := newTestServer(t)
	indexTestBook(t, p, 5)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listOut struct {
		Books []*models.Book `json:"books"`
	}
	if err := json.NewDecoder(w.Body).Decode(&listOut); err != nil {
		t.Fatal(err)
	}
	if len(listOut.Books) != 1 {
		t.Fatalf("got %d books", len(listOut.Books))
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/books/5", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/books/999", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown book status = %d, want 404", w.Code)
	}
}

func TestHandleChapters(t *testing.T) {
	srv, p := newTestServer(t)
	indexTestBook(t, p, 5)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/books/5/chapters", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Chapters []*models.Chapter `json:"chapters"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Chapters) != 2 {
		t.Fatalf("got %d chapters", len(out.Chapters))
	}

	// Chapter text round trip.
	r = httptest.NewRequest(http.MethodGet,
		"/api/v1/chapters/"+itoa(out.Chapters[0].ID)+"/text", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("text status = %d", w.Code)
	}
	var textOut struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(w.Body).Decode(&textOut); err != nil {
		t.Fatal(err)
	}
	if textOut.Text != "the ship left harbor under a clear morning sky" {
		t.Errorf("stitched text = %q", textOut.Text)
	}
}

func TestHandleIndexBook(t *testing.T) {
	srv, _ := newTestServer(t)
	path := filepath.Join(t.TempDir(), "book.json")
	book := `{"library_id": 9, "title": "Dropped In", "chapters": [{"ordinal": 1, "title": "One", "text": "some chapter text to index"}]}`
	if err := os.WriteFile(path, []byte(book), 0o644); err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(indexRequest{Path: path})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/index", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/books/9", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("indexed book not retrievable, status = %d", w.Code)
	}
}

func TestStitchChunks(t *testing.T) {
	chunks := []*models.Chunk{
		{Text: "a b c d e", StartOffset: 0, EndOffset: 5},
		{Text: "d e f g h", StartOffset: 3, EndOffset: 8},
		{Text: "g h i", StartOffset: 6, EndOffset: 9},
	}
	if got := stitchChunks(chunks); got != "a b c d e f g h i" {
		t.Errorf("stitchChunks = %q", got)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
