package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/takebo/hondana/internal/models"
	"github.com/takebo/hondana/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.pipeline.Stats()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"version":       s.version,
		"indexed_books": stats.ProcessedBooks,
		"total_chunks":  stats.TotalChunks,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.engine.Ready() {
		s.respondError(w, http.StatusServiceUnavailable, "index not ready: no books indexed yet")
		return
	}
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.engine.SearchChunks(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"store":    storeStats,
		"index":    s.engine.IndexStats(),
		"pipeline": s.pipeline.Stats(),
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.VectorIndexPath+".vec",
		s.config.Storage.VectorIndexPath+".meta.json",
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	books, err := s.store.ListBooks(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list books failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"books":  books,
		"offset": offset,
		"limit":  limit,
	})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	libraryID, err := strconv.ParseInt(chi.URLParam(r, "libraryID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid library id")
		return
	}
	book, err := s.store.GetBookByLibraryID(r.Context(), libraryID)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "book not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, book)
}

func (s *Server) handleGetChapters(w http.ResponseWriter, r *http.Request) {
	libraryID, err := strconv.ParseInt(chi.URLParam(r, "libraryID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid library id")
		return
	}
	book, err := s.store.GetBookByLibraryID(r.Context(), libraryID)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "book not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chapters, err := s.store.GetChapters(r.Context(), book.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"book":     book,
		"chapters": chapters,
	})
}

func (s *Server) handleChapterText(w http.ResponseWriter, r *http.Request) {
	chapterID, err := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid chapter id")
		return
	}
	chapter, err := s.store.GetChapter(r.Context(), chapterID)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "chapter not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunks, err := s.store.GetChunks(r.Context(), chapterID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"chapter": chapter,
		"text":    stitchChunks(chunks),
	})
}

type indexRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIndexBook(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.logger.Debug("index request", zap.String("path", req.Path))
	if err := s.pipeline.IndexBookFile(r.Context(), req.Path); err != nil {
		s.logger.Error("indexing failed", zap.String("path", req.Path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": req.Path, "status": "indexed"})
}

// stitchChunks reassembles chapter text from overlapping chunks using their
// word offsets, so overlap regions are emitted once.
func stitchChunks(chunks []*models.Chunk) string {
	var sb strings.Builder
	covered := 0
	for _, ch := range chunks {
		words := strings.Fields(ch.Text)
		from := 0
		if ch.StartOffset < covered {
			from = covered - ch.StartOffset
		}
		if from >= len(words) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.Join(words[from:], " "))
		if ch.EndOffset > covered {
			covered = ch.EndOffset
		}
	}
	return sb.String()
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
