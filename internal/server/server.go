// Package server provides the HTTP API for hondana.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/takebo/hondana/internal/config"
	"github.com/takebo/hondana/internal/pipeline"
	"github.com/takebo/hondana/internal/search"
	"github.com/takebo/hondana/internal/storage"
)

// Server is the HTTP server for the hondana API.
type Server struct {
	engine   *search.Engine
	pipeline *pipeline.Pipeline
	store    storage.Store
	config   *config.Config
	version  string
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	p *pipeline.Pipeline,
	store storage.Store,
	cfg *config.Config,
	version string,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		pipeline: p,
		store:    store,
		config:   cfg,
		version:  version,
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/stats", s.handleStats)
	r.Get("/api/v1/books", s.handleListBooks)
	r.Get("/api/v1/books/{libraryID}", s.handleGetBook)
	r.Get("/api/v1/books/{libraryID}/chapters", s.handleGetChapters)
	r.Get("/api/v1/chapters/{chapterID}/text", s.handleChapterText)
	r.Post("/api/v1/index", s.handleIndexBook)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
