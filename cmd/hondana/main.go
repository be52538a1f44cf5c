// Package main is the hondana CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/takebo/hondana/internal/cli"
	"github.com/takebo/hondana/internal/config"
	"github.com/takebo/hondana/internal/embedding"
	"github.com/takebo/hondana/internal/models"
	"github.com/takebo/hondana/internal/pipeline"
	"github.com/takebo/hondana/internal/search"
	"github.com/takebo/hondana/internal/server"
	"github.com/takebo/hondana/internal/source"
	"github.com/takebo/hondana/internal/storage"
	"github.com/takebo/hondana/internal/vector"
	"github.com/takebo/hondana/internal/watcher"
	"github.com/takebo/hondana/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/hondana/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so a project checkout uses its own
// config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env carries OPENAI_API_KEY for the openai embedding backend.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "index":
		runIndex()
	case "search":
		runSearch()
	case "stats":
		runStats()
	case "reset":
		runReset()
	case "version", "--version", "-v":
		fmt.Printf("hondana version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var ingest *watcher.IngestWatcher
	if cfg.Ingest.Enabled && cfg.Ingest.Directory != "" {
		p := components.Pipeline
		ingest = watcher.New(cfg.Ingest.Directory, func(path string) {
			if err := p.IndexBookFile(context.Background(), path); err != nil {
				logger.Warn("ingest indexing failed", zap.String("path", path), zap.Error(err))
			}
		}, watcher.WithLogger(logger))
		if err := ingest.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start ingest watcher", zap.Error(err))
		}
		if err := ingest.SyncExisting(); err != nil {
			logger.Warn("ingest sync failed", zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Engine,
		components.Pipeline,
		components.Store,
		cfg,
		version,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if ingest != nil {
		ingest.Stop()
	}
	if err := components.Index.Save(cfg.Storage.VectorIndexPath); err != nil {
		logger.Warn("vector index save failed",
			zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: hondana index [flags] <book.json | directory>")
		os.Exit(1)
	}
	target := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || *debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	files := []string{target}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		files, err = source.ListBookFiles(target)
		if err != nil {
			fmt.Printf("Failed to list book files: %v\n", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Printf("No book files in %s\n", target)
			return
		}
	}

	indexed, skipped := 0, 0
	for _, path := range files {
		src, err := source.LoadBookFile(path)
		if err != nil {
			fmt.Printf("Skipping %s: %v\n", path, err)
			continue
		}
		if components.Pipeline.IsBookProcessed(src.LibraryID) {
			skipped++
			continue
		}
		if err := components.Pipeline.IndexBook(ctx, src); err != nil {
			fmt.Printf("Failed to index %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Indexed: %s (%s)\n", src.Title, filepath.Base(path))
		indexed++
	}
	if err := components.Index.Save(cfg.Storage.VectorIndexPath); err != nil {
		fmt.Printf("Failed to save vector index: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Done: %d indexed, %d already up to date\n", indexed, skipped)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8765", "server URL (empty = direct storage access)")
	limit := fs.Int("limit", 0, "number of results (0 = config default)")
	minSimilarity := fs.Float64("min-similarity", 0, "drop results below this similarity")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: hondana search [flags] <query>")
		os.Exit(1)
	}
	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryStr == "" {
		fmt.Println("Usage: hondana search [flags] <query>")
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	query := &models.SearchQuery{
		Query:         queryStr,
		Limit:         *limit,
		MinSimilarity: *minSimilarity,
	}

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, query)
		if err == nil {
			if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
				fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
				os.Exit(1)
			}
			return
		}
		fmt.Fprintf(os.Stderr, "Server unavailable (%v), falling back to direct access\n", err)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	response, err := components.Engine.SearchChunks(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	storeStats, err := components.Store.Stats(context.Background())
	if err != nil {
		fmt.Printf("Failed to read stats: %v\n", err)
		os.Exit(1)
	}
	format := cli.OutputText
	if *outputFormat == "json" {
		format = cli.OutputJSON
	}
	summary := &cli.StatsSummary{
		Store:    storeStats,
		Index:    components.Index.Stats(),
		Pipeline: components.Pipeline.Stats(),
	}
	if err := cli.WriteStats(os.Stdout, summary, format); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runReset() {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	state, err := pipeline.LoadState(cfg.Storage.StatePath)
	if err != nil {
		fmt.Printf("Failed to load pipeline state: %v\n", err)
		os.Exit(1)
	}
	if err := state.Reset(); err != nil {
		fmt.Printf("Failed to reset pipeline state: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Pipeline state cleared. Stored books and vectors are untouched.")
}

// Components holds initialized services.
type Components struct {
	Store    storage.Store
	Embedder embedding.Embedder
	Index    vector.Index
	Engine   *search.Engine
	Pipeline *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.NewEmbedder(cfg.Embedding.Backend, embedding.Options{
		ModelPath:  cfg.Embedding.ModelPath,
		Model:      cfg.Embedding.OpenAIModel,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
	})
	if err != nil {
		logger.Warn("embedding backend unavailable, falling back to mock",
			zap.String("backend", cfg.Embedding.Backend), zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	index, err := vector.NewFlatIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if loadErr := index.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
		if errors.Is(loadErr, vector.ErrNotFound) {
			logger.Info("no persisted vector index, starting empty",
				zap.String("path", cfg.Storage.VectorIndexPath))
		} else {
			return nil, fmt.Errorf("failed to load vector index: %w", loadErr)
		}
	}

	state, err := pipeline.LoadState(cfg.Storage.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline state: %w", err)
	}

	engine := search.NewEngine(store, embedder, index,
		search.WithSnippetLength(cfg.Search.SnippetLength),
		search.WithLogger(logger))
	p := pipeline.New(store, embedder, index, state,
		pipeline.WithChunker(pipeline.NewChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap)),
		pipeline.WithIndexPath(cfg.Storage.VectorIndexPath),
		pipeline.WithLogger(logger))

	return &Components{
		Store:    store,
		Embedder: embedder,
		Index:    index,
		Engine:   engine,
		Pipeline: p,
	}, nil
}

func printUsage() {
	fmt.Println(`hondana - semantic search over book libraries

Usage:
  hondana server [flags]              Start the HTTP server (and ingest watcher)
  hondana index [flags] <file|dir>    Index book source files
  hondana search [flags] <query>      Search indexed books
  hondana stats [flags]               Show store/index/pipeline statistics
  hondana reset [flags]               Clear pipeline progress state
  hondana version                     Show version
  hondana help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/hondana/config.yaml)
  --debug            Enable debug logging

Index Flags:
  --config string    Config file path
  --debug            Enable debug logging

Search Flags:
  --config string            Config file path (for direct storage mode)
  --server string            Server URL (default: http://localhost:8765). Use --server "" for direct access.
  --limit int                Number of results
  --min-similarity float     Drop results below this similarity
  --output string            Output format: text or json

Examples:
  hondana server
  hondana index books/moby-dick.json
  hondana index books/
  hondana search "whaling voyages in the pacific"
  hondana search --output json --limit 5 "first chapter"
  hondana stats --output json
  hondana reset`)
}
