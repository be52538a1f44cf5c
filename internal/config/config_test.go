package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
embedding:
  backend: "mock"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Embedding.Backend != "mock" {
		t.Errorf("backend = %s, want mock", cfg.Embedding.Backend)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/books.db"
  vector_index_path: "./data/indices/books"
ingest:
  directory: "./ingest"
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "books.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantIndex := filepath.Join(dir, "data", "indices", "books")
	if cfg.Storage.VectorIndexPath != wantIndex {
		t.Errorf("vector_index_path = %s, want %s", cfg.Storage.VectorIndexPath, wantIndex)
	}
	wantIngest := filepath.Join(dir, "ingest")
	if cfg.Ingest.Directory != wantIngest {
		t.Errorf("ingest directory = %s, want %s", cfg.Ingest.Directory, wantIngest)
	}
	if !cfg.Ingest.Enabled {
		t.Error("ingest should be enabled")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Backend != "onnx" {
		t.Errorf("default backend: got %s", cfg.Embedding.Backend)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Search.ChunkSize != 500 || cfg.Search.ChunkOverlap != 50 {
		t.Errorf("default chunking: size=%d overlap=%d", cfg.Search.ChunkSize, cfg.Search.ChunkOverlap)
	}
	if cfg.Search.DefaultLimit != 20 {
		t.Errorf("default limit: got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.SnippetLength != 200 {
		t.Errorf("default snippet length: got %d", cfg.Search.SnippetLength)
	}
	if cfg.Ingest.Enabled {
		t.Error("ingest should be disabled by default")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
