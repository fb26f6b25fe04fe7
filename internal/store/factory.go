package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// Config selects and configures a vector store backend.
type Config struct {
	Backend    string
	DataDir    string // empty keeps the store in memory
	Collection string
	Dimensions int
	Compress   bool
	HNSWM      int
	EfSearch   int
}

// Open creates the configured VectorStore. An empty backend selects chromem.
func Open(cfg Config) (VectorStore, error) {
	switch cfg.Backend {
	case "", BackendChromem:
		path := ""
		if cfg.DataDir != "" {
			path = filepath.Join(cfg.DataDir, "chromem")
		}
		slog.Debug("vector_store_backend", slog.String("backend", BackendChromem), slog.String("path", path))
		return NewChromemStore(ChromemConfig{
			Path:       path,
			Compress:   cfg.Compress,
			Collection: cfg.Collection,
			Dimensions: cfg.Dimensions,
		})
	case BackendHNSW:
		path := ""
		if cfg.DataDir != "" {
			collection := cfg.Collection
			if collection == "" {
				collection = DefaultCollection
			}
			path = filepath.Join(cfg.DataDir, collection+".hnsw")
		}
		slog.Debug("vector_store_backend", slog.String("backend", BackendHNSW), slog.String("path", path))
		return NewHNSWStore(HNSWConfig{
			Path:       path,
			Dimensions: cfg.Dimensions,
			M:          cfg.HNSWM,
			EfSearch:   cfg.EfSearch,
		})
	default:
		return nil, fmt.Errorf("unknown vector store backend %q (want %s or %s)", cfg.Backend, BackendChromem, BackendHNSW)
	}
}
