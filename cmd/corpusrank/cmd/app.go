package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/corpusrank/internal/chunk"
	"github.com/Aman-CERP/corpusrank/internal/config"
	"github.com/Aman-CERP/corpusrank/internal/corpus"
	"github.com/Aman-CERP/corpusrank/internal/embed"
	"github.com/Aman-CERP/corpusrank/internal/index"
	"github.com/Aman-CERP/corpusrank/internal/lexical"
	"github.com/Aman-CERP/corpusrank/internal/logging"
	"github.com/Aman-CERP/corpusrank/internal/rank"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	embedder embed.Embedder
	vector   store.VectorStore
	catalog  *store.Catalog
	lexical  lexical.Index
	loader   *corpus.Loader
	runner   *index.Runner
	engine   *rank.Engine
}

// projectDir resolves the project directory: the first positional
// argument, then --config-dir, then the working directory.
func projectDir(args []string) (string, error) {
	dir := configDir
	if len(args) > 0 && args[0] != "" {
		dir = args[0]
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project directory %s is not a directory", abs)
	}
	return abs, nil
}

// loadConfig loads the project config and applies its log level.
func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if !debugMode {
		logging.SetLevel(cfg.Server.LogLevel)
	}
	return cfg, nil
}

// openApp wires embedder, stores, indexer and ranking engine for dir.
func openApp(ctx context.Context, dir string) (_ *app, err error) {
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.embedder, err = embed.New(ctx, cfg.EmbedConfig()); err != nil {
		return nil, err
	}
	if a.vector, err = store.Open(cfg.StoreConfig(a.embedder.Dimensions())); err != nil {
		return nil, err
	}
	if a.catalog, err = store.OpenCatalog(cfg.CatalogPath()); err != nil {
		return nil, err
	}
	if a.lexical, err = lexical.New(cfg.Store.Lexical, lexical.DefaultConfig()); err != nil {
		return nil, err
	}
	if a.loader, err = corpus.NewLoader(cfg.Paths.CorpusRoot, cfg.Paths.Extensions, cfg.Paths.Exclude); err != nil {
		return nil, err
	}

	strategy, opts, err := cfg.ChunkOptions()
	if err != nil {
		return nil, err
	}
	chunker, err := chunk.New(strategy, opts)
	if err != nil {
		return nil, err
	}
	indexer, err := index.NewIndexer(a.vector, a.embedder, index.WithCatalog(a.catalog))
	if err != nil {
		return nil, err
	}
	a.runner, err = index.NewRunner(index.RunnerDependencies{
		Loader:   a.loader,
		Chunker:  chunker,
		Indexer:  indexer,
		Catalog:  a.catalog,
		Embedder: a.embedder,
		DataDir:  cfg.Paths.DataDir,
		Workers:  cfg.Indexing.Workers,
	})
	if err != nil {
		return nil, err
	}

	rc, err := cfg.RankConfig()
	if err != nil {
		return nil, err
	}
	stamp := func(ctx context.Context) (time.Time, error) {
		stats, err := a.catalog.Stats(ctx)
		return stats.LastIndex, err
	}
	if a.engine, err = rank.NewEngine(a.vector, a.embedder, a.lexical,
		rank.WithConfig(rc), rank.WithIndexStamp(stamp)); err != nil {
		return nil, err
	}

	slog.Debug("app_opened",
		slog.String("corpus_root", cfg.Paths.CorpusRoot),
		slog.String("model", a.embedder.ModelName()),
		slog.String("backend", cfg.Store.Backend))
	return a, nil
}

// Close releases every component that was opened.
func (a *app) Close() error {
	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	} else if a.lexical != nil {
		errs = append(errs, a.lexical.Close())
	}
	if a.vector != nil {
		errs = append(errs, a.vector.Close())
	}
	if a.catalog != nil {
		errs = append(errs, a.catalog.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	return errors.Join(errs...)
}
