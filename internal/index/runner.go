package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/corpusrank/internal/chunk"
	"github.com/Aman-CERP/corpusrank/internal/corpus"
	"github.com/Aman-CERP/corpusrank/internal/embed"
	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	Loader   *corpus.Loader
	Chunker  *chunk.Chunker
	Indexer  *Indexer
	Catalog  *store.Catalog
	Embedder embed.Embedder

	// DataDir holds the lock file.
	DataDir string

	// Workers bounds concurrent documents (default: NumCPU).
	Workers int
}

// RunOptions modify a single pass.
type RunOptions struct {
	// Force clears the index first, rebuilding every document.
	Force bool
}

// RunStats summarizes a pass.
type RunStats struct {
	Scanned  int
	Indexed  int
	Skipped  int
	Removed  int
	Failed   int
	Chunks   int
	Duration time.Duration
}

// Runner indexes a whole corpus: it walks the loader's root, reindexes
// changed documents, and removes documents that disappeared from disk.
type Runner struct {
	loader   *corpus.Loader
	chunker  *chunk.Chunker
	indexer  *Indexer
	catalog  *store.Catalog
	embedder embed.Embedder
	dataDir  string
	workers  int

	docLocks sync.Map // document id -> *sync.Mutex
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	switch {
	case deps.Loader == nil:
		return nil, fmt.Errorf("loader is required")
	case deps.Chunker == nil:
		return nil, fmt.Errorf("chunker is required")
	case deps.Indexer == nil:
		return nil, fmt.Errorf("indexer is required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog is required")
	case deps.Embedder == nil:
		return nil, fmt.Errorf("embedder is required")
	case deps.DataDir == "":
		return nil, fmt.Errorf("data dir is required")
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		loader:   deps.Loader,
		chunker:  deps.Chunker,
		indexer:  deps.Indexer,
		catalog:  deps.Catalog,
		embedder: deps.Embedder,
		dataDir:  deps.DataDir,
		workers:  workers,
	}, nil
}

// Run performs a full pass over the corpus.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (RunStats, error) {
	start := time.Now()
	lock := newFileLock(r.dataDir)
	if err := lock.tryLock(); err != nil {
		return RunStats{}, err
	}
	defer func() {
		if err := lock.unlock(); err != nil {
			slog.Warn("index_unlock_failed", slog.String("error", err.Error()))
		}
	}()

	if err := r.checkModel(ctx, opts.Force); err != nil {
		return RunStats{}, err
	}
	if opts.Force {
		if err := r.indexer.ClearIndex(ctx); err != nil {
			return RunStats{}, err
		}
	}

	paths, err := r.loader.Walk(ctx)
	if err != nil {
		return RunStats{}, err
	}

	stats, err := r.indexPaths(ctx, paths)
	if err != nil {
		return stats, err
	}

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[corpus.IDForPath(p)] = true
	}
	removed, err := r.removeMissing(ctx, seen)
	stats.Removed = removed
	if err != nil {
		return stats, err
	}

	if err := r.indexer.Flush(); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)

	slog.Info("index_pass_complete",
		slog.Int("scanned", stats.Scanned),
		slog.Int("indexed", stats.Indexed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("removed", stats.Removed),
		slog.Int("failed", stats.Failed),
		slog.Int("chunks", stats.Chunks),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// IndexPaths reindexes the given files if changed. Used by the watcher.
func (r *Runner) IndexPaths(ctx context.Context, paths []string) (RunStats, error) {
	lock := newFileLock(r.dataDir)
	if err := lock.tryLock(); err != nil {
		return RunStats{}, err
	}
	defer func() { _ = lock.unlock() }()

	if err := r.checkModel(ctx, false); err != nil {
		return RunStats{}, err
	}
	stats, err := r.indexPaths(ctx, paths)
	if err != nil {
		return stats, err
	}
	return stats, r.indexer.Flush()
}

// RemovePaths deletes the documents for files that no longer exist.
func (r *Runner) RemovePaths(ctx context.Context, paths []string) (int, error) {
	lock := newFileLock(r.dataDir)
	if err := lock.tryLock(); err != nil {
		return 0, err
	}
	defer func() { _ = lock.unlock() }()

	removed := 0
	for _, p := range paths {
		id := corpus.IDForPath(p)
		if err := r.deleteDocument(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, r.indexer.Flush()
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeIndexed
	outcomeUnreadable
)

func (r *Runner) indexPaths(ctx context.Context, paths []string) (RunStats, error) {
	var (
		mu    sync.Mutex
		stats = RunStats{Scanned: len(paths)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, path := range paths {
		g.Go(func() error {
			result, chunks, err := r.indexPath(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if result != outcomeUnreadable && abortsPass(gctx, err) {
					return err
				}
				stats.Failed++
				slog.Warn("document_index_failed",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return nil
			}
			switch result {
			case outcomeIndexed:
				stats.Indexed++
				stats.Chunks += chunks
			case outcomeSkipped:
				stats.Skipped++
			}
			return nil
		})
	}
	err := g.Wait()
	return stats, err
}

func (r *Runner) indexPath(ctx context.Context, path string) (outcome, int, error) {
	doc, err := r.loader.Load(path)
	if err != nil {
		// a bad file fails alone, whatever its error code
		return outcomeUnreadable, 0, err
	}

	unlock := r.lockDocument(doc.ID)
	defer unlock()

	if !r.indexer.DocumentNeedsReindexing(ctx, doc) {
		return outcomeSkipped, 0, nil
	}
	if err := r.indexer.DeleteDocument(ctx, doc.ID); err != nil {
		return outcomeSkipped, 0, err
	}
	chunks := r.chunker.Chunk(doc.Content, doc.ID)
	if err := r.indexer.IndexDocument(ctx, doc, chunks); err != nil {
		return outcomeSkipped, 0, err
	}
	return outcomeIndexed, len(chunks), nil
}

// removeMissing deletes catalogued documents whose ids are not in seen.
func (r *Runner) removeMissing(ctx context.Context, seen map[string]bool) (int, error) {
	docs, err := r.catalog.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, d := range docs {
		if seen[d.ID] {
			continue
		}
		if err := r.deleteDocument(ctx, d.ID); err != nil {
			return removed, err
		}
		slog.Debug("document_removed", slog.String("source", d.SourcePath))
		removed++
	}
	return removed, nil
}

func (r *Runner) deleteDocument(ctx context.Context, id string) error {
	unlock := r.lockDocument(id)
	defer unlock()
	return r.indexer.DeleteDocument(ctx, id)
}

// lockDocument serializes work on one document id.
func (r *Runner) lockDocument(id string) func() {
	m, _ := r.docLocks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// checkModel refuses to mix vectors from different embedding models.
func (r *Runner) checkModel(ctx context.Context, force bool) error {
	model := r.embedder.ModelName()
	dims := strconv.Itoa(r.embedder.Dimensions())

	storedModel, err := r.catalog.GetState(ctx, store.StateEmbeddingModel)
	if err != nil {
		return err
	}
	storedDims, err := r.catalog.GetState(ctx, store.StateEmbeddingDimensions)
	if err != nil {
		return err
	}

	if storedModel != "" && (storedModel != model || storedDims != dims) && !force {
		return cerrors.New(cerrors.ErrCodeModelMismatch,
			fmt.Sprintf("index was built with %s (%s dims), embedder is %s (%s dims)", storedModel, storedDims, model, dims), nil).
			WithDetail("stored_model", storedModel).
			WithDetail("current_model", model).
			WithSuggestion("rebuild with 'corpusrank index --force'")
	}

	if storedModel == model && storedDims == dims {
		return nil
	}
	if err := r.catalog.SetState(ctx, store.StateEmbeddingModel, model); err != nil {
		return err
	}
	return r.catalog.SetState(ctx, store.StateEmbeddingDimensions, dims)
}

// abortsPass reports whether err should stop the whole pass rather than
// count as one failed document.
func abortsPass(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		cerrors.IsFatal(err) ||
		errors.Is(err, cerrors.ErrStoreUnavailable)
}
