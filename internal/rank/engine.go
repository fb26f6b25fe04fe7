package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/corpusrank/internal/embed"
	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/lexical"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Config holds the ranking knobs.
type Config struct {
	Recency  RecencyConfig
	Quality  QualityConfig
	Coverage CoverageConfig

	// CandidateMultiplier sizes the candidate pool as n * multiplier.
	CandidateMultiplier int
	// TagOversample further multiplies the pool when a tag filter is set.
	TagOversample int
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() Config {
	return Config{
		Recency:             DefaultRecencyConfig(),
		Quality:             DefaultQualityConfig(),
		Coverage:            DefaultCoverageConfig(),
		CandidateMultiplier: 3,
		TagOversample:       4,
	}
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if err := c.Recency.Validate(); err != nil {
		return err
	}
	if err := c.Quality.Validate(); err != nil {
		return err
	}
	if err := c.Coverage.Validate(); err != nil {
		return err
	}
	if c.CandidateMultiplier < 1 {
		return cerrors.InvalidArgument("candidate multiplier must be >= 1, got %d", c.CandidateMultiplier)
	}
	if c.TagOversample < 1 {
		return cerrors.InvalidArgument("tag oversample must be >= 1, got %d", c.TagOversample)
	}
	return nil
}

// Engine ranks chunks held in a vector store.
//
// The lexical index is a per-process snapshot of the store, built on first
// use and rebuilt when the store's record count changes, when the index
// stamp moves, or when Refresh is called.
type Engine struct {
	vector   store.VectorStore
	embedder embed.Embedder
	lexical  lexical.Index
	config   Config
	now      func() time.Time
	stamp    IndexStamp

	mu        sync.Mutex
	built     bool
	snapCount int
	snapStamp time.Time
	snapshot  map[string]store.Record
}

// IndexStamp reports a value that changes whenever an indexing pass writes a
// document, such as the catalog's latest indexed_at.
type IndexStamp func(ctx context.Context) (time.Time, error)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithConfig replaces the default ranking configuration.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithClock sets the time source used for recency scoring.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIndexStamp makes the snapshot follow stamp as well as the record count,
// so a same-size replacement is picked up without Refresh.
func WithIndexStamp(stamp IndexStamp) EngineOption {
	return func(e *Engine) {
		e.stamp = stamp
	}
}

// NewEngine creates a ranking engine.
func NewEngine(vector store.VectorStore, embedder embed.Embedder, lex lexical.Index, opts ...EngineOption) (*Engine, error) {
	if vector == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if lex == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}

	e := &Engine{
		vector:   vector,
		embedder: embedder,
		lexical:  lex,
		config:   DefaultConfig(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Refresh rebuilds the lexical snapshot from the vector store. Without an
// index stamp it is the only way to see a replacement that kept the record
// count unchanged.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	stamp, _ := e.currentStamp(ctx)
	return e.rebuildLocked(ctx, stamp)
}

// Close releases the lexical index. The store and embedder belong to the caller.
func (e *Engine) Close() error {
	return e.lexical.Close()
}

// ensureSnapshot returns the record snapshot backing the lexical index.
func (e *Engine) ensureSnapshot(ctx context.Context) (map[string]store.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// read the stamp before the records so a write racing the rebuild
	// leaves the snapshot behind and triggers another one
	stamp, stampOK := e.currentStamp(ctx)
	count, err := e.vector.Count(ctx)
	if err != nil {
		return nil, err
	}
	stale := !e.built || count != e.snapCount || (stampOK && !stamp.Equal(e.snapStamp))
	if stale {
		if err := e.rebuildLocked(ctx, stamp); err != nil {
			return nil, err
		}
	}
	return e.snapshot, nil
}

// currentStamp returns false when no stamp is configured or it failed.
// A failure leaves the count check in charge.
func (e *Engine) currentStamp(ctx context.Context) (time.Time, bool) {
	if e.stamp == nil {
		return time.Time{}, false
	}
	stamp, err := e.stamp(ctx)
	if err != nil {
		slog.Warn("index_stamp_failed", slog.String("error", err.Error()))
		return time.Time{}, false
	}
	return stamp, true
}

func (e *Engine) rebuildLocked(ctx context.Context, stamp time.Time) error {
	start := time.Now()
	records, err := e.vector.Get(ctx, nil, 0)
	if err != nil {
		return err
	}

	docs := make([]lexical.Doc, len(records))
	snapshot := make(map[string]store.Record, len(records))
	for i, r := range records {
		docs[i] = lexical.Doc{ID: r.ID, Content: r.Content}
		snapshot[r.ID] = r
	}
	if err := e.lexical.Build(ctx, docs); err != nil {
		return fmt.Errorf("build lexical index: %w", err)
	}

	e.snapshot = snapshot
	e.snapCount = len(records)
	e.snapStamp = stamp
	e.built = true

	slog.Debug("lexical snapshot rebuilt",
		slog.Int("chunks", len(records)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// semantic embeds query and returns up to n neighbors as results in
// similarity order.
func (e *Engine) semantic(ctx context.Context, query string, n int, where store.Where) ([]SearchResult, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		if _, ok := cerrors.As(err); ok {
			return nil, err
		}
		return nil, cerrors.EmbeddingFailed("embed query", err)
	}

	neighbors, err := e.vector.Query(ctx, vec, n, where)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(neighbors))
	for i, nb := range neighbors {
		results[i] = SearchResult{
			ChunkID:    nb.ID,
			Content:    nb.Content,
			Metadata:   nb.Metadata,
			Similarity: clamp01(nb.Similarity()),
		}
	}
	return results, nil
}

// annotate fills the recency and quality scores of r.
func (e *Engine) annotate(r *SearchResult, now time.Time) {
	r.Recency = e.config.Recency.Score(documentDate(r.Metadata), now)
	r.Quality = e.config.Quality.Score(r.Metadata[store.KeyQualityRating])
}

func validateQuery(query string, n int) error {
	if strings.TrimSpace(query) == "" {
		return cerrors.New(cerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if n <= 0 {
		return cerrors.InvalidArgument("n_results must be > 0, got %d", n)
	}
	return nil
}

func validWeight(name string, w float64) error {
	if w < 0 || w > 1 || w != w {
		return cerrors.InvalidArgument("%s must be in [0,1], got %v", name, w)
	}
	return nil
}
