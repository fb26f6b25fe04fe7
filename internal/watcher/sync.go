package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/index"
)

// Target applies changes to the index. Satisfied by *index.Runner.
type Target interface {
	Run(ctx context.Context, opts index.RunOptions) (index.RunStats, error)
	IndexPaths(ctx context.Context, paths []string) (index.RunStats, error)
	RemovePaths(ctx context.Context, paths []string) (int, error)
}

// Refresher reloads search state after the index changed. Satisfied by
// *rank.Engine.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Filter decides which paths are corpus documents. Satisfied by
// *corpus.Loader.
type Filter interface {
	Supports(path string) bool
	Excludes(path string) bool
}

// Sync turns watcher batches into index updates.
type Sync struct {
	target    Target
	refresher Refresher
	filter    Filter
	onBatch   func(index.RunStats)
}

// SyncOption configures a Sync.
type SyncOption func(*Sync)

// WithBatchHook is called with the stats of every applied batch.
func WithBatchHook(fn func(index.RunStats)) SyncOption {
	return func(s *Sync) { s.onBatch = fn }
}

// NewSync creates a Sync. refresher may be nil.
func NewSync(target Target, refresher Refresher, filter Filter, opts ...SyncOption) (*Sync, error) {
	if target == nil {
		return nil, fmt.Errorf("index target is required")
	}
	if filter == nil {
		return nil, fmt.Errorf("path filter is required")
	}
	s := &Sync{target: target, refresher: refresher, filter: filter}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IgnoreFunc returns a watcher filter that drops excluded paths.
func (s *Sync) IgnoreFunc() IgnoreFunc {
	return func(rel string, _ bool) bool { return s.filter.Excludes(rel) }
}

// Apply updates the index for one batch. Directory events, and deletes of
// paths that may have been directories, trigger a full reconciliation pass
// since their contents were never reported individually.
func (s *Sync) Apply(ctx context.Context, batch []FileEvent) (index.RunStats, error) {
	var (
		toIndex, toRemove []string
		reconcile         bool
	)
	for _, ev := range batch {
		if s.filter.Excludes(ev.Path) {
			continue
		}
		if ev.IsDir {
			reconcile = true
			continue
		}
		if !s.filter.Supports(ev.Path) {
			if ev.Operation == OpDelete && filepath.Ext(ev.Path) == "" {
				reconcile = true
			}
			continue
		}
		if ev.Operation == OpDelete {
			toRemove = append(toRemove, ev.Path)
		} else {
			toIndex = append(toIndex, ev.Path)
		}
	}

	var (
		stats index.RunStats
		err   error
	)
	if reconcile {
		stats, err = s.target.Run(ctx, index.RunOptions{})
	} else {
		if stats.Removed, err = s.OnDelete(ctx, toRemove); err != nil {
			return stats, err
		}
		var changed index.RunStats
		changed, err = s.OnChange(ctx, toIndex)
		changed.Removed = stats.Removed
		stats = changed
	}
	if err != nil {
		return stats, err
	}

	if s.refresher != nil && (reconcile || stats.Indexed > 0 || stats.Removed > 0) {
		if err := s.refresher.Refresh(ctx); err != nil {
			return stats, err
		}
	}
	if s.onBatch != nil && (reconcile || len(toIndex)+len(toRemove) > 0) {
		s.onBatch(stats)
	}
	return stats, nil
}

// OnChange reindexes changed corpus files.
func (s *Sync) OnChange(ctx context.Context, paths []string) (index.RunStats, error) {
	if len(paths) == 0 {
		return index.RunStats{}, nil
	}
	return s.target.IndexPaths(ctx, paths)
}

// OnDelete removes the documents of deleted corpus files.
func (s *Sync) OnDelete(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	return s.target.RemovePaths(ctx, paths)
}

// Run applies batches from w until ctx ends or w stops. A locked index or
// a single failed batch is logged and skipped; fatal errors end the loop.
func (s *Sync) Run(ctx context.Context, w Watcher) error {
	events, errs := w.Events(), w.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := s.Apply(ctx, batch); err != nil {
				if errors.Is(err, context.Canceled) || cerrors.IsFatal(err) {
					return err
				}
				slog.Warn("watch batch failed",
					slog.Int("events", len(batch)),
					slog.String("code", cerrors.GetCode(err)),
					slog.String("error", err.Error()))
			}
		case err, ok := <-errs:
			if !ok {
				// a nil channel never fires, so a closed error stream stops being polled
				errs = nil
				continue
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}
