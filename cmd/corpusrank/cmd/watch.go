package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/corpusrank/internal/index"
	"github.com/Aman-CERP/corpusrank/internal/output"
	"github.com/Aman-CERP/corpusrank/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var polling bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Index the corpus and keep it updated as files change",
		Long: `Run an incremental index pass, then watch the corpus root and apply
changes in debounced batches until interrupted. Falls back to polling when
native file notifications are unavailable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			dir, err := projectDir(args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, dir)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out.Statusf("📂", "Indexing %s", a.cfg.Paths.CorpusRoot)
			stats, err := a.runner.Run(ctx, index.RunOptions{})
			if err != nil {
				return err
			}
			out.RunStats(stats)

			out.Status("👀", "Watching for changes (Ctrl+C to stop)")
			if err := a.watch(ctx, polling, out.RunStats); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&polling, "poll", false, "Use polling instead of native file notifications")

	return cmd
}

// watch runs a watcher over the corpus root and applies its batches until
// ctx ends. onBatch, when set, receives the stats of every applied batch.
func (a *app) watch(ctx context.Context, polling bool, onBatch func(index.RunStats)) error {
	var opts []watcher.SyncOption
	if onBatch != nil {
		opts = append(opts, watcher.WithBatchHook(onBatch))
	}
	sync, err := watcher.NewSync(a.runner, a.engine, a.loader, opts...)
	if err != nil {
		return err
	}

	wopts := watcher.DefaultOptions()
	wopts.DebounceWindow = a.cfg.Indexing.WatchDebounce
	wopts.ForcePolling = polling
	wopts.Ignore = a.ignoreFunc(sync.IgnoreFunc())
	w := watcher.New(wopts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Start(gctx, a.cfg.Paths.CorpusRoot)
	})
	g.Go(func() error {
		defer func() { _ = w.Stop() }()
		return sync.Run(gctx, w)
	})
	return g.Wait()
}

// ignoreFunc extends base to skip the data directory when it lives under
// the corpus root.
func (a *app) ignoreFunc(base watcher.IgnoreFunc) watcher.IgnoreFunc {
	dataRel, err := filepath.Rel(a.cfg.Paths.CorpusRoot, a.cfg.Paths.DataDir)
	inside := err == nil && dataRel != "." && !strings.HasPrefix(dataRel, "..")
	dataRel = filepath.ToSlash(dataRel)
	return func(rel string, isDir bool) bool {
		if inside && (rel == dataRel || strings.HasPrefix(rel, dataRel+"/")) {
			return true
		}
		return base(rel, isDir)
	}
}
