package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/corpusrank/internal/index"
	"github.com/Aman-CERP/corpusrank/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve search and coverage tools over MCP",
		Long: `Start an MCP server exposing search_corpus, hybrid_search, assess_coverage
and index_status. stdout carries the protocol, so logs go only to the log
file.

With --watch the index is kept current while the server runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			srv, err := mcp.NewServer(a.engine, a.catalog, a.embedder, a.cfg)
			if err != nil {
				return err
			}
			if transport == "" {
				transport = a.cfg.Server.Transport
			}

			// The watcher stops when the client disconnects.
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer cancel()
				return srv.Serve(gctx, transport)
			})
			if watch {
				g.Go(func() error {
					if _, err := a.runner.Run(gctx, index.RunOptions{}); err != nil {
						return err
					}
					if err := a.engine.Refresh(gctx); err != nil {
						slog.Warn("refresh after initial index failed", slog.String("error", err.Error()))
					}
					return a.watch(gctx, false, nil)
				})
			}
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport (stdio); default from config")
	cmd.Flags().BoolVar(&watch, "watch", false, "Index on start and keep the index updated")

	return cmd
}
