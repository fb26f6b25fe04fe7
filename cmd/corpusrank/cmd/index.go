package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/corpusrank/internal/index"
	"github.com/Aman-CERP/corpusrank/internal/output"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Index the corpus, reprocessing only changed documents",
		Long: `Walk the corpus root and index every supported document.

Documents whose checksum is unchanged are skipped, and documents that no
longer exist on disk are removed. Use --force to rebuild from scratch, which
is required after switching embedding models.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Clear the index and rebuild every document")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string, force bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, dir)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out.Statusf("📂", "Indexing %s", a.cfg.Paths.CorpusRoot)
	stats, err := a.runner.Run(ctx, index.RunOptions{Force: force})
	if err != nil {
		return err
	}
	out.RunStats(stats)
	return nil
}
