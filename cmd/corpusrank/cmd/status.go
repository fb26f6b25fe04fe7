package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/corpusrank/internal/mcp"
	"github.com/Aman-CERP/corpusrank/internal/output"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status [dir]",
		Short: "Show index statistics",
		Long: `Show document and chunk counts, the last index time, and the embedding
model the index was built with. Reads only the catalog; no embedder is started.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			dir, err := projectDir(args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(dir)
			if err != nil {
				return err
			}
			catalog, err := store.OpenCatalog(cfg.CatalogPath())
			if err != nil {
				return err
			}
			defer func() { _ = catalog.Close() }()

			stats, err := catalog.Stats(ctx)
			if err != nil {
				return err
			}
			model, err := catalog.GetState(ctx, store.StateEmbeddingModel)
			if err != nil {
				return err
			}
			if model == "" {
				model = "none"
			}

			if jsonOut {
				dims, _ := catalog.GetState(ctx, store.StateEmbeddingDimensions)
				n, _ := strconv.Atoi(dims)
				st := mcp.IndexStatusOutput{
					CorpusRoot: cfg.Paths.CorpusRoot,
					Documents:  stats.Documents,
					Chunks:     stats.Chunks,
					Model:      model,
					Dimensions: n,
					Backend:    cfg.Store.Backend,
				}
				if !stats.LastIndex.IsZero() {
					st.LastIndexed = stats.LastIndex.UTC().Format(time.RFC3339)
				}
				return out.JSON(st)
			}
			out.Stats(stats, model, cfg.Store.Backend)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")

	return cmd
}
