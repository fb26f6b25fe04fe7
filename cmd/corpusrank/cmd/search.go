package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/corpusrank/internal/output"
	"github.com/Aman-CERP/corpusrank/internal/rank"
)

type searchFlags struct {
	limit         int
	recencyWeight float64
	qualityWeight float64
	quality       string
	format        string
	tags          []string
	jsonOut       bool
}

func newSearchCmd() *cobra.Command {
	var f searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the corpus with semantic, recency and quality ranking",
		Long: `Rank passages by semantic similarity blended with document recency and
source quality. Weights default to the ranking section of the config.

Examples:
  corpusrank search "retry backoff"
  corpusrank search "incident review" --recency-weight 0.5 -n 5
  corpusrank search "api design" --quality preferred --tag architecture`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], f)
		},
	}

	cmd.Flags().IntVarP(&f.limit, "limit", "n", 10, "Maximum results")
	cmd.Flags().Float64Var(&f.recencyWeight, "recency-weight", 0, "Recency weight in [0,1] (default from config)")
	cmd.Flags().Float64Var(&f.qualityWeight, "quality-weight", 0, "Quality weight in [0,1] (default from config)")
	cmd.Flags().StringVar(&f.quality, "quality", "", "Only documents with this quality rating")
	cmd.Flags().StringVar(&f.format, "format", "", "Only documents of this format (markdown, text, pdf)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Only documents carrying any of these tags")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, f searchFlags) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	dir, err := projectDir(nil)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, dir)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	q := rank.WeightedQuery{
		Query:         query,
		N:             f.limit,
		RecencyWeight: a.cfg.Ranking.RecencyWeight,
		QualityWeight: a.cfg.Ranking.QualityWeight,
		Quality:       f.quality,
		Format:        f.format,
		Tags:          f.tags,
	}
	if cmd.Flags().Changed("recency-weight") {
		q.RecencyWeight = f.recencyWeight
	}
	if cmd.Flags().Changed("quality-weight") {
		q.QualityWeight = f.qualityWeight
	}

	results, err := a.engine.SearchWithWeights(ctx, q)
	if err != nil {
		return err
	}
	if f.jsonOut {
		return out.JSON(nonNilResults(results))
	}
	out.Header(fmt.Sprintf("Results for %q", query))
	out.Results(results)
	return nil
}

type hybridFlags struct {
	limit          int
	semanticWeight float64
	bm25Weight     float64
	jsonOut        bool
}

func newHybridCmd() *cobra.Command {
	var f hybridFlags

	cmd := &cobra.Command{
		Use:   "hybrid <query>",
		Short: "Search with semantic similarity fused with BM25 keyword scores",
		Long: `Run semantic and BM25 retrieval in parallel and fuse the normalized scores.
Useful for exact terms such as identifiers, error codes and names.

Examples:
  corpusrank hybrid "ERR_404 handling"
  corpusrank hybrid "kubernetes operator" --bm25-weight 0.6 --semantic-weight 0.4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHybrid(cmd, args[0], f)
		},
	}

	cmd.Flags().IntVarP(&f.limit, "limit", "n", 10, "Maximum results")
	cmd.Flags().Float64Var(&f.semanticWeight, "semantic-weight", 0, "Semantic weight in [0,1] (default from config)")
	cmd.Flags().Float64Var(&f.bm25Weight, "bm25-weight", 0, "BM25 weight in [0,1] (default from config)")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Output results as JSON")

	return cmd
}

func runHybrid(cmd *cobra.Command, query string, f hybridFlags) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	dir, err := projectDir(nil)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, dir)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	q := rank.HybridQuery{
		Query:          query,
		N:              f.limit,
		SemanticWeight: a.cfg.Ranking.SemanticWeight,
		BM25Weight:     a.cfg.Ranking.BM25Weight,
	}
	if cmd.Flags().Changed("semantic-weight") {
		q.SemanticWeight = f.semanticWeight
	}
	if cmd.Flags().Changed("bm25-weight") {
		q.BM25Weight = f.bm25Weight
	}

	results, err := a.engine.HybridSearch(ctx, q)
	if err != nil {
		return err
	}
	if f.jsonOut {
		return out.JSON(nonNilResults(results))
	}
	out.Header(fmt.Sprintf("Hybrid results for %q", query))
	out.Results(results)
	return nil
}

// nonNilResults keeps empty JSON output as [] rather than null.
func nonNilResults(results []rank.SearchResult) []rank.SearchResult {
	if results == nil {
		return []rank.SearchResult{}
	}
	return results
}
