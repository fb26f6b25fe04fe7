package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/corpusrank/internal/outline"
	"github.com/Aman-CERP/corpusrank/internal/output"
)

func newCoverageCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "coverage <query>",
		Short: "Estimate how well the corpus covers a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			cov, err := a.engine.Coverage(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return out.JSON(cov)
			}
			out.Coverage(cov)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output coverage as JSON")

	return cmd
}

func newOutlineCmd() *cobra.Command {
	var (
		thin    float64
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "outline <file>",
		Short: "Assess corpus coverage for every section of a YAML outline",
		Long: `Read a YAML outline of sections (title, keywords, children) and assess
coverage for each section. Sections below --thin percent are flagged.

Example outline:
  title: Observability
  children:
    - title: Tracing
      keywords: [spans, context propagation]
    - title: Metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.New(cmd.OutOrStdout())

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read outline: %w", err)
			}
			root, err := outline.Parse(data)
			if err != nil {
				return err
			}

			dir, err := projectDir(nil)
			if err != nil {
				return err
			}
			a, err := openApp(ctx, dir)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			assessment, err := outline.Assess(ctx, a.engine, root)
			if err != nil {
				return err
			}
			if jsonOut {
				return out.JSON(assessment)
			}
			out.Assessment(assessment, thin)
			return nil
		},
	}

	cmd.Flags().Float64Var(&thin, "thin", 50, "Flag sections with coverage below this percent")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the assessment as JSON")

	return cmd
}
