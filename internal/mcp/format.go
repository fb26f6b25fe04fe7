package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/corpusrank/internal/rank"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// maxTopSources bounds the sources listed in a coverage answer.
const maxTopSources = 5

// FormatSearchResults renders ranked results as markdown.
func FormatSearchResults(query string, results []ResultOutput) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(results))
	if len(results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r ResultOutput) {
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n", num, r.Source, r.Combined)
	if r.Heading != "" {
		fmt.Fprintf(sb, "**Section:** %s\n", r.Heading)
	}
	if r.Quality != "" {
		fmt.Fprintf(sb, "**Quality:** %s\n", r.Quality)
	}
	sb.WriteString("\n")
	sb.WriteString(r.Content)
	sb.WriteString("\n\n---\n\n")
}

// FormatCoverage renders a coverage assessment as markdown.
func FormatCoverage(c CoverageOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Coverage for \"%s\"\n\n", c.Query)
	fmt.Fprintf(&sb, "**%.1f%%** (%s) from %d sources across %d results\n", c.CoveragePct, c.Note, c.SourceCount, c.ResultCount)
	if c.ResultCount > 0 {
		fmt.Fprintf(&sb, "Best similarity %.3f, average %.3f\n", c.BestSimilarity, c.AvgSimilarity)
	}
	if len(c.TopSources) > 0 {
		sb.WriteString("\nTop sources:\n")
		for _, src := range c.TopSources {
			fmt.Fprintf(&sb, "- %s\n", src)
		}
	}
	return sb.String()
}

// ToResultOutput converts a ranked result to its structured form.
func ToResultOutput(r rank.SearchResult) ResultOutput {
	return ResultOutput{
		ChunkID:     r.ChunkID,
		Source:      r.Source(),
		Heading:     r.Metadata[store.KeySectionHeading],
		Content:     r.Content,
		Quality:     r.Metadata[store.KeyQualityRating],
		Similarity:  r.Similarity,
		Recency:     r.Recency,
		QualityRank: r.Quality,
		Lexical:     r.Lexical,
		Combined:    r.Combined,
	}
}

// ToCoverageOutput converts a coverage assessment to its structured form.
func ToCoverageOutput(c rank.Coverage) CoverageOutput {
	top := c.Sources
	if len(top) > maxTopSources {
		top = top[:maxTopSources]
	}
	return CoverageOutput{
		Query:          c.Query,
		CoveragePct:    c.Pct,
		SourceCount:    c.SourceCount,
		ResultCount:    c.ResultCount,
		BestSimilarity: c.BestSimilarity,
		AvgSimilarity:  c.AvgSimilarity,
		Note:           c.Note,
		TopSources:     top,
	}
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit > max {
		return max
	}
	return limit
}
