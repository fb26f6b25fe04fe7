package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/corpusrank/internal/index"
	"github.com/Aman-CERP/corpusrank/internal/outline"
	"github.com/Aman-CERP/corpusrank/internal/rank"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// SnippetLength is the rune limit for result previews.
const SnippetLength = 200

// Results prints ranked search results.
func (w *Writer) Results(results []rank.SearchResult) {
	if len(results) == 0 {
		w.Warning("No results")
		return
	}
	for i, r := range results {
		heading := ""
		if h := r.Metadata[store.KeySectionHeading]; h != "" {
			heading = " " + w.styles.Label.Render("§ "+h)
		}
		_, _ = fmt.Fprintf(w.out, "%2d. %s%s  %s\n", i+1, r.Source(), heading,
			w.styles.Score.Render(fmt.Sprintf("%.3f", r.Combined)))
		_, _ = fmt.Fprintf(w.out, "    %s\n", Snippet(r.Content, SnippetLength))

		parts := []string{
			fmt.Sprintf("sim %.3f", r.Similarity),
			fmt.Sprintf("recency %.2f", r.Recency),
			fmt.Sprintf("quality %.2f", r.Quality),
		}
		if r.Lexical != nil {
			parts = append(parts, fmt.Sprintf("bm25 %.2f (%.2f)", *r.Lexical, r.LexicalNormalized))
		}
		if q := r.Metadata[store.KeyQualityRating]; q != "" {
			parts = append(parts, q)
		}
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Dim.Render(strings.Join(parts, " · ")))
	}
}

// Coverage prints a single coverage assessment.
func (w *Writer) Coverage(c rank.Coverage) {
	w.Header(fmt.Sprintf("Coverage for %q", c.Query))
	_, _ = fmt.Fprintf(w.out, "[%s] %5.1f%%  %s\n",
		w.styles.Progress.Render(renderProgressBar(int(c.Pct), 100, 30)), c.Pct, c.Note)
	_, _ = fmt.Fprintf(w.out, "%s %d results from %d sources (best %.3f, avg %.3f)\n",
		w.styles.Label.Render("sampled:"), c.ResultCount, c.SourceCount, c.BestSimilarity, c.AvgSimilarity)
	for _, src := range c.Sources {
		_, _ = fmt.Fprintf(w.out, "   - %s\n", src)
	}
}

// Assessment prints outline coverage as an indented tree. Sections below
// thin percent are flagged.
func (w *Writer) Assessment(a outline.Assessment, thin float64) {
	for _, sc := range a {
		indent := strings.Repeat("  ", sc.Depth)
		bar := w.styles.Progress.Render(renderProgressBar(int(sc.Coverage.Pct), 100, 20))
		line := fmt.Sprintf("%s[%s] %5.1f%%  %s (%d sources)", indent, bar, sc.Coverage.Pct, sc.Section.Title, sc.Coverage.SourceCount)
		if sc.Coverage.Pct < thin {
			line += " " + w.styles.Warning.Render("← "+sc.Coverage.Note)
		}
		_, _ = fmt.Fprintln(w.out, line)
	}
	w.Newline()
	thinCount := len(a.Thin(thin))
	w.Statusf("", "mean coverage %.1f%%, %d of %d sections below %.0f%%", a.Mean(), thinCount, len(a), thin)
}

// RunStats prints the summary of an indexing pass.
func (w *Writer) RunStats(s index.RunStats) {
	w.Successf("Indexed %d documents (%d chunks) in %s", s.Indexed, s.Chunks, s.Duration.Round(time.Millisecond))
	w.Statusf("", "scanned %d, unchanged %d, removed %d", s.Scanned, s.Skipped, s.Removed)
	if s.Failed > 0 {
		w.Warningf("%d documents failed; see the log for details", s.Failed)
	}
}

// Stats prints catalog statistics with the active embedder and backend.
func (w *Writer) Stats(s store.CatalogStats, model, backend string) {
	w.Header("Index status")
	last := "never"
	if !s.LastIndex.IsZero() {
		last = s.LastIndex.Local().Format(time.DateTime)
	}
	rows := [][2]string{
		{"documents", fmt.Sprint(s.Documents)},
		{"chunks", fmt.Sprint(s.Chunks)},
		{"last indexed", last},
		{"embedder", model},
		{"backend", backend},
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.styles.Label.Render(fmt.Sprintf("%-13s", row[0])), row[1])
	}
}

// Snippet collapses whitespace and truncates s to max runes.
func Snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
