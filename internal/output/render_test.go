package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/corpusrank/internal/index"
	"github.com/Aman-CERP/corpusrank/internal/outline"
	"github.com/Aman-CERP/corpusrank/internal/rank"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

func TestWriter_Results_PrintsRankedLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)
	bm25 := 4.2

	w.Results([]rank.SearchResult{
		{
			ChunkID: "c1",
			Content: "Tracing   spans\nacross services",
			Metadata: map[string]string{
				store.KeySource:         "notes/tracing.md",
				store.KeySectionHeading: "Spans",
				store.KeyQualityRating:  "preferred",
			},
			Similarity: 0.81, Recency: 0.9, Quality: 1, Combined: 0.876,
			Lexical: &bm25, LexicalNormalized: 1,
		},
	})

	out := buf.String()
	assert.Contains(t, out, " 1. notes/tracing.md § Spans  0.876")
	assert.Contains(t, out, "Tracing spans across services")
	assert.Contains(t, out, "sim 0.810")
	assert.Contains(t, out, "bm25 4.20 (1.00)")
	assert.Contains(t, out, "preferred")
}

func TestWriter_Results_Empty(t *testing.T) {
	buf := &bytes.Buffer{}

	NewWithColor(buf, false).Results(nil)

	assert.Contains(t, buf.String(), "No results")
}

func TestWriter_Coverage(t *testing.T) {
	buf := &bytes.Buffer{}

	NewWithColor(buf, false).Coverage(rank.Coverage{
		Query: "tracing", Pct: 20, SourceCount: 1, ResultCount: 1,
		BestSimilarity: 0.5, AvgSimilarity: 0.5, Note: rank.NoteThin, Sources: []string{"a.md"},
	})

	out := buf.String()
	assert.Contains(t, out, `Coverage for "tracing"`)
	assert.Contains(t, out, " 20.0%  thin coverage")
	assert.Contains(t, out, "1 results from 1 sources")
	assert.Contains(t, out, "- a.md")
}

func TestWriter_Assessment_IndentsAndFlagsThin(t *testing.T) {
	buf := &bytes.Buffer{}
	a := outline.Assessment{
		{Path: "Root", Depth: 0, Section: outline.Section{Title: "Root"}, Coverage: rank.Coverage{Pct: 90, Note: rank.NoteGood}},
		{Path: "Root > Child", Depth: 1, Section: outline.Section{Title: "Child"}, Coverage: rank.Coverage{Pct: 10, Note: rank.NoteThin}},
	}

	NewWithColor(buf, false).Assessment(a, 50)

	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "["))
	assert.NotContains(t, lines[0], "←")
	assert.True(t, strings.HasPrefix(lines[1], "  ["))
	assert.Contains(t, lines[1], "← thin coverage")
	assert.Contains(t, buf.String(), "mean coverage 50.0%, 1 of 2 sections below 50%")
}

func TestWriter_RunStats(t *testing.T) {
	buf := &bytes.Buffer{}

	NewWithColor(buf, false).RunStats(index.RunStats{Scanned: 5, Indexed: 2, Skipped: 2, Failed: 1, Chunks: 9, Duration: 1500 * time.Millisecond})

	out := buf.String()
	assert.Contains(t, out, "Indexed 2 documents (9 chunks) in 1.5s")
	assert.Contains(t, out, "scanned 5, unchanged 2, removed 0")
	assert.Contains(t, out, "1 documents failed")
}

func TestWriter_Stats_NeverIndexed(t *testing.T) {
	buf := &bytes.Buffer{}

	NewWithColor(buf, false).Stats(store.CatalogStats{}, "static-256", "chromem")

	assert.Contains(t, buf.String(), "never")
	assert.Contains(t, buf.String(), "static-256")
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewWithColor(buf, false).JSON(rank.Coverage{Query: "q", Note: rank.NoteNone}))

	assert.Contains(t, buf.String(), `"coverage_pct": 0`)
	assert.Contains(t, buf.String(), `"note": "no coverage"`)
}

func TestSnippet_TruncatesByRunes(t *testing.T) {
	assert.Equal(t, "héllo…", Snippet("héllo wörld", 5))
	assert.Equal(t, "a b", Snippet(" a \n b ", 10))
}
