package outline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/rank"
)

const bookOutline = `
title: Observability
keywords: [metrics, logs]
sections:
  - title: Tracing
    keywords: [spans]
    sections:
      - title: Sampling
  - title: Alerting
`

// fakeCoverer returns a fixed percentage per query and records queries.
type fakeCoverer struct {
	mu      sync.Mutex
	pct     map[string]float64
	queries []string
	err     error
}

func (f *fakeCoverer) Coverage(_ context.Context, query string) (rank.Coverage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return rank.Coverage{}, f.err
	}
	return rank.Coverage{Query: query, Pct: f.pct[query]}, nil
}

func TestParse_MappingRoot(t *testing.T) {
	root, err := Parse([]byte(bookOutline))

	require.NoError(t, err)
	assert.Equal(t, "Observability", root.Title)
	assert.Equal(t, []string{"metrics", "logs"}, root.Keywords)
	require.Len(t, root.Subsections, 2)
	assert.Equal(t, "Sampling", root.Subsections[0].Subsections[0].Title)
}

func TestParse_SequenceRootIsContainer(t *testing.T) {
	root, err := Parse([]byte("- title: One\n- title: Two\n  keywords: [x]\n"))

	require.NoError(t, err)
	assert.Empty(t, root.Title)

	flat := Flatten(root)
	require.Len(t, flat, 2)
	assert.Equal(t, "One", flat[0].Path)
	assert.Equal(t, 0, flat[1].Depth)
}

func TestParse_RejectsInvalidOutlines(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"scalar":         "just text",
		"untitled child": "title: Root\nsections:\n  - keywords: [x]\n",
		"bad yaml":       "title: [unclosed",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.ErrorIs(t, err, cerrors.ErrInvalidArgument)
		})
	}
}

func TestFlatten_PreOrderWithPaths(t *testing.T) {
	root, err := Parse([]byte(bookOutline))
	require.NoError(t, err)

	flat := Flatten(root)

	var paths []string
	var depths []int
	for _, fs := range flat {
		paths = append(paths, fs.Path)
		depths = append(depths, fs.Depth)
	}
	assert.Equal(t, []string{
		"Observability",
		"Observability > Tracing",
		"Observability > Tracing > Sampling",
		"Observability > Alerting",
	}, paths)
	assert.Equal(t, []int{0, 1, 2, 1}, depths)
}

func TestSection_Query_JoinsTitleAndKeywords(t *testing.T) {
	assert.Equal(t, "Tracing spans otel", Section{Title: "Tracing", Keywords: []string{"spans", " ", "otel"}}.Query())
	assert.Equal(t, "Alerting", Section{Title: "Alerting"}.Query())
}

func TestAssess_ReturnsFlattenOrderAndThin(t *testing.T) {
	// Given: an outline and scripted coverage
	root, err := Parse([]byte(bookOutline))
	require.NoError(t, err)
	cov := &fakeCoverer{pct: map[string]float64{
		"Observability metrics logs": 90,
		"Tracing spans":              40,
		"Sampling":                   10,
		"Alerting":                   75,
	}}

	// When
	assessment, err := Assess(context.Background(), cov, root)

	// Then: order follows Flatten, regardless of query completion order
	require.NoError(t, err)
	require.Len(t, assessment, 4)
	assert.Equal(t, "Observability > Tracing > Sampling", assessment[2].Path)
	assert.Equal(t, 10.0, assessment[2].Coverage.Pct)
	assert.ElementsMatch(t, []string{"Observability metrics logs", "Tracing spans", "Sampling", "Alerting"}, cov.queries)

	thin := assessment.Thin(50)
	require.Len(t, thin, 2)
	assert.Equal(t, "Observability > Tracing", thin[0].Path)
	assert.Equal(t, "Observability > Tracing > Sampling", thin[1].Path)
	assert.InDelta(t, 53.75, assessment.Mean(), 1e-9)
}

func TestAssess_PropagatesCoverageErrors(t *testing.T) {
	root := Section{Title: "Root"}
	cov := &fakeCoverer{err: errors.New("store down")}

	_, err := Assess(context.Background(), cov, root)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `assess "Root"`)
}

func TestMarshal_RoundTripsThroughParse(t *testing.T) {
	root, err := Parse([]byte(bookOutline))
	require.NoError(t, err)

	data, err := Marshal(root)
	require.NoError(t, err)
	again, err := Parse(data)

	require.NoError(t, err)
	assert.Equal(t, root, again)
}

func TestAssessment_Mean_Empty(t *testing.T) {
	assert.Zero(t, Assessment(nil).Mean())
}
