package lexical

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiveDocs() []Doc {
	return []Doc{
		{ID: "d1", Content: "Quarterly planning notes about the roadmap and hiring."},
		{ID: "d2", Content: "Roadmap review with the product team and design partners."},
		{ID: "d3", Content: "Notes on vector databases and the zettelkasten method."},
		{ID: "d4", Content: "Hiring plan for the platform team in the next quarter."},
		{ID: "d5", Content: "Design partners feedback about onboarding and pricing."},
	}
}

func buildMemory(t *testing.T, docs []Doc) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex(DefaultConfig())
	require.NoError(t, idx.Build(context.Background(), docs))
	return idx
}

func TestMemoryIndex_Search_RareTermRanksOwnerFirst(t *testing.T) {
	// Given: five documents, only d3 mentions "zettelkasten"
	idx := buildMemory(t, fiveDocs())

	// When: searching for the rare term
	hits, err := idx.Search(context.Background(), "zettelkasten", 5)

	// Then: d3 is first and the other four are absent
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d3", hits[0].ID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestMemoryIndex_Search_RareTermOutranksCommonTerm(t *testing.T) {
	idx := buildMemory(t, fiveDocs())

	hits, err := idx.Search(context.Background(), "notes zettelkasten", 5)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "d3", hits[0].ID)
	assert.Equal(t, "d1", hits[1].ID)
}

func TestMemoryIndex_Search_TiesKeepBuildOrder(t *testing.T) {
	// Given: identical documents
	docs := []Doc{
		{ID: "z", Content: "alpha beta"},
		{ID: "a", Content: "alpha beta"},
		{ID: "m", Content: "alpha beta"},
		{ID: "x", Content: "gamma"},
	}
	idx := buildMemory(t, docs)

	hits, err := idx.Search(context.Background(), "alpha", 10)

	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"z", "a", "m"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
	assert.Equal(t, hits[0].Score, hits[2].Score)
}

func TestMemoryIndex_Search_EmptyCorpusAndNoMatch(t *testing.T) {
	empty := NewMemoryIndex(DefaultConfig())
	hits, err := empty.Search(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	idx := buildMemory(t, fiveDocs())
	hits, err = idx.Search(context.Background(), "nonexistentterm", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(context.Background(), "the and of", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "stop words alone match nothing")
}

func TestMemoryIndex_Search_TruncatesToN(t *testing.T) {
	docs := make([]Doc, 0, 20)
	for i := range 20 {
		docs = append(docs, Doc{ID: fmt.Sprintf("d%02d", i), Content: "shared term"})
	}
	idx := buildMemory(t, docs)

	hits, err := idx.Search(context.Background(), "shared", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 5)

	all, err := idx.Search(context.Background(), "shared", 0)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestMemoryIndex_Search_DescendingScores(t *testing.T) {
	idx := buildMemory(t, fiveDocs())

	hits, err := idx.Search(context.Background(), "roadmap hiring team design partners", 10)

	require.NoError(t, err)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestMemoryIndex_Search_RepeatedQueryTermCountsOnce(t *testing.T) {
	idx := buildMemory(t, fiveDocs())

	once, err := idx.Search(context.Background(), "roadmap", 10)
	require.NoError(t, err)
	twice, err := idx.Search(context.Background(), "roadmap roadmap", 10)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestMemoryIndex_Build_ReplacesContents(t *testing.T) {
	idx := buildMemory(t, fiveDocs())
	require.NoError(t, idx.Build(context.Background(), []Doc{{ID: "only", Content: "fresh corpus"}}))

	assert.Equal(t, 1, idx.Len())
	hits, err := idx.Search(context.Background(), "roadmap", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndex_Build_DuplicateIDFirstWins(t *testing.T) {
	idx := buildMemory(t, []Doc{
		{ID: "same", Content: "first version"},
		{ID: "same", Content: "second version"},
	})

	assert.Equal(t, 1, idx.Len())
	hits, err := idx.Search(context.Background(), "second", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer(DefaultConfig())

	assert.Equal(t, []string{"über", "café", "2024", "rag_pipeline"},
		tok.Tokenize("The Über café in 2024: a RAG_pipeline!"))
}

func TestNew_Backends(t *testing.T) {
	idx, err := New("", DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &MemoryIndex{}, idx)

	idx, err = New("bleve", DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &BleveIndex{}, idx)
	require.NoError(t, idx.Close())

	_, err = New("elastic", DefaultConfig())
	assert.Error(t, err)
}
