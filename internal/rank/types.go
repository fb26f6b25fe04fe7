// Package rank blends semantic similarity, BM25, recency and source quality
// into ranked passage lists, and scores how well the corpus covers a topic.
package rank

import (
	"context"

	"github.com/Aman-CERP/corpusrank/internal/store"
)

// SearchResult is one ranked chunk. Scores are only comparable between
// results of the same query and weight configuration.
type SearchResult struct {
	ChunkID  string            `json:"chunk_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`

	// Similarity is 1 - cosine distance, in [0,1].
	Similarity float64 `json:"similarity_score"`
	// Lexical is the raw BM25 score. Nil outside the hybrid path.
	Lexical *float64 `json:"lexical_score,omitempty"`
	// LexicalNormalized is Lexical min-max scaled over the candidate set.
	LexicalNormalized float64 `json:"lexical_normalized,omitempty"`
	Recency           float64 `json:"recency_score"`
	Quality           float64 `json:"quality_score"`
	Combined          float64 `json:"combined_score"`
}

// DocumentID returns the owning document of the chunk.
func (r SearchResult) DocumentID() string { return r.Metadata[store.KeyDocumentID] }

// Source returns the source path recorded at index time.
func (r SearchResult) Source() string { return r.Metadata[store.KeySource] }

// WeightedQuery parameterizes SearchWithWeights.
type WeightedQuery struct {
	Query string
	N     int

	RecencyWeight float64
	QualityWeight float64

	// Hard filters. Empty means no filter.
	Quality string
	Format  string
	Tags    []string
}

// HybridQuery parameterizes HybridSearch.
type HybridQuery struct {
	Query          string
	N              int
	SemanticWeight float64
	BM25Weight     float64
}

// Coverage is the topic-coverage assessment of one query.
type Coverage struct {
	Query          string   `json:"query"`
	Pct            float64  `json:"coverage_pct"`
	SourceCount    int      `json:"source_count"`
	ResultCount    int      `json:"result_count"`
	BestSimilarity float64  `json:"best_similarity"`
	AvgSimilarity  float64  `json:"avg_similarity"`
	Note           string   `json:"note"`
	Sources        []string `json:"sources,omitempty"`
}

// Searcher is the read surface of the engine used by outer layers.
type Searcher interface {
	SearchWithWeights(ctx context.Context, q WeightedQuery) ([]SearchResult, error)
	HybridSearch(ctx context.Context, q HybridQuery) ([]SearchResult, error)
	Coverage(ctx context.Context, query string) (Coverage, error)
}

var _ Searcher = (*Engine)(nil)
