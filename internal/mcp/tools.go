package mcp

// SearchCorpusInput defines the input schema for the search_corpus tool.
// Nil weights fall back to the configured defaults.
type SearchCorpusInput struct {
	Query         string   `json:"query" jsonschema:"the search query to execute"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	RecencyWeight *float64 `json:"recency_weight,omitempty" jsonschema:"weight of document recency between 0 and 1"`
	QualityWeight *float64 `json:"quality_weight,omitempty" jsonschema:"weight of the quality rating between 0 and 1"`
	Quality       string   `json:"quality,omitempty" jsonschema:"only return documents with this rating: preferred, standard, stable, deprecated, draft or experimental"`
	Format        string   `json:"format,omitempty" jsonschema:"only return documents of this format, e.g. md or pdf"`
	Tags          []string `json:"tags,omitempty" jsonschema:"only return documents carrying at least one of these tags"`
}

// HybridSearchInput defines the input schema for the hybrid_search tool.
type HybridSearchInput struct {
	Query          string   `json:"query" jsonschema:"the search query to execute"`
	Limit          int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty" jsonschema:"weight of vector similarity between 0 and 1"`
	BM25Weight     *float64 `json:"bm25_weight,omitempty" jsonschema:"weight of normalized BM25 keyword score between 0 and 1"`
}

// AssessCoverageInput defines the input schema for the assess_coverage tool.
type AssessCoverageInput struct {
	Query string `json:"query" jsonschema:"the topic to assess"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// SearchOutput defines the output schema for both search tools.
type SearchOutput struct {
	Results []ResultOutput `json:"results" jsonschema:"ranked results, best first"`
	Count   int            `json:"count"`
}

// ResultOutput is a single ranked chunk with its score breakdown.
type ResultOutput struct {
	ChunkID     string   `json:"chunk_id"`
	Source      string   `json:"source" jsonschema:"source path relative to the corpus root"`
	Heading     string   `json:"heading,omitempty" jsonschema:"nearest markdown heading"`
	Content     string   `json:"content"`
	Quality     string   `json:"quality,omitempty"`
	Similarity  float64  `json:"similarity_score"`
	Recency     float64  `json:"recency_score,omitempty"`
	QualityRank float64  `json:"quality_score,omitempty"`
	Lexical     *float64 `json:"lexical_score,omitempty"`
	Combined    float64  `json:"combined_score"`
}

// CoverageOutput defines the output schema for the assess_coverage tool.
type CoverageOutput struct {
	Query          string   `json:"query"`
	CoveragePct    float64  `json:"coverage_pct" jsonschema:"estimated coverage between 0 and 100"`
	SourceCount    int      `json:"source_count"`
	ResultCount    int      `json:"result_count"`
	BestSimilarity float64  `json:"best_similarity"`
	AvgSimilarity  float64  `json:"avg_similarity"`
	Note           string   `json:"note"`
	TopSources     []string `json:"top_sources,omitempty"`
}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	CorpusRoot  string `json:"corpus_root"`
	Documents   int    `json:"documents"`
	Chunks      int    `json:"chunks"`
	LastIndexed string `json:"last_indexed,omitempty"`
	Model       string `json:"model"`
	Dimensions  int    `json:"dimensions"`
	Backend     string `json:"backend"`
}
