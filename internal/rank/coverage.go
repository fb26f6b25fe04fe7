package rank

import (
	"context"
	"math"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// Coverage notes.
const (
	NoteNone    = "no coverage"
	NoteThin    = "thin coverage"
	NotePartial = "partial coverage"
	NoteGood    = "good coverage"
)

// CoverageConfig holds the coverage scoring constants.
type CoverageConfig struct {
	// TopK is how many results are sampled per query.
	TopK int
	// BestWeight and AvgWeight blend best and mean similarity.
	BestWeight float64
	AvgWeight  float64
	// GoodMatch is the effective similarity that counts as 100%.
	GoodMatch float64
	// TargetCount is the result count that earns the full result factor.
	TargetCount int
}

// DefaultCoverageConfig returns k=10, 0.8/0.2 blending, 0.3 good match, 5 results.
func DefaultCoverageConfig() CoverageConfig {
	return CoverageConfig{
		TopK:        10,
		BestWeight:  0.8,
		AvgWeight:   0.2,
		GoodMatch:   0.3,
		TargetCount: 5,
	}
}

// Validate checks the coverage constants.
func (c CoverageConfig) Validate() error {
	if c.TopK <= 0 {
		return cerrors.InvalidArgument("coverage top_k must be > 0, got %d", c.TopK)
	}
	if c.BestWeight < 0 || c.AvgWeight < 0 || c.BestWeight+c.AvgWeight <= 0 {
		return cerrors.InvalidArgument("coverage weights must be >= 0 with a positive sum")
	}
	if c.GoodMatch <= 0 {
		return cerrors.InvalidArgument("coverage good_match must be > 0, got %v", c.GoodMatch)
	}
	if c.TargetCount <= 0 {
		return cerrors.InvalidArgument("coverage target_count must be > 0, got %d", c.TargetCount)
	}
	return nil
}

// Coverage samples the top-k semantic matches for query and scores them:
//
//	effective = best_w*best + avg_w*avg
//	pct = min(count/target, 1) * min(effective/good_match, 1) * 100
//
// SourceCount counts distinct documents, not chunks.
func (e *Engine) Coverage(ctx context.Context, query string) (Coverage, error) {
	cfg := e.config.Coverage
	if err := validateQuery(query, cfg.TopK); err != nil {
		return Coverage{}, err
	}

	results, err := e.semantic(ctx, query, cfg.TopK, nil)
	if err != nil {
		return Coverage{}, err
	}
	cov := assessCoverage(results, cfg)
	cov.Query = query
	return cov, nil
}

func assessCoverage(results []SearchResult, cfg CoverageConfig) Coverage {
	if len(results) == 0 {
		return Coverage{Note: NoteNone}
	}

	var best, sum float64
	seen := make(map[string]struct{})
	var sources []string
	for _, r := range results {
		best = math.Max(best, r.Similarity)
		sum += r.Similarity

		id := r.DocumentID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if src := r.Source(); src != "" {
			sources = append(sources, src)
		}
	}
	avg := sum / float64(len(results))

	effective := cfg.BestWeight*best + cfg.AvgWeight*avg
	normalized := math.Min(effective/cfg.GoodMatch, 1)
	resultFactor := math.Min(float64(len(results))/float64(cfg.TargetCount), 1)
	pct := clamp01(resultFactor*normalized) * 100

	return Coverage{
		Pct:            pct,
		SourceCount:    len(seen),
		ResultCount:    len(results),
		BestSimilarity: best,
		AvgSimilarity:  avg,
		Note:           coverageNote(pct),
		Sources:        sources,
	}
}

func coverageNote(pct float64) string {
	switch {
	case pct < 25:
		return NoteThin
	case pct < 75:
		return NotePartial
	default:
		return NoteGood
	}
}
