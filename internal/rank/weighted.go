package rank

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/Aman-CERP/corpusrank/internal/corpus"
	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// SearchWithWeights ranks by a convex blend of similarity, recency and quality:
//
//	combined = (1 - rw - qw)*similarity + rw*recency + qw*quality
//
// Quality, format and tag filters drop candidates before scoring. Results
// with equal combined scores keep their semantic rank order.
func (e *Engine) SearchWithWeights(ctx context.Context, q WeightedQuery) ([]SearchResult, error) {
	if err := validateQuery(q.Query, q.N); err != nil {
		return nil, err
	}
	if err := validWeight("recency_weight", q.RecencyWeight); err != nil {
		return nil, err
	}
	if err := validWeight("quality_weight", q.QualityWeight); err != nil {
		return nil, err
	}
	simWeight := 1 - q.RecencyWeight - q.QualityWeight
	if simWeight < -1e-9 {
		return nil, cerrors.InvalidArgument("recency_weight + quality_weight must be <= 1, got %v",
			q.RecencyWeight+q.QualityWeight)
	}
	if simWeight < 0 {
		simWeight = 0
	}

	where, err := buildWhere(q.Quality, q.Format)
	if err != nil {
		return nil, err
	}
	tags := normalizeTags(q.Tags)

	pool := q.N * e.config.CandidateMultiplier
	if len(tags) > 0 {
		pool *= e.config.TagOversample
	}

	candidates, err := e.semantic(ctx, q.Query, pool, where)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		candidates = filterByTags(candidates, tags)
	}

	now := e.now()
	for i := range candidates {
		r := &candidates[i]
		e.annotate(r, now)
		r.Combined = simWeight*r.Similarity + q.RecencyWeight*r.Recency + q.QualityWeight*r.Quality
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Combined > candidates[j].Combined
	})
	if len(candidates) > q.N {
		candidates = candidates[:q.N]
	}

	slog.Debug("weighted search",
		slog.String("query", q.Query),
		slog.Int("pool", pool),
		slog.Int("results", len(candidates)),
		slog.Float64("recency_weight", q.RecencyWeight),
		slog.Float64("quality_weight", q.QualityWeight))
	return candidates, nil
}

func buildWhere(quality, format string) (store.Where, error) {
	where := store.Where{}
	if strings.TrimSpace(quality) != "" {
		tier, err := corpus.ParseQuality(quality)
		if err != nil {
			return nil, err
		}
		where[store.KeyQualityRating] = tier.String()
	}
	if f := strings.ToLower(strings.TrimSpace(format)); f != "" {
		where[store.KeyFormat] = strings.TrimPrefix(f, ".")
	}
	if len(where) == 0 {
		return nil, nil
	}
	return where, nil
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// filterByTags keeps results whose document shares at least one tag.
func filterByTags(results []SearchResult, tags []string) []SearchResult {
	kept := results[:0]
	for _, r := range results {
		if hasAnyTag(r.Metadata[store.KeyTags], tags) {
			kept = append(kept, r)
		}
	}
	return kept
}

func hasAnyTag(stored string, want []string) bool {
	for _, have := range store.SplitTags(stored) {
		have = strings.ToLower(have)
		for _, w := range want {
			if have == w {
				return true
			}
		}
	}
	return false
}
