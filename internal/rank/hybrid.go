package rank

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/corpusrank/internal/lexical"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// HybridSearch blends semantic similarity with min-max normalized BM25:
//
//	combined = semantic_weight*similarity + bm25_weight*normalized_bm25
//
// The candidate set is the union of the top n*multiplier of each leg.
// Chunks found only by BM25 have similarity 0. Ties keep semantic rank
// order, followed by BM25 rank for BM25-only chunks.
func (e *Engine) HybridSearch(ctx context.Context, q HybridQuery) ([]SearchResult, error) {
	if err := validateQuery(q.Query, q.N); err != nil {
		return nil, err
	}
	if err := validWeight("semantic_weight", q.SemanticWeight); err != nil {
		return nil, err
	}
	if err := validWeight("bm25_weight", q.BM25Weight); err != nil {
		return nil, err
	}

	pool := q.N * e.config.CandidateMultiplier
	semResults, hits, snapshot, err := e.parallelSearch(ctx, q.Query, pool)
	if err != nil {
		return nil, err
	}

	candidates := mergeCandidates(semResults, hits, snapshot)
	normalizeLexical(candidates)

	now := e.now()
	for i := range candidates {
		r := &candidates[i]
		e.annotate(r, now)
		r.Combined = q.SemanticWeight*r.Similarity + q.BM25Weight*r.LexicalNormalized
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Combined > candidates[j].Combined
	})
	if len(candidates) > q.N {
		candidates = candidates[:q.N]
	}

	slog.Debug("hybrid search",
		slog.String("query", q.Query),
		slog.Int("semantic", len(semResults)),
		slog.Int("bm25", len(hits)),
		slog.Int("results", len(candidates)))
	return candidates, nil
}

// parallelSearch runs the semantic and BM25 legs concurrently. A failing leg
// is logged and dropped; the call fails only when both legs fail.
func (e *Engine) parallelSearch(ctx context.Context, query string, pool int) (
	semResults []SearchResult,
	hits []lexical.Hit,
	snapshot map[string]store.Record,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)
	var semErr, lexErr error

	g.Go(func() error {
		semResults, semErr = e.semantic(gctx, query, pool, nil)
		return nil
	})
	g.Go(func() error {
		snapshot, lexErr = e.ensureSnapshot(gctx)
		if lexErr != nil {
			return nil
		}
		hits, lexErr = e.lexical.Search(gctx, query, pool)
		return nil
	})
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, nil, ctxErr
	}
	switch {
	case semErr != nil && lexErr != nil:
		return nil, nil, nil, semErr
	case semErr != nil:
		slog.Warn("semantic leg failed, using BM25 only", slog.String("error", semErr.Error()))
	case lexErr != nil:
		slog.Warn("bm25 leg failed, using semantic only", slog.String("error", lexErr.Error()))
	}
	return semResults, hits, snapshot, nil
}

// mergeCandidates unions both legs: semantic results in rank order, then
// BM25-only hits in BM25 order.
func mergeCandidates(semResults []SearchResult, hits []lexical.Hit, snapshot map[string]store.Record) []SearchResult {
	candidates := make([]SearchResult, 0, len(semResults)+len(hits))
	pos := make(map[string]int, len(semResults)+len(hits))
	for _, r := range semResults {
		pos[r.ChunkID] = len(candidates)
		zero := 0.0
		r.Lexical = &zero
		candidates = append(candidates, r)
	}

	for _, h := range hits {
		score := h.Score
		if i, ok := pos[h.ID]; ok {
			candidates[i].Lexical = &score
			continue
		}
		rec, ok := snapshot[h.ID]
		if !ok {
			continue
		}
		pos[h.ID] = len(candidates)
		candidates = append(candidates, SearchResult{
			ChunkID:  rec.ID,
			Content:  rec.Content,
			Metadata: rec.Metadata,
			Lexical:  &score,
		})
	}
	return candidates
}

// normalizeLexical min-max scales BM25 scores over the candidate set.
// Equal positive scores map to 1 and all-zero scores to 0.
func normalizeLexical(candidates []SearchResult) {
	if len(candidates) == 0 {
		return
	}
	lo, hi := *candidates[0].Lexical, *candidates[0].Lexical
	for _, c := range candidates[1:] {
		v := *c.Lexical
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	for i := range candidates {
		v := *candidates[i].Lexical
		switch {
		case hi == lo && hi > 0:
			candidates[i].LexicalNormalized = 1
		case hi == lo:
			candidates[i].LexicalNormalized = 0
		default:
			candidates[i].LexicalNormalized = (v - lo) / (hi - lo)
		}
	}
}
