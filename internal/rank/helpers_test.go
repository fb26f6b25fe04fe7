package rank

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/corpusrank/internal/lexical"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// fixedNow is the clock used by ranking tests.
var fixedNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// scriptedEmbedder returns fixed vectors per text and [1, 0] otherwise.
type scriptedEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *scriptedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func (s *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *scriptedEmbedder) Dimensions() int   { return 2 }
func (s *scriptedEmbedder) ModelName() string { return "scripted" }
func (s *scriptedEmbedder) Close() error      { return nil }

// exactStore is an exhaustive-scan vector store with deterministic ordering.
type exactStore struct {
	mu      sync.RWMutex
	records []store.Record
	getErr  error
}

func (s *exactStore) Upsert(_ context.Context, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		replaced := false
		for i := range s.records {
			if s.records[i].ID == r.ID {
				s.records[i] = r
				replaced = true
			}
		}
		if !replaced {
			s.records = append(s.records, r)
		}
	}
	return nil
}

func (s *exactStore) Query(_ context.Context, vector []float32, n int, where store.Where) ([]store.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Neighbor
	for _, r := range s.records {
		if !where.Matches(r.Metadata) {
			continue
		}
		out = append(out, store.Neighbor{Record: r, Distance: 1 - cosine(vector, r.Vector)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *exactStore) Get(_ context.Context, where store.Where, limit int) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []store.Record
	for _, r := range s.records {
		if where.Matches(r.Metadata) {
			out = append(out, r)
		}
	}
	store.SortRecords(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *exactStore) Delete(context.Context, []string, store.Where) error {
	return errors.New("not supported")
}

func (s *exactStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *exactStore) Reset(context.Context) error { return nil }
func (s *exactStore) Close() error                { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// simVector returns a unit vector whose cosine with [1, 0] is sim.
func simVector(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

// chunkFixture describes one stored chunk in a test corpus.
type chunkFixture struct {
	id      string
	doc     string
	content string
	sim     float64
	quality string
	format  string
	tags    string
	created string
}

func (c chunkFixture) record() store.Record {
	md := map[string]string{
		store.KeyDocumentID:    c.doc,
		store.KeyChunkIndex:    "0",
		store.KeySource:        c.doc + ".md",
		store.KeyQualityRating: c.quality,
		store.KeyFormat:        c.format,
		store.KeyTags:          c.tags,
	}
	if c.created != "" {
		md[store.KeyCreatedDate] = c.created
	}
	if md[store.KeyFormat] == "" {
		md[store.KeyFormat] = "md"
	}
	content := c.content
	if content == "" {
		content = "chunk " + c.id
	}
	return store.Record{ID: c.id, Vector: simVector(c.sim), Content: content, Metadata: md}
}

func newTestEngine(t *testing.T, chunks []chunkFixture, opts ...EngineOption) (*Engine, *exactStore) {
	t.Helper()
	st := &exactStore{}
	records := make([]store.Record, len(chunks))
	for i, c := range chunks {
		records[i] = c.record()
	}
	require.NoError(t, st.Upsert(context.Background(), records))

	opts = append([]EngineOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	e, err := NewEngine(st, &scriptedEmbedder{}, lexical.NewMemoryIndex(lexical.DefaultConfig()), opts...)
	require.NoError(t, err)
	return e, st
}

func ids(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ChunkID
	}
	return out
}
