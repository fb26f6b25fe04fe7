package lexical

import (
	"context"
	"math"
	"sort"
	"sync"
)

type posting struct {
	doc int
	tf  int
}

// MemoryIndex is an in-memory BM25 inverted index.
type MemoryIndex struct {
	cfg       Config
	tokenizer *Tokenizer

	mu       sync.RWMutex
	ids      []string
	lengths  []int
	avgLen   float64
	postings map[string][]posting
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index.
func NewMemoryIndex(cfg Config) *MemoryIndex {
	return &MemoryIndex{
		cfg:       cfg,
		tokenizer: NewTokenizer(cfg),
		postings:  make(map[string][]posting),
	}
}

// Build replaces the index contents with docs. When an id repeats, the
// first occurrence wins.
func (m *MemoryIndex) Build(_ context.Context, docs []Doc) error {
	ids := make([]string, 0, len(docs))
	lengths := make([]int, 0, len(docs))
	postings := make(map[string][]posting)
	seen := make(map[string]struct{}, len(docs))
	total := 0

	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}

		terms := m.tokenizer.Tokenize(d.Content)
		freq := make(map[string]int, len(terms))
		for _, term := range terms {
			freq[term]++
		}
		doc := len(ids)
		for term, tf := range freq {
			postings[term] = append(postings[term], posting{doc: doc, tf: tf})
		}
		ids = append(ids, d.ID)
		lengths = append(lengths, len(terms))
		total += len(terms)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = ids
	m.lengths = lengths
	m.postings = postings
	m.avgLen = 0
	if len(ids) > 0 {
		m.avgLen = float64(total) / float64(len(ids))
	}
	return nil
}

// Search scores every document containing at least one query term.
func (m *MemoryIndex) Search(_ context.Context, query string, n int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.ids) == 0 {
		return []Hit{}, nil
	}

	scores := make([]float64, len(m.ids))
	matched := make([]bool, len(m.ids))
	docCount := float64(len(m.ids))
	seen := make(map[string]struct{})

	for _, term := range m.tokenizer.Tokenize(query) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		list := m.postings[term]
		if len(list) == 0 {
			continue
		}
		df := float64(len(list))
		idf := math.Log(1 + (docCount-df+0.5)/(df+0.5))
		for _, p := range list {
			tf := float64(p.tf)
			norm := 1 - m.cfg.B
			if m.avgLen > 0 {
				norm += m.cfg.B * float64(m.lengths[p.doc]) / m.avgLen
			}
			scores[p.doc] += idf * tf * (m.cfg.K1 + 1) / (tf + m.cfg.K1*norm)
			matched[p.doc] = true
		}
	}

	hits := make([]Hit, 0)
	for doc, ok := range matched {
		if ok && scores[doc] > 0 {
			hits = append(hits, Hit{ID: m.ids[doc], Score: scores[doc]})
		}
	}

	// hits are in build order, so a stable sort keeps first-seen on ties
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close releases nothing; it exists to satisfy Index.
func (m *MemoryIndex) Close() error {
	return nil
}
