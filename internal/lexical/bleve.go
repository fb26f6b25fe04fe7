package lexical

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// CorpusTokenizerName is the Bleve name of the shared word tokenizer.
	CorpusTokenizerName = "corpus_tokenizer"

	// CorpusAnalyzerName is the Bleve name of the analyzer using it.
	CorpusAnalyzerName = "corpus_analyzer"

	// bm25Scoring is the mapping scoring model name understood by scorch.
	bm25Scoring = "bm25"

	contentField        = "content"
	configuredTokenizer = "corpus_configured"
)

func init() {
	_ = registry.RegisterTokenizer(CorpusTokenizerName, corpusTokenizerConstructor)
}

// BleveIndex is a memory-only scorch index sharing the package tokenizer.
// Bleve computes the BM25 scores with its own k1 and b constants; ties are
// reordered by build position so this backend honors the same ordering
// contract as MemoryIndex.
type BleveIndex struct {
	cfg Config

	mu     sync.RWMutex
	index  bleve.Index
	order  map[string]int
	closed bool
}

var _ Index = (*BleveIndex)(nil)

type bleveDoc struct {
	Content string `json:"content"`
}

// NewBleveIndex creates an empty memory-only Bleve index. Bleve reads k1 and
// b from process-wide variables, so a Config tuning either one is rejected.
func NewBleveIndex(cfg Config) (*BleveIndex, error) {
	def := DefaultConfig()
	if cfg.K1 != def.K1 || cfg.B != def.B {
		return nil, fmt.Errorf("bleve backend uses fixed BM25 parameters (k1=%.2f, b=%.2f): got k1=%.2f, b=%.2f",
			def.K1, def.B, cfg.K1, cfg.B)
	}
	idx, err := newMemIndex(cfg)
	if err != nil {
		return nil, err
	}
	return &BleveIndex{cfg: cfg, index: idx, order: map[string]int{}}, nil
}

// newMemIndex opens scorch without a path. The upsidedown store behind
// bleve.NewMemOnly has no field cardinality and silently scores with TF-IDF.
func newMemIndex(cfg Config) (bleve.Index, error) {
	m, err := indexMapping(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}
	idx, err := bleve.NewUsing("", m, scorch.Name, scorch.Name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return idx, nil
}

func indexMapping(cfg Config) (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	m.ScoringModel = bm25Scoring

	stopWords := make([]interface{}, len(cfg.StopWords))
	for i, w := range cfg.StopWords {
		stopWords[i] = w
	}
	err := m.AddCustomTokenizer(configuredTokenizer, map[string]interface{}{
		"type":             CorpusTokenizerName,
		"stop_words":       stopWords,
		"min_token_length": float64(cfg.MinTokenLength),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom tokenizer: %w", err)
	}
	err = m.AddCustomAnalyzer(CorpusAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": configuredTokenizer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	m.DefaultAnalyzer = CorpusAnalyzerName
	return m, nil
}

// Build discards the current index and indexes docs in one batch.
func (b *BleveIndex) Build(_ context.Context, docs []Doc) error {
	fresh, err := newMemIndex(b.cfg)
	if err != nil {
		return err
	}

	order := make(map[string]int, len(docs))
	batch := fresh.NewBatch()
	for _, d := range docs {
		if _, dup := order[d.ID]; dup {
			continue
		}
		order[d.ID] = len(order)
		if err := batch.Index(d.ID, bleveDoc{Content: d.Content}); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("failed to index document %s: %w", d.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		_ = fresh.Close()
		return fmt.Errorf("index is closed")
	}
	old := b.index
	b.index = fresh
	b.order = order
	return old.Close()
}

// Search runs a match query against the content field.
func (b *BleveIndex) Search(ctx context.Context, query string, n int) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(query) == "" || len(b.order) == 0 {
		return []Hit{}, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField(contentField)

	req := bleve.NewSearchRequest(q)
	// fetch all matches: tie reordering must see every equal score
	req.Size = len(b.order)

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		if h.Score > 0 {
			hits = append(hits, Hit{ID: h.ID, Score: h.Score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return b.order[hits[i].ID] < b.order[hits[j].ID]
	})

	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

// Len returns the number of indexed documents.
func (b *BleveIndex) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// corpusTokenizerConstructor creates the Bleve adapter for Tokenizer. Keys
// missing from config fall back to DefaultConfig. Values may arrive as JSON
// decoded types when the mapping is reloaded.
func corpusTokenizerConstructor(config map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	cfg := DefaultConfig()
	if raw, ok := config["stop_words"]; ok {
		words, err := stringList(raw)
		if err != nil {
			return nil, fmt.Errorf("stop_words: %w", err)
		}
		cfg.StopWords = words
	}
	if raw, ok := config["min_token_length"]; ok {
		switch v := raw.(type) {
		case float64:
			cfg.MinTokenLength = int(v)
		case int:
			cfg.MinTokenLength = v
		default:
			return nil, fmt.Errorf("min_token_length: unexpected type %T", raw)
		}
	}
	return &bleveTokenizer{inner: NewTokenizer(cfg)}, nil
}

func stringList(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected element type %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", raw)
	}
}

type bleveTokenizer struct {
	inner *Tokenizer
}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTokenizer) Tokenize(input []byte) analysis.TokenStream {
	tokens := t.inner.scan(string(input))
	stream := make(analysis.TokenStream, 0, len(tokens))
	for i, tok := range tokens {
		stream = append(stream, &analysis.Token{
			Term:     []byte(tok.term),
			Start:    tok.start,
			End:      tok.end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}
