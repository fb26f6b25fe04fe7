// Package lexical provides BM25 keyword ranking over chunk text.
//
// The index is a per-process structure rebuilt from the vector store's
// snapshot; it is never persisted and has no eviction.
package lexical

import (
	"context"
	"fmt"
	"strings"
)

// Doc is one unit of text handed to Build.
type Doc struct {
	ID      string
	Content string
}

// Hit is a ranked search result. Score is unbounded and >= 0.
type Hit struct {
	ID    string
	Score float64
}

// Index ranks documents against keyword queries.
//
// Search returns hits in descending score order with ties broken by the
// position the document had in the last Build call. An empty corpus or a
// query without matches yields an empty slice, never an error. n <= 0
// returns every match.
type Index interface {
	Build(ctx context.Context, docs []Doc) error
	Search(ctx context.Context, query string, n int) ([]Hit, error)
	Len() int
	Close() error
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendBleve  = "bleve"
)

// Config contains BM25 tuning parameters.
type Config struct {
	// K1 controls term frequency saturation.
	K1 float64
	// B controls document length normalization.
	B float64
	// StopWords are dropped at tokenization time.
	StopWords []string
	// MinTokenLength drops shorter tokens (in runes).
	MinTokenLength int
}

// DefaultConfig returns the standard BM25 parameters.
func DefaultConfig() Config {
	return Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords is a short English stop list.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in",
	"into", "is", "it", "no", "not", "of", "on", "or", "such", "that", "the",
	"their", "then", "there", "these", "they", "this", "to", "was", "will", "with",
}

// New creates an Index for the named backend. The empty name selects memory.
func New(backend string, cfg Config) (Index, error) {
	switch strings.ToLower(backend) {
	case "", BackendMemory:
		return NewMemoryIndex(cfg), nil
	case BackendBleve:
		return NewBleveIndex(cfg)
	default:
		return nil, fmt.Errorf("unknown lexical backend: %s (supported: memory, bleve)", backend)
	}
}
