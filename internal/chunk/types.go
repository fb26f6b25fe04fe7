// Package chunk splits document text into bounded retrieval units.
//
// Three strategies are available: fixed-size windows with overlap,
// paragraph-aware greedy packing (the default), and sentence-count groups.
// Sizes and offsets are measured in runes.
package chunk

import (
	"strings"

	"github.com/google/uuid"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// Strategy selects how text is split.
type Strategy string

const (
	StrategyFixed     Strategy = "fixed"
	StrategyParagraph Strategy = "paragraph"
	StrategySentence  Strategy = "sentence"
)

// Defaults used when a config file does not override them.
const (
	DefaultChunkSize         = 1000
	DefaultOverlap           = 200
	DefaultMaxChunkSize      = 1500
	DefaultSentencesPerChunk = 5
)

// ParseStrategy converts a config value to a Strategy.
// The empty string selects the paragraph strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyParagraph:
		return StrategyParagraph, nil
	case StrategyFixed:
		return StrategyFixed, nil
	case StrategySentence:
		return StrategySentence, nil
	default:
		return "", cerrors.InvalidArgument("unknown chunking strategy %q (want fixed, paragraph or sentence)", s)
	}
}

// Chunk is a bounded span of a document's text.
type Chunk struct {
	ID             string
	DocumentID     string
	Content        string
	Index          int    // 0-based position within the document
	SectionHeading string // nearest preceding markdown heading, if any
	CharStart      int
	CharEnd        int
}

// Options holds the per-strategy size parameters.
type Options struct {
	// ChunkSize and Overlap drive the fixed strategy.
	ChunkSize int
	Overlap   int

	// MaxChunkSize bounds paragraph-strategy chunks.
	MaxChunkSize int

	// SentencesPerChunk drives the sentence strategy.
	SentencesPerChunk int
}

// DefaultOptions returns the default size parameters.
func DefaultOptions() Options {
	return Options{
		ChunkSize:         DefaultChunkSize,
		Overlap:           DefaultOverlap,
		MaxChunkSize:      DefaultMaxChunkSize,
		SentencesPerChunk: DefaultSentencesPerChunk,
	}
}

// Validate checks the parameters the given strategy uses.
// Violations are never clamped.
func (o Options) Validate(strategy Strategy) error {
	switch strategy {
	case StrategyFixed:
		if o.ChunkSize <= 0 {
			return cerrors.InvalidArgument("chunk_size must be > 0, got %d", o.ChunkSize)
		}
		if o.Overlap < 0 {
			return cerrors.InvalidArgument("overlap must be >= 0, got %d", o.Overlap)
		}
		if o.Overlap >= o.ChunkSize {
			return cerrors.InvalidArgument("overlap (%d) must be smaller than chunk_size (%d)", o.Overlap, o.ChunkSize)
		}
	case StrategyParagraph:
		if o.MaxChunkSize <= 0 {
			return cerrors.InvalidArgument("max_chunk_size must be > 0, got %d", o.MaxChunkSize)
		}
	case StrategySentence:
		if o.SentencesPerChunk <= 0 {
			return cerrors.InvalidArgument("sentences_per_chunk must be > 0, got %d", o.SentencesPerChunk)
		}
	default:
		return cerrors.InvalidArgument("unknown chunking strategy %q", string(strategy))
	}
	return nil
}

// Chunker splits text with a fixed strategy and parameter set.
// It holds no per-call state and is safe for concurrent use.
type Chunker struct {
	strategy Strategy
	opts     Options
	newID    func() string
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithIDFunc replaces the uuid generator, mainly for tests.
func WithIDFunc(fn func() string) Option {
	return func(c *Chunker) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New creates a Chunker after validating opts for strategy.
func New(strategy Strategy, opts Options, options ...Option) (*Chunker, error) {
	if err := opts.Validate(strategy); err != nil {
		return nil, err
	}
	c := &Chunker{
		strategy: strategy,
		opts:     opts,
		newID:    uuid.NewString,
	}
	for _, o := range options {
		o(c)
	}
	return c, nil
}

// Strategy returns the configured strategy.
func (c *Chunker) Strategy() Strategy {
	return c.strategy
}

// Chunk splits text into ordered chunks, each tagged with documentID.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text, documentID string) []Chunk {
	var spans []span
	switch c.strategy {
	case StrategyFixed:
		spans = fixedSpans(text, c.opts.ChunkSize, c.opts.Overlap)
	case StrategyParagraph:
		spans = paragraphSpans(text, c.opts.MaxChunkSize)
	case StrategySentence:
		spans = sentenceSpans(text, c.opts.SentencesPerChunk)
	}

	chunks := make([]Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, Chunk{
			ID:             c.newID(),
			DocumentID:     documentID,
			Content:        s.content,
			Index:          i,
			SectionHeading: s.heading,
			CharStart:      s.start,
			CharEnd:        s.end,
		})
	}
	return chunks
}

// Split is a one-shot helper: validate, then chunk.
func Split(text, documentID string, strategy Strategy, opts Options) ([]Chunk, error) {
	c, err := New(strategy, opts)
	if err != nil {
		return nil, err
	}
	return c.Chunk(text, documentID), nil
}

// span is a strategy's raw output before ids and indices are assigned.
type span struct {
	content string
	heading string
	start   int
	end     int
}
