// Package embed turns text into vectors. Backends are a deterministic
// static hasher (no dependencies) and an Ollama HTTP client; decorators
// add LRU caching and retry with backoff.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the number of texts sent per backend request.
	DefaultBatchSize = 32

	// MaxBatchSize caps the batch size to bound request memory.
	MaxBatchSize = 256

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second

	// StaticDimensions is the default vector length of the static embedder.
	StaticDimensions = 256
)

// Provider names accepted by New.
const (
	ProviderStatic = "static"
	ProviderOllama = "ollama"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding length.
	Dimensions() int

	// ModelName identifies the model. Stored with the index so a model
	// change can be detected.
	ModelName() string

	Close() error
}

// normalizeVector returns v scaled to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
