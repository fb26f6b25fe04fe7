package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// Config selects and configures an embedding backend and its decorators.
type Config struct {
	Provider   string
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration

	// CacheSize is the LRU capacity. Negative disables caching.
	CacheSize int

	// Retry configures the retry decorator around network backends.
	Retry cerrors.RetryConfig

	// FallbackToStatic swaps in the static embedder when Ollama is
	// unreachable at startup instead of failing.
	FallbackToStatic bool
}

// New builds the configured embedder: backend, then retry (Ollama only),
// then cache.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var embedder Embedder

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderStatic:
		embedder = NewStaticEmbedder(cfg.Dimensions)

	case ProviderOllama:
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		switch {
		case err == nil:
			embedder = NewRetryEmbedder(ollama, cfg.Retry)
		case cfg.FallbackToStatic && cerrors.IsRetryable(err):
			slog.Warn("ollama_unavailable_falling_back",
				slog.String("model", cfg.Model),
				slog.String("error", err.Error()))
			embedder = NewStaticEmbedder(0)
		default:
			return nil, err
		}

	default:
		return nil, cerrors.ConfigError(fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil).
			WithSuggestion("use 'static' or 'ollama'")
	}

	if cfg.CacheSize >= 0 {
		embedder = NewCachedEmbedder(embedder, cfg.CacheSize)
	}

	slog.Info("embedder_ready",
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()))
	return embedder, nil
}
