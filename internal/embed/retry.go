package embed

import (
	"context"
	"log/slog"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// RetryEmbedder retries retryable failures of the inner embedder with
// exponential backoff. Non-retryable errors return on the first attempt.
type RetryEmbedder struct {
	inner Embedder
	cfg   cerrors.RetryConfig
}

// NewRetryEmbedder wraps inner. A nil ShouldRetry defaults to
// cerrors.IsRetryable.
func NewRetryEmbedder(inner Embedder, cfg cerrors.RetryConfig) *RetryEmbedder {
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = cerrors.IsRetryable
	}
	return &RetryEmbedder{inner: inner, cfg: cfg}
}

// Embed generates the embedding for a single text.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	attempt := 0
	return cerrors.RetryWithResult(ctx, r.cfg, func() ([]float32, error) {
		attempt++
		vec, err := r.inner.Embed(ctx, text)
		r.logFailure(attempt, 1, err)
		return vec, err
	})
}

// EmbedBatch retries the whole batch.
func (r *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	attempt := 0
	return cerrors.RetryWithResult(ctx, r.cfg, func() ([][]float32, error) {
		attempt++
		vecs, err := r.inner.EmbedBatch(ctx, texts)
		r.logFailure(attempt, len(texts), err)
		return vecs, err
	})
}

func (r *RetryEmbedder) logFailure(attempt, texts int, err error) {
	if err == nil {
		return
	}
	slog.Debug("embedding_attempt_failed",
		slog.Int("attempt", attempt),
		slog.Int("max_retries", r.cfg.MaxRetries),
		slog.Int("texts_count", texts),
		slog.Bool("retryable", cerrors.IsRetryable(err)),
		slog.String("error", err.Error()))
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (r *RetryEmbedder) Dimensions() int { return r.inner.Dimensions() }

// ModelName returns the model identifier (passthrough to inner).
func (r *RetryEmbedder) ModelName() string { return r.inner.ModelName() }

// Close closes the inner embedder.
func (r *RetryEmbedder) Close() error { return r.inner.Close() }
