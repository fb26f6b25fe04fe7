package embed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

func fastRetry() cerrors.RetryConfig {
	return cerrors.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestCachedEmbedder_EmbedBatch_OnlyEmbedsMisses(t *testing.T) {
	// Given: a cache warmed with "a"
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()
	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)

	// When: a batch contains "a" and two new texts
	vecs, err := c.EmbedBatch(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)

	// Then: only the misses reach the inner embedder, in order
	assert.Equal(t, []int{1, 2}, inner.batchLens)
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
	assert.Equal(t, 3, c.Len())

	// And: a repeat is served entirely from cache
	_, err = c.EmbedBatch(ctx, []string{"bb", "a"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{failN: 1, failErr: errors.New("boom")}
	c := NewCachedEmbedder(inner, 10)

	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)
	_, err = c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryEmbedder_RetriesRetryableErrors(t *testing.T) {
	inner := &countingEmbedder{failN: 2, failErr: cerrors.NetworkError("down", nil)}
	r := NewRetryEmbedder(inner, fastRetry())

	v, err := r.Embed(context.Background(), "abc")

	require.NoError(t, err)
	assert.Equal(t, float32(3), v[0])
	assert.Equal(t, 3, inner.calls)
}

func TestRetryEmbedder_StopsOnPermanentError(t *testing.T) {
	inner := &countingEmbedder{failN: 5, failErr: cerrors.EmbeddingFailed("bad input", nil)}
	r := NewRetryEmbedder(inner, fastRetry())

	_, err := r.EmbedBatch(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, cerrors.ErrEmbeddingFailed)
	assert.Equal(t, 1, inner.calls)
}

func TestNew_StaticProviderIsCached(t *testing.T) {
	e, err := New(context.Background(), Config{Provider: ProviderStatic, Dimensions: 32})
	require.NoError(t, err)

	_, ok := e.(*CachedEmbedder)
	assert.True(t, ok)
	assert.Equal(t, 32, e.Dimensions())
	assert.Equal(t, "static-32", e.ModelName())
}

func TestNew_NegativeCacheSizeDisablesCache(t *testing.T) {
	e, err := New(context.Background(), Config{Provider: ProviderStatic, CacheSize: -1})
	require.NoError(t, err)

	_, ok := e.(*StaticEmbedder)
	assert.True(t, ok)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "mlx"})

	assert.ErrorIs(t, err, cerrors.ErrConfigInvalid)
}

func TestNew_OllamaFallsBackToStaticWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e, err := New(context.Background(), Config{
		Provider:         ProviderOllama,
		Host:             url,
		Retry:            fastRetry(),
		FallbackToStatic: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "static-256", e.ModelName())

	_, err = New(context.Background(), Config{Provider: ProviderOllama, Host: url})
	assert.Error(t, err)
}
