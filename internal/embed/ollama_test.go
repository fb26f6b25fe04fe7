package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// fakeOllama answers /api/embed with dims-length vectors.
func fakeOllama(t *testing.T, dims int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		if requests != nil {
			requests.Add(1)
		}
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n := 1
		if list, ok := req.Input.([]any); ok {
			n = len(list)
		}
		resp := ollamaEmbedResponse{Model: req.Model}
		for i := 0; i < n; i++ {
			vec := make([]float64, dims)
			vec[i%dims] = 1
			resp.Embeddings = append(resp.Embeddings, vec)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_New_DetectsDimensions(t *testing.T) {
	srv := fakeOllama(t, 6, nil)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	require.NoError(t, err)
	assert.Equal(t, 6, e.Dimensions())
	assert.Equal(t, "nomic-embed-text", e.ModelName())
}

func TestOllamaEmbedder_EmbedBatch_SplitsIntoBatches(t *testing.T) {
	var requests atomic.Int32
	srv := fakeOllama(t, 4, &requests)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Dimensions: 4, BatchSize: 2})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})

	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, int32(3), requests.Load())
}

func TestOllamaEmbedder_EmbedBatch_RejectsUnexpectedDimensions(t *testing.T) {
	srv := fakeOllama(t, 3, nil)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Dimensions: 8})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")

	assert.Equal(t, cerrors.ErrCodeDimensionMismatch, cerrors.GetCode(err))
}

func TestOllamaEmbedder_StatusErrors_AreClassified(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		code      string
		retryable bool
	}{
		{"server error", http.StatusInternalServerError, cerrors.ErrCodeNetworkUnavailable, true},
		{"rate limited", http.StatusTooManyRequests, cerrors.ErrCodeNetworkUnavailable, true},
		{"model missing", http.StatusNotFound, cerrors.ErrCodeConfigInvalid, false},
		{"bad request", http.StatusBadRequest, cerrors.ErrCodeEmbeddingFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()
			e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Dimensions: 4})
			require.NoError(t, err)

			_, err = e.Embed(context.Background(), "x")

			assert.Equal(t, tt.code, cerrors.GetCode(err))
			assert.Equal(t, tt.retryable, cerrors.IsRetryable(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestOllamaEmbedder_Unreachable_IsRetryableNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: url})

	require.Error(t, err)
	assert.True(t, cerrors.IsRetryable(err))
}
