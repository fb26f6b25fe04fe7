package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a general-purpose text embedding model.
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434)
	Host string

	// Model is the embedding model to use.
	Model string

	// Dimensions overrides detection. 0 embeds a probe text at startup.
	Dimensions int

	// BatchSize is the number of texts per /api/embed request.
	BatchSize int

	// Timeout bounds each request.
	Timeout time.Duration

	// HTTPClient replaces the default client (tests).
	HTTPClient *http.Client
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:      DefaultOllamaHost,
		Model:     DefaultOllamaModel,
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultTimeout,
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// OllamaEmbedder calls a local Ollama server. It does not retry; wrap it
// in a RetryEmbedder for that.
type OllamaEmbedder struct {
	mu         sync.RWMutex
	cfg        OllamaConfig
	client     *http.Client
	dimensions int
	closed     bool
}

// NewOllamaEmbedder creates the client and, unless cfg.Dimensions is set,
// detects the vector length with one probe request.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	defaults := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	cfg.BatchSize = min(cfg.BatchSize, MaxBatchSize)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	e := &OllamaEmbedder{cfg: cfg, client: client, dimensions: cfg.Dimensions}
	if e.dimensions == 0 {
		vecs, err := e.doEmbed(ctx, []string{"dimension probe"})
		if err != nil {
			return nil, fmt.Errorf("detecting dimensions for %s: %w", cfg.Model, err)
		}
		e.dimensions = len(vecs[0])
		slog.Debug("ollama_dimensions_detected",
			slog.String("model", cfg.Model),
			slog.Int("dimensions", e.dimensions))
	}
	return e, nil
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends texts in BatchSize requests and checks every result's
// length against Dimensions.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, cerrors.EmbeddingFailed("embedder is closed", nil)
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		vecs, err := e.doEmbed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		for _, v := range vecs {
			if len(v) != e.dimensions {
				return nil, cerrors.New(cerrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("model %s returned %d dimensions, expected %d", e.cfg.Model, len(v), e.dimensions), nil)
			}
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any
	if len(texts) == 1 {
		input = texts[0]
	} else {
		input = texts
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, cerrors.EmbeddingFailed("marshalling embed request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, cerrors.EmbeddingFailed("building embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(e.cfg.Host, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cerrors.NetworkError("reading embed response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(e.cfg.Model, resp.StatusCode, payload)
	}

	var decoded ollamaEmbedResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, cerrors.EmbeddingFailed("decoding embed response", err)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, cerrors.EmbeddingFailed(
			fmt.Sprintf("ollama returned %d embeddings for %d texts", len(decoded.Embeddings), len(texts)), nil)
	}

	out := make([][]float32, len(decoded.Embeddings))
	for i, emb := range decoded.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

func classifyTransportError(host string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return cerrors.New(cerrors.ErrCodeNetworkTimeout, "ollama request timed out", err)
	}
	return cerrors.NetworkError(fmt.Sprintf("ollama unreachable at %s", host), err).
		WithSuggestion("start it with 'ollama serve' or set embeddings.provider to static")
}

// statusError maps 5xx and 429 to retryable errors and everything else to
// a permanent failure.
func statusError(model string, status int, payload []byte) error {
	msg := strings.TrimSpace(string(payload))
	var decoded ollamaErrorResponse
	if json.Unmarshal(payload, &decoded) == nil && decoded.Error != "" {
		msg = decoded.Error
	}

	switch {
	case status == http.StatusNotFound:
		return cerrors.ConfigError(fmt.Sprintf("ollama model %s not found: %s", model, msg), nil).
			WithSuggestion(fmt.Sprintf("run 'ollama pull %s'", model))
	case status == http.StatusTooManyRequests || status >= 500:
		return cerrors.New(cerrors.ErrCodeNetworkUnavailable,
			fmt.Sprintf("ollama returned %d: %s", status, msg), nil)
	default:
		return cerrors.EmbeddingFailed(fmt.Sprintf("ollama returned %d: %s", status, msg), nil)
	}
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the Ollama model name.
func (e *OllamaEmbedder) ModelName() string {
	return e.cfg.Model
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
