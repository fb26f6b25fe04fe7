package embed

import (
	"context"
	"sync"
)

// countingEmbedder records calls and fails the first failN attempts.
type countingEmbedder struct {
	mu        sync.Mutex
	calls     int
	batchLens []int
	failN     int
	failErr   error
	dims      int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.batchLens = append(c.batchLens, len(texts))
	if c.calls <= c.failN {
		return nil, c.failErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int   { return 2 }
func (c *countingEmbedder) ModelName() string { return "counting" }
func (c *countingEmbedder) Close() error      { return nil }
