// Package store holds the persistence collaborators of the retrieval engine:
// vector stores keyed by chunk id (chromem-go by default, coder/hnsw as an
// alternative) and a SQLite catalog of indexed documents.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// Record is one stored chunk: id, embedding, text and flat string metadata.
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// Neighbor is a query match. Distance is cosine distance in [0, 2];
// similarity is 1 - Distance.
type Neighbor struct {
	Record
	Distance float32
}

// Similarity returns 1 - Distance clamped into [0, 1].
func (n Neighbor) Similarity() float64 {
	s := 1 - float64(n.Distance)
	return math.Max(0, math.Min(1, s))
}

// Where is an exact-match metadata filter; every key must match.
type Where map[string]string

// Matches reports whether md satisfies every condition in w.
func (w Where) Matches(md map[string]string) bool {
	for k, v := range w {
		if md[k] != v {
			return false
		}
	}
	return true
}

// VectorStore stores chunk records and answers nearest-neighbour queries
// by cosine distance. Implementations serialize writes internally.
type VectorStore interface {
	// Upsert inserts records, replacing any with the same id.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to n nearest neighbours of vector among records
	// matching where (nil matches all), closest first.
	Query(ctx context.Context, vector []float32, n int, where Where) ([]Neighbor, error)

	// Get returns records matching where in canonical order
	// (document_id, chunk_index, id). limit <= 0 returns all.
	Get(ctx context.Context, where Where, limit int) ([]Record, error)

	// Delete removes the listed ids and every record matching where.
	Delete(ctx context.Context, ids []string, where Where) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Reset drops and recreates the collection.
	Reset(ctx context.Context) error

	Close() error
}

// Flusher is implemented by stores that buffer writes in memory.
type Flusher interface {
	Flush() error
}

// Backend names accepted by Open.
const (
	BackendChromem = "chromem"
	BackendHNSW    = "hnsw"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "corpus_chunks"

// ErrDimensionMismatch is returned when a vector's length does not match
// the store's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

func dimensionError(expected, got int) error {
	return cerrors.New(cerrors.ErrCodeDimensionMismatch,
		ErrDimensionMismatch{Expected: expected, Got: got}.Error(),
		ErrDimensionMismatch{Expected: expected, Got: got}).
		WithSuggestion("the embedding model changed; rebuild with 'corpusrank index --force'")
}

// SortRecords orders records by document_id, then numeric chunk_index,
// then id.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Metadata, records[j].Metadata
		if a[KeyDocumentID] != b[KeyDocumentID] {
			return a[KeyDocumentID] < b[KeyDocumentID]
		}
		ai, _ := strconv.Atoi(a[KeyChunkIndex])
		bi, _ := strconv.Atoi(b[KeyChunkIndex])
		if ai != bi {
			return ai < bi
		}
		return records[i].ID < records[j].ID
	})
}

// normalizeVector returns a unit-length copy of v. Zero vectors are copied as-is.
func normalizeVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sumSquares float64
	for _, val := range out {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return out
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range out {
		out[i] *= inv
	}
	return out
}

func copyMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
