package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// ChromemConfig configures a ChromemStore.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps the store in memory.
	Path string
	// Compress enables gzip compression of persisted documents.
	Compress bool
	// Collection name (default: corpus_chunks).
	Collection string
	// Dimensions is the embedding length every record and query must have.
	Dimensions int
}

// ChromemStore implements VectorStore on an embedded chromem-go database.
//
// Vectors are always supplied by the caller, so the collection's
// embedding function only guards against chromem embedding text itself.
type ChromemStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	cfg        ChromemConfig
	probe      []float32
	closed     bool
}

var _ VectorStore = (*ChromemStore)(nil)

// NewChromemStore opens (or creates) the collection described by cfg.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, cerrors.InvalidArgument("chromem store needs positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, cerrors.StoreUnavailable(fmt.Sprintf("creating directory %s", cfg.Path), err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, cerrors.StoreUnavailable("opening chromem database", err)
		}
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, refuseEmbedding)
	if err != nil {
		return nil, cerrors.StoreUnavailable(fmt.Sprintf("opening collection %s", cfg.Collection), err)
	}

	// Get has no metadata-only scan in chromem, so it queries with a fixed
	// unit vector and the filter instead.
	probe := make([]float32, cfg.Dimensions)
	probe[0] = 1

	slog.Debug("chromem_store_opened",
		slog.String("path", cfg.Path),
		slog.String("collection", cfg.Collection),
		slog.Int("count", collection.Count()))

	return &ChromemStore{db: db, collection: collection, cfg: cfg, probe: probe}, nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("chromem store requires precomputed embeddings")
}

// Upsert adds or replaces records. chromem overwrites documents by id.
func (s *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		if len(r.Vector) != s.cfg.Dimensions {
			return dimensionError(s.cfg.Dimensions, len(r.Vector))
		}
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  copyMetadata(r.Metadata),
			Embedding: normalizeVector(r.Vector),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cerrors.StoreUnavailable("store is closed", nil)
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return cerrors.StoreUnavailable("adding documents to chromem", err)
	}
	return nil
}

// Query returns the n records closest to vector that match where.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, n int, where Where) ([]Neighbor, error) {
	if len(vector) != s.cfg.Dimensions {
		return nil, dimensionError(s.cfg.Dimensions, len(vector))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	results, err := s.query(ctx, normalizeVector(vector), n, where)
	if err != nil {
		return nil, err
	}

	neighbors := make([]Neighbor, len(results))
	for i, r := range results {
		neighbors[i] = Neighbor{Record: toRecord(r), Distance: 1 - r.Similarity}
	}
	return neighbors, nil
}

// Get returns matching records in canonical order.
func (s *ChromemStore) Get(ctx context.Context, where Where, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit == 1 && len(where) > 0 {
		// point lookup: any single match will do
		results, err := s.query(ctx, s.probe, 1, where)
		if err != nil || len(results) == 0 {
			return nil, err
		}
		return []Record{toRecord(results[0])}, nil
	}

	results, err := s.query(ctx, s.probe, s.collection.Count(), where)
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = toRecord(r)
	}
	SortRecords(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// query caps n at the collection size, which chromem requires.
// Callers hold s.mu.
func (s *ChromemStore) query(ctx context.Context, vector []float32, n int, where Where) ([]chromem.Result, error) {
	if s.closed {
		return nil, cerrors.StoreUnavailable("store is closed", nil)
	}
	count := s.collection.Count()
	if n <= 0 || count == 0 {
		return nil, nil
	}
	n = min(n, count)

	results, err := s.collection.QueryEmbedding(ctx, vector, n, map[string]string(where), nil)
	if err != nil {
		return nil, cerrors.StoreUnavailable("querying chromem collection", err)
	}
	return results, nil
}

// Delete removes ids and where-matches. With neither it does nothing.
func (s *ChromemStore) Delete(ctx context.Context, ids []string, where Where) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cerrors.StoreUnavailable("store is closed", nil)
	}

	if len(ids) > 0 {
		if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
			return cerrors.StoreUnavailable("deleting chromem documents by id", err)
		}
	}
	if len(where) > 0 && s.collection.Count() > 0 {
		if err := s.collection.Delete(ctx, map[string]string(where), nil); err != nil {
			return cerrors.StoreUnavailable("deleting chromem documents by filter", err)
		}
	}
	return nil
}

// Count returns the number of records.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, cerrors.StoreUnavailable("store is closed", nil)
	}
	return s.collection.Count(), nil
}

// Reset deletes the collection and creates an empty one with the same name.
func (s *ChromemStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cerrors.StoreUnavailable("store is closed", nil)
	}

	if err := s.db.DeleteCollection(s.cfg.Collection); err != nil {
		return cerrors.StoreUnavailable("deleting chromem collection", err)
	}
	collection, err := s.db.GetOrCreateCollection(s.cfg.Collection, nil, refuseEmbedding)
	if err != nil {
		return cerrors.StoreUnavailable("recreating chromem collection", err)
	}
	s.collection = collection
	return nil
}

// Close marks the store closed. chromem persists on every write, so there
// is nothing to flush.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func toRecord(r chromem.Result) Record {
	return Record{
		ID:       r.ID,
		Vector:   r.Embedding,
		Content:  r.Content,
		Metadata: r.Metadata,
	}
}
