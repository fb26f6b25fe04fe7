package store

import (
	"context"
	"encoding/gob"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// HNSWConfig configures an HNSWStore.
type HNSWConfig struct {
	// Path is the gob snapshot file. Empty keeps the store in memory.
	Path       string
	Dimensions int
	// M is the max connections per graph node (default 16).
	M int
	// EfSearch is the search candidate list size (default 20).
	EfSearch int
}

// HNSWStore implements VectorStore on a coder/hnsw graph. Records live in
// a map keyed by id; the graph only maps internal keys to vectors.
// Replaced and deleted records are orphaned in the graph rather than
// removed, which avoids a coder/hnsw bug when deleting the last node.
type HNSWStore struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	cfg     HNSWConfig
	records map[string]Record
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dirty   bool
	closed  bool
}

var (
	_ VectorStore = (*HNSWStore)(nil)
	_ Flusher     = (*HNSWStore)(nil)
)

// hnswSnapshot is the persisted form. The graph is rebuilt from records on load.
type hnswSnapshot struct {
	Dimensions int
	Records    []Record
}

// NewHNSWStore creates a store, loading cfg.Path when it exists.
func NewHNSWStore(cfg HNSWConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, cerrors.InvalidArgument("hnsw store needs positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	s := &HNSWStore{cfg: cfg}
	s.resetGraph()

	if cfg.Path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *HNSWStore) resetGraph() {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = s.cfg.M
	graph.EfSearch = s.cfg.EfSearch
	graph.Ml = 0.25
	s.graph = graph
	s.records = make(map[string]Record)
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.nextKey = 0
}

// Upsert adds or replaces records.
func (s *HNSWStore) Upsert(_ context.Context, records []Record) error {
	for _, r := range records {
		if len(r.Vector) != s.cfg.Dimensions {
			return dimensionError(s.cfg.Dimensions, len(r.Vector))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cerrors.StoreUnavailable("store is closed", nil)
	}
	for _, r := range records {
		s.insert(Record{
			ID:       r.ID,
			Vector:   normalizeVector(r.Vector),
			Content:  r.Content,
			Metadata: copyMetadata(r.Metadata),
		})
	}
	if len(records) > 0 {
		s.dirty = true
	}
	return nil
}

// insert expects a normalized vector. Callers hold s.mu.
func (s *HNSWStore) insert(r Record) {
	if old, ok := s.idMap[r.ID]; ok {
		delete(s.keyMap, old)
	}
	key := s.nextKey
	s.nextKey++
	s.graph.Add(hnsw.MakeNode(key, r.Vector))
	s.idMap[r.ID] = key
	s.keyMap[key] = r.ID
	s.records[r.ID] = r
}

// Query returns the n closest live records matching where.
// Unfiltered queries go through the graph; filtered ones scan the matches.
func (s *HNSWStore) Query(_ context.Context, vector []float32, n int, where Where) ([]Neighbor, error) {
	if len(vector) != s.cfg.Dimensions {
		return nil, dimensionError(s.cfg.Dimensions, len(vector))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cerrors.StoreUnavailable("store is closed", nil)
	}
	if n <= 0 || len(s.records) == 0 {
		return nil, nil
	}

	q := normalizeVector(vector)
	var candidates []Record
	if len(where) == 0 && s.graph.Len() > 0 {
		// orphans occupy graph slots, so ask for enough to cover them
		k := min(n+s.graph.Len()-len(s.records), s.graph.Len())
		for _, node := range s.graph.Search(q, k) {
			if id, ok := s.keyMap[node.Key]; ok {
				candidates = append(candidates, s.records[id])
			}
		}
	} else {
		for _, r := range s.records {
			if where.Matches(r.Metadata) {
				candidates = append(candidates, r)
			}
		}
	}

	neighbors := make([]Neighbor, len(candidates))
	for i, r := range candidates {
		neighbors[i] = Neighbor{Record: r, Distance: cosineDistance(q, r.Vector)}
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].ID < neighbors[j].ID
	})
	if len(neighbors) > n {
		neighbors = neighbors[:n]
	}
	return neighbors, nil
}

// Get returns matching records in canonical order.
func (s *HNSWStore) Get(_ context.Context, where Where, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cerrors.StoreUnavailable("store is closed", nil)
	}

	var out []Record
	for _, r := range s.records {
		if where.Matches(r.Metadata) {
			out = append(out, r)
		}
	}
	SortRecords(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes ids and every record matching a non-empty where.
func (s *HNSWStore) Delete(_ context.Context, ids []string, where Where) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cerrors.StoreUnavailable("store is closed", nil)
	}

	for _, id := range ids {
		s.remove(id)
	}
	if len(where) > 0 {
		for id, r := range s.records {
			if where.Matches(r.Metadata) {
				s.remove(id)
			}
		}
	}
	return nil
}

func (s *HNSWStore) remove(id string) {
	key, ok := s.idMap[id]
	if !ok {
		return
	}
	delete(s.keyMap, key)
	delete(s.idMap, id)
	delete(s.records, id)
	s.dirty = true
}

// Count returns the number of live records.
func (s *HNSWStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, cerrors.StoreUnavailable("store is closed", nil)
	}
	return len(s.records), nil
}

// Reset drops every record and the graph.
func (s *HNSWStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cerrors.StoreUnavailable("store is closed", nil)
	}
	s.resetGraph()
	s.dirty = true
	return nil
}

// Flush writes the snapshot when there are unsaved changes.
func (s *HNSWStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *HNSWStore) flushLocked() error {
	if s.cfg.Path == "" || !s.dirty {
		return nil
	}
	if err := s.save(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Close flushes pending writes and rejects further calls.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.flushLocked()
	s.closed = true
	return err
}

// save writes a temp file and renames it into place.
func (s *HNSWStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), 0o755); err != nil {
		return cerrors.StoreUnavailable("creating hnsw directory", err)
	}

	snap := hnswSnapshot{Dimensions: s.cfg.Dimensions, Records: make([]Record, 0, len(s.records))}
	for _, r := range s.records {
		snap.Records = append(snap.Records, r)
	}
	SortRecords(snap.Records)

	tmpPath := s.cfg.Path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return cerrors.StoreUnavailable("creating hnsw snapshot", err)
	}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmpPath)
		return cerrors.StoreUnavailable("encoding hnsw snapshot", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return cerrors.StoreUnavailable("closing hnsw snapshot", err)
	}
	if err := os.Rename(tmpPath, s.cfg.Path); err != nil {
		os.Remove(tmpPath)
		return cerrors.StoreUnavailable("renaming hnsw snapshot", err)
	}
	return nil
}

func (s *HNSWStore) load() error {
	file, err := os.Open(s.cfg.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return cerrors.StoreUnavailable("opening hnsw snapshot", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close hnsw snapshot", slog.String("error", err.Error()))
		}
	}()

	var snap hnswSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return cerrors.New(cerrors.ErrCodeCorruptIndex, "decoding hnsw snapshot", err).
			WithSuggestion("rebuild with 'corpusrank index --force'")
	}
	if snap.Dimensions != s.cfg.Dimensions {
		return dimensionError(s.cfg.Dimensions, snap.Dimensions)
	}
	for _, r := range snap.Records {
		s.insert(r)
	}
	slog.Debug("hnsw_store_loaded", slog.String("path", s.cfg.Path), slog.Int("count", len(s.records)))
	return nil
}

// cosineDistance assumes both vectors are unit length (or zero).
func cosineDistance(a, b []float32) float32 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(1 - math.Max(-1, math.Min(1, dot)))
}
