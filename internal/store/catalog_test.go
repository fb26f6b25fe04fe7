package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalog_SaveDocument_RoundTrips(t *testing.T) {
	// Given: an empty catalog
	c := newTestCatalog(t)
	ctx := context.Background()
	indexedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// When: a document with two chunks is saved
	err := c.SaveDocument(ctx, DocumentRecord{
		ID:         "doc-1",
		SourcePath: "notes/a.md",
		Filename:   "a.md",
		Format:     "md",
		Checksum:   "abc",
		Quality:    "preferred",
		Tags:       []string{"go", "search"},
		WordCount:  120,
		IndexedAt:  indexedAt,
	}, []string{"c0", "c1"})
	require.NoError(t, err)

	// Then: it reads back with the chunk count derived from the ids
	got, err := c.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "notes/a.md", got.SourcePath)
	assert.Equal(t, "abc", got.Checksum)
	assert.Equal(t, []string{"go", "search"}, got.Tags)
	assert.Equal(t, 2, got.ChunkCount)
	assert.Equal(t, 120, got.WordCount)
	assert.True(t, indexedAt.Equal(got.IndexedAt))

	chunks, err := c.ChunkIDs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1"}, chunks)
}

func TestCatalog_SaveDocument_ReplacesChunks(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	rec := DocumentRecord{ID: "doc-1", SourcePath: "a.md", Filename: "a.md", Format: "md", Checksum: "v1", Quality: "standard"}
	require.NoError(t, c.SaveDocument(ctx, rec, []string{"old-0", "old-1", "old-2"}))

	rec.Checksum = "v2"
	require.NoError(t, c.SaveDocument(ctx, rec, []string{"new-0"}))

	got, err := c.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Checksum)
	chunks, err := c.ChunkIDs(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"new-0"}, chunks)
}

func TestCatalog_GetDocument_NotFound(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.GetDocument(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_DeleteDocument_CascadesToChunks(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, c.SaveDocument(ctx, DocumentRecord{ID: "d", SourcePath: "d.md", Checksum: "x"}, []string{"c0"}))

	require.NoError(t, c.DeleteDocument(ctx, "d"))
	require.NoError(t, c.DeleteDocument(ctx, "d")) // idempotent

	_, err := c.GetDocument(ctx, "d")
	assert.ErrorIs(t, err, ErrNotFound)
	chunks, err := c.ChunkIDs(ctx, "d")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCatalog_ListAndStats(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, c.SaveDocument(ctx, DocumentRecord{ID: "2", SourcePath: "b.md", Checksum: "x"}, []string{"b0"}))
	require.NoError(t, c.SaveDocument(ctx, DocumentRecord{ID: "1", SourcePath: "a.md", Checksum: "y"}, []string{"a0", "a1"}))

	docs, err := c.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.md", docs[0].SourcePath)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 3, stats.Chunks)
	assert.False(t, stats.LastIndex.IsZero())

	require.NoError(t, c.Clear(ctx))
	stats, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
	assert.True(t, stats.LastIndex.IsZero())
}

func TestCatalog_State_SurvivesClearAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()
	c, err := OpenCatalog(path)
	require.NoError(t, err)

	v, err := c.GetState(ctx, StateEmbeddingModel)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, c.SetState(ctx, StateEmbeddingModel, "static-256"))
	require.NoError(t, c.SetState(ctx, StateEmbeddingModel, "nomic-embed-text"))
	require.NoError(t, c.Clear(ctx))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	reopened, err := OpenCatalog(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	v, err = reopened.GetState(ctx, StateEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", v)
}

func TestCatalog_ClosedRejectsCalls(t *testing.T) {
	c, err := OpenCatalog(":memory:")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.ListDocuments(context.Background())
	assert.Error(t, err)
}
