package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/corpusrank/internal/checksum"
	"github.com/Aman-CERP/corpusrank/internal/chunk"
	"github.com/Aman-CERP/corpusrank/internal/corpus"
	"github.com/Aman-CERP/corpusrank/internal/embed"
	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

func newMemoryStore(t *testing.T, dims int) store.VectorStore {
	t.Helper()
	s, err := store.Open(store.Config{Backend: store.BackendChromem, Dimensions: dims})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testDocument(id, content string) *corpus.Document {
	created := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return &corpus.Document{
		ID:              id,
		SourcePath:      id + ".md",
		Filename:        id + ".md",
		Format:          corpus.FormatMarkdown,
		Content:         content,
		CreatedDate:     &created,
		Quality:         corpus.QualityPreferred,
		Tags:            []string{"botany", "plants"},
		ContentChecksum: checksum.Of(content),
	}
}

func chunkDoc(t *testing.T, doc *corpus.Document) []chunk.Chunk {
	t.Helper()
	c, err := chunk.New(chunk.StrategyParagraph, chunk.Options{MaxChunkSize: 40})
	require.NoError(t, err)
	return c.Chunk(doc.Content, doc.ID)
}

func newTestIndexer(t *testing.T, opts ...IndexerOption) (*Indexer, store.VectorStore) {
	t.Helper()
	vs := newMemoryStore(t, 64)
	ix, err := NewIndexer(vs, embed.NewStaticEmbedder(64), opts...)
	require.NoError(t, err)
	return ix, vs
}

func TestIndexer_DocumentNeedsReindexing_SkipsUnchanged(t *testing.T) {
	// Given: an indexed document
	ix, _ := newTestIndexer(t)
	ctx := context.Background()
	doc := testDocument("doc-1", "Leaves convert light.\n\nRoots absorb water.")
	assert.True(t, ix.DocumentNeedsReindexing(ctx, doc), "never indexed")
	require.NoError(t, ix.IndexDocument(ctx, doc, chunkDoc(t, doc)))

	// When/Then: the unchanged checksum needs no reindex
	assert.False(t, ix.DocumentNeedsReindexing(ctx, doc))

	// When/Then: a changed checksum does
	doc.ContentChecksum = checksum.Of("edited")
	assert.True(t, ix.DocumentNeedsReindexing(ctx, doc))
}

func TestIndexer_DocumentNeedsReindexing_DetectsMetadataOnlyChange(t *testing.T) {
	// Given: an indexed document
	ix, vs := newTestIndexer(t)
	ctx := context.Background()
	doc := testDocument("doc-1", "Leaves convert light.")
	require.NoError(t, ix.IndexDocument(ctx, doc, chunkDoc(t, doc)))
	records, err := vs.Get(ctx, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, doc.Fingerprint(), records[0].Metadata[store.KeyDocumentFingerprint])

	// When: quality changes but the body does not
	doc.Quality = corpus.QualityDeprecated

	// Then
	assert.True(t, ix.DocumentNeedsReindexing(ctx, doc))
}

func TestIndexer_IndexDocument_DenormalizesDocumentFields(t *testing.T) {
	ix, vs := newTestIndexer(t)
	ctx := context.Background()
	doc := testDocument("doc-1", "# Intro\n\nLeaves convert light.\n\nRoots absorb water from soil.")
	chunks := chunkDoc(t, doc)
	require.NotEmpty(t, chunks)

	require.NoError(t, ix.IndexDocument(ctx, doc, chunks))

	records, err := vs.Get(ctx, store.Where{store.KeyDocumentID: "doc-1"}, 0)
	require.NoError(t, err)
	require.Len(t, records, len(chunks))
	for i, rec := range records {
		md := store.ParseMetadata(rec.Metadata)
		assert.Equal(t, i, md.ChunkIndex)
		assert.Equal(t, chunks[i].ID, rec.ID)
		assert.Equal(t, "preferred", md.QualityRating)
		assert.Equal(t, []string{"botany", "plants"}, md.Tags)
		assert.Equal(t, doc.ContentChecksum, md.ContentChecksum)
		assert.Equal(t, "doc-1.md", md.Filename)
		require.NotNil(t, md.CreatedDate)
		assert.Equal(t, 2024, md.CreatedDate.Year())
		assert.Nil(t, md.ModifiedDate)
	}
	assert.Equal(t, "Intro", store.ParseMetadata(records[0].Metadata).SectionHeading)
}

func TestIndexer_IndexDocument_EmptyChunksIsNoOp(t *testing.T) {
	ix, vs := newTestIndexer(t)

	require.NoError(t, ix.IndexDocument(context.Background(), testDocument("d", ""), nil))

	n, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexer_DeleteDocument_RemovesOnlyThatDocument(t *testing.T) {
	ix, vs := newTestIndexer(t)
	ctx := context.Background()
	a := testDocument("a", "Alpha text.\n\nMore alpha.")
	b := testDocument("b", "Beta text.")
	require.NoError(t, ix.IndexDocument(ctx, a, chunkDoc(t, a)))
	require.NoError(t, ix.IndexDocument(ctx, b, chunkDoc(t, b)))

	require.NoError(t, ix.DeleteDocument(ctx, "a"))

	sum, err := ix.GetDocumentChecksum(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, sum)
	sum, err = ix.GetDocumentChecksum(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, b.ContentChecksum, sum)
	n, _ := vs.Count(ctx)
	assert.Equal(t, len(chunkDoc(t, b)), n)
}

func TestIndexer_ClearIndex_EmptiesStoreAndCatalog(t *testing.T) {
	catalog, err := store.OpenCatalog(":memory:")
	require.NoError(t, err)
	defer func() { _ = catalog.Close() }()
	ix, vs := newTestIndexer(t, WithCatalog(catalog))
	ctx := context.Background()
	doc := testDocument("a", "Alpha text.")
	require.NoError(t, ix.IndexDocument(ctx, doc, chunkDoc(t, doc)))

	stats, err := catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)

	require.NoError(t, ix.ClearIndex(ctx))

	n, _ := vs.Count(ctx)
	assert.Zero(t, n)
	stats, err = catalog.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
}

// failingGetStore breaks checksum lookups.
type failingGetStore struct {
	store.VectorStore
}

func (failingGetStore) Get(context.Context, store.Where, int) ([]store.Record, error) {
	return nil, cerrors.StoreUnavailable("lookup failed", nil)
}

func TestIndexer_DocumentNeedsReindexing_LookupFailureMeansReindex(t *testing.T) {
	ix, err := NewIndexer(failingGetStore{newMemoryStore(t, 8)}, embed.NewStaticEmbedder(8))
	require.NoError(t, err)

	assert.True(t, ix.DocumentNeedsReindexing(context.Background(), testDocument("a", "x")))
}

// brokenEmbedder always fails with a plain error.
type brokenEmbedder struct{ embed.Embedder }

func (brokenEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model crashed")
}

func TestIndexer_IndexDocument_EmbeddingErrorsAreTyped(t *testing.T) {
	ix, err := NewIndexer(newMemoryStore(t, 8), brokenEmbedder{embed.NewStaticEmbedder(8)})
	require.NoError(t, err)
	doc := testDocument("a", "Alpha text.")

	err = ix.IndexDocument(context.Background(), doc, chunkDoc(t, doc))

	assert.ErrorIs(t, err, cerrors.ErrEmbeddingFailed)
}

func TestNewIndexer_RequiresDependencies(t *testing.T) {
	_, err := NewIndexer(nil, embed.NewStaticEmbedder(8))
	assert.Error(t, err)
	_, err = NewIndexer(newMemoryStore(t, 8), nil)
	assert.Error(t, err)
}
