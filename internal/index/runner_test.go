package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/corpusrank/internal/chunk"
	"github.com/Aman-CERP/corpusrank/internal/corpus"
	"github.com/Aman-CERP/corpusrank/internal/embed"
	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

type runnerFixture struct {
	root    string
	dataDir string
	runner  *Runner
	vector  store.VectorStore
	catalog *store.Catalog
}

func newRunnerFixture(t *testing.T, embedder embed.Embedder) *runnerFixture {
	t.Helper()
	root := t.TempDir()
	dataDir := t.TempDir()

	vector, err := store.Open(store.Config{Backend: store.BackendHNSW, Dimensions: embedder.Dimensions()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = vector.Close() })
	catalog, err := store.OpenCatalog(filepath.Join(dataDir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	loader, err := corpus.NewLoader(root, nil, nil)
	require.NoError(t, err)
	chunker, err := chunk.New(chunk.StrategyParagraph, chunk.DefaultOptions())
	require.NoError(t, err)
	ix, err := NewIndexer(vector, embedder, WithCatalog(catalog))
	require.NoError(t, err)

	runner, err := NewRunner(RunnerDependencies{
		Loader:   loader,
		Chunker:  chunker,
		Indexer:  ix,
		Catalog:  catalog,
		Embedder: embedder,
		DataDir:  dataDir,
		Workers:  2,
	})
	require.NoError(t, err)
	return &runnerFixture{root: root, dataDir: dataDir, runner: runner, vector: vector, catalog: catalog}
}

func (f *runnerFixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunner_Run_IndexesThenSkipsUnchanged(t *testing.T) {
	// Given: a corpus of two files
	f := newRunnerFixture(t, embed.NewStaticEmbedder(32))
	f.write(t, "a.md", "# A\n\nAlpha paragraph.")
	f.write(t, "notes/b.txt", "Beta paragraph one.\n\nBeta paragraph two.")
	ctx := context.Background()

	// When: indexing twice
	first, err := f.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)
	second, err := f.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	// Then: the first pass indexes both, the second skips both
	assert.Equal(t, 2, first.Scanned)
	assert.Equal(t, 2, first.Indexed)
	assert.Positive(t, first.Chunks)
	assert.Equal(t, 0, second.Indexed)
	assert.Equal(t, 2, second.Skipped)

	docs, err := f.catalog.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestRunner_Run_ReplacesChangedAndRemovesDeleted(t *testing.T) {
	f := newRunnerFixture(t, embed.NewStaticEmbedder(32))
	f.write(t, "a.md", "Original alpha.")
	f.write(t, "b.md", "Original beta.")
	ctx := context.Background()
	_, err := f.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	// When: a is edited and b is deleted
	f.write(t, "a.md", "Edited alpha.\n\nWith a second paragraph.")
	require.NoError(t, os.Remove(filepath.Join(f.root, "b.md")))
	stats, err := f.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	// Then: a is reindexed with no stale chunks, b is gone
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Removed)

	records, err := f.vector.Get(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Edited alpha.\n\nWith a second paragraph.", records[0].Content)
	assert.Equal(t, corpus.IDForPath("a.md"), records[0].Metadata[store.KeyDocumentID])
}

func TestRunner_Run_ReindexesFrontMatterOnlyEdit(t *testing.T) {
	// Given: an indexed markdown file with quality and tags
	f := newRunnerFixture(t, embed.NewStaticEmbedder(32))
	f.write(t, "a.md", "---\nquality: preferred\ntags: [go]\n---\nSame body text.")
	ctx := context.Background()
	_, err := f.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	// When: only the front matter changes
	f.write(t, "a.md", "---\nquality: deprecated\ntags: [old]\n---\nSame body text.")
	stats, err := f.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	// Then: the document is reindexed and its chunks carry the new fields
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 0, stats.Skipped)
	records, err := f.vector.Get(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "deprecated", records[0].Metadata[store.KeyQualityRating])
	assert.Equal(t, "old", records[0].Metadata[store.KeyTags])
}

func TestRunner_Run_ReindexesTouchedTextFile(t *testing.T) {
	// Given: an indexed text file
	f := newRunnerFixture(t, embed.NewStaticEmbedder(32))
	f.write(t, "notes.txt", "Unchanged text.")
	ctx := context.Background()
	_, err := f.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	// When: its mtime moves without a content change
	later := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(f.root, "notes.txt"), later, later))
	stats, err := f.runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	// Then: the stored modified date follows the file
	assert.Equal(t, 1, stats.Indexed)
	records, err := f.vector.Get(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	modified := store.ParseDate(records[0].Metadata[store.KeyModifiedDate])
	require.NotNil(t, modified)
	assert.True(t, later.Equal(*modified))
}

func TestRunner_Run_CountsUnreadableFilesWithoutAborting(t *testing.T) {
	f := newRunnerFixture(t, embed.NewStaticEmbedder(32))
	f.write(t, "good.md", "Fine content.")
	f.write(t, "bad.md", "---\nquality: platinum\n---\nbody")

	stats, err := f.runner.Run(context.Background(), RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Failed)
}

func TestRunner_Run_RefusesModelChangeWithoutForce(t *testing.T) {
	f := newRunnerFixture(t, embed.NewStaticEmbedder(32))
	f.write(t, "a.md", "Alpha.")
	ctx := context.Background()
	require.NoError(t, f.catalog.SetState(ctx, store.StateEmbeddingModel, "nomic-embed-text"))
	require.NoError(t, f.catalog.SetState(ctx, store.StateEmbeddingDimensions, "768"))

	_, err := f.runner.Run(ctx, RunOptions{})
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeModelMismatch, cerrors.GetCode(err))

	stats, err := f.runner.Run(ctx, RunOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)

	model, err := f.catalog.GetState(ctx, store.StateEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, "static-32", model)
}

func TestRunner_Run_FailsWhenLockIsHeld(t *testing.T) {
	f := newRunnerFixture(t, embed.NewStaticEmbedder(32))
	other := flock.New(filepath.Join(f.dataDir, LockFileName))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = other.Unlock() }()

	_, err = f.runner.Run(context.Background(), RunOptions{})

	assert.Equal(t, cerrors.ErrCodeIndexLocked, cerrors.GetCode(err))
}

func TestRunner_IndexPathsAndRemovePaths(t *testing.T) {
	f := newRunnerFixture(t, embed.NewStaticEmbedder(32))
	f.write(t, "a.md", "Alpha.")
	ctx := context.Background()

	stats, err := f.runner.IndexPaths(ctx, []string{"a.md"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)

	removed, err := f.runner.RemovePaths(ctx, []string{"a.md"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	n, err := f.vector.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRunner_RequiresDependencies(t *testing.T) {
	_, err := NewRunner(RunnerDependencies{})
	assert.ErrorContains(t, err, "loader is required")
}
