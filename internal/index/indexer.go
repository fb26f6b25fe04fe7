// Package index embeds chunked documents into the vector store, skipping
// documents whose content checksum is unchanged, and drives full corpus
// indexing passes.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/corpusrank/internal/chunk"
	"github.com/Aman-CERP/corpusrank/internal/corpus"
	"github.com/Aman-CERP/corpusrank/internal/embed"
	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
	"github.com/Aman-CERP/corpusrank/internal/store"
)

// Indexer writes chunk records to a VectorStore. It never deletes
// implicitly: callers delete a changed document before re-adding it so
// the two steps can be retried independently.
type Indexer struct {
	vector   store.VectorStore
	embedder embed.Embedder
	catalog  *store.Catalog
	now      func() time.Time
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithCatalog records each indexed document and its chunk ids.
func WithCatalog(c *store.Catalog) IndexerOption {
	return func(ix *Indexer) { ix.catalog = c }
}

// NewIndexer creates an Indexer over vector and embedder.
func NewIndexer(vector store.VectorStore, embedder embed.Embedder, opts ...IndexerOption) (*Indexer, error) {
	if vector == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	ix := &Indexer{vector: vector, embedder: embedder, now: time.Now}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// IndexDocument embeds every chunk in one batch call and upserts the
// records in one batch. Each record carries the chunk fields plus a
// snapshot of the document's fields. Empty chunks is a no-op.
func (ix *Indexer) IndexDocument(ctx context.Context, doc *corpus.Document, chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	start := time.Now()
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if _, ok := cerrors.As(err); ok {
			return fmt.Errorf("embedding %s: %w", doc.SourcePath, err)
		}
		return cerrors.EmbeddingFailed("embedding "+doc.SourcePath, err)
	}
	if len(vectors) != len(chunks) {
		return cerrors.EmbeddingFailed(
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)), nil)
	}

	records := make([]store.Record, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		records[i] = store.Record{
			ID:       c.ID,
			Vector:   vectors[i],
			Content:  c.Content,
			Metadata: chunkMetadata(doc, c).Map(),
		}
		ids[i] = c.ID
	}

	if err := ix.vector.Upsert(ctx, records); err != nil {
		return fmt.Errorf("storing chunks for %s: %w", doc.SourcePath, err)
	}

	if ix.catalog != nil {
		rec := store.DocumentRecord{
			ID:         doc.ID,
			SourcePath: doc.SourcePath,
			Filename:   doc.Filename,
			Format:     doc.Format,
			Checksum:   doc.ContentChecksum,
			Quality:    doc.Quality.String(),
			Tags:       doc.Tags,
			WordCount:  doc.WordCount,
			IndexedAt:  ix.now(),
		}
		if err := ix.catalog.SaveDocument(ctx, rec, ids); err != nil {
			return fmt.Errorf("cataloguing %s: %w", doc.SourcePath, err)
		}
	}

	slog.Debug("document_indexed",
		slog.String("document_id", doc.ID),
		slog.String("source", doc.SourcePath),
		slog.Int("chunks", len(chunks)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func chunkMetadata(doc *corpus.Document, c chunk.Chunk) store.ChunkMetadata {
	return store.ChunkMetadata{
		DocumentID:      doc.ID,
		ChunkIndex:      c.Index,
		SectionHeading:  c.SectionHeading,
		CharStart:       c.CharStart,
		CharEnd:         c.CharEnd,
		Source:          doc.SourcePath,
		Filename:        doc.Filename,
		Format:          doc.Format,
		QualityRating:   doc.Quality.String(),
		IsExternal:      doc.IsExternal,
		Tags:            doc.Tags,
		CreatedDate:     doc.CreatedDate,
		ModifiedDate:    doc.ModifiedDate,
		ContentChecksum: doc.ContentChecksum,

		DocumentFingerprint: doc.Fingerprint(),
	}
}

// DocumentNeedsReindexing reports whether doc is absent from the index,
// its checksum differs from the stored one, or its stored document fields
// (quality, tags, dates, ...) are stale. A failed lookup counts as needing
// reindex.
func (ix *Indexer) DocumentNeedsReindexing(ctx context.Context, doc *corpus.Document) bool {
	if doc.ContentChecksum == "" {
		return true
	}
	md, err := ix.firstChunkMetadata(ctx, doc.ID)
	if err != nil {
		slog.Warn("checksum_lookup_failed",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()))
		return true
	}
	stored := md[store.KeyContentChecksum]
	if stored == "" || stored != doc.ContentChecksum {
		return true
	}
	return md[store.KeyDocumentFingerprint] != doc.Fingerprint()
}

// GetDocumentChecksum reads the checksum stored on the first chunk of
// documentID. It returns "" when the document has no chunks or its
// chunks carry no checksum.
func (ix *Indexer) GetDocumentChecksum(ctx context.Context, documentID string) (string, error) {
	md, err := ix.firstChunkMetadata(ctx, documentID)
	if err != nil {
		return "", err
	}
	return md[store.KeyContentChecksum], nil
}

// firstChunkMetadata is a point lookup of one chunk of documentID. A
// document without chunks yields nil metadata.
func (ix *Indexer) firstChunkMetadata(ctx context.Context, documentID string) (map[string]string, error) {
	records, err := ix.vector.Get(ctx, store.Where{store.KeyDocumentID: documentID}, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0].Metadata, nil
}

// DeleteDocument removes every chunk of documentID.
func (ix *Indexer) DeleteDocument(ctx context.Context, documentID string) error {
	if err := ix.vector.Delete(ctx, nil, store.Where{store.KeyDocumentID: documentID}); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}
	if ix.catalog != nil {
		if err := ix.catalog.DeleteDocument(ctx, documentID); err != nil {
			return err
		}
	}
	return nil
}

// ClearIndex drops and recreates the whole collection.
func (ix *Indexer) ClearIndex(ctx context.Context) error {
	if err := ix.vector.Reset(ctx); err != nil {
		return fmt.Errorf("resetting vector store: %w", err)
	}
	if ix.catalog != nil {
		if err := ix.catalog.Clear(ctx); err != nil {
			return err
		}
	}
	slog.Info("index_cleared")
	return nil
}

// Flush persists buffered store writes when the backend buffers them.
func (ix *Indexer) Flush() error {
	if f, ok := ix.vector.(store.Flusher); ok {
		return f.Flush()
	}
	return nil
}
