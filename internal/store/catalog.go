package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	cerrors "github.com/Aman-CERP/corpusrank/internal/errors"
)

// ErrNotFound is returned by catalog lookups for unknown documents.
var ErrNotFound = errors.New("not found")

// DocumentRecord is the catalog row for one indexed document.
type DocumentRecord struct {
	ID         string
	SourcePath string
	Filename   string
	Format     string
	Checksum   string
	Quality    string
	Tags       []string
	WordCount  int
	ChunkCount int
	IndexedAt  time.Time
}

// CatalogStats summarizes the catalog.
type CatalogStats struct {
	Documents int
	Chunks    int
	LastIndex time.Time
}

// Catalog is the SQLite record of which documents are indexed, their
// checksums and chunk ids, plus a small key/value state table used for
// the embedding model fingerprint.
type Catalog struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// State keys written by the indexer.
const (
	StateEmbeddingModel      = "embedding_model"
	StateEmbeddingDimensions = "embedding_dimensions"
)

// OpenCatalog opens (or creates) the catalog database at path.
// ":memory:" opens a private in-memory database.
func OpenCatalog(path string) (*Catalog, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, cerrors.StoreUnavailable("creating catalog directory", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cerrors.StoreUnavailable("opening catalog", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	if path != ":memory:" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cerrors.StoreUnavailable("setting catalog pragma", err)
		}
	}

	c := &Catalog{db: db, path: path}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, cerrors.StoreUnavailable("initializing catalog schema", err)
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		filename    TEXT NOT NULL,
		format      TEXT NOT NULL,
		checksum    TEXT NOT NULL,
		quality     TEXT NOT NULL,
		tags        TEXT NOT NULL DEFAULT '',
		word_count  INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL,
		indexed_at  INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := c.db.Exec(schema)
	return err
}

// SaveDocument replaces the row for rec.ID and its chunk list.
func (c *Catalog) SaveDocument(ctx context.Context, rec DocumentRecord, chunkIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cerrors.StoreUnavailable("catalog is closed", nil)
	}

	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = time.Now()
	}
	rec.ChunkCount = len(chunkIDs)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return cerrors.StoreUnavailable("beginning catalog transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, rec.ID); err != nil {
		return cerrors.StoreUnavailable("clearing catalog chunks", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, source_path, filename, format, checksum, quality, tags, word_count, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_path = excluded.source_path,
			filename    = excluded.filename,
			format      = excluded.format,
			checksum    = excluded.checksum,
			quality     = excluded.quality,
			tags        = excluded.tags,
			word_count  = excluded.word_count,
			chunk_count = excluded.chunk_count,
			indexed_at  = excluded.indexed_at`,
		rec.ID, rec.SourcePath, rec.Filename, rec.Format, rec.Checksum, rec.Quality,
		strings.Join(rec.Tags, ","), rec.WordCount, rec.ChunkCount, rec.IndexedAt.UnixNano())
	if err != nil {
		return cerrors.StoreUnavailable("saving catalog document", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (id, document_id, chunk_index) VALUES (?, ?, ?)`)
	if err != nil {
		return cerrors.StoreUnavailable("preparing catalog chunk insert", err)
	}
	defer stmt.Close()
	for i, id := range chunkIDs {
		if _, err := stmt.ExecContext(ctx, id, rec.ID, i); err != nil {
			return cerrors.StoreUnavailable("saving catalog chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cerrors.StoreUnavailable("committing catalog transaction", err)
	}
	return nil
}

// GetDocument returns the row for id, or ErrNotFound.
func (c *Catalog) GetDocument(ctx context.Context, id string) (DocumentRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return DocumentRecord{}, cerrors.StoreUnavailable("catalog is closed", nil)
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT id, source_path, filename, format, checksum, quality, tags, word_count, chunk_count, indexed_at
		FROM documents WHERE id = ?`, id)
	rec, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRecord{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return DocumentRecord{}, cerrors.StoreUnavailable("reading catalog document", err)
	}
	return rec, nil
}

// ListDocuments returns every row ordered by source path.
func (c *Catalog) ListDocuments(ctx context.Context) ([]DocumentRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, cerrors.StoreUnavailable("catalog is closed", nil)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, source_path, filename, format, checksum, quality, tags, word_count, chunk_count, indexed_at
		FROM documents ORDER BY source_path, id`)
	if err != nil {
		return nil, cerrors.StoreUnavailable("listing catalog documents", err)
	}
	defer rows.Close()

	var out []DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, cerrors.StoreUnavailable("scanning catalog document", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ChunkIDs returns the chunk ids recorded for a document in chunk order.
func (c *Catalog) ChunkIDs(ctx context.Context, documentID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, cerrors.StoreUnavailable("catalog is closed", nil)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, cerrors.StoreUnavailable("listing catalog chunks", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, cerrors.StoreUnavailable("scanning catalog chunk", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument removes a document and its chunk rows. Unknown ids are a no-op.
func (c *Catalog) DeleteDocument(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cerrors.StoreUnavailable("catalog is closed", nil)
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return cerrors.StoreUnavailable("deleting catalog document", err)
	}
	return nil
}

// Clear removes every document and chunk row. State is kept.
func (c *Catalog) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cerrors.StoreUnavailable("catalog is closed", nil)
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM chunks; DELETE FROM documents;`); err != nil {
		return cerrors.StoreUnavailable("clearing catalog", err)
	}
	return nil
}

// Stats returns document and chunk totals and the latest index time.
func (c *Catalog) Stats(ctx context.Context) (CatalogStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return CatalogStats{}, cerrors.StoreUnavailable("catalog is closed", nil)
	}

	var stats CatalogStats
	var last sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(chunk_count), 0), MAX(indexed_at) FROM documents`).
		Scan(&stats.Documents, &stats.Chunks, &last)
	if err != nil {
		return CatalogStats{}, cerrors.StoreUnavailable("reading catalog stats", err)
	}
	if last.Valid {
		stats.LastIndex = time.Unix(0, last.Int64)
	}
	return stats, nil
}

// GetState returns the value for key, or "" when unset.
func (c *Catalog) GetState(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", cerrors.StoreUnavailable("catalog is closed", nil)
	}

	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", cerrors.StoreUnavailable("reading catalog state", err)
	}
	return value, nil
}

// SetState upserts a state value.
func (c *Catalog) SetState(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cerrors.StoreUnavailable("catalog is closed", nil)
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return cerrors.StoreUnavailable("writing catalog state", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.path != ":memory:" {
		if _, err := c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			slog.Warn("catalog_checkpoint_failed", slog.String("error", err.Error()))
		}
	}
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (DocumentRecord, error) {
	var rec DocumentRecord
	var tags string
	var indexedAt int64
	err := row.Scan(&rec.ID, &rec.SourcePath, &rec.Filename, &rec.Format, &rec.Checksum,
		&rec.Quality, &tags, &rec.WordCount, &rec.ChunkCount, &indexedAt)
	if err != nil {
		return DocumentRecord{}, err
	}
	rec.Tags = SplitTags(tags)
	rec.IndexedAt = time.Unix(0, indexedAt)
	return rec, nil
}
