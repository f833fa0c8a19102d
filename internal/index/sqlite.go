package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// formatVersion is the on-disk index format version. Bumped on any schema
// or encoding change; a mismatch on load is treated as corruption.
const formatVersion = 1

const indexSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id          INTEGER PRIMARY KEY,
	chunk_id    TEXT NOT NULL,
	document_id TEXT NOT NULL,
	page        INTEGER NOT NULL,
	start       INTEGER NOT NULL,
	end         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	vector      BLOB NOT NULL
);
`

// Save writes the full index state to a single SQLite file at path,
// replacing whatever was there. The write happens in one transaction against
// a temp file that is renamed over the target, so a crash mid-save leaves
// the previous artifact intact rather than a truncated one.
func (l *Local) Save(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index: create directory for %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("index: remove stale temp file %s: %w", tmp, err)
	}

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("index: open %s: %w", tmp, err)
	}

	l.mu.RLock()
	err = l.writeAll(ctx, db)
	l.mu.RUnlock()

	if cerr := db.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("index: close %s: %w", tmp, cerr)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("index: replace %s: %w", path, err)
	}
	return nil
}

func (l *Local) writeAll(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, indexSchema); err != nil {
		return fmt.Errorf("index: create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin save transaction: %w", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		"format_version": fmt.Sprintf("%d", formatVersion),
		"dimension":      fmt.Sprintf("%d", l.dimension),
		"model":          l.model,
		"entry_count":    fmt.Sprintf("%d", len(l.entries)),
		"next_id":        fmt.Sprintf("%d", l.nextID),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("index: write meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, chunk_id, document_id, page, start, end, text, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range l.entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.ChunkID, e.DocumentID, e.Page, e.Start, e.End, e.Text, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("index: write entry %s: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit save: %w", err)
	}
	return nil
}

// LoadLocal reads a previously saved index from path. A missing file is
// reported as-is (wrapping os.ErrNotExist) so the caller can start fresh;
// any structural problem — missing metadata, version or dimension or model
// mismatch, malformed vectors, an entry count that disagrees with the
// metadata — wraps rag.ErrIndexCorrupt and must not yield a partial index.
func LoadLocal(ctx context.Context, path string, dimension int, model string) (*Local, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index: stat %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("index: %s: %w: %v", path, rag.ErrIndexCorrupt, err)
	}

	var gotVersion, gotDim, wantCount int
	var gotModel string
	var gotNextID int64
	if _, err := fmt.Sscanf(meta["format_version"], "%d", &gotVersion); err != nil || gotVersion != formatVersion {
		return nil, fmt.Errorf("index: %s: %w: format version %q, want %d", path, rag.ErrIndexCorrupt, meta["format_version"], formatVersion)
	}
	if _, err := fmt.Sscanf(meta["dimension"], "%d", &gotDim); err != nil || gotDim != dimension {
		return nil, fmt.Errorf("index: %s: %w: stored dimension %q, configured model uses %d", path, rag.ErrIndexCorrupt, meta["dimension"], dimension)
	}
	gotModel = meta["model"]
	if gotModel != model {
		return nil, fmt.Errorf("index: %s: %w: built with embedding model %q, configured model is %q — re-ingest required", path, rag.ErrIndexCorrupt, gotModel, model)
	}
	if _, err := fmt.Sscanf(meta["entry_count"], "%d", &wantCount); err != nil {
		return nil, fmt.Errorf("index: %s: %w: bad entry_count %q", path, rag.ErrIndexCorrupt, meta["entry_count"])
	}
	if _, err := fmt.Sscanf(meta["next_id"], "%d", &gotNextID); err != nil || gotNextID < 1 {
		return nil, fmt.Errorf("index: %s: %w: bad next_id %q", path, rag.ErrIndexCorrupt, meta["next_id"])
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, chunk_id, document_id, page, start, end, text, vector
		FROM entries ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("index: %s: %w: read entries: %v", path, rag.ErrIndexCorrupt, err)
	}
	defer rows.Close()

	entries := make([]rag.IndexEntry, 0, wantCount)
	for rows.Next() {
		var e rag.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.ID, &e.ChunkID, &e.DocumentID, &e.Page, &e.Start, &e.End, &e.Text, &blob); err != nil {
			return nil, fmt.Errorf("index: %s: %w: scan entry: %v", path, rag.ErrIndexCorrupt, err)
		}
		e.Vector, err = decodeVector(blob, dimension)
		if err != nil {
			return nil, fmt.Errorf("index: %s: %w: entry %s: %v", path, rag.ErrIndexCorrupt, e.ChunkID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: %s: %w: read entries: %v", path, rag.ErrIndexCorrupt, err)
	}
	if len(entries) != wantCount {
		return nil, fmt.Errorf("index: %s: %w: metadata says %d entries, found %d", path, rag.ErrIndexCorrupt, wantCount, len(entries))
	}

	return &Local{
		dimension: dimension,
		model:     model,
		nextID:    gotNextID,
		entries:   entries,
	}, nil
}

func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("read meta table: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta row: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read meta table: %w", err)
	}
	for _, key := range []string{"format_version", "dimension", "model", "entry_count", "next_id"} {
		if _, ok := meta[key]; !ok {
			return nil, fmt.Errorf("missing metadata key %q", key)
		}
	}
	return meta, nil
}

// encodeVector serializes a float32 vector as a little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(blob []byte, dimension int) ([]float32, error) {
	if len(blob) != 4*dimension {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d for dimension %d", len(blob), 4*dimension, dimension)
	}
	v := make([]float32, dimension)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return v, nil
}
