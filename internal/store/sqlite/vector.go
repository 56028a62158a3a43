// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/toolsearch/toolsearch/internal/store"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements store.VectorIndex backed by a sqlite-vec vec0
// table using the cosine distance metric. Payloads live in a companion
// table keyed by the same tool id.
type VectorIndex struct {
	db         *sql.DB
	dimensions int
}

// NewVectorIndex opens (or creates) a SQLite database at dbPath and
// initialises the vec0 virtual table. Opening an index created with a
// different dimension fails.
func NewVectorIndex(dbPath string, dimensions int) (*VectorIndex, error) {
	return openVectorIndex(dbPath, dimensions, false)
}

// RebuildVectorIndex opens the index at dbPath after dropping every entry
// and the recorded dimensions. It recovers an index built for a different
// embedding model.
func RebuildVectorIndex(dbPath string, dimensions int) (*VectorIndex, error) {
	return openVectorIndex(dbPath, dimensions, true)
}

func openVectorIndex(dbPath string, dimensions int, rebuild bool) (*VectorIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d: %w", dimensions, store.ErrInvalidInput)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	ctx := context.Background()
	if rebuild {
		if err := dropVector(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if err := migrateVector(ctx, db, dimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating vector tables: %w", err)
	}

	return &VectorIndex{db: db, dimensions: dimensions}, nil
}

func migrateVector(ctx context.Context, db *sql.DB, dimensions int) error {
	const metaDDL = `CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	if _, err := db.ExecContext(ctx, metaDDL); err != nil {
		return fmt.Errorf("creating index_meta table: %w", err)
	}

	var stored string
	err := db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx,
			`INSERT INTO index_meta(key, value) VALUES ('dimensions', ?)`, strconv.Itoa(dimensions)); err != nil {
			return fmt.Errorf("recording index dimensions: %w", err)
		}
	case err != nil:
		return fmt.Errorf("reading index dimensions: %w", err)
	default:
		if stored != strconv.Itoa(dimensions) {
			return fmt.Errorf("index was built with %s dimensions, embedding provider yields %d: %w",
				stored, dimensions, store.ErrInvalidInput)
		}
	}

	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS tool_vectors USING vec0(tool_id INTEGER PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.ExecContext(ctx, vecDDL); err != nil {
		return fmt.Errorf("creating tool_vectors virtual table: %w", err)
	}

	const payloadDDL = `CREATE TABLE IF NOT EXISTS tool_payloads (
	tool_id  INTEGER PRIMARY KEY,
	revision INTEGER NOT NULL DEFAULT 0,
	payload  TEXT    NOT NULL DEFAULT '{}'
)`
	if _, err := db.ExecContext(ctx, payloadDDL); err != nil {
		return fmt.Errorf("creating tool_payloads table: %w", err)
	}

	return nil
}

// Dimensions reports the vector length the index was built for.
func (v *VectorIndex) Dimensions() int { return v.dimensions }

// Upsert inserts or replaces the vector and payload for e.ID. An entry
// already holding a newer revision is left untouched, so concurrent writers
// converge on the highest revision whatever order they commit in.
func (v *VectorIndex) Upsert(ctx context.Context, e store.VectorEntry) error {
	if len(e.Vector) != v.dimensions {
		return fmt.Errorf("vector for tool %d has %d dimensions, index expects %d: %w",
			e.ID, len(e.Vector), v.dimensions, store.ErrInvalidInput)
	}

	blob, err := sqlite_vec.SerializeFloat32(e.Vector)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}

	payload := e.Payload
	payload.ToolID = e.ID
	if payload.Tags == nil {
		payload.Tags = []string{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM tool_payloads WHERE tool_id = ?`, e.ID).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("reading revision of %d: %w", e.ID, err)
	case stored > payload.Revision:
		return nil
	}

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM tool_vectors WHERE tool_id = ?`, e.ID); err != nil {
		return fmt.Errorf("deleting existing vector %d: %w", e.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO tool_vectors(tool_id, embedding) VALUES (?, ?)`, e.ID, blob); err != nil {
		return fmt.Errorf("inserting vector %d: %w", e.ID, err)
	}

	const payloadQ = `INSERT INTO tool_payloads(tool_id, revision, payload) VALUES (?, ?, ?)
ON CONFLICT(tool_id) DO UPDATE SET revision = excluded.revision, payload = excluded.payload
WHERE excluded.revision >= tool_payloads.revision`
	if _, err := tx.ExecContext(ctx, payloadQ, e.ID, payload.Revision, string(raw)); err != nil {
		return fmt.Errorf("upserting payload %d: %w", e.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector upsert: %w", err)
	}
	return nil
}

// Get returns the payload of an entry that has both a vector and a payload row.
func (v *VectorIndex) Get(ctx context.Context, id int64) (*store.VectorPayload, error) {
	const q = `SELECT p.payload FROM tool_payloads p
JOIN tool_vectors v ON v.tool_id = p.tool_id
WHERE p.tool_id = ?`

	var raw string
	err := v.db.QueryRowContext(ctx, q, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vector %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting vector %d: %w", id, err)
	}

	var p store.VectorPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("unmarshalling payload %d: %w", id, err)
	}
	return &p, nil
}

// Search performs a k-nearest-neighbour search and drops hits scoring below
// minScore. Score is 1 - cosine distance.
func (v *VectorIndex) Search(ctx context.Context, query []float32, limit int, minScore float64) ([]store.VectorResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	if len(query) != v.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d: %w",
			len(query), v.dimensions, store.ErrInvalidInput)
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serializing query vector: %w", err)
	}

	const q = `SELECT v.tool_id, v.distance, COALESCE(p.payload, '{}')
FROM tool_vectors v
LEFT JOIN tool_payloads p ON p.tool_id = v.tool_id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := v.db.QueryContext(ctx, q, blob, limit)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []store.VectorResult
	for rows.Next() {
		var (
			r        store.VectorResult
			distance float64
			raw      string
		)
		if err := rows.Scan(&r.ID, &distance, &raw); err != nil {
			return nil, fmt.Errorf("scanning vector result: %w", err)
		}

		r.Score = 1 - distance
		if r.Score < minScore {
			// Rows arrive ordered by distance, nothing after this can pass.
			break
		}

		if err := json.Unmarshal([]byte(raw), &r.Payload); err != nil {
			return nil, fmt.Errorf("unmarshalling payload %d: %w", r.ID, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector results: %w", err)
	}

	return results, nil
}

// Delete removes vectors and payloads by id.
func (v *VectorIndex) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(ids); start += lookupChunk {
		chunk := ids[start:min(start+lookupChunk, len(ids))]
		in := placeholders(len(chunk))
		args := int64Args(chunk)

		if _, err := tx.ExecContext(ctx, `DELETE FROM tool_vectors WHERE tool_id IN (`+in+`)`, args...); err != nil {
			return fmt.Errorf("deleting vectors: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tool_payloads WHERE tool_id IN (`+in+`)`, args...); err != nil {
			return fmt.Errorf("deleting payloads: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector delete: %w", err)
	}
	return nil
}

// Revisions maps every indexed tool id to its payload revision. An id with a
// vector but no payload row reports revision 0.
func (v *VectorIndex) Revisions(ctx context.Context) (map[int64]int64, error) {
	const q = `SELECT v.tool_id, COALESCE(p.revision, 0)
FROM tool_vectors v
LEFT JOIN tool_payloads p ON p.tool_id = v.tool_id`

	rows, err := v.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing vector revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]int64)
	for rows.Next() {
		var id, rev int64
		if err := rows.Scan(&id, &rev); err != nil {
			return nil, fmt.Errorf("scanning vector revision: %w", err)
		}
		out[id] = rev
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vector revisions: %w", err)
	}
	return out, nil
}

// Reset drops and recreates the index tables.
func (v *VectorIndex) Reset(ctx context.Context) error {
	if err := dropVector(ctx, v.db); err != nil {
		return err
	}
	return migrateVector(ctx, v.db, v.dimensions)
}

func dropVector(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS tool_vectors`,
		`DROP TABLE IF EXISTS tool_payloads`,
		`DROP TABLE IF EXISTS index_meta`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("resetting vector index: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}
