// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/toolsearch/toolsearch/internal/store"
)

// Compile-time interface check.
var _ store.RecordStore = (*RecordStore)(nil)

// lookupChunk caps the number of bound parameters per IN (...) query.
const lookupChunk = 500

// RecordStore implements store.RecordStore backed by SQLite. Schema changes
// are applied with goose on open.
type RecordStore struct {
	db       *sql.DB
	migrator *goose.Provider
	now      func() time.Time
}

// NewRecordStore opens (or creates) a SQLite database at dbPath and applies
// pending migrations.
func NewRecordStore(dbPath string) (*RecordStore, error) {
	// _txlock=immediate makes read-then-write transactions take the writer
	// lock up front so concurrent updates serialise instead of failing with
	// SQLITE_BUSY on upgrade.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	migrator, err := newMigrator(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := migrator.Up(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating record store: %w", err)
	}

	return &RecordStore{db: db, migrator: migrator, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

// Reset rolls every migration back and re-applies them. Dropping the
// AUTOINCREMENT tables clears their sqlite_sequence rows, so ids restart at 1.
func (s *RecordStore) Reset(ctx context.Context) error {
	if _, err := s.migrator.DownTo(ctx, 0); err != nil {
		return fmt.Errorf("rolling back record store: %w", err)
	}
	if _, err := s.migrator.Up(ctx); err != nil {
		return fmt.Errorf("re-applying record store migrations: %w", err)
	}
	slog.Info("record store reset")
	return nil
}

const toolColumns = `id, name, description, tags, metadata, revision, created_at, updated_at`

func (s *RecordStore) CreateTool(ctx context.Context, fields store.ToolFields) (*store.Tool, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	tags, meta, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}

	now := formatTime(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO tools (name, description, tags, metadata, revision, created_at, updated_at)
VALUES (?, ?, ?, ?, 1, ?, ?)`
	res, err := tx.ExecContext(ctx, q, fields.Name, fields.Description, tags, meta, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("creating tool %q: %w", fields.Name, store.ErrConflict)
		}
		return nil, fmt.Errorf("creating tool %q: %w", fields.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading new tool id: %w", err)
	}

	tool, err := getTool(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing tool create: %w", err)
	}
	return tool, nil
}

func (s *RecordStore) GetTool(ctx context.Context, id int64) (*store.Tool, error) {
	return getTool(ctx, s.db, id)
}

func (s *RecordStore) GetTools(ctx context.Context, ids []int64) (map[int64]*store.Tool, error) {
	out := make(map[int64]*store.Tool, len(ids))
	for start := 0; start < len(ids); start += lookupChunk {
		end := min(start+lookupChunk, len(ids))
		chunk := ids[start:end]

		q := `SELECT ` + toolColumns + ` FROM tools WHERE id IN (` + placeholders(len(chunk)) + `)`
		rows, err := s.db.QueryContext(ctx, q, int64Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("looking up tools: %w", err)
		}
		tools, err := scanTools(rows)
		if err != nil {
			return nil, err
		}
		for _, t := range tools {
			out[t.ID] = t
		}
	}
	return out, nil
}

func (s *RecordStore) ListTools(ctx context.Context, opts store.ListOpts) ([]*store.Tool, error) {
	limit, offset := pageBounds(opts)
	q := `SELECT ` + toolColumns + ` FROM tools ORDER BY id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	return scanTools(rows)
}

func (s *RecordStore) UpdateTool(ctx context.Context, id int64, fields store.ToolFields) (*store.Tool, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	tags, meta, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `UPDATE tools
SET name = ?, description = ?, tags = ?, metadata = ?, revision = revision + 1, updated_at = ?
WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, fields.Name, fields.Description, tags, meta, formatTime(s.now()), id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("renaming tool %d to %q: %w", id, fields.Name, store.ErrConflict)
		}
		return nil, fmt.Errorf("updating tool %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected for tool %d: %w", id, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("tool %d: %w", id, store.ErrNotFound)
	}

	tool, err := getTool(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing tool update: %w", err)
	}
	return tool, nil
}

func (s *RecordStore) DeleteTool(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tools WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tool %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for tool %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("tool %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *RecordStore) ToolRevisions(ctx context.Context) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, revision FROM tools`)
	if err != nil {
		return nil, fmt.Errorf("listing tool revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]int64)
	for rows.Next() {
		var id, rev int64
		if err := rows.Scan(&id, &rev); err != nil {
			return nil, fmt.Errorf("scanning tool revision: %w", err)
		}
		out[id] = rev
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool revisions: %w", err)
	}
	return out, nil
}

func (s *RecordStore) AppendHistory(ctx context.Context, query string, results []store.ResultSnapshot) (*store.SearchHistoryRecord, error) {
	if results == nil {
		results = []store.ResultSnapshot{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("marshalling history results: %w", err)
	}

	createdAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history (query, results, created_at) VALUES (?, ?, ?)`,
		query, string(raw), formatTime(createdAt),
	)
	if err != nil {
		return nil, fmt.Errorf("appending search history: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading history id: %w", err)
	}

	return &store.SearchHistoryRecord{
		ID:        id,
		Query:     query,
		Results:   results,
		CreatedAt: createdAt,
	}, nil
}

func (s *RecordStore) ListHistory(ctx context.Context, opts store.ListOpts) ([]*store.SearchHistoryRecord, error) {
	limit, offset := pageBounds(opts)
	const q = `SELECT id, query, results, created_at FROM search_history
ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing search history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*store.SearchHistoryRecord
	for rows.Next() {
		var (
			rec       store.SearchHistoryRecord
			raw       string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Query, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.Results); err != nil {
			return nil, fmt.Errorf("unmarshalling history %d results: %w", rec.ID, err)
		}
		if rec.Results == nil {
			rec.Results = []store.ResultSnapshot{}
		}
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return out, nil
}

func (s *RecordStore) ReplaceHistoryResults(ctx context.Context, id int64, results []store.ResultSnapshot) error {
	if results == nil {
		results = []store.ResultSnapshot{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshalling history results: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE search_history SET results = ? WHERE id = ?`, string(raw), id)
	if err != nil {
		return fmt.Errorf("rewriting history %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for history %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("history %d: %w", id, store.ErrNotFound)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTool(ctx context.Context, q queryer, id int64) (*store.Tool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM tools WHERE id = ?`, id)
	t, err := scanTool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tool %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting tool %d: %w", id, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTool(sc scanner) (*store.Tool, error) {
	var (
		t          store.Tool
		tags, meta string
		created    string
		updated    string
	)
	if err := sc.Scan(&t.ID, &t.Name, &t.Description, &tags, &meta, &t.Revision, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return nil, fmt.Errorf("unmarshalling tags of tool %d: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata of tool %d: %w", t.ID, err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return &t, nil
}

func scanTools(rows *sql.Rows) ([]*store.Tool, error) {
	defer func() { _ = rows.Close() }()

	var out []*store.Tool
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tool row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool rows: %w", err)
	}
	return out, nil
}

func encodeFields(f store.ToolFields) (tags, meta string, err error) {
	t := f.Tags
	if t == nil {
		t = []string{}
	}
	m := f.Metadata
	if m == nil {
		m = map[string]any{}
	}

	rawTags, err := json.Marshal(t)
	if err != nil {
		return "", "", fmt.Errorf("marshalling tags: %w", err)
	}
	rawMeta, err := json.Marshal(m)
	if err != nil {
		return "", "", fmt.Errorf("marshalling metadata: %w: %w", store.ErrInvalidInput, err)
	}
	return string(rawTags), string(rawMeta), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// pageBounds turns ListOpts into LIMIT/OFFSET values. A non-positive limit
// means no limit.
func pageBounds(opts store.ListOpts) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset = max(opts.Offset, 0)
	return limit, offset
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// storedTimeLayout is fixed width so text ordering matches time ordering.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime serialises a time value for storage in SQLite.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimeLayout)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
