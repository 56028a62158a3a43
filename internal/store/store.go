// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package store

import "context"

// ToolStore persists tool records.
type ToolStore interface {
	// CreateTool inserts a tool in its own transaction. A name collision
	// returns ErrConflict and leaves no partial state.
	CreateTool(ctx context.Context, fields ToolFields) (*Tool, error)
	GetTool(ctx context.Context, id int64) (*Tool, error)
	// GetTools looks up many ids in one round trip. Missing ids are absent
	// from the returned map.
	GetTools(ctx context.Context, ids []int64) (map[int64]*Tool, error)
	ListTools(ctx context.Context, opts ListOpts) ([]*Tool, error)
	// UpdateTool replaces the caller fields and bumps the revision.
	UpdateTool(ctx context.Context, id int64, fields ToolFields) (*Tool, error)
	DeleteTool(ctx context.Context, id int64) error
	// ToolRevisions returns id -> revision for every tool.
	ToolRevisions(ctx context.Context) (map[int64]int64, error)
}

// HistoryStore persists the search history log.
type HistoryStore interface {
	AppendHistory(ctx context.Context, query string, results []ResultSnapshot) (*SearchHistoryRecord, error)
	// ListHistory returns records newest first.
	ListHistory(ctx context.Context, opts ListOpts) ([]*SearchHistoryRecord, error)
	ReplaceHistoryResults(ctx context.Context, id int64, results []ResultSnapshot) error
}

// RecordStore is the transactional source of truth.
type RecordStore interface {
	ToolStore
	HistoryStore
	// Reset drops all records and restarts id sequences.
	Reset(ctx context.Context) error
	Close() error
}

// VectorIndex stores tool embeddings for nearest-neighbour search. It is a
// derived view of the record store and may lag behind it.
type VectorIndex interface {
	// Upsert writes or replaces the entry for e.ID. Idempotent. An entry
	// with a higher payload revision is kept, so the newest revision wins.
	Upsert(ctx context.Context, e VectorEntry) error
	// Get returns the payload stored for id, or ErrNotFound.
	Get(ctx context.Context, id int64) (*VectorPayload, error)
	// Delete removes entries by id. Missing ids are not an error.
	Delete(ctx context.Context, ids []int64) error
	// Search returns at most limit entries with score >= minScore, best first.
	Search(ctx context.Context, query []float32, limit int, minScore float64) ([]VectorResult, error)
	// Revisions returns id -> payload revision for every entry.
	Revisions(ctx context.Context) (map[int64]int64, error)
	Dimensions() int
	Reset(ctx context.Context) error
	Close() error
}
