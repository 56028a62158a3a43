// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package catalog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/toolsearch/toolsearch/internal/catalog"
	"github.com/toolsearch/toolsearch/internal/embedding/embeddingtest"
	"github.com/toolsearch/toolsearch/internal/store"
	"github.com/toolsearch/toolsearch/internal/store/sqlite"
)

var errInjected = errors.New("injected failure")

// vocabulary shared by every catalog test.
var vocab = []string{
	"alpha", "beta", "desc", "other",
	"hammer", "drives", "nails", "pulls",
	"saw", "cuts", "wood", "boards",
	"screwdriver", "turns", "screws",
	"glue", "bonds",
}

// flakyIndex wraps a real index and fails selected operations on demand.
type flakyIndex struct {
	store.VectorIndex
	failUpsert atomic.Bool
	failDelete atomic.Bool
	failSearch atomic.Bool
	failGet    atomic.Bool

	// beforeUpsert runs ahead of every delegated Upsert. Set it before any
	// concurrent use.
	beforeUpsert func(store.VectorEntry)
}

func (f *flakyIndex) Upsert(ctx context.Context, e store.VectorEntry) error {
	if f.failUpsert.Load() {
		return errInjected
	}
	if f.beforeUpsert != nil {
		f.beforeUpsert(e)
	}
	return f.VectorIndex.Upsert(ctx, e)
}

func (f *flakyIndex) Delete(ctx context.Context, ids []int64) error {
	if f.failDelete.Load() {
		return errInjected
	}
	return f.VectorIndex.Delete(ctx, ids)
}

func (f *flakyIndex) Search(ctx context.Context, q []float32, limit int, floor float64) ([]store.VectorResult, error) {
	if f.failSearch.Load() {
		return nil, errInjected
	}
	return f.VectorIndex.Search(ctx, q, limit, floor)
}

func (f *flakyIndex) Get(ctx context.Context, id int64) (*store.VectorPayload, error) {
	if f.failGet.Load() {
		return nil, errInjected
	}
	return f.VectorIndex.Get(ctx, id)
}

// flakyRecords wraps a real record store and can fail history writes.
type flakyRecords struct {
	store.RecordStore
	failAppend  atomic.Bool
	failReplace atomic.Bool
}

func (f *flakyRecords) AppendHistory(ctx context.Context, q string, rs []store.ResultSnapshot) (*store.SearchHistoryRecord, error) {
	if f.failAppend.Load() {
		return nil, errInjected
	}
	return f.RecordStore.AppendHistory(ctx, q, rs)
}

func (f *flakyRecords) ReplaceHistoryResults(ctx context.Context, id int64, rs []store.ResultSnapshot) error {
	if f.failReplace.Load() {
		return errInjected
	}
	return f.RecordStore.ReplaceHistoryResults(ctx, id, rs)
}

type harness struct {
	cat      *catalog.Catalog
	records  *flakyRecords
	index    *flakyIndex
	embedder *embeddingtest.Keyword
	metrics  *catalog.Metrics
}

func newHarness(t *testing.T, opts catalog.Options) *harness {
	t.Helper()
	dir := t.TempDir()

	rs, err := sqlite.NewRecordStore(filepath.Join(dir, "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	kw := embeddingtest.NewKeyword(vocab...)

	vi, err := sqlite.NewVectorIndex(filepath.Join(dir, "vectors.db"), kw.Dimensions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vi.Close() })

	h := &harness{
		records:  &flakyRecords{RecordStore: rs},
		index:    &flakyIndex{VectorIndex: vi},
		embedder: kw,
		metrics:  catalog.NewMetrics(nil),
	}

	opts.Metrics = h.metrics
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ReconcileInitialBackoff == 0 {
		opts.ReconcileInitialBackoff = time.Millisecond
	}

	h.cat, err = catalog.New(h.records, h.index, kw, opts)
	require.NoError(t, err)
	return h
}

func (h *harness) mustCreate(t *testing.T, name, desc string, tags ...string) *store.Tool {
	t.Helper()
	tool, err := h.cat.Create(context.Background(), store.ToolFields{Name: name, Description: desc, Tags: tags})
	require.NoError(t, err)
	return tool
}

func (h *harness) indexed(t *testing.T) map[int64]int64 {
	t.Helper()
	revs, err := h.index.Revisions(context.Background())
	require.NoError(t, err)
	return revs
}

func floorOf(v float64) *float64 { return &v }

func resultIDs(results []catalog.Result) []int64 {
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}
