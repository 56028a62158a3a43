// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package catalog_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolsearch/toolsearch/internal/catalog"
	"github.com/toolsearch/toolsearch/internal/embedding/embeddingtest"
	"github.com/toolsearch/toolsearch/internal/store"
	"github.com/toolsearch/toolsearch/internal/store/sqlite"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

func TestNew_AppliesDefaults(t *testing.T) {
	h := newHarness(t, catalog.Options{})
	opts := h.cat.Options()

	require.NotNil(t, opts.ScoreFloor)
	assert.InDelta(t, catalog.DefaultScoreFloor, *opts.ScoreFloor, 1e-9)
	assert.InDelta(t, catalog.DefaultScoreFloor, h.cat.ScoreFloor(), 1e-9)
	assert.Equal(t, catalog.DefaultSearchLimit, opts.DefaultLimit)
	assert.Equal(t, catalog.DefaultMaxLimit, opts.MaxLimit)
	assert.Equal(t, catalog.HistoryView, opts.HistoryMode)
	assert.Equal(t, catalog.DefaultReconcileTry, opts.ReconcileMaxTries)
}

func TestNew_RejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	rs, err := sqlite.NewRecordStore(filepath.Join(dir, "records.db"))
	require.NoError(t, err)
	defer rs.Close()

	vi, err := sqlite.NewVectorIndex(filepath.Join(dir, "vectors.db"), 8)
	require.NoError(t, err)
	defer vi.Close()

	_, err = catalog.New(rs, vi, embeddingtest.NewKeyword("a", "b"), catalog.Options{})
	require.Error(t, err)
	assert.True(t, tserr.HasCode(err, tserr.CodeIndexDimensionMismatch))
}

func TestNew_RejectsBadOptions(t *testing.T) {
	h := newHarness(t, catalog.Options{})

	tests := []struct {
		name string
		opts catalog.Options
	}{
		{"floor above one", catalog.Options{ScoreFloor: floorOf(1.5)}},
		{"floor below minus one", catalog.Options{ScoreFloor: floorOf(-2)}},
		{"default above max", catalog.Options{DefaultLimit: 50, MaxLimit: 20}},
		{"unknown history mode", catalog.Options{HistoryMode: "rewrite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.New(h.records, h.index, h.embedder, tt.opts)
			require.Error(t, err)
			assert.True(t, tserr.HasCode(err, tserr.CodeConfigValidateInvalidValue))
		})
	}

	_, err := catalog.New(nil, nil, nil, catalog.Options{})
	require.Error(t, err)
}

func TestCatalog_Lifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})

	alpha := h.mustCreate(t, "alpha", "desc")
	assert.Equal(t, int64(1), alpha.ID)

	_, err := h.cat.Create(ctx, store.ToolFields{Name: "alpha", Description: "other"})
	require.Error(t, err)
	assert.True(t, tserr.IsConflict(err))
	assert.True(t, tserr.HasCode(err, tserr.CodeCatalogToolNameConflict))

	beta, err := h.cat.Update(ctx, alpha.ID, store.ToolFields{Name: "beta", Description: "desc"})
	require.NoError(t, err)
	assert.Equal(t, alpha.ID, beta.ID)
	assert.Greater(t, beta.Revision, alpha.Revision)

	require.NoError(t, h.cat.Delete(ctx, alpha.ID))

	resp, err := h.cat.Search(ctx, "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	_, err = h.cat.Get(ctx, alpha.ID)
	assert.True(t, tserr.IsNotFound(err))
}

func TestCatalog_CreateIndexesTool(t *testing.T) {
	h := newHarness(t, catalog.Options{})
	tool := h.mustCreate(t, "hammer", "drives nails", "carpentry")

	payload, err := h.index.Get(context.Background(), tool.ID)
	require.NoError(t, err)
	assert.Equal(t, tool.Revision, payload.Revision)
	assert.Equal(t, "hammer", payload.Name)
	assert.Equal(t, []string{"carpentry"}, payload.Tags)
}

func TestCatalog_CreateValidation(t *testing.T) {
	h := newHarness(t, catalog.Options{})

	_, err := h.cat.Create(context.Background(), store.ToolFields{Name: "  ", Description: "blank name"})
	require.Error(t, err)
	assert.True(t, tserr.IsInvalidInput(err))
	assert.Equal(t, int64(0), h.embedder.Calls())
}

func TestCatalog_ConcurrentCreateSameName(t *testing.T) {
	h := newHarness(t, catalog.Options{})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.cat.Create(context.Background(), store.ToolFields{Name: "saw", Description: "cuts wood"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case tserr.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)

	tools, err := h.cat.List(context.Background(), store.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, tools, 1)
}

func TestCatalog_CreateSurvivesIndexFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})
	h.index.failUpsert.Store(true)

	tool, err := h.cat.Create(ctx, store.ToolFields{Name: "hammer", Description: "drives nails"})
	require.NoError(t, err)

	got, err := h.cat.Get(ctx, tool.ID)
	require.NoError(t, err)
	assert.Equal(t, "hammer", got.Name)

	assert.NotContains(t, h.indexed(t), tool.ID)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.IndexWriteFailures.WithLabelValues("create", "upsert")), 0)
}

func TestCatalog_CreateSurvivesEmbeddingFailure(t *testing.T) {
	h := newHarness(t, catalog.Options{})
	h.embedder.FailOn("saw cuts wood")

	tool, err := h.cat.Create(context.Background(), store.ToolFields{Name: "saw", Description: "cuts wood"})
	require.NoError(t, err)

	assert.NotContains(t, h.indexed(t), tool.ID)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.IndexWriteFailures.WithLabelValues("create", "embed")), 0)
}

func TestCatalog_CreateSurvivesVerifyFailure(t *testing.T) {
	h := newHarness(t, catalog.Options{})
	h.index.failGet.Store(true)

	_, err := h.cat.Create(context.Background(), store.ToolFields{Name: "glue", Description: "bonds wood"})
	require.NoError(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.IndexWriteFailures.WithLabelValues("create", "verify")), 0)
}

func TestCatalog_UpdateSurvivesIndexFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})
	tool := h.mustCreate(t, "saw", "cuts wood")

	h.index.failUpsert.Store(true)
	updated, err := h.cat.Update(ctx, tool.ID, store.ToolFields{Name: "saw", Description: "cuts boards"})
	require.NoError(t, err)
	assert.Equal(t, "cuts boards", updated.Description)

	assert.Equal(t, tool.Revision, h.indexed(t)[tool.ID], "index keeps the old revision")
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.IndexWriteFailures.WithLabelValues("update", "upsert")), 0)
}

func TestCatalog_ConcurrentUpdatesConvergeOnLatestRevision(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})
	saw := h.mustCreate(t, "saw", "cuts wood")

	entered := make(chan struct{})
	release := make(chan struct{})
	h.index.beforeUpsert = func(e store.VectorEntry) {
		if e.Payload.Revision == saw.Revision+1 {
			close(entered)
			<-release
		}
	}

	slow := make(chan error, 1)
	go func() {
		_, err := h.cat.Update(ctx, saw.ID, store.ToolFields{Name: "saw", Description: "cuts boards"})
		slow <- err
	}()
	<-entered

	latest, err := h.cat.Update(ctx, saw.ID, store.ToolFields{Name: "saw", Description: "cuts wood and boards"})
	require.NoError(t, err)
	require.Equal(t, saw.Revision+2, latest.Revision)

	close(release)
	require.NoError(t, <-slow)

	payload, err := h.index.Get(ctx, saw.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.Revision, payload.Revision)
	assert.Equal(t, "cuts wood and boards", payload.Description)
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.IndexWriteFailures.WithLabelValues("update", "verify")), 0)

	report, err := h.cat.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Reindexed, "nothing left to repair")
}

func TestCatalog_UpdateErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})
	h.mustCreate(t, "saw", "cuts wood")
	glue := h.mustCreate(t, "glue", "bonds wood")

	_, err := h.cat.Update(ctx, 999, store.ToolFields{Name: "x", Description: "y"})
	assert.True(t, tserr.HasCode(err, tserr.CodeCatalogToolNotFound))

	_, err = h.cat.Update(ctx, glue.ID, store.ToolFields{Name: "saw", Description: "bonds wood"})
	assert.True(t, tserr.HasCode(err, tserr.CodeCatalogToolNameConflict))
}

func TestCatalog_DeleteSurvivesIndexFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})
	hammer := h.mustCreate(t, "hammer", "drives nails")

	h.index.failDelete.Store(true)
	require.NoError(t, h.cat.Delete(ctx, hammer.ID))

	assert.Contains(t, h.indexed(t), hammer.ID, "stale entry left behind")
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.IndexWriteFailures.WithLabelValues("delete", "delete")), 0)

	resp, err := h.cat.Search(ctx, "nails", 10)
	require.NoError(t, err)
	assert.NotContains(t, resultIDs(resp.Results), hammer.ID)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.StaleCandidates), 0)
}

func TestCatalog_DeleteMissing(t *testing.T) {
	h := newHarness(t, catalog.Options{})
	err := h.cat.Delete(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, tserr.IsNotFound(err))
}

func TestCatalog_ListPaginates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})

	empty, err := h.cat.List(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, name := range []string{"hammer", "saw", "glue"} {
		h.mustCreate(t, name, "a tool")
	}

	page, err := h.cat.List(ctx, store.ListOpts{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "saw", page[0].Name)
}
