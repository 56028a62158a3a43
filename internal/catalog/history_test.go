// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolsearch/toolsearch/internal/catalog"
	"github.com/toolsearch/toolsearch/internal/store"
)

func TestListHistory_FiltersDeletedTools(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})
	hammer, pincer, _, _ := seedWorkshop(t, h)

	resp, err := h.cat.Search(ctx, "nails", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	require.NoError(t, h.cat.Delete(ctx, hammer.ID))

	history, err := h.cat.ListHistory(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []int64{pincer.ID}, resultIDs(history[0].Results))

	raw, err := h.records.ListHistory(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Len(t, raw[0].Results, 2, "stored history is not rewritten in view mode")
}

func TestListHistory_PersistModeRewrites(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{HistoryMode: catalog.HistoryPersist})
	hammer, pincer, _, _ := seedWorkshop(t, h)

	_, err := h.cat.Search(ctx, "nails", 10)
	require.NoError(t, err)
	require.NoError(t, h.cat.Delete(ctx, hammer.ID))

	history, err := h.cat.ListHistory(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []int64{pincer.ID}, resultIDs(history[0].Results))

	raw, err := h.records.ListHistory(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, []int64{pincer.ID}, resultIDs(raw[0].Results))
}

func TestListHistory_PersistFailureStillFilters(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{HistoryMode: catalog.HistoryPersist})
	hammer, pincer, _, _ := seedWorkshop(t, h)

	_, err := h.cat.Search(ctx, "nails", 10)
	require.NoError(t, err)
	require.NoError(t, h.cat.Delete(ctx, hammer.ID))

	h.records.failReplace.Store(true)
	history, err := h.cat.ListHistory(ctx, store.ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, []int64{pincer.ID}, resultIDs(history[0].Results))
}

func TestListHistory_KeepsEntriesWithNoSurvivors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})
	saw := h.mustCreate(t, "saw", "cuts wood")

	_, err := h.cat.Search(ctx, "wood", 10)
	require.NoError(t, err)
	require.NoError(t, h.cat.Delete(ctx, saw.ID))

	history, err := h.cat.ListHistory(ctx, store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "wood", history[0].Query)
	assert.NotNil(t, history[0].Results)
	assert.Empty(t, history[0].Results)
}

func TestListHistory_Empty(t *testing.T) {
	h := newHarness(t, catalog.Options{})

	history, err := h.cat.ListHistory(context.Background(), store.ListOpts{Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestListHistory_Paginates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, catalog.Options{})
	seedWorkshop(t, h)

	for _, q := range []string{"nails", "wood", "boards"} {
		_, err := h.cat.Search(ctx, q, 10)
		require.NoError(t, err)
	}

	page, err := h.cat.ListHistory(ctx, store.ListOpts{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "wood", page[0].Query)
}
