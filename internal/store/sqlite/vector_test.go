// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolsearch/toolsearch/internal/store"
	"github.com/toolsearch/toolsearch/internal/store/sqlite"
)

func entry(id int64, rev int64, vec ...float32) store.VectorEntry {
	return store.VectorEntry{
		ID:      id,
		Vector:  vec,
		Payload: store.VectorPayload{Name: "tool", Revision: rev},
	}
}

func TestVectorIndex_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	vi := newTestVectorIndex(t, 3)

	require.NoError(t, vi.Upsert(ctx, entry(1, 1, 1, 0, 0)))
	require.NoError(t, vi.Upsert(ctx, entry(2, 1, 0, 1, 0)))
	require.NoError(t, vi.Upsert(ctx, entry(3, 1, 0.9, 0.1, 0)))

	results, err := vi.Search(ctx, []float32{1, 0, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, int64(3), results[1].ID)
	assert.Equal(t, int64(3), results[1].Payload.ToolID)
}

func TestVectorIndex_ScoreFloorAndLimit(t *testing.T) {
	ctx := context.Background()
	vi := newTestVectorIndex(t, 3)

	require.NoError(t, vi.Upsert(ctx, entry(1, 1, 1, 0, 0)))
	require.NoError(t, vi.Upsert(ctx, entry(2, 1, 0, 1, 0)))
	require.NoError(t, vi.Upsert(ctx, entry(3, 1, 0.9, 0.1, 0)))

	// The orthogonal vector scores 0 and falls under the floor.
	results, err := vi.Search(ctx, []float32{1, 0, 0}, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.3)
	}

	results, err = vi.Search(ctx, []float32{1, 0, 0}, 1, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestVectorIndex_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	vi := newTestVectorIndex(t, 3)

	require.NoError(t, vi.Upsert(ctx, entry(1, 1, 1, 0, 0)))
	require.NoError(t, vi.Upsert(ctx, entry(1, 2, 0, 1, 0)))
	require.NoError(t, vi.Upsert(ctx, entry(1, 2, 0, 1, 0)))

	results, err := vi.Search(ctx, []float32{0, 1, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].Payload.Revision)

	revs, err := vi.Revisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 2}, revs)
}

func TestVectorIndex_UpsertKeepsNewerRevision(t *testing.T) {
	ctx := context.Background()
	vi := newTestVectorIndex(t, 3)

	require.NoError(t, vi.Upsert(ctx, entry(1, 3, 0, 1, 0)))
	require.NoError(t, vi.Upsert(ctx, entry(1, 2, 1, 0, 0)), "a late older write is not an error")

	p, err := vi.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Revision)

	results, err := vi.Search(ctx, []float32{0, 1, 0}, 10, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1, "the vector of revision 3 is kept")
	assert.Equal(t, int64(1), results[0].ID)

	require.NoError(t, vi.Delete(ctx, []int64{1}))
	require.NoError(t, vi.Upsert(ctx, entry(1, 1, 1, 0, 0)))
	p, err = vi.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Revision, "delete clears the revision guard")
}

func TestVectorIndex_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	vi := newTestVectorIndex(t, 3)

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, vi.Upsert(ctx, entry(id, 1, 1, 0, 0)))
	}

	p, err := vi.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ToolID)

	require.NoError(t, vi.Delete(ctx, []int64{1, 3, 42}))
	require.NoError(t, vi.Delete(ctx, nil))

	_, err = vi.Get(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	results, err := vi.Search(ctx, []float32{1, 0, 0}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
}

func TestVectorIndex_RejectsWrongDimensions(t *testing.T) {
	ctx := context.Background()
	vi := newTestVectorIndex(t, 3)

	err := vi.Upsert(ctx, entry(1, 1, 1, 0))
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = vi.Search(ctx, []float32{1, 0}, 5, 0)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestVectorIndex_ReopenWithDifferentDimensionsFails(t *testing.T) {
	path := testDBPath(t, "dims")

	vi, err := sqlite.NewVectorIndex(path, 3)
	require.NoError(t, err)
	require.NoError(t, vi.Close())

	_, err = sqlite.NewVectorIndex(path, 4)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	vi, err = sqlite.NewVectorIndex(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, vi.Dimensions())
	require.NoError(t, vi.Close())
}

func TestRebuildVectorIndex_AcceptsNewDimensions(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "rebuild")

	vi, err := sqlite.NewVectorIndex(path, 3)
	require.NoError(t, err)
	require.NoError(t, vi.Upsert(ctx, entry(1, 1, 1, 0, 0)))
	require.NoError(t, vi.Close())

	vi, err = sqlite.RebuildVectorIndex(path, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, vi.Dimensions())

	revs, err := vi.Revisions(ctx)
	require.NoError(t, err)
	assert.Empty(t, revs)
	require.NoError(t, vi.Upsert(ctx, entry(1, 1, 1, 0, 0, 0)))
	require.NoError(t, vi.Close())

	vi, err = sqlite.NewVectorIndex(path, 4)
	require.NoError(t, err, "the rebuilt index records its new dimensions")
	require.NoError(t, vi.Close())
}

func TestVectorIndex_SearchEmptyAndZeroLimit(t *testing.T) {
	ctx := context.Background()
	vi := newTestVectorIndex(t, 3)

	results, err := vi.Search(ctx, []float32{1, 0, 0}, 5, 0.3)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, vi.Upsert(ctx, entry(1, 1, 1, 0, 0)))
	results, err = vi.Search(ctx, []float32{1, 0, 0}, 0, 0.3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorIndex_Reset(t *testing.T) {
	ctx := context.Background()
	vi := newTestVectorIndex(t, 3)

	require.NoError(t, vi.Upsert(ctx, entry(1, 1, 1, 0, 0)))
	require.NoError(t, vi.Reset(ctx))

	revs, err := vi.Revisions(ctx)
	require.NoError(t, err)
	assert.Empty(t, revs)

	require.NoError(t, vi.Upsert(ctx, entry(1, 1, 1, 0, 0)))
}
