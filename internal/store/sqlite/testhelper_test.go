// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toolsearch/toolsearch/internal/store/sqlite"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

func newTestRecordStore(t *testing.T) *sqlite.RecordStore {
	t.Helper()
	rs, err := sqlite.NewRecordStore(testDBPath(t, "records"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs
}

func newTestVectorIndex(t *testing.T, dims int) *sqlite.VectorIndex {
	t.Helper()
	vi, err := sqlite.NewVectorIndex(testDBPath(t, "vectors"), dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vi.Close() })
	return vi
}
