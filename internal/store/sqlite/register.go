// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/toolsearch/toolsearch/internal/store"
)

// Record store and vector index live in separate files so either can be
// unavailable without taking the other down.
const (
	recordsFile = "records.db"
	vectorsFile = "vectors.db"
)

func init() {
	store.RegisterBackend("sqlite", newRecordStore, newVectorIndex)
}

func newRecordStore(dataPath string) (store.RecordStore, error) {
	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	rs, err := NewRecordStore(filepath.Join(dataPath, recordsFile))
	if err != nil {
		return nil, fmt.Errorf("creating record store: %w", err)
	}
	return rs, nil
}

func newVectorIndex(dataPath string, opts store.VectorIndexOptions) (store.VectorIndex, error) {
	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	open := NewVectorIndex
	if opts.Rebuild {
		open = RebuildVectorIndex
	}
	vi, err := open(filepath.Join(dataPath, vectorsFile), opts.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	return vi, nil
}
