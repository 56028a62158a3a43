// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package store

import (
	"fmt"
	"sync"
)

// defaultVectorDimensions matches OpenAI text-embedding-3-small.
const defaultVectorDimensions = 1536

// RecordStoreFactory opens the record store under dataPath.
type RecordStoreFactory func(dataPath string) (RecordStore, error)

// VectorIndexOptions are the backend-independent settings for opening an index.
type VectorIndexOptions struct {
	Dimensions int
	Rebuild    bool
}

// VectorIndexFactory opens the vector index under dataPath.
type VectorIndexFactory func(dataPath string, opts VectorIndexOptions) (VectorIndex, error)

var (
	recordFactories = map[string]RecordStoreFactory{}
	vectorFactories = map[string]VectorIndexFactory{}
	factoriesMu     sync.RWMutex
)

// RegisterBackend registers factory functions for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, rs RecordStoreFactory, vi VectorIndexFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	recordFactories[name] = rs
	vectorFactories[name] = vi
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewRecordStore opens the record store for the configured backend.
func NewRecordStore(cfg *StorageConfig, dataPath string) (RecordStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := recordFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %q", backend)
	}

	return factory(dataPath)
}

// NewVectorIndex opens the vector index for the configured backend.
func NewVectorIndex(cfg *StorageConfig, dataPath string) (VectorIndex, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := vectorFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %q", backend)
	}

	opts := VectorIndexOptions{Dimensions: defaultVectorDimensions}
	if cfg != nil {
		if cfg.VectorDimensions > 0 {
			opts.Dimensions = cfg.VectorDimensions
		}
		opts.Rebuild = cfg.RebuildVectors
	}

	return factory(dataPath, opts)
}
