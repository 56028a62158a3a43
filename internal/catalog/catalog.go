// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

// Package catalog keeps the tool record store and the vector index
// consistent and runs semantic search over them.
//
// The record store is the source of truth. Every write commits there first;
// the index write that follows may fail without failing the operation, and
// every read path re-checks index hits against the record store.
package catalog

import (
	"errors"
	"log/slog"
	"time"

	"github.com/toolsearch/toolsearch/internal/embedding"
	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// HistoryMode controls what ListHistory does with results whose tool has
// since been deleted.
type HistoryMode string

const (
	// HistoryView filters on read and leaves stored history untouched.
	HistoryView HistoryMode = "view"
	// HistoryPersist also rewrites stored records that shrank.
	HistoryPersist HistoryMode = "persist"
)

// Defaults applied by New when Options leaves a field unset.
const (
	DefaultScoreFloor   = 0.3
	DefaultSearchLimit  = 10
	DefaultMaxLimit     = 100
	DefaultReconcileTry = 3
)

// Options tunes a Catalog. The zero value is usable.
type Options struct {
	// ScoreFloor drops index hits whose cosine similarity is below it. Nil
	// selects DefaultScoreFloor; -1 keeps every hit and 0 keeps every hit
	// that is not anti-correlated.
	ScoreFloor *float64
	// DefaultLimit applies when Search is called with limit <= 0.
	DefaultLimit int
	// MaxLimit clamps larger Search limits.
	MaxLimit int

	HistoryMode HistoryMode

	// ReconcileMaxTries bounds attempts per tool during reconciliation.
	ReconcileMaxTries int
	// ReconcileInitialBackoff is the first retry delay during reconciliation.
	ReconcileInitialBackoff time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
}

// Catalog coordinates the record store, the vector index and the embedding
// provider. It holds no mutable state of its own and is safe for
// concurrent use.
type Catalog struct {
	records  store.RecordStore
	index    store.VectorIndex
	embedder embedding.Provider
	opts     Options
	logger   *slog.Logger
	metrics  *Metrics
}

// New wires a Catalog. The embedder and index must agree on dimensions.
func New(records store.RecordStore, index store.VectorIndex, embedder embedding.Provider, opts Options) (*Catalog, error) {
	var errs []error
	if records == nil {
		errs = append(errs, errors.New("record store is required"))
	}
	if index == nil {
		errs = append(errs, errors.New("vector index is required"))
	}
	if embedder == nil {
		errs = append(errs, errors.New("embedding provider is required"))
	}
	if len(errs) > 0 {
		return nil, tserr.Wrap(errors.Join(errs...), tserr.CodeConfigValidateInvalidValue, "creating catalog")
	}

	if embedder.Dimensions() != index.Dimensions() {
		return nil, tserr.Errorf(tserr.CodeIndexDimensionMismatch,
			"embedding provider %s yields %d dimensions but the index holds %d",
			embedder.Name(), embedder.Dimensions(), index.Dimensions())
	}

	floor := DefaultScoreFloor
	if opts.ScoreFloor != nil {
		floor = *opts.ScoreFloor
	}
	opts.ScoreFloor = &floor
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = min(DefaultSearchLimit, opts.MaxLimit)
	}
	if opts.DefaultLimit > opts.MaxLimit {
		return nil, tserr.Errorf(tserr.CodeConfigValidateInvalidValue,
			"default search limit %d exceeds max limit %d", opts.DefaultLimit, opts.MaxLimit)
	}
	if floor < -1 || floor > 1 {
		return nil, tserr.Errorf(tserr.CodeConfigValidateInvalidValue,
			"score floor %.3f outside [-1, 1]", floor)
	}
	switch opts.HistoryMode {
	case "":
		opts.HistoryMode = HistoryView
	case HistoryView, HistoryPersist:
	default:
		return nil, tserr.Errorf(tserr.CodeConfigValidateInvalidValue,
			"unknown history mode %q", opts.HistoryMode)
	}
	if opts.ReconcileMaxTries <= 0 {
		opts.ReconcileMaxTries = DefaultReconcileTry
	}
	if opts.ReconcileInitialBackoff <= 0 {
		opts.ReconcileInitialBackoff = 500 * time.Millisecond
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Catalog{
		records:  records,
		index:    index,
		embedder: embedder,
		opts:     opts,
		logger:   logger.With("component", "catalog"),
		metrics:  metrics,
	}, nil
}

// Options returns the effective options after defaults were applied.
func (c *Catalog) Options() Options { return c.opts }

// ScoreFloor is the effective similarity floor.
func (c *Catalog) ScoreFloor() float64 { return *c.opts.ScoreFloor }

// classify maps record-store errors onto the catalog error taxonomy.
func classify(err error, msg string, fields ...tserr.Attr) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return tserr.Wrap(err, tserr.CodeCatalogToolNotFound, msg, fields...)
	case errors.Is(err, store.ErrConflict):
		return tserr.Wrap(err, tserr.CodeCatalogToolNameConflict, msg, fields...)
	case errors.Is(err, store.ErrInvalidInput):
		return tserr.Wrap(err, tserr.CodeCatalogInputInvalid, msg, fields...)
	default:
		return tserr.Wrap(err, tserr.CodeStoreDatabaseFailure, msg, fields...)
	}
}
