// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolsearch/toolsearch/internal/catalog"
	"github.com/toolsearch/toolsearch/internal/config"
	"github.com/toolsearch/toolsearch/internal/embedding"
	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

func TestWireApp_AppliesConfig(t *testing.T) {
	env := newCLIEnv(t)
	env.writeConfig(t, `search:
  score_floor: 0.5
  default_limit: 5
  max_limit: 20
history:
  filter_mode: persist
reconcile:
  max_tries: 7
`)

	app := env.loadApp(t)
	opts := app.Catalog.Options()
	assert.InDelta(t, 0.5, app.Catalog.ScoreFloor(), 1e-9)
	assert.Equal(t, 5, opts.DefaultLimit)
	assert.Equal(t, 20, opts.MaxLimit)
	assert.Equal(t, catalog.HistoryPersist, opts.HistoryMode)
	assert.Equal(t, 7, opts.ReconcileMaxTries)
	assert.Equal(t, env.embedder.Dimensions(), app.Index.Dimensions())
}

func TestWireApp_ZeroScoreFloorIsKept(t *testing.T) {
	env := newCLIEnv(t)
	env.writeConfig(t, "search:\n  score_floor: 0\n")

	app := env.loadApp(t)
	assert.Zero(t, app.Catalog.ScoreFloor())
}

func TestWireApp_RegistersCatalogMetrics(t *testing.T) {
	env := newCLIEnv(t)
	app := env.loadApp(t)

	_, err := app.Catalog.Create(context.Background(), store.ToolFields{Name: "saw", Description: "cuts wood"})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(app.Registry, "toolsearch_history_write_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWireApp_UnknownProvider(t *testing.T) {
	env := newCLIEnv(t)
	cfg, err := config.Load(env.cfgPath)
	require.NoError(t, err)
	cfg.Embedding.Provider = "bogus"

	_, err = WireApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.True(t, tserr.HasCode(err, tserr.CodeEmbeddingConfigInvalid))
}

func TestWireApp_ProviderConstructionFails(t *testing.T) {
	env := newCLIEnv(t)
	embeddingFactories["openai"] = func(config.EmbeddingConfig) (embedding.Provider, error) {
		return nil, errors.New("no api key")
	}

	cfg, err := config.Load(env.cfgPath)
	require.NoError(t, err)

	_, err = WireApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating embedding provider openai")
}

func TestApp_Probe(t *testing.T) {
	env := newCLIEnv(t)
	app := env.loadApp(t)

	require.NoError(t, app.Probe(context.Background()))

	env.embedder.SetFailing(true)
	err := app.Probe(context.Background())
	require.Error(t, err)
	assert.False(t, app.Embedder.Health().IsHealthy())
}
