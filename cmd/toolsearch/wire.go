// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/toolsearch/toolsearch/internal/catalog"
	"github.com/toolsearch/toolsearch/internal/config"
	"github.com/toolsearch/toolsearch/internal/embedding"
	googleemb "github.com/toolsearch/toolsearch/internal/embedding/google"
	openaiemb "github.com/toolsearch/toolsearch/internal/embedding/openai"
	"github.com/toolsearch/toolsearch/internal/server"
	"github.com/toolsearch/toolsearch/internal/store"
	_ "github.com/toolsearch/toolsearch/internal/store/sqlite" // register sqlite backend
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Config   *config.Config
	Records  store.RecordStore
	Index    store.VectorIndex
	Embedder *embedding.Checked
	Catalog  *catalog.Catalog
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// embeddingFactory builds an embedding.Provider from the embedding config.
type embeddingFactory func(config.EmbeddingConfig) (embedding.Provider, error)

// embeddingFactories maps provider names to their constructors. Declared
// as a variable so tests can inject a deterministic provider.
var embeddingFactories = map[string]embeddingFactory{
	"openai": func(ec config.EmbeddingConfig) (embedding.Provider, error) {
		p, err := openaiemb.New(openaiemb.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	},
	"google": func(ec config.EmbeddingConfig) (embedding.Provider, error) {
		p, err := googleemb.New(googleemb.Config{
			APIKey:     ec.APIKey,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	},
}

// openStores opens (creating and migrating as needed) the record store and
// the vector index under cfg.Storage.DataDir.
// openStores opens both stores. rebuildIndex discards the existing vector
// index, including one built for other dimensions.
func openStores(cfg *config.Config, rebuildIndex bool) (store.RecordStore, store.VectorIndex, error) {
	storeCfg := &store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		VectorDimensions: cfg.Embedding.Dimensions,
		RebuildVectors:   rebuildIndex,
	}

	rs, err := store.NewRecordStore(storeCfg, cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, tserr.Wrapf(err, tserr.CodeCLISetupFailure, "opening record store in %s", cfg.Storage.DataDir)
	}
	vi, err := store.NewVectorIndex(storeCfg, cfg.Storage.DataDir)
	if err != nil {
		_ = rs.Close()
		return nil, nil, tserr.Wrapf(err, tserr.CodeCLISetupFailure, "opening vector index in %s", cfg.Storage.DataDir)
	}
	return rs, vi, nil
}

// WireApp creates the stores, the embedding provider and the catalog. It
// does not contact the provider; callers that need a working provider
// probe it themselves.
func WireApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	factory, ok := embeddingFactories[cfg.Embedding.Provider]
	if !ok {
		return nil, tserr.Errorf(tserr.CodeEmbeddingConfigInvalid, "unknown embedding provider %q", cfg.Embedding.Provider)
	}
	provider, err := factory(cfg.Embedding)
	if err != nil {
		return nil, tserr.Wrapf(err, tserr.CodeCLISetupFailure, "creating embedding provider %s", cfg.Embedding.Provider)
	}

	health, err := embedding.NewHealthTracker(embedding.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}
	checked, err := embedding.NewChecked(provider, cfg.Embedding.Timeout, health, logger)
	if err != nil {
		return nil, err
	}

	rs, vi, err := openStores(cfg, false)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cat, err := catalog.New(rs, vi, checked, catalog.Options{
		ScoreFloor:        &cfg.Search.ScoreFloor,
		DefaultLimit:      cfg.Search.DefaultLimit,
		MaxLimit:          cfg.Search.MaxLimit,
		HistoryMode:       catalog.HistoryMode(cfg.History.FilterMode),
		ReconcileMaxTries: cfg.Reconcile.MaxTries,
		Logger:            logger,
		Metrics:           catalog.NewMetrics(reg),
	})
	if err != nil {
		_ = vi.Close()
		_ = rs.Close()
		return nil, err
	}

	return &App{
		Config:   cfg,
		Records:  rs,
		Index:    vi,
		Embedder: checked,
		Catalog:  cat,
		Registry: reg,
		Logger:   logger,
	}, nil
}

// Probe embeds a fixed string once so a misconfigured provider fails at
// startup instead of on the first request.
func (a *App) Probe(ctx context.Context) error {
	if err := embedding.Probe(ctx, a.Embedder); err != nil {
		return tserr.Wrapf(err, tserr.CodeCLISetupFailure, "probing embedding provider %s", a.Embedder.Name())
	}
	return nil
}

// NewServer builds the HTTP server over the app's catalog.
func (a *App) NewServer() (*server.Server, error) {
	svc, err := server.NewServices(a.Catalog, a.Embedder)
	if err != nil {
		return nil, tserr.Wrapf(err, tserr.CodeCLISetupFailure, "creating services")
	}

	sc := a.Config.Server
	srv, err := server.New(server.Config{
		ListenAddr:   sc.Listen,
		APIPrefix:    sc.APIPrefix,
		CORSOrigins:  sc.CORSOrigins,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		SearchRateLimit: server.RateLimitConfig{
			RequestsPerSecond: sc.SearchRateLimit.RequestsPerSecond,
			Burst:             sc.SearchRateLimit.Burst,
		},
		TrustedProxies: sc.TrustedProxies,
		Version:  version,
		Logger:   a.Logger,
		Registry: a.Registry,
	}, svc)
	if err != nil {
		return nil, tserr.Wrapf(err, tserr.CodeCLISetupFailure, "creating server")
	}
	return srv, nil
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	for _, c := range []interface{ Close() error }{a.Index, a.Records} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
