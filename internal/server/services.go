// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package server

import (
	"context"

	"github.com/toolsearch/toolsearch/internal/catalog"
	"github.com/toolsearch/toolsearch/internal/embedding"
	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// CatalogService is the slice of *catalog.Catalog the handlers use.
type CatalogService interface {
	Create(ctx context.Context, fields store.ToolFields) (*store.Tool, error)
	Get(ctx context.Context, id int64) (*store.Tool, error)
	List(ctx context.Context, opts store.ListOpts) ([]*store.Tool, error)
	Update(ctx context.Context, id int64, fields store.ToolFields) (*store.Tool, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, query string, limit int) (*catalog.SearchResponse, error)
	ListHistory(ctx context.Context, opts store.ListOpts) ([]*store.SearchHistoryRecord, error)
}

// HealthReporter exposes embedding provider health to GET /health.
type HealthReporter interface {
	Name() string
	Health() *embedding.HealthTracker
}

// Services holds dependencies injected into route handlers.
type Services struct {
	catalog CatalogService
	health  HealthReporter // optional
}

// NewServices validates and bundles handler dependencies. health may be nil,
// in which case /health reports only liveness.
func NewServices(cat CatalogService, health HealthReporter) (*Services, error) {
	if cat == nil {
		return nil, tserr.New(tserr.CodeServerConfigInvalid, "catalog service is required")
	}
	return &Services{catalog: cat, health: health}, nil
}

func (s *Services) Catalog() CatalogService { return s.catalog }
func (s *Services) Health() HealthReporter  { return s.health }
