// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/toolsearch/toolsearch/internal/catalog"
	"github.com/toolsearch/toolsearch/internal/server"
	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	svc, err := server.NewServices(stubCatalog{}, nil)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	if err != nil {
		return nil, tserr.Errorf(tserr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// stubCatalog registers every route for schema discovery. Its methods are
// never called.
type stubCatalog struct{}

func (stubCatalog) Create(context.Context, store.ToolFields) (*store.Tool, error) { return nil, nil }
func (stubCatalog) Get(context.Context, int64) (*store.Tool, error)               { return nil, nil }
func (stubCatalog) List(context.Context, store.ListOpts) ([]*store.Tool, error)   { return nil, nil }
func (stubCatalog) Update(context.Context, int64, store.ToolFields) (*store.Tool, error) {
	return nil, nil
}
func (stubCatalog) Delete(context.Context, int64) error { return nil }
func (stubCatalog) Search(context.Context, string, int) (*catalog.SearchResponse, error) {
	return nil, nil
}
func (stubCatalog) ListHistory(context.Context, store.ListOpts) ([]*store.SearchHistoryRecord, error) {
	return nil, nil
}
