// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/toolsearch/toolsearch/internal/catalog"
	"github.com/toolsearch/toolsearch/internal/embedding"
	"github.com/toolsearch/toolsearch/internal/embedding/embeddingtest"
	"github.com/toolsearch/toolsearch/internal/server"
	"github.com/toolsearch/toolsearch/internal/store/sqlite"
)

type testEnv struct {
	srv      *server.Server
	handler  http.Handler
	embedder *embeddingtest.Keyword
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, mutate ...func(*server.Config)) *testEnv {
	t.Helper()
	dir := t.TempDir()

	rs, err := sqlite.NewRecordStore(filepath.Join(dir, "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	kw := embeddingtest.NewKeyword("hammer", "drives", "nails", "saw", "cuts", "wood")
	vi, err := sqlite.NewVectorIndex(filepath.Join(dir, "vectors.db"), kw.Dimensions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vi.Close() })

	checked, err := embedding.NewChecked(kw, 0, nil, discardLogger())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	cat, err := catalog.New(rs, vi, checked, catalog.Options{
		Logger:  discardLogger(),
		Metrics: catalog.NewMetrics(reg),
	})
	require.NoError(t, err)

	svc, err := server.NewServices(cat, checked)
	require.NoError(t, err)

	cfg := server.Config{
		ListenAddr: "127.0.0.1:0",
		Logger:     discardLogger(),
		Registry:   reg,
		Version:    "test",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	srv, err := server.New(cfg, svc)
	require.NoError(t, err)
	return &testEnv{srv: srv, handler: srv.Handler(), embedder: kw}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

type toolJSON struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"tool_metadata"`
	Revision    int64          `json:"revision"`
}

type searchJSON struct {
	Query   string `json:"query"`
	Results []struct {
		ID    int64   `json:"id"`
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	} `json:"results"`
}

func (e *testEnv) createTool(t *testing.T, name, desc string, tags ...string) toolJSON {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/tools", map[string]any{
		"name": name, "description": desc, "tags": tags,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[toolJSON](t, rec)
}
