// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/toolsearch/toolsearch/internal/config"
	"github.com/toolsearch/toolsearch/internal/embedding"
	"github.com/toolsearch/toolsearch/internal/embedding/embeddingtest"
	"github.com/toolsearch/toolsearch/internal/secrets"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string // key -> value (service is always "toolsearch")
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", tserr.Errorf(tserr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return tserr.Errorf(tserr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// cliEnv isolates one test from the global viper, the keyring, the real
// embedding providers and the user's home directory.
type cliEnv struct {
	dir      string
	cfgPath  string
	embedder *embeddingtest.Keyword
	secrets  *mockSecretStore
	// apiKeys records the api_key each provider construction received.
	apiKeys []string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	prevLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prevLogger) })

	env := &cliEnv{
		dir:      t.TempDir(),
		embedder: embeddingtest.NewKeyword("hammer", "drives", "nails", "saw", "cuts", "wood"),
		secrets:  newMockSecretStore(),
	}

	prevFactory := embeddingFactories["openai"]
	embeddingFactories["openai"] = func(ec config.EmbeddingConfig) (embedding.Provider, error) {
		env.apiKeys = append(env.apiKeys, ec.APIKey)
		return env.embedder, nil
	}
	t.Cleanup(func() { embeddingFactories["openai"] = prevFactory })

	prevSecrets := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return env.secrets }
	t.Cleanup(func() { secretStoreFactory = prevSecrets })

	env.cfgPath = env.writeConfig(t, "")
	return env
}

// writeConfig writes a config pointing at the env's data dir and using the
// keyword embedder. extra is appended verbatim.
func (e *cliEnv) writeConfig(t *testing.T, extra string) string {
	t.Helper()
	content := fmt.Sprintf(`storage:
  data_dir: %q
embedding:
  provider: openai
  dimensions: %d
logging:
  level: error
%s`, filepath.Join(e.dir, "data"), e.embedder.Dimensions(), extra)

	path := filepath.Join(e.dir, "toolsearch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run executes the root command with --config pointing at the env config.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runWithInput(t, nil, args...)
}

func (e *cliEnv) runWithInput(t *testing.T, in io.Reader, args ...string) (string, error) {
	t.Helper()
	return e.runContext(context.Background(), in, append([]string{"--config", e.cfgPath}, args...)...)
}

func (e *cliEnv) runContext(ctx context.Context, in io.Reader, args ...string) (string, error) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	if in != nil {
		root.SetIn(in)
	}
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return buf.String(), err
}

// loadApp wires an App from the env config, as serve would.
func (e *cliEnv) loadApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load(e.cfgPath)
	require.NoError(t, err)

	app, err := WireApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}
