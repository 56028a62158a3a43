// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

//go:embed toolsearch.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/toolsearch/toolsearch.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", tserr.Errorf(tserr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "toolsearch", "toolsearch.yaml"), nil
}

// WriteDefault writes the commented default config to path unless a file
// already exists there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, tserr.Errorf(tserr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	// The file may hold an API key.
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return false, tserr.Errorf(tserr.CodeConfigLoadReadFailure, "writing default config: %w", err)
	}
	slog.Info("created default config", "path", path)
	return true, nil
}
