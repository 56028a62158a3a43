// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger described by cfg. Unknown levels
// fall back to info; Validate rejects them before this is reached.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
