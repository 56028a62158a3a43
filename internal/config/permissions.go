// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file at path is
// readable by group or others. It never fails startup.
func WarnInsecurePermissions(path string) bool {
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return false
	}

	const groupOrOtherRead fs.FileMode = 0o044
	if info.Mode().Perm()&groupOrOtherRead == 0 {
		return false
	}
	slog.Warn("config file is readable by other users and may expose the embedding API key",
		"path", path,
		"mode", info.Mode(),
		"recommended", "0600",
	)
	return true
}
