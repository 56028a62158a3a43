// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

//go:build windows

package config

// WarnInsecurePermissions is a no-op on Windows, which uses ACLs rather
// than mode bits.
func WarnInsecurePermissions(string) bool { return false }
