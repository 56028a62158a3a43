// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package store

import "errors"

// Sentinel errors for store operations.
// These errors can be checked using errors.Is() for classification.
var (
	// ErrNotFound indicates the requested tool or history record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique constraint violation (tool name taken).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input parameters are invalid or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDatabase indicates a general database error occurred.
	ErrDatabase = errors.New("database error")
)
