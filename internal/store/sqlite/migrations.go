// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// newMigrator builds a goose provider over the embedded record-store
// migrations.
func newMigrator(db *sql.DB) (*goose.Provider, error) {
	// Strip the "migrations/" prefix so goose sees a flat directory.
	migrationFS, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("creating migration sub filesystem: %w", err)
	}

	provider, err := goose.NewProvider(database.DialectSQLite3, db, migrationFS)
	if err != nil {
		return nil, fmt.Errorf("creating goose provider: %w", err)
	}
	return provider, nil
}
