// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair the vector index against the record store",
		Long: "Re-embed tools that are missing from the index or indexed at an old revision, " +
			"and remove index entries whose tool no longer exists.",
		Args: cobra.NoArgs,
		RunE: runReconcile,
	}
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := WireApp(cfg, setupLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	report, err := app.Catalog.Reconcile(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, titleStyle.Render("Reconciliation"))
	_, _ = fmt.Fprintf(out, "  tools:     %d\n", report.Tools)
	_, _ = fmt.Fprintf(out, "  entries:   %d\n", report.Entries)
	_, _ = fmt.Fprintf(out, "  reindexed: %d\n", report.Reindexed)
	_, _ = fmt.Fprintf(out, "  removed:   %d\n", report.Removed)
	_, _ = fmt.Fprintf(out, "  failed:    %d\n", report.Failed)

	if report.Failed > 0 {
		return tserr.Errorf(tserr.CodeCatalogReconcileFailure, "%d tools could not be reindexed", report.Failed)
	}
	return nil
}
