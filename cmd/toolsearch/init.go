// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toolsearch/toolsearch/internal/config"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the record store and vector index",
		Long: "Create the data directory and both stores, applying pending migrations. " +
			"With --reset every tool and history record is dropped and ids restart at 1. " +
			"When no config file is found a commented default is written to ~/.config/toolsearch/toolsearch.yaml.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}

	cmd.Flags().Bool("reset", false, "drop all tools and history and restart ids at 1")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	reset, _ := cmd.Flags().GetBool("reset")

	if viper.ConfigFileUsed() == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		written, err := config.WriteDefault(path)
		if err != nil {
			return err
		}
		if written {
			_, _ = fmt.Fprintln(out, successStyle.Render("Wrote default config to "+path))
		}
	}

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	// A reset rebuilds the index on open, so a changed embedding.dimensions
	// does not block it.
	rs, vi, err := openStores(cfg, reset)
	if err != nil {
		return err
	}
	defer func() { _ = errors.Join(vi.Close(), rs.Close()) }()

	if reset {
		if err := rs.Reset(cmd.Context()); err != nil {
			return tserr.Wrapf(err, tserr.CodeCLISetupFailure, "resetting record store")
		}
		_, _ = fmt.Fprintln(out, "Dropped all tools and search history.")
	}

	_, _ = fmt.Fprintf(out, "Initialized stores in %s (%d dimensions)\n", cfg.Storage.DataDir, vi.Dimensions())
	return nil
}
