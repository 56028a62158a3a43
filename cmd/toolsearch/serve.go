// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the toolsearch HTTP server",
		Long:  "Load configuration, open the stores, probe the embedding provider and serve the HTTP API until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen")); err != nil {
		return tserr.Errorf(tserr.CodeCLISetupFailure, "binding listen flag: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Probe(ctx); err != nil {
		return err
	}

	srv, err := app.NewServer()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if cfg.Reconcile.Interval > 0 {
		g.Go(func() error {
			app.Catalog.RunReconciler(gctx, cfg.Reconcile.Interval)
			return nil
		})
	}

	logger.Info("toolsearch started",
		"version", version,
		"listen", cfg.Server.Listen,
		"provider", cfg.Embedding.Provider,
		"reconcile_interval", cfg.Reconcile.Interval,
	)
	return g.Wait()
}

