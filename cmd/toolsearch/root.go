// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toolsearch/toolsearch/internal/config"
	"github.com/toolsearch/toolsearch/internal/secrets"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// NewRootCmd creates the root toolsearch command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "toolsearch",
		Short:         "Toolsearch: semantic search over a tool catalog",
		Long:          "Toolsearch stores tool descriptions, indexes their embeddings and answers natural-language queries with the closest tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newInitCmd(),
		newSeedCmd(),
		newReconcileCmd(),
		newSearchCmd(),
		newStatusCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings and an optional config file so precedence is
// flag > env > file > defaults for every command.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return tserr.Errorf(tserr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so viper never matches the bare
		// ./toolsearch binary.
		v.SetConfigName("toolsearch")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/toolsearch")
		v.AddConfigPath("/etc/toolsearch")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return tserr.Errorf(tserr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	if err := v.BindPFlag("storage.data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return tserr.Errorf(tserr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		v.Set("logging.level", "debug")
	}

	return nil
}

// loadConfig resolves keyring references and decodes the global Viper.
// Commands that never touch the catalog skip it, so a missing secret does
// not block `secret set`.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	if path := v.ConfigFileUsed(); path != "" {
		config.WarnInsecurePermissions(path)
	}
	if err := secrets.ResolveViper(v, secretStoreFactory()); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}

// setupLogger builds the configured logger on w and makes it the default.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := config.NewLogger(cfg.Logging, w)
	slog.SetDefault(logger)
	return logger
}
