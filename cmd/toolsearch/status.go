// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolsearch/toolsearch/internal/server"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Check the running server's health endpoint and display the embedding provider state.",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "", "server address (defaults to server.listen)")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	c := clientFromFlags(cmd)

	var body server.HealthBody
	if err := c.getJSON(cmd.Context(), "/health", &body); err != nil {
		if tserr.HasCode(err, tserr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", c.baseURL)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", c.baseURL, errorStyle.Render(err.Error()))
		return nil
	}

	status := successStyle.Render(body.Status)
	if body.Status != "ok" {
		status = warnStyle.Render(body.Status)
	}
	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", c.baseURL, status)

	if e := body.Embedding; e != nil {
		state := "available"
		if !e.Available {
			state = "unavailable"
		}
		_, _ = fmt.Fprintf(out, "Embedding provider %s: %s (%d failures)\n", e.Provider, state, e.FailureCount)
		if e.LastError != "" {
			_, _ = fmt.Fprintf(out, "  last error: %s\n", dimStyle.Render(e.LastError))
		}
	}
	return nil
}
