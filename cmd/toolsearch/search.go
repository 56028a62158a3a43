// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toolsearch/toolsearch/internal/catalog"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a running server for tools matching a query",
		Long:  "Send a natural-language query to a running toolsearch server and print the matching tools, best first.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().Int("limit", 0, "maximum number of results (server default when 0)")
	cmd.Flags().String("address", "", "server address (defaults to server.listen)")
	cmd.Flags().Bool("json", false, "print the raw JSON response")

	return cmd
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	c := clientFromFlags(cmd)
	req := searchRequest{Query: strings.Join(args, " "), Limit: limit}

	var resp catalog.SearchResponse
	if err := c.postJSON(cmd.Context(), c.prefix+"/search", req, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	renderResults(out, &resp)
	return nil
}

func renderResults(w io.Writer, resp *catalog.SearchResponse) {
	_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Results for %q (%d)", resp.Query, len(resp.Results))))
	if len(resp.Results) == 0 {
		_, _ = fmt.Fprintln(w, dimStyle.Render("No tools matched."))
		return
	}
	for i, r := range resp.Results {
		_, _ = fmt.Fprintf(w, "%2d. %s  %s  %s\n",
			i+1,
			nameStyle.Render(r.Name),
			scoreStyle.Render(fmt.Sprintf("%.3f", r.Score)),
			dimStyle.Render(fmt.Sprintf("#%d", r.ID)),
		)
		_, _ = fmt.Fprintf(w, "    %s\n", r.Description)
		if len(r.Tags) > 0 {
			_, _ = fmt.Fprintf(w, "    %s\n", dimStyle.Render("tags: "+strings.Join(r.Tags, ", ")))
		}
	}
}
