// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// seedTool is one entry of a seed file.
type seedTool struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Tags        []string       `yaml:"tags"`
	Metadata    map[string]any `yaml:"tool_metadata"`
}

type seedReport struct {
	Created    int
	Duplicates int
	Failed     int
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Create tools from a YAML file",
		Long: "Read a YAML list of tools (name, description, tags, tool_metadata) and create each one. " +
			"Tools whose name already exists are reported and skipped.",
		Args: cobra.ExactArgs(1),
		RunE: runSeed,
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	tools, err := readSeedFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := WireApp(cfg, setupLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	out := cmd.OutOrStdout()
	var report seedReport
	for _, t := range tools {
		created, err := app.Catalog.Create(cmd.Context(), store.ToolFields{
			Name:        t.Name,
			Description: t.Description,
			Tags:        t.Tags,
			Metadata:    t.Metadata,
		})
		switch {
		case err == nil:
			report.Created++
			_, _ = fmt.Fprintf(out, "%s %s (id %d)\n", successStyle.Render("created"), created.Name, created.ID)
		case tserr.IsConflict(err):
			report.Duplicates++
			_, _ = fmt.Fprintf(out, "%s %s: name already exists\n", warnStyle.Render("skipped"), t.Name)
		default:
			report.Failed++
			_, _ = fmt.Fprintf(out, "%s %q: %v\n", errorStyle.Render("failed"), t.Name, err)
		}
	}

	_, _ = fmt.Fprintf(out, "%d created, %d duplicates skipped, %d failed\n",
		report.Created, report.Duplicates, report.Failed)
	if report.Failed > 0 {
		return tserr.Errorf(tserr.CodeCLIInputInvalid, "%d of %d tools could not be created", report.Failed, len(tools))
	}
	return nil
}

func readSeedFile(path string) ([]seedTool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tserr.Errorf(tserr.CodeCLIInputInvalid, "reading seed file: %w", err)
	}

	var tools []seedTool
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tools); err != nil && !errors.Is(err, io.EOF) {
		return nil, tserr.Errorf(tserr.CodeCLIInputInvalid, "parsing seed file %s: %w", path, err)
	}
	return tools, nil
}
