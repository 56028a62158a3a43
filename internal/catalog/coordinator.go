// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// Index write stages reported in logs and the index_write_failures metric.
const (
	stageEmbed  = "embed"
	stageUpsert = "upsert"
	stageVerify = "verify"
	stageDelete = "delete"
)

// Create inserts a tool and then indexes it. A name collision fails with
// CodeCatalogToolNameConflict before anything is written. Once the record
// is committed the call succeeds even if indexing fails.
func (c *Catalog) Create(ctx context.Context, fields store.ToolFields) (*store.Tool, error) {
	tool, err := c.records.CreateTool(ctx, fields)
	if err != nil {
		return nil, classify(err, "creating tool", tserr.FieldToolName(fields.Name))
	}

	c.indexTool(ctx, tool, "create")
	return tool, nil
}

// Update replaces a tool's fields and re-indexes it.
func (c *Catalog) Update(ctx context.Context, id int64, fields store.ToolFields) (*store.Tool, error) {
	tool, err := c.records.UpdateTool(ctx, id, fields)
	if err != nil {
		return nil, classify(err, "updating tool", tserr.FieldToolID(id), tserr.FieldToolName(fields.Name))
	}

	c.indexTool(ctx, tool, "update")
	return tool, nil
}

// Delete removes a tool record and then its index entry. An index failure
// leaves an orphan entry that search filters out and the reconciler removes.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	if err := c.records.DeleteTool(ctx, id); err != nil {
		return classify(err, "deleting tool", tserr.FieldToolID(id))
	}

	// The record is gone; finish the index write even if the caller hangs up.
	ctx = context.WithoutCancel(ctx)
	if err := c.index.Delete(ctx, []int64{id}); err != nil {
		c.indexDegraded("delete", stageDelete, id, err)
	}
	return nil
}

// Get returns one tool from the record store.
func (c *Catalog) Get(ctx context.Context, id int64) (*store.Tool, error) {
	tool, err := c.records.GetTool(ctx, id)
	if err != nil {
		return nil, classify(err, "getting tool", tserr.FieldToolID(id))
	}
	return tool, nil
}

// List pages through tools in id order.
func (c *Catalog) List(ctx context.Context, opts store.ListOpts) ([]*store.Tool, error) {
	tools, err := c.records.ListTools(ctx, opts)
	if err != nil {
		return nil, classify(err, "listing tools")
	}
	if tools == nil {
		tools = []*store.Tool{}
	}
	return tools, nil
}

// indexTool embeds tool and upserts it, then reads the entry back to
// confirm the index holds this revision. Failures are logged and counted,
// never returned.
func (c *Catalog) indexTool(ctx context.Context, tool *store.Tool, op string) {
	ctx = context.WithoutCancel(ctx)
	if err := c.upsertTool(ctx, tool); err != nil {
		c.indexDegraded(op, stageOf(err), tool.ID, err)
		return
	}
	c.logger.Debug("tool indexed", "op", op, "tool_id", tool.ID, "revision", tool.Revision)
}

// stagedError tags an indexing failure with the step that failed.
type stagedError struct {
	stage string
	err   error
}

func (e *stagedError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stagedError) Unwrap() error { return e.err }

func stageOf(err error) string {
	var se *stagedError
	if errors.As(err, &se) {
		return se.stage
	}
	return stageUpsert
}

func (c *Catalog) upsertTool(ctx context.Context, tool *store.Tool) error {
	vec, err := c.embedder.Embed(ctx, tool.EmbeddingText())
	if err != nil {
		return &stagedError{stage: stageEmbed, err: err}
	}

	entry := store.VectorEntry{ID: tool.ID, Vector: vec, Payload: store.PayloadFor(tool)}
	if err := c.index.Upsert(ctx, entry); err != nil {
		return &stagedError{stage: stageUpsert, err: err}
	}

	got, err := c.index.Get(ctx, tool.ID)
	if err != nil {
		return &stagedError{stage: stageVerify, err: err}
	}
	// A newer revision means a concurrent update already landed.
	if got.Revision < tool.Revision {
		return &stagedError{stage: stageVerify, err: fmt.Errorf(
			"index holds revision %d of tool %d, wrote %d", got.Revision, tool.ID, tool.Revision)}
	}
	return nil
}

func (c *Catalog) indexDegraded(op, stage string, id int64, err error) {
	c.metrics.IndexWriteFailures.WithLabelValues(op, stage).Inc()
	c.logger.Warn("index write degraded",
		"code", tserr.CodeCatalogIndexDegraded,
		"op", op,
		"stage", stage,
		"tool_id", id,
		"error", err,
	)
}
