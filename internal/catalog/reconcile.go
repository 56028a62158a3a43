// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package catalog

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Tools     int `json:"tools"`
	Entries   int `json:"entries"`
	Reindexed int `json:"reindexed"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

// Reconcile repairs divergence between the record store and the index.
// Tools missing from the index or indexed at a different revision are
// re-embedded and upserted, retrying with exponential backoff. Index
// entries whose tool no longer exists are deleted. Per-tool failures are
// counted in the report; only failures to read either side are returned.
func (c *Catalog) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	// Snapshot the index first. Records commit before their index writes,
	// so any id in this snapshot without a record is a true orphan.
	indexed, err := c.index.Revisions(ctx)
	if err != nil {
		return report, tserr.Wrap(err, tserr.CodeCatalogReconcileFailure, "reading index revisions")
	}
	tools, err := c.records.ToolRevisions(ctx)
	if err != nil {
		return report, tserr.Wrap(err, tserr.CodeCatalogReconcileFailure, "reading tool revisions")
	}
	report.Tools = len(tools)
	report.Entries = len(indexed)

	var stale, ahead []int64
	for id, rev := range tools {
		got, ok := indexed[id]
		if !ok || got != rev {
			stale = append(stale, id)
		}
		if ok && got > rev {
			ahead = append(ahead, id)
		}
	}
	slices.Sort(stale)

	// Upserts never lower a revision, so entries ahead of their record
	// (left over from a record-store reset) are cleared first.
	if len(ahead) > 0 {
		slices.Sort(ahead)
		if err := c.index.Delete(ctx, ahead); err != nil {
			report.Failed += len(ahead)
			c.metrics.ReconcileActions.WithLabelValues("failed").Add(float64(len(ahead)))
			c.logger.Warn("reconcile could not clear entries ahead of their records", "count", len(ahead), "error", err)
			stale = slices.DeleteFunc(stale, func(id int64) bool {
				_, found := slices.BinarySearch(ahead, id)
				return found
			})
		}
	}

	for _, id := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch err := c.reindex(ctx, id); {
		case err == nil:
			report.Reindexed++
			c.metrics.ReconcileActions.WithLabelValues("reindexed").Inc()
		case errors.Is(err, store.ErrNotFound):
			// Deleted since the snapshot; the delete path owns its entry.
		default:
			report.Failed++
			c.metrics.ReconcileActions.WithLabelValues("failed").Inc()
			c.logger.Warn("reconcile reindex failed", "tool_id", id, "error", err)
		}
	}

	var orphans []int64
	for id := range indexed {
		if _, ok := tools[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	slices.Sort(orphans)

	if len(orphans) > 0 {
		if err := c.index.Delete(ctx, orphans); err != nil {
			report.Failed += len(orphans)
			c.metrics.ReconcileActions.WithLabelValues("failed").Add(float64(len(orphans)))
			c.logger.Warn("reconcile orphan delete failed", "count", len(orphans), "error", err)
		} else {
			report.Removed = len(orphans)
			c.metrics.ReconcileActions.WithLabelValues("removed").Add(float64(len(orphans)))
		}
	}

	c.logger.Info("reconcile finished",
		"tools", report.Tools,
		"entries", report.Entries,
		"reindexed", report.Reindexed,
		"removed", report.Removed,
		"failed", report.Failed,
	)
	return report, nil
}

func (c *Catalog) reindex(ctx context.Context, id int64) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.opts.ReconcileInitialBackoff
	expBackoff.MaxInterval = 30 * c.opts.ReconcileInitialBackoff
	expBackoff.Reset()

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		tool, err := c.records.GetTool(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, c.upsertTool(ctx, tool)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(c.opts.ReconcileMaxTries)), // #nosec G115 -- validated positive in New
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Debug("retrying reindex", "tool_id", id, "attempt", attempt, "delay", d, "error", err)
		}),
	)
	return err
}

// RunReconciler runs Reconcile every interval until ctx is done. A
// non-positive interval returns immediately.
func (c *Catalog) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Reconcile(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("reconcile pass failed", "error", err)
			}
		}
	}
}
