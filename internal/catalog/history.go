// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package catalog

import (
	"context"

	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// ListHistory returns search history newest first. Results referencing
// tools that no longer exist are filtered out on every read. In
// HistoryPersist mode shrunk records are also written back; a failed
// write-back is logged and does not fail the read.
func (c *Catalog) ListHistory(ctx context.Context, opts store.ListOpts) ([]*store.SearchHistoryRecord, error) {
	records, err := c.records.ListHistory(ctx, opts)
	if err != nil {
		return nil, tserr.Wrap(err, tserr.CodeStoreDatabaseFailure, "listing search history")
	}
	if len(records) == 0 {
		return []*store.SearchHistoryRecord{}, nil
	}

	seen := make(map[int64]struct{})
	var ids []int64
	for _, rec := range records {
		for _, r := range rec.Results {
			if _, ok := seen[r.ID]; !ok {
				seen[r.ID] = struct{}{}
				ids = append(ids, r.ID)
			}
		}
	}

	live, err := c.records.GetTools(ctx, ids)
	if err != nil {
		return nil, classify(err, "checking history results")
	}

	for _, rec := range records {
		kept := make([]store.ResultSnapshot, 0, len(rec.Results))
		for _, r := range rec.Results {
			if _, ok := live[r.ID]; ok {
				kept = append(kept, r)
			}
		}
		if len(kept) == len(rec.Results) {
			continue
		}

		rec.Results = kept
		if c.opts.HistoryMode != HistoryPersist {
			continue
		}
		if err := c.records.ReplaceHistoryResults(ctx, rec.ID, kept); err != nil {
			c.logger.Warn("history rewrite failed",
				"code", tserr.CodeCatalogHistoryDegraded,
				"history_id", rec.ID,
				"error", err,
			)
		}
	}

	return records, nil
}
