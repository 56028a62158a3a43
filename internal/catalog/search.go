// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/toolsearch/toolsearch/internal/store"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// Result is one search hit. Fields come from the live record, Score from
// the index.
type Result = store.ResultSnapshot

// SearchResponse is the outcome of Search. HistoryID is zero when the
// history append failed.
type SearchResponse struct {
	Query     string   `json:"query"`
	Results   []Result `json:"results"`
	HistoryID int64    `json:"-"`
}

// Search embeds query, looks up at most limit neighbours scoring at or
// above the floor, and drops any whose tool no longer exists. Survivors
// keep their score order; gaps are not backfilled. An embedding failure
// fails the search; a history failure does not.
func (c *Catalog) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, tserr.New(tserr.CodeCatalogInputInvalid, "query must not be empty")
	}
	limit = c.clampLimit(limit)

	start := time.Now()
	defer func() { c.metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, tserr.Wrap(err, tserr.CodeEmbeddingUnavailable, "embedding search query",
			tserr.FieldProvider(c.embedder.Name()))
	}

	hits, err := c.index.Search(ctx, vec, limit, c.ScoreFloor())
	if err != nil {
		return nil, tserr.Wrap(err, tserr.CodeIndexQueryFailure, "querying vector index")
	}

	results, err := c.resolveHits(ctx, hits, limit)
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{Query: query, Results: results}

	// Results are final; a failed append must not lose them.
	rec, err := c.records.AppendHistory(context.WithoutCancel(ctx), query, results)
	if err != nil {
		c.metrics.HistoryWriteFailures.Inc()
		c.logger.Warn("history write degraded",
			"code", tserr.CodeCatalogHistoryDegraded,
			"query", query,
			"results", len(results),
			"error", err,
		)
	} else {
		resp.HistoryID = rec.ID
	}

	return resp, nil
}

// resolveHits joins index hits against the record store in one batch and
// keeps only live tools scoring at or above the floor.
func (c *Catalog) resolveHits(ctx context.Context, hits []store.VectorResult, limit int) ([]Result, error) {
	results := []Result{}
	if len(hits) == 0 {
		return results, nil
	}

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}

	live, err := c.records.GetTools(ctx, ids)
	if err != nil {
		return nil, classify(err, "resolving search hits")
	}

	for _, h := range hits {
		// The sqlite index already stops at the floor; VectorIndex does not
		// require it to.
		if h.Score < c.ScoreFloor() {
			continue
		}
		tool, ok := live[h.ID]
		if !ok {
			c.metrics.StaleCandidates.Inc()
			c.logger.Debug("dropping stale index hit", "tool_id", h.ID, "score", h.Score)
			continue
		}
		results = append(results, Result{
			ID:          tool.ID,
			Name:        tool.Name,
			Description: tool.Description,
			Tags:        tool.Tags,
			Score:       h.Score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (c *Catalog) clampLimit(limit int) int {
	if limit <= 0 {
		return c.opts.DefaultLimit
	}
	return min(limit, c.opts.MaxLimit)
}
