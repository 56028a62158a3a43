// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package store

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxToolNameLength bounds Tool.Name in characters.
const MaxToolNameLength = 255

// Tool is a catalogued capability. The record store is its source of truth.
type Tool struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"tool_metadata"`
	// Revision starts at 1 and increments on every update. It is mirrored
	// into the vector payload so stale index entries can be detected.
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolFields are the caller-supplied fields of a Tool.
type ToolFields struct {
	Name        string
	Description string
	Tags        []string
	Metadata    map[string]any
}

// Validate checks the field invariants the record store relies on.
func (f ToolFields) Validate() error {
	var problems []string
	n := utf8.RuneCountInString(f.Name)
	if strings.TrimSpace(f.Name) == "" {
		problems = append(problems, "name is required")
	} else if n > MaxToolNameLength {
		problems = append(problems, fmt.Sprintf("name exceeds %d characters", MaxToolNameLength))
	}
	if strings.TrimSpace(f.Description) == "" {
		problems = append(problems, "description is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), ErrInvalidInput)
	}
	return nil
}

// EmbeddingText is the text a tool is embedded from: name, description and
// tags joined by single spaces.
func (t *Tool) EmbeddingText() string {
	parts := make([]string, 0, 2+len(t.Tags))
	parts = append(parts, t.Name, t.Description)
	parts = append(parts, t.Tags...)
	return strings.Join(parts, " ")
}

// ListOpts is offset pagination shared by tool and history listings.
type ListOpts struct {
	Offset int
	Limit  int
}

// ResultSnapshot is one search hit as recorded in history.
type ResultSnapshot struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Score       float64  `json:"score"`
}

// SearchHistoryRecord is an append-only log entry of one executed search.
type SearchHistoryRecord struct {
	ID        int64            `json:"id"`
	Query     string           `json:"query"`
	Results   []ResultSnapshot `json:"results"`
	CreatedAt time.Time        `json:"created_at"`
}

// VectorPayload is the denormalised copy of tool fields stored beside a
// vector. It is a cache; the record store wins on every read.
type VectorPayload struct {
	ToolID      int64    `json:"tool_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Revision    int64    `json:"revision"`
}

// PayloadFor builds the index payload mirroring t.
func PayloadFor(t *Tool) VectorPayload {
	return VectorPayload{
		ToolID:      t.ID,
		Name:        t.Name,
		Description: t.Description,
		Tags:        t.Tags,
		Revision:    t.Revision,
	}
}

// VectorEntry is one point in the vector index, keyed by tool id.
type VectorEntry struct {
	ID      int64
	Vector  []float32
	Payload VectorPayload
}

// VectorResult is a nearest-neighbour hit. Score is cosine similarity
// (1 - cosine distance); higher is closer.
type VectorResult struct {
	ID      int64
	Score   float64
	Payload VectorPayload
}
