// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

// Package embedding turns text into fixed-length vectors for the tool index.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// Provider is an external embedding model. Implementations return a vector
// of exactly Dimensions() floats or an error; they never substitute a
// placeholder vector on failure.
type Provider interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Checked wraps a Provider, validates every vector it returns, bounds each
// call with a timeout and records outcomes in a HealthTracker. Every error
// it returns carries CodeEmbeddingUnavailable.
type Checked struct {
	inner   Provider
	timeout time.Duration
	health  *HealthTracker
	logger  *slog.Logger
}

// Compile-time interface check.
var _ Provider = (*Checked)(nil)

// NewChecked wraps p. A zero timeout disables the per-call deadline.
func NewChecked(p Provider, timeout time.Duration, health *HealthTracker, logger *slog.Logger) (*Checked, error) {
	if p == nil {
		return nil, tserr.New(tserr.CodeEmbeddingConfigInvalid, "embedding provider is required")
	}
	if p.Dimensions() <= 0 {
		return nil, tserr.Errorf(tserr.CodeEmbeddingConfigInvalid,
			"embedding provider %s reports %d dimensions", p.Name(), p.Dimensions())
	}
	if health == nil {
		var err error
		health, err = NewHealthTracker(DefaultHealthCooldown)
		if err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checked{inner: p, timeout: timeout, health: health, logger: logger}, nil
}

func (c *Checked) Name() string           { return c.inner.Name() }
func (c *Checked) Dimensions() int        { return c.inner.Dimensions() }
func (c *Checked) Health() *HealthTracker { return c.health }
func (c *Checked) Unwrap() Provider       { return c.inner }

func (c *Checked) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	vec, err := c.inner.Embed(ctx, text)
	if err == nil {
		err = Validate(vec, c.inner.Dimensions())
	}
	if err != nil {
		c.health.RecordFailure(err)
		c.logger.Warn("embedding failed",
			"provider", c.inner.Name(),
			"duration", time.Since(start),
			"error", err,
		)
		return nil, tserr.Wrapf(err, tserr.CodeEmbeddingUnavailable, "embedding with %s", c.inner.Name())
	}

	c.health.RecordSuccess()
	return vec, nil
}

// Validate rejects vectors of the wrong length, with non-finite components,
// or with zero norm. A zero vector has no cosine direction.
func Validate(vec []float32, dims int) error {
	if len(vec) != dims {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(vec), dims)
	}
	var norm float64
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding component %d is not finite", i)
		}
		norm += f * f
	}
	if norm == 0 {
		return fmt.Errorf("embedding is a zero vector")
	}
	return nil
}

// Probe embeds a fixed string once. Used at startup to fail fast on a
// misconfigured provider.
func Probe(ctx context.Context, p Provider) error {
	_, err := p.Embed(ctx, "toolsearch startup probe")
	return err
}
