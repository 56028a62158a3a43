// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

// Package embeddingtest provides deterministic embedding providers for tests.
package embeddingtest

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

// ErrUnavailable is returned by Keyword while it is set to fail.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Keyword embeds text as a normalised bag of words over a fixed vocabulary.
// Dimension 0 collects every out-of-vocabulary word, so no text maps to the
// zero vector. Two texts sharing vocabulary words have positive cosine
// similarity; texts with disjoint vocabulary words have similarity 0.
type Keyword struct {
	index map[string]int
	dims  int

	failing atomic.Bool
	calls   atomic.Int64

	mu      sync.Mutex
	failFor map[string]bool
}

// NewKeyword creates a Keyword provider over vocab. Matching is
// case-insensitive.
func NewKeyword(vocab ...string) *Keyword {
	index := make(map[string]int, len(vocab))
	for _, w := range vocab {
		w = strings.ToLower(w)
		if _, ok := index[w]; !ok {
			index[w] = len(index) + 1
		}
	}
	return &Keyword{index: index, dims: len(index) + 1, failFor: map[string]bool{}}
}

func (k *Keyword) Name() string    { return "keyword" }
func (k *Keyword) Dimensions() int { return k.dims }

// Calls reports how many times Embed was invoked.
func (k *Keyword) Calls() int64 { return k.calls.Load() }

// SetFailing makes every subsequent Embed fail (or succeed again).
func (k *Keyword) SetFailing(fail bool) { k.failing.Store(fail) }

// FailOn makes Embed fail for exactly this text.
func (k *Keyword) FailOn(text string) {
	k.mu.Lock()
	k.failFor[text] = true
	k.mu.Unlock()
}

func (k *Keyword) Embed(ctx context.Context, text string) ([]float32, error) {
	k.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k.failing.Load() {
		return nil, ErrUnavailable
	}
	k.mu.Lock()
	fail := k.failFor[text]
	k.mu.Unlock()
	if fail {
		return nil, ErrUnavailable
	}

	vec := make([]float32, k.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	matched := false
	for _, w := range words {
		if i, ok := k.index[w]; ok {
			vec[i]++
			matched = true
		}
	}
	if !matched {
		vec[0] = 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
