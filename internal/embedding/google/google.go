// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/toolsearch/toolsearch/internal/embedding"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-embedding-001"

// Config holds Google embedding configuration.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
}

// Provider implements embedding.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	config Config
}

// Compile-time interface check.
var _ embedding.Provider = (*Provider)(nil)

// New creates a new Google embedding provider. Returns an error if the API
// key or dimension is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, tserr.New(tserr.CodeEmbeddingConfigInvalid, "google: missing api_key in config",
			tserr.FieldProvider("google"))
	}
	if cfg.Dimensions <= 0 {
		return nil, tserr.Errorf(tserr.CodeEmbeddingConfigInvalid,
			"google: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, tserr.Wrapf(err, tserr.CodeEmbeddingConfigInvalid, "google: creating client")
	}

	return &Provider{client: client, config: cfg}, nil
}

func (p *Provider) Name() string    { return "google" }
func (p *Provider) Dimensions() int { return p.config.Dimensions }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	dims := int32(p.config.Dimensions)
	resp, err := p.client.Models.EmbedContent(ctx, p.config.Model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("gemini embed content response has no embeddings")
	}
	return resp.Embeddings[0].Values, nil
}
