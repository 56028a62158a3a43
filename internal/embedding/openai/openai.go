// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package openai

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/toolsearch/toolsearch/internal/embedding"
	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "text-embedding-3-small"

// Config holds OpenAI embedding configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, for OpenAI-compatible servers and tests
	Model      string
	Dimensions int
}

// Provider implements embedding.Provider using the OpenAI Embeddings API.
type Provider struct {
	client openaisdk.Client
	config Config
}

// Compile-time interface check.
var _ embedding.Provider = (*Provider)(nil)

// New creates a new OpenAI embedding provider. Returns an error if the API
// key or dimension is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, tserr.New(tserr.CodeEmbeddingConfigInvalid, "openai: missing api_key in config",
			tserr.FieldProvider("openai"))
	}
	if cfg.Dimensions <= 0 {
		return nil, tserr.Errorf(tserr.CodeEmbeddingConfigInvalid,
			"openai: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries belong to callers; the coordinator treats a failed embed
		// as a degraded write and the reconciler repairs it.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openaisdk.NewClient(opts...)
	return &Provider{client: client, config: cfg}, nil
}

func (p *Provider) Name() string    { return "openai" }
func (p *Provider) Dimensions() int { return p.config.Dimensions }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, buildParams(p.config, text))
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings response has no data")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

func buildParams(cfg Config, text string) openaisdk.EmbeddingNewParams {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: openaisdk.String(text),
		},
		Model:          openaisdk.EmbeddingModel(cfg.Model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	// Only the text-embedding-3 family accepts a dimensions override.
	if strings.HasPrefix(cfg.Model, "text-embedding-3") {
		params.Dimensions = openaisdk.Int(int64(cfg.Dimensions))
	}
	return params
}
