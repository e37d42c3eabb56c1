// Package gemini implements pkg/embeddings' Embedder client on top of the
// Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/vector"
)

// DefaultEmbeddingModel is the default model used for embeddings.
const DefaultEmbeddingModel = "text-embedding-004"

// Embedder wraps the Gemini EmbedContent API.
type Embedder struct {
	client *genai.Client
	model  string
	config *genai.EmbedContentConfig
}

// EmbedderConfig holds configuration for the Gemini embedder.
type EmbedderConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API endpoint when set.
	BaseURL string

	// Dimensions requests a reduced output dimensionality when positive.
	Dimensions int
}

// NewEmbedder creates a Gemini API client.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini embedder requires an API key", vector.ErrInvalidArgument)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	var config *genai.EmbedContentConfig
	if cfg.Dimensions > 0 {
		dim := int32(cfg.Dimensions)
		config = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	return &Embedder{client: client, model: model, config: config}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	res, err := e.client.Models.EmbedContent(ctx, e.model, contents, e.config)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embed: %w", vector.ErrProviderUnavailable, err)
	}

	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrMalformedResponse)
	}

	return res.Embeddings[0].Values, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
