// Package openai implements pkg/embeddings' Embedder client for the OpenAI
// embeddings API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "text-embedding-3-large"

	// DefaultBaseURL is the default OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com"
)

// Embedder wraps OpenAI's /v1/embeddings endpoint.
type Embedder struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding embeddings.Vector `json:"embedding"`
	} `json:"data"`
}

// NewEmbedder creates a new OpenAI embedder. An API key is required.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai embedder requires an API key", vector.ErrInvalidArgument)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	return &Embedder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := embeddings.PostJSON(ctx, e.httpClient, e.baseURL+"/v1/embeddings",
		map[string]string{"Authorization": "Bearer " + e.apiKey},
		embedRequest{Model: e.model, Input: text},
	)
	if err != nil {
		return nil, err
	}

	var embedResp embedResponse
	if err := json.Unmarshal(payload, &embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding openai response: %v", vector.ErrMalformedResponse, err)
	}

	if len(embedResp.Data) == 0 || len(embedResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrMalformedResponse)
	}

	return embedResp.Data[0].Embedding, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
