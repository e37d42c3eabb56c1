// Package huggingface implements pkg/embeddings' Embedder client for the
// Hugging Face inference router's feature-extraction endpoint.
package huggingface

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/folio/pkg/embeddings"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "BAAI/bge-small-en-v1.5"

	// DefaultBaseURL is the inference router base. The model path is appended.
	DefaultBaseURL = "https://router.huggingface.co/hf-inference/models"
)

// Embedder calls a hosted Hugging Face embedding model.
type Embedder struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the Hugging Face embedder.
type EmbedderConfig struct {
	// BaseURL defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model defaults to DefaultEmbeddingModel if empty.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string
}

type embedRequest struct {
	Inputs string `json:"inputs"`
}

// NewEmbedder creates a new Hugging Face embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	return &Embedder{
		url:    strings.TrimSuffix(baseURL, "/") + "/" + model,
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Embed converts text into a vector embedding. The router answers with either
// a flat vector or a single-row batch; both are accepted.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	headers := map[string]string{
		// Block until a cold model is loaded instead of failing with 503.
		"x-wait-for-model": "true",
	}
	if e.apiKey != "" {
		headers["Authorization"] = "Bearer " + e.apiKey
	}

	payload, err := embeddings.PostJSON(ctx, e.httpClient, e.url, headers, embedRequest{Inputs: text})
	if err != nil {
		return nil, err
	}

	raw, err := embeddings.DecodeRaw(payload)
	if err != nil {
		return nil, err
	}
	return raw.Normalize()
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
