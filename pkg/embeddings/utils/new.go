// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"context"
	"fmt"
	"time"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/embeddings/gemini"
	"github.com/papercomputeco/folio/pkg/embeddings/huggingface"
	"github.com/papercomputeco/folio/pkg/embeddings/ollama"
	"github.com/papercomputeco/folio/pkg/embeddings/openai"
)

// Provider names accepted by NewEmbedder.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderOllama      = "ollama"
	ProviderGemini      = "gemini"
)

// SupportedProviders lists every provider NewEmbedder can build.
var SupportedProviders = []string{ProviderHuggingFace, ProviderOpenAI, ProviderOllama, ProviderGemini}

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   int

	// Timeout bounds each Embed call when positive.
	Timeout time.Duration

	// RateLimit caps Embed calls per second when positive.
	RateLimit float64
	Burst     int
}

func NewEmbedder(ctx context.Context, o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case ProviderHuggingFace:
		e, err = huggingface.NewEmbedder(huggingface.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			APIKey:  o.APIKey,
		})
	case ProviderOpenAI:
		e, err = openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			APIKey:  o.APIKey,
		})
	case ProviderOllama:
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case ProviderGemini:
		e, err = gemini.NewEmbedder(ctx, gemini.EmbedderConfig{
			APIKey:     o.APIKey,
			Model:      o.Model,
			BaseURL:    o.TargetURL,
			Dimensions: o.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	e = embeddings.WithRateLimit(e, o.RateLimit, o.Burst)
	e = embeddings.WithTimeout(e, o.Timeout)

	return e, nil
}
