// Package embeddings defines the Embedder contract that converts text into
// fixed-length vectors, along with provider-agnostic decorators.
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding. Transport failures,
	// timeouts and non-2xx responses are vector.ErrProviderUnavailable;
	// undecodable payloads are vector.ErrMalformedResponse.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
