package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/papercomputeco/folio/pkg/vector"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	mu sync.Mutex

	// Embeddings maps exact input text to a fixed embedding.
	Embeddings map[string][]float32

	// Dimensions is the length of generated embeddings for unmapped text.
	// Defaults to 3.
	Dimensions int

	// FailOn causes Embed to return ErrProviderUnavailable when the input
	// text matches.
	FailOn map[string]bool

	// Calls records every text passed to Embed.
	Calls []string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		FailOn:     make(map[string]bool),
		Dimensions: 3,
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, text)

	if m.FailOn[text] {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", vector.ErrProviderUnavailable, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Deterministic pseudo-embedding derived from the text hash.
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	emb := make([]float32, m.Dimensions)
	for i := range emb {
		seed = seed*6364136223846793005 + 1442695040888963407
		emb[i] = float32(seed>>40) / float32(1<<24)
	}
	return emb, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

// CallCount returns how many times Embed was invoked.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
