// Package search ranks stored chunks against a query by exhaustive cosine
// similarity and joins them with their document metadata. It is used by both
// the REST API endpoint and the MCP server tool.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// DefaultTopK caps flat results when a query does not set TopK.
	DefaultTopK = 10

	// DefaultGroupCap caps the chunks considered for grouping when a query
	// does not set GroupCap.
	DefaultGroupCap = 30
)

// Response modes.
const (
	// ModeGrouped returns one entry per matching document.
	ModeGrouped = "grouped"

	// ModeFlat returns one entry per ranked chunk with its score.
	ModeFlat = "flat"
)

// ValidMode reports whether mode names a response mode.
func ValidMode(mode string) bool {
	return mode == ModeGrouped || mode == ModeFlat
}

// Query is a single search request.
type Query struct {
	Text string `json:"query"`

	// Filter restricts results to matching documents. Empty fields are
	// unconstrained.
	Filter documents.Filter `json:"filter"`

	// TopK caps flat results. Not applied in grouped mode.
	TopK int `json:"top_k,omitempty"`

	// GroupCap caps the ranked chunks considered before grouping.
	GroupCap int `json:"group_cap,omitempty"`
}

// GroupedResult is one document and its matched chunk texts in rank order.
type GroupedResult struct {
	Document     documents.Document `json:"document"`
	MatchedTexts []string           `json:"matched_texts"`
}

// FlatResult is one ranked chunk.
type FlatResult struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Config wires the collaborators of an Engine.
type Config struct {
	Embedder  embeddings.Embedder
	Chunks    vector.Store
	Documents documents.Store

	// Scorer defaults to LinearScorer.
	Scorer Scorer

	// TopK and GroupCap replace the package defaults when positive.
	TopK     int
	GroupCap int

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Engine answers queries over a chunk store.
type Engine struct {
	embedder  embeddings.Embedder
	chunks    vector.Store
	documents documents.Store
	scorer    Scorer
	topK      int
	groupCap  int
	logger    *slog.Logger
}

// NewEngine creates a search engine.
func NewEngine(c Config) (*Engine, error) {
	switch {
	case c.Embedder == nil:
		return nil, errors.New("search engine requires an embedder")
	case c.Chunks == nil:
		return nil, errors.New("search engine requires a vector store")
	case c.Documents == nil:
		return nil, errors.New("search engine requires a document store")
	}

	if c.Scorer == nil {
		c.Scorer = LinearScorer{}
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.GroupCap <= 0 {
		c.GroupCap = DefaultGroupCap
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Engine{
		embedder:  c.Embedder,
		chunks:    c.Chunks,
		documents: c.Documents,
		scorer:    c.Scorer,
		topK:      c.TopK,
		groupCap:  c.GroupCap,
		logger:    c.Logger,
	}, nil
}

// Search ranks chunks, keeps the top GroupCap and groups them by document in
// first-seen order.
func (e *Engine) Search(ctx context.Context, q Query) ([]GroupedResult, error) {
	capN := q.GroupCap
	if capN < 0 {
		return nil, fmt.Errorf("%w: group cap must be positive, got %d", vector.ErrInvalidArgument, capN)
	}
	if capN == 0 {
		capN = e.groupCap
	}

	ranked, docs, err := e.rank(ctx, q)
	if err != nil {
		return nil, err
	}

	ranked = ranked[:min(capN, len(ranked))]

	results := []GroupedResult{}
	index := make(map[string]int)
	for _, r := range ranked {
		i, ok := index[r.chunk.DocumentID]
		if !ok {
			i = len(results)
			index[r.chunk.DocumentID] = i
			results = append(results, GroupedResult{Document: docs[r.chunk.DocumentID]})
		}
		results[i].MatchedTexts = append(results[i].MatchedTexts, r.chunk.Text)
	}

	e.logger.Debug("grouped search finished", "documents", len(results), "chunks", len(ranked))

	return results, nil
}

// SearchFlat ranks chunks and returns the top TopK.
func (e *Engine) SearchFlat(ctx context.Context, q Query) ([]FlatResult, error) {
	topK := q.TopK
	if topK < 0 {
		return nil, fmt.Errorf("%w: top k must be positive, got %d", vector.ErrInvalidArgument, topK)
	}
	if topK == 0 {
		topK = e.topK
	}

	ranked, _, err := e.rank(ctx, q)
	if err != nil {
		return nil, err
	}

	ranked = ranked[:min(topK, len(ranked))]

	results := make([]FlatResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, FlatResult{
			DocumentID: r.chunk.DocumentID,
			Text:       r.chunk.Text,
			Score:      r.score,
		})
	}

	e.logger.Debug("flat search finished", "results", len(results))

	return results, nil
}

type scored struct {
	chunk vector.Chunk
	score float64
}

// rank embeds the query, joins every chunk with its document, drops chunks
// whose document is missing or filtered out, and sorts the rest by score
// descending with ties in insertion order.
func (e *Engine) rank(ctx context.Context, q Query) ([]scored, map[string]documents.Document, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, nil, fmt.Errorf("%w: query text is empty", vector.ErrInvalidArgument)
	}

	e.logger.Debug("search request", "query", q.Text, "filter", q.Filter)

	embedding, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding query: %w", err)
	}

	lookup := newDocumentCache(e.documents)

	var candidates []vector.Chunk
	for chunk, err := range e.chunks.Scan(ctx) {
		if err != nil {
			return nil, nil, fmt.Errorf("scanning chunks: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		doc, ok, err := lookup.get(ctx, chunk.DocumentID)
		if err != nil {
			return nil, nil, err
		}
		if !ok || !q.Filter.Matches(doc) {
			continue
		}
		candidates = append(candidates, chunk)
	}

	scores, err := e.scorer.Score(ctx, embedding, candidates)
	if err != nil {
		return nil, nil, fmt.Errorf("scoring chunks: %w", err)
	}

	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{chunk: c, score: scores[i]}
	}

	slices.SortStableFunc(ranked, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.chunk.Seq, b.chunk.Seq)
	})

	return ranked, lookup.found(), nil
}
