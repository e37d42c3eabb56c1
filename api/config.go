// Package api provides the HTTP API for managing course documents and
// searching their ingested text.
package api

import (
	"net/http"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/ingest/worker"
	"github.com/papercomputeco/folio/pkg/search"
	"github.com/papercomputeco/folio/pkg/vector"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// ChunkSize is used when a request does not set chunk_size.
	ChunkSize int

	// SearchMode is the response mode used when a search request does not
	// set one. Defaults to grouped.
	SearchMode string

	Documents documents.Store
	Chunks    vector.Store
	Pipeline  worker.Ingester
	Engine    *search.Engine

	// Pool runs asynchronous ingestion. Requests with async set are
	// rejected when nil.
	Pool *worker.Pool

	// MCPHandler, when set, is mounted at /mcp.
	MCPHandler http.Handler
}
