package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/search"
)

// Server is the API server for ingesting and querying course documents.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The stores, pipeline and engine are
// injected so they can be shared with other components such as the
// directory watcher.
func NewServer(config Config, logger *slog.Logger) (*Server, error) {
	switch {
	case config.Documents == nil:
		return nil, errors.New("document store is required")
	case config.Chunks == nil:
		return nil, errors.New("vector store is required")
	case config.Pipeline == nil:
		return nil, errors.New("ingest pipeline is required")
	case config.Engine == nil:
		return nil, errors.New("search engine is required")
	case logger == nil:
		return nil, errors.New("logger is required")
	}

	if config.ChunkSize <= 0 {
		config.ChunkSize = chunker.DefaultSize
	}
	if config.SearchMode == "" {
		config.SearchMode = search.ModeGrouped
	}
	if !search.ValidMode(config.SearchMode) {
		return nil, errors.New("unsupported search mode: " + config.SearchMode)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/documents", s.handleCreateDocument)
	v1.Get("/documents", s.handleListDocuments)
	v1.Get("/documents/:id", s.handleGetDocument)
	v1.Delete("/documents/:id", s.handleDeleteDocument)
	v1.Post("/ingest", s.handleIngest)
	v1.Get("/search", s.handleSearchQuery)
	v1.Post("/search", s.handleSearch)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"mcp", s.config.MCPHandler != nil,
		"async_ingest", s.config.Pool != nil,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
