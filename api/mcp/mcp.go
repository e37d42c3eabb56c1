// Package mcp provides an MCP (Model Context Protocol) server exposing folio
// search to agents.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/search"
	"github.com/papercomputeco/folio/pkg/utils"
)

type Config struct {
	// Engine answers search tool calls
	Engine *search.Engine

	// Documents for listing course materials (optional, enables the
	// list_documents tool)
	Documents documents.Store

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the search tool.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "folio",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)
	s.mcpServer = mcpServer

	if c.Noop {
		// no tools when MCP capabilities are disabled
		return s, nil
	}

	if c.Engine == nil {
		return nil, errors.New("search engine is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)

	if c.Documents != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listDocumentsToolName,
			Description: listDocumentsDescription,
		}, s.handleListDocuments)
	}

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying server, for connecting transports other
// than HTTP.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
