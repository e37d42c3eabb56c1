package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/search"
)

var (
	searchToolName    = "search"
	searchDescription = "Search course materials using semantic search. Returns the most relevant documents with the passages that matched the query, optionally restricted to a course or material type."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"the search query text"`
	Course   string `json:"course,omitempty" jsonschema:"only return documents from this course code"`
	Type     string `json:"type,omitempty" jsonschema:"only return documents of this material type"`
	GroupCap int    `json:"group_cap,omitempty" jsonschema:"number of ranked passages considered before grouping (default: 30)"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string                 `json:"query"`
	Results []search.GroupedResult `json:"results"`
	Count   int                    `json:"count"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP search request",
		"query", input.Query,
		"course", input.Course,
		"group_cap", input.GroupCap,
	)

	results, err := s.config.Engine.Search(ctx, search.Query{
		Text: input.Query,
		Filter: documents.Filter{
			Course: input.Course,
			Type:   input.Type,
		},
		GroupCap: input.GroupCap,
	})
	if err != nil {
		logger.Error("MCP search failed", "error", err)
		return errorResult("Search failed: %v", err), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: results,
		Count:   len(results),
	}

	return jsonResult(output)
}

// jsonResult serializes out into a TextContent block next to the structured
// output, for clients that only read text.
func jsonResult[T any](out T) (*mcp.CallToolResult, T, error) {
	var zero T

	jsonBytes, err := json.Marshal(out)
	if err != nil {
		return errorResult("Failed to serialize results: %v", err), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, out, nil
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}
