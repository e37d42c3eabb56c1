package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/folio/pkg/documents"
)

var (
	listDocumentsToolName    = "list_documents"
	listDocumentsDescription = "List uploaded course materials, newest first. Filter by course code, material type or uploader."
)

// ListDocumentsInput represents the input arguments for the list_documents tool.
type ListDocumentsInput struct {
	Course     string `json:"course,omitempty" jsonschema:"course code to filter by"`
	Type       string `json:"type,omitempty" jsonschema:"material type to filter by"`
	UploadedBy string `json:"uploaded_by,omitempty" jsonschema:"owner id to filter by"`
}

// ListDocumentsOutput represents the output of the list_documents tool.
type ListDocumentsOutput struct {
	Documents []documents.Document `json:"documents"`
	Count     int                  `json:"count"`
}

func (s *Server) handleListDocuments(ctx context.Context, _ *mcp.CallToolRequest, input ListDocumentsInput) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs, err := s.config.Documents.Find(ctx, documents.Filter{
		Course:     input.Course,
		Type:       input.Type,
		UploadedBy: input.UploadedBy,
	})
	if err != nil {
		s.config.Logger.Error("MCP list documents failed", "error", err)
		return errorResult("Failed to list documents: %v", err), ListDocumentsOutput{}, nil
	}
	if docs == nil {
		docs = []documents.Document{}
	}

	return jsonResult(ListDocumentsOutput{
		Documents: docs,
		Count:     len(docs),
	})
}
