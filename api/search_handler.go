package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/search"
)

// SearchRequest is the body of POST /v1/search and the query string of
// GET /v1/search.
type SearchRequest struct {
	Query      string `json:"query" query:"query"`
	Course     string `json:"course,omitempty" query:"course"`
	Type       string `json:"type,omitempty" query:"type"`
	UploadedBy string `json:"uploaded_by,omitempty" query:"uploaded_by"`
	Mode       string `json:"mode,omitempty" query:"mode"`
	TopK       int    `json:"top_k,omitempty" query:"top_k"`
	GroupCap   int    `json:"group_cap,omitempty" query:"group_cap"`
}

// SearchResponse wraps the results of one search. Results holds
// []search.GroupedResult in grouped mode and []search.FlatResult in flat
// mode.
type SearchResponse struct {
	Query   string `json:"query"`
	Mode    string `json:"mode"`
	Count   int    `json:"count"`
	Results any    `json:"results"`
}

// handleSearch handles POST /v1/search requests.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return s.runSearch(c, req)
}

// handleSearchQuery handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - course, type, uploaded_by (optional): document filters
//   - mode (optional): grouped or flat
//   - top_k, group_cap (optional): result caps
func (s *Server) handleSearchQuery(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.QueryParser(&req); err != nil {
		return badRequest(c, "invalid query parameters")
	}
	return s.runSearch(c, req)
}

func (s *Server) runSearch(c *fiber.Ctx, req SearchRequest) error {
	mode := req.Mode
	if mode == "" {
		mode = s.config.SearchMode
	}
	if !search.ValidMode(mode) {
		return badRequest(c, "mode must be grouped or flat")
	}

	q := search.Query{
		Text: req.Query,
		Filter: documents.Filter{
			Course:     req.Course,
			Type:       req.Type,
			UploadedBy: req.UploadedBy,
		},
		TopK:     req.TopK,
		GroupCap: req.GroupCap,
	}

	s.logger.Debug("search request", "query", req.Query, "mode", mode, "course", req.Course)

	var (
		results any
		count   int
	)

	switch mode {
	case search.ModeFlat:
		flat, err := s.config.Engine.SearchFlat(c.Context(), q)
		if err != nil {
			return s.writeError(c, "", err)
		}
		results, count = flat, len(flat)
	default:
		grouped, err := s.config.Engine.Search(c.Context(), q)
		if err != nil {
			return s.writeError(c, "", err)
		}
		results, count = grouped, len(grouped)
	}

	return c.JSON(SearchResponse{
		Query:   req.Query,
		Mode:    mode,
		Count:   count,
		Results: results,
	})
}
