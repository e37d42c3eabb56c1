package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/ingest/worker"
)

// IngestRequest adds text to an existing document.
type IngestRequest struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	ChunkSize  *int   `json:"chunk_size,omitempty"`

	// Replace deletes the document's existing chunks first.
	Replace bool `json:"replace,omitempty"`

	// Async queues the request on the worker pool and returns immediately.
	Async bool `json:"async,omitempty"`
}

// IngestResponse reports the outcome of an ingest request.
type IngestResponse struct {
	DocumentID    string `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
	Queued        bool   `json:"queued,omitempty"`
}

// handleIngest handles POST /v1/ingest requests.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.DocumentID == "" {
		return badRequest(c, "document_id is required")
	}

	size, err := s.chunkSize(req.ChunkSize)
	if err != nil {
		return s.writeError(c, req.DocumentID, err)
	}

	ctx := c.Context()

	if _, err := s.config.Documents.FindByID(ctx, req.DocumentID); err != nil {
		return s.writeError(c, req.DocumentID, err)
	}

	if req.Async {
		if s.config.Pool == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error: "asynchronous ingestion is not enabled",
			})
		}

		ok := s.config.Pool.Enqueue(worker.Job{
			Source:     "api",
			DocumentID: req.DocumentID,
			Text:       req.Text,
			ChunkSize:  size,
			Replace:    req.Replace,
		})
		if !ok {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error: "ingest queue is full",
			})
		}

		return c.Status(fiber.StatusAccepted).JSON(IngestResponse{
			DocumentID: req.DocumentID,
			Queued:     true,
		})
	}

	created, err := s.config.Pipeline.IngestWithOptions(ctx, req.DocumentID, req.Text, size, ingest.Options{
		Replace: req.Replace,
	})
	if err != nil {
		return s.writeError(c, req.DocumentID, err)
	}

	return c.JSON(IngestResponse{
		DocumentID:    req.DocumentID,
		ChunksCreated: created,
	})
}
