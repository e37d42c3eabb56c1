package api

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/vector"
)

// CreateDocumentRequest registers a document and ingests its extracted text.
type CreateDocumentRequest struct {
	Title      string `json:"title"`
	Course     string `json:"course"`
	Type       string `json:"type"`
	StorageURL string `json:"storage_url,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
	Text       string `json:"text"`
	ChunkSize  *int   `json:"chunk_size,omitempty"`
}

// CreateDocumentResponse is returned when a document was stored.
type CreateDocumentResponse struct {
	Document      documents.Document `json:"document"`
	ChunksCreated int                `json:"chunks_created"`
}

// DeleteDocumentResponse reports what a delete removed.
type DeleteDocumentResponse struct {
	DocumentID    string `json:"document_id"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleCreateDocument stores document metadata and ingests the text that
// came with it. A fatal ingestion failure removes the document again so no
// metadata is left without chunks.
func (s *Server) handleCreateDocument(c *fiber.Ctx) error {
	var req CreateDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	size, err := s.chunkSize(req.ChunkSize)
	if err != nil {
		return s.writeError(c, "", err)
	}

	ctx := c.Context()

	doc, err := s.config.Documents.Create(ctx, documents.Document{
		Title:      req.Title,
		CourseCode: req.Course,
		Type:       req.Type,
		StorageURL: req.StorageURL,
		OwnerID:    req.OwnerID,
	})
	if err != nil {
		return s.writeError(c, "", err)
	}

	created, err := s.config.Pipeline.IngestWithOptions(ctx, doc.ID, req.Text, size, ingest.Options{})
	switch {
	case err == nil:
	case statusFor(err) == fiber.StatusMultiStatus:
		return s.writeError(c, doc.ID, err)
	default:
		s.removeDocument(ctx, doc.ID)
		return s.writeError(c, doc.ID, err)
	}

	s.logger.Info("document created",
		"document_id", doc.ID,
		"course", doc.CourseCode,
		"chunks_created", created,
	)

	return c.Status(fiber.StatusCreated).JSON(CreateDocumentResponse{
		Document:      doc,
		ChunksCreated: created,
	})
}

// handleListDocuments returns the documents matching the course, type and
// uploaded_by query parameters.
func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	filter := documents.Filter{
		Course:     c.Query("course"),
		Type:       c.Query("type"),
		UploadedBy: c.Query("uploaded_by"),
	}

	docs, err := s.config.Documents.Find(c.Context(), filter)
	if err != nil {
		return s.writeError(c, "", err)
	}
	if docs == nil {
		docs = []documents.Document{}
	}

	return c.JSON(map[string]any{
		"count":     len(docs),
		"documents": docs,
	})
}

// handleGetDocument returns a single document by its ID.
func (s *Server) handleGetDocument(c *fiber.Ctx) error {
	doc, err := s.config.Documents.FindByID(c.Context(), c.Params("id"))
	if err != nil {
		return s.writeError(c, "", err)
	}

	return c.JSON(doc)
}

// handleDeleteDocument removes a document's chunks and then its metadata.
func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	id := c.Params("id")
	ctx := c.Context()

	if _, err := s.config.Documents.FindByID(ctx, id); err != nil {
		return s.writeError(c, id, err)
	}

	deleted, err := s.config.Chunks.DeleteByDocument(ctx, id)
	if err != nil {
		return s.writeError(c, id, err)
	}

	if err := s.config.Documents.Delete(ctx, id); err != nil {
		return s.writeError(c, id, err)
	}

	s.logger.Info("document deleted", "document_id", id, "chunks_deleted", deleted)

	return c.JSON(DeleteDocumentResponse{
		DocumentID:    id,
		ChunksDeleted: deleted,
	})
}

// chunkSize resolves the requested chunk size against the configured default.
func (s *Server) chunkSize(requested *int) (int, error) {
	if requested == nil {
		return s.config.ChunkSize, nil
	}
	if *requested <= 0 {
		return 0, fmt.Errorf("%w: chunk_size must be a positive integer, got %d", vector.ErrInvalidArgument, *requested)
	}
	return *requested, nil
}

// removeDocument deletes whatever a failed create left behind.
func (s *Server) removeDocument(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)

	if _, err := s.config.Chunks.DeleteByDocument(ctx, id); err != nil {
		s.logger.Error("failed to remove chunks of failed document", "document_id", id, "error", err)
	}
	if err := s.config.Documents.Delete(ctx, id); err != nil {
		s.logger.Error("failed to remove failed document", "document_id", id, "error", err)
	}
}
