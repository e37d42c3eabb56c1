package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/vector"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PartialResponse is returned with 207 when some segments of a document
// could not be embedded.
type PartialResponse struct {
	Error      string `json:"error"`
	DocumentID string `json:"document_id"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrPartialIngestion):
		return fiber.StatusMultiStatus
	case errors.Is(err, vector.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, vector.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, vector.ErrDimensionMismatch):
		return fiber.StatusConflict
	case errors.Is(err, vector.ErrProviderUnavailable), errors.Is(err, vector.ErrMalformedResponse):
		return fiber.StatusBadGateway
	case errors.Is(err, vector.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError sends err with its mapped status. Partial ingestion failures
// are reported with their counts.
func (s *Server) writeError(c *fiber.Ctx, documentID string, err error) error {
	var partial *ingest.PartialError
	if errors.As(err, &partial) {
		s.logger.Warn("partial ingestion",
			"document_id", documentID,
			"succeeded", partial.Succeeded,
			"failed", partial.Failed,
		)
		return c.Status(fiber.StatusMultiStatus).JSON(PartialResponse{
			Error:      err.Error(),
			DocumentID: documentID,
			Succeeded:  partial.Succeeded,
			Failed:     partial.Failed,
		})
	}

	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err,
		)
	}

	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
