// Package documents holds the metadata of uploaded course materials. Chunks
// in pkg/vector refer to documents by ID only.
package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/papercomputeco/folio/pkg/vector"
)

// Document is the metadata of one uploaded course material.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CourseCode string    `json:"course"`
	Type       string    `json:"type"`
	StorageURL string    `json:"storage_url,omitempty"`
	OwnerID    string    `json:"owner_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows a document lookup. Empty fields are unconstrained.
type Filter struct {
	Course     string `json:"course,omitempty"`
	Type       string `json:"type,omitempty"`
	UploadedBy string `json:"uploaded_by,omitempty"`
}

// Matches reports whether d satisfies every set field of f.
func (f Filter) Matches(d Document) bool {
	if f.Course != "" && d.CourseCode != f.Course {
		return false
	}
	if f.Type != "" && d.Type != f.Type {
		return false
	}
	if f.UploadedBy != "" && d.OwnerID != f.UploadedBy {
		return false
	}
	return true
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Validate checks the fields a new document must carry.
func (d Document) Validate() error {
	switch {
	case d.Title == "":
		return fmt.Errorf("%w: document title is required", vector.ErrInvalidArgument)
	case d.CourseCode == "":
		return fmt.Errorf("%w: document course is required", vector.ErrInvalidArgument)
	case d.Type == "":
		return fmt.Errorf("%w: document type is required", vector.ErrInvalidArgument)
	}
	return nil
}

// Store persists document metadata.
type Store interface {
	// Create stores a new document, assigning ID and CreatedAt when unset,
	// and returns the stored record.
	Create(ctx context.Context, doc Document) (Document, error)

	// FindByID returns the document or a NotFoundError.
	FindByID(ctx context.Context, id string) (Document, error)

	// Delete removes a document. Deleting a missing document returns a
	// NotFoundError.
	Delete(ctx context.Context, id string) error

	// Find returns the documents matching filter, newest first.
	Find(ctx context.Context, filter Filter) ([]Document, error)

	// Close releases any resources held by the store.
	Close() error
}

// NotFoundError is returned when a document does not exist.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.ID)
}

// Is lets errors.Is match NotFoundError against vector.ErrNotFound.
func (e NotFoundError) Is(target error) bool {
	return target == vector.ErrNotFound
}
