// Package inmemory provides a documents.Store held in process memory.
package inmemory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/vector"
)

// Driver implements documents.Store using a map.
type Driver struct {
	mu   sync.RWMutex
	docs map[string]documents.Document
}

// NewDriver creates an empty in-memory document store.
func NewDriver() *Driver {
	return &Driver{docs: make(map[string]documents.Document)}
}

// Create stores a new document.
func (d *Driver) Create(_ context.Context, doc documents.Document) (documents.Document, error) {
	if err := doc.Validate(); err != nil {
		return documents.Document{}, err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.docs[doc.ID]; ok {
		return documents.Document{}, fmt.Errorf("%w: document %s already exists", vector.ErrInvalidArgument, doc.ID)
	}
	d.docs[doc.ID] = doc

	return doc, nil
}

// FindByID returns a document by ID.
func (d *Driver) FindByID(_ context.Context, id string) (documents.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.docs[id]
	if !ok {
		return documents.Document{}, documents.NotFoundError{ID: id}
	}
	return doc, nil
}

// Delete removes a document.
func (d *Driver) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.docs[id]; !ok {
		return documents.NotFoundError{ID: id}
	}
	delete(d.docs, id)
	return nil
}

// Find returns the documents matching filter, newest first.
func (d *Driver) Find(_ context.Context, filter documents.Filter) ([]documents.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []documents.Document
	for _, doc := range d.docs {
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}

	slices.SortFunc(out, func(a, b documents.Document) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return out, nil
}

// Close is a no-op for the in-memory store.
func (d *Driver) Close() error {
	return nil
}

var _ documents.Store = (*Driver)(nil)
