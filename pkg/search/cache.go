package search

import (
	"context"
	"errors"

	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/vector"
)

// documentCache memoizes document lookups for the lifetime of one request.
// Missing documents are cached as absent.
type documentCache struct {
	store documents.Store
	docs  map[string]*documents.Document
}

func newDocumentCache(store documents.Store) *documentCache {
	return &documentCache{store: store, docs: make(map[string]*documents.Document)}
}

func (c *documentCache) get(ctx context.Context, id string) (documents.Document, bool, error) {
	if doc, ok := c.docs[id]; ok {
		if doc == nil {
			return documents.Document{}, false, nil
		}
		return *doc, true, nil
	}

	doc, err := c.store.FindByID(ctx, id)
	if errors.Is(err, vector.ErrNotFound) {
		c.docs[id] = nil
		return documents.Document{}, false, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return documents.Document{}, false, ctxErr
		}
		return documents.Document{}, false, vector.Unavailable("document lookup", err)
	}

	c.docs[id] = &doc
	return doc, true, nil
}

func (c *documentCache) found() map[string]documents.Document {
	out := make(map[string]documents.Document, len(c.docs))
	for id, doc := range c.docs {
		if doc != nil {
			out[id] = *doc
		}
	}
	return out
}
