// Package inmemory provides a vector.Store held entirely in process memory.
package inmemory

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/folio/pkg/vector"
)

// Driver implements vector.Store using an append-only slice.
type Driver struct {
	// mu guards chunks and seq. Readers copy the slice header under a read
	// lock and iterate without holding it.
	mu sync.RWMutex

	// chunks is only ever appended to. Deletion swaps in a freshly allocated
	// slice, so a header captured by an in-flight scan stays consistent.
	chunks []vector.Chunk

	seq int64
}

// NewDriver creates an empty in-memory chunk store.
func NewDriver() *Driver {
	return &Driver{}
}

// Insert stores a chunk, assigning its sequence number.
func (d *Driver) Insert(_ context.Context, chunk vector.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}

	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	chunk.Embedding = slices.Clone(chunk.Embedding)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	chunk.Seq = d.seq
	d.chunks = append(d.chunks, chunk)

	return nil
}

// DeleteByDocument removes every chunk owned by documentID.
func (d *Driver) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := make([]vector.Chunk, 0, len(d.chunks))
	for _, c := range d.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}

	deleted := len(d.chunks) - len(kept)
	if deleted > 0 {
		d.chunks = kept
	}

	return deleted, nil
}

// Scan yields a snapshot of the chunks present when iteration begins.
func (d *Driver) Scan(ctx context.Context) iter.Seq2[vector.Chunk, error] {
	return func(yield func(vector.Chunk, error) bool) {
		d.mu.RLock()
		snapshot := d.chunks
		d.mu.RUnlock()

		for _, c := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(vector.Chunk{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Dimensions reports the embedding length of the stored chunks.
func (d *Driver) Dimensions(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.chunks) == 0 {
		return 0, nil
	}
	return len(d.chunks[0].Embedding), nil
}

// Len returns the number of stored chunks.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.chunks)
}

// Close is a no-op for the in-memory store.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Store = (*Driver)(nil)
