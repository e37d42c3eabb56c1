// Package vector provides the chunk record type, the store interface that
// persists chunks with their embeddings, and similarity scoring.
package vector

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// Chunk is a bounded slice of a document's extracted text paired with its
// embedding. Chunks are immutable once inserted.
type Chunk struct {
	// ID uniquely identifies the chunk.
	ID string

	// DocumentID is a weak reference to the owning document.
	DocumentID string

	// Seq is the store-assigned insertion sequence. It is only meaningful
	// for ordering chunks relative to one another.
	Seq int64

	// Text is the non-empty chunk text.
	Text string

	// Embedding is the vector representation of Text.
	Embedding []float32

	// CreatedAt is when the chunk was created.
	CreatedAt time.Time
}

// Store handles append-only storage of chunks addressable by document.
type Store interface {
	// Insert stores a single chunk. Implementations assign Seq.
	Insert(ctx context.Context, chunk Chunk) error

	// DeleteByDocument removes every chunk owned by documentID and returns
	// how many were removed. Deleting a document with no chunks returns 0.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// Scan yields every stored chunk. Each call returns a fresh sequence; no
	// chunk is yielded twice within one scan. A non-nil error terminates the
	// sequence.
	Scan(ctx context.Context) iter.Seq2[Chunk, error]

	// Dimensions reports the embedding length of the stored chunks, or 0 when
	// the store is empty.
	Dimensions(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Validate checks the invariants every stored chunk must satisfy.
func (c Chunk) Validate() error {
	switch {
	case c.DocumentID == "":
		return fmt.Errorf("%w: chunk has no document id", ErrInvalidArgument)
	case c.Text == "":
		return fmt.Errorf("%w: chunk text is empty", ErrInvalidArgument)
	case len(c.Embedding) == 0:
		return fmt.Errorf("%w: chunk embedding is empty", ErrInvalidArgument)
	}
	return nil
}
