package testutils

import (
	"context"
	"iter"
	"sync"

	"github.com/papercomputeco/folio/pkg/vector"
)

// FailingStore wraps a vector.Store and injects storage failures.
type FailingStore struct {
	vector.Store

	mu sync.Mutex

	// FailInsertAfter fails every Insert once this many have succeeded.
	// Negative disables the failure.
	FailInsertAfter int

	// FailScan makes Scan yield a single ErrStorageUnavailable.
	FailScan bool

	// FailDimensions makes Dimensions return ErrStorageUnavailable.
	FailDimensions bool

	inserts int
}

// NewFailingStore wraps inner with every failure disabled.
func NewFailingStore(inner vector.Store) *FailingStore {
	return &FailingStore{Store: inner, FailInsertAfter: -1}
}

func (f *FailingStore) Insert(ctx context.Context, chunk vector.Chunk) error {
	f.mu.Lock()
	if f.FailInsertAfter >= 0 && f.inserts >= f.FailInsertAfter {
		f.mu.Unlock()
		return vector.Unavailable("insert", errInjected)
	}
	f.inserts++
	f.mu.Unlock()

	return f.Store.Insert(ctx, chunk)
}

func (f *FailingStore) Scan(ctx context.Context) iter.Seq2[vector.Chunk, error] {
	if f.FailScan {
		return func(yield func(vector.Chunk, error) bool) {
			yield(vector.Chunk{}, vector.Unavailable("scan", errInjected))
		}
	}
	return f.Store.Scan(ctx)
}

func (f *FailingStore) Dimensions(ctx context.Context) (int, error) {
	if f.FailDimensions {
		return 0, vector.Unavailable("dimensions", errInjected)
	}
	return f.Store.Dimensions(ctx)
}

type injectedError struct{}

func (injectedError) Error() string { return "injected failure" }

var errInjected = injectedError{}
