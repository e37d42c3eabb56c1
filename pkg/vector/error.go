package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed caller input such as an
	// empty query or a non-positive chunk size. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProviderUnavailable is returned when the embedding provider errors,
	// times out or answers with a non-2xx status.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrMalformedResponse is returned when the embedding provider answers with
	// a payload that cannot be parsed into a flat numeric vector.
	ErrMalformedResponse = errors.New("malformed embedding response")

	// ErrDimensionMismatch is returned when an embedding's length disagrees with
	// the dimensionality already committed to the store, or with the query
	// embedding at scan time.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStorageUnavailable is returned when the chunk store cannot service a
	// read or write.
	ErrStorageUnavailable = errors.New("vector store unavailable")
)

// DimensionMismatchError carries the expected and observed vector lengths.
// It matches ErrDimensionMismatch with errors.Is.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: want %d, got %d", ErrDimensionMismatch, e.Want, e.Got)
}

func (e DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// Unavailable wraps err as ErrStorageUnavailable with an operation label.
// A nil err yields nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
