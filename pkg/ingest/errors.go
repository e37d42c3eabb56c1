package ingest

import (
	"errors"
	"fmt"
)

// ErrPartialIngestion is matched by PartialError when some segments of a
// document could not be embedded.
var ErrPartialIngestion = errors.New("partial ingestion failure")

// PartialError reports how many segments were stored and how many failed.
// The document remains searchable through the stored segments.
type PartialError struct {
	Succeeded int
	Failed    int

	// Errs holds one embedding error per failed segment, in segment order.
	Errs []error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s: %d succeeded, %d failed", ErrPartialIngestion, e.Succeeded, e.Failed)
}

func (e *PartialError) Is(target error) bool {
	return target == ErrPartialIngestion
}

// Unwrap exposes the per-segment errors to errors.Is and errors.As.
func (e *PartialError) Unwrap() []error {
	return e.Errs
}
