package ingest

import (
	"fmt"

	"github.com/papercomputeco/folio/pkg/vector"
)

// Policy decides what happens when a segment cannot be embedded.
type Policy string

const (
	// PolicyBestEffort skips failed segments and reports a PartialError.
	PolicyBestEffort Policy = "best_effort"

	// PolicyAllOrNothing aborts on the first failure and removes every chunk
	// already stored for the document.
	PolicyAllOrNothing Policy = "all_or_nothing"
)

// ParsePolicy converts a configuration value into a Policy. The empty
// string selects PolicyBestEffort.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyBestEffort:
		return PolicyBestEffort, nil
	case PolicyAllOrNothing:
		return PolicyAllOrNothing, nil
	default:
		return "", fmt.Errorf("%w: unknown ingestion policy %q", vector.ErrInvalidArgument, s)
	}
}
