package embeddings

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/folio/pkg/vector"
)

// RawResponse is the decoded body of a provider that may answer with either a
// flat vector or a batch of one. It is either Flat or NestedOnce.
type RawResponse interface {
	// Normalize returns the single embedding carried by the response.
	Normalize() ([]float32, error)

	isRawResponse()
}

// Flat is a response that is already a single vector.
type Flat []float32

// NestedOnce is a response wrapped in exactly one extra array level. Only the
// first row is used.
type NestedOnce [][]float32

func (Flat) isRawResponse()       {}
func (NestedOnce) isRawResponse() {}

// Normalize returns the vector, rejecting an empty one.
func (f Flat) Normalize() ([]float32, error) {
	if len(f) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", vector.ErrMalformedResponse)
	}
	return []float32(f), nil
}

// Normalize unwraps the first row.
func (n NestedOnce) Normalize() ([]float32, error) {
	if len(n) == 0 || len(n[0]) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", vector.ErrMalformedResponse)
	}
	return n[0], nil
}

// Vector is a JSON array of numbers. Unlike a plain []float32 it rejects null
// entries, which encoding/json would otherwise decode as zero.
type Vector []float32

// UnmarshalJSON decodes a numeric array, failing on null or non-numeric
// entries.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var entries []*float32
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: non-numeric embedding: %v", vector.ErrMalformedResponse, err)
	}

	out := make([]float32, len(entries))
	for i, e := range entries {
		if e == nil {
			return fmt.Errorf("%w: null entry at index %d", vector.ErrMalformedResponse, i)
		}
		out[i] = *e
	}
	*v = out
	return nil
}

// DecodeRaw parses a JSON array of numbers, or an array of arrays of numbers.
// Deeper nesting, mixed shapes and non-numeric entries are rejected.
func DecodeRaw(data []byte) (RawResponse, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array: %v", vector.ErrMalformedResponse, err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", vector.ErrMalformedResponse)
	}

	if !isArray(items[0]) {
		var flat Vector
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("%w: non-numeric embedding: %v", vector.ErrMalformedResponse, err)
		}
		return Flat(flat), nil
	}

	nested := make(NestedOnce, 0, len(items))
	for i, item := range items {
		if !isArray(item) {
			return nil, fmt.Errorf("%w: mixed array shapes at index %d", vector.ErrMalformedResponse, i)
		}
		var row Vector
		if err := json.Unmarshal(item, &row); err != nil {
			return nil, fmt.Errorf("%w: row %d is not a numeric vector: %v", vector.ErrMalformedResponse, i, err)
		}
		nested = append(nested, row)
	}
	return nested, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
