package extract

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// PlainText extracts UTF-8 text files as-is.
type PlainText struct{}

func (PlainText) Extract(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrExtractionFailed, name, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrExtractionFailed, name)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}
