// Package extract turns uploaded files into plain text ready for chunking.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrUnsupportedFormat is returned for files no extractor handles.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrExtractionFailed is returned when a supported file cannot be read.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Extractor reads a file's content and returns its text.
type Extractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, name string, r io.Reader) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, name string, r io.Reader) (string, error) {
	return f(ctx, name, r)
}

// Registry dispatches to an Extractor by file extension.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

// NewRegistry returns a registry with the built-in extractors: plain text
// for .txt and .md, HTML for .html and .htm.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register(PlainText{}, ".txt", ".md", ".markdown")
	r.Register(HTML{}, ".html", ".htm")
	return r
}

// Register associates e with each extension. Extensions are matched case
// insensitively and must include the leading dot.
func (r *Registry) Register(e Extractor, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.extractors[strings.ToLower(ext)] = e
	}
}

// Supported reports whether name has a registered extension.
func (r *Registry) Supported(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Extract picks the extractor for name and runs it.
func (r *Registry) Extract(ctx context.Context, name string, rd io.Reader) (string, error) {
	e, ok := r.lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
	return e.Extract(ctx, name, rd)
}

func (r *Registry) lookup(name string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[strings.ToLower(filepath.Ext(name))]
	return e, ok
}
