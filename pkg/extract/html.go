package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockSelector lists the elements whose text becomes its own paragraph.
const blockSelector = "title, h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td, th, figcaption"

// HTML extracts readable text from HTML documents.
type HTML struct{}

func (HTML) Extract(_ context.Context, name string, r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("%w: parsing %s: %v", ErrExtractionFailed, name, err)
	}

	// Remove unwanted elements
	doc.Find("script, style, noscript, nav, footer, aside, template").Remove()

	var blocks []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are covered by their outermost ancestor.
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		if text := collapseSpace(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return collapseSpace(doc.Find("body").Text()), nil
	}

	return strings.Join(blocks, "\n\n"), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
