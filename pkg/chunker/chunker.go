// Package chunker splits extracted document text into bounded-size,
// sentence-respecting segments suitable for embedding.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/papercomputeco/folio/pkg/vector"
)

// DefaultSize is the default maximum chunk length in characters.
const DefaultSize = 600

// Chunk splits text into chunks of at most maxSize characters (runes).
//
// Sentences are accumulated greedily and joined by a single space. A sentence
// longer than maxSize is hard-split into consecutive maxSize-wide slices; the
// final partial slice stands on its own and is never merged with the
// sentences that follow. Empty text yields no chunks.
func Chunk(text string, maxSize int) ([]string, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be a positive integer, got %d", vector.ErrInvalidArgument, maxSize)
	}

	var (
		chunks []string
		buf    strings.Builder
		bufLen int
	)

	flush := func() {
		if bufLen == 0 {
			return
		}
		chunks = append(chunks, buf.String())
		buf.Reset()
		bufLen = 0
	}

	for _, sentence := range Sentences(text) {
		n := utf8.RuneCountInString(sentence)

		combined := n
		if bufLen > 0 {
			combined = bufLen + 1 + n
		}

		if combined <= maxSize {
			if bufLen > 0 {
				buf.WriteByte(' ')
				bufLen++
			}
			buf.WriteString(sentence)
			bufLen += n
			continue
		}

		flush()

		if n > maxSize {
			chunks = append(chunks, hardSplit(sentence, maxSize)...)
			continue
		}

		buf.WriteString(sentence)
		bufLen = n
	}

	flush()

	return chunks, nil
}

// Sentences splits text into trimmed, non-empty sentence-like units. A
// boundary occurs after '.', '!' or '?' when followed by whitespace.
// Abbreviations and decimal numbers are not special-cased.
func Sentences(text string) []string {
	var sentences []string

	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		next := i + utf8.RuneLen(r)
		if next >= len(text) {
			break
		}

		nr, _ := utf8.DecodeRuneInString(text[next:])
		if !unicode.IsSpace(nr) {
			continue
		}

		if s := strings.TrimSpace(text[start:next]); s != "" {
			sentences = append(sentences, s)
		}
		start = next
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// hardSplit cuts s into consecutive slices of size runes. The last slice may
// be shorter.
func hardSplit(s string, size int) []string {
	runes := []rune(s)
	parts := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}
