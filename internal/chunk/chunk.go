// Package chunk splits text into overlapping, token-bounded windows for
// embedding. Token boundaries are whitespace-delimited words, so chunk
// text always re-joins to readable prose and splitting is deterministic
// for a given size/overlap pair.
package chunk

import (
	"fmt"
	"strings"
)

// Splitter produces overlapping token windows over input text.
// The zero value is not usable; construct with New.
type Splitter struct {
	size    int
	overlap int
}

// New returns a Splitter emitting windows of at most size tokens, with
// consecutive windows sharing overlap tokens. It returns an error when
// overlap is negative or would prevent forward progress (overlap >= size
// for a positive size). A size of zero or less disables splitting: Split
// then returns the input as a single chunk.
func New(size, overlap int) (*Splitter, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap %d must not be negative", overlap)
	}
	if size > 0 && overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split returns the token windows of text in document order. Empty or
// all-whitespace input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if s.size <= 0 {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	tokens := Tokenize(text)
	n := len(tokens)
	if n == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for {
		end := min(start+s.size, n)
		chunks = append(chunks, Join(tokens[start:end]))
		if end == n {
			break
		}
		start = end - s.overlap
	}
	return chunks
}

// Tokenize splits text into word tokens on Unicode whitespace.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Join is the inverse of Tokenize up to whitespace normalization.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}

// Count returns the number of tokens in text.
func Count(text string) int {
	return len(Tokenize(text))
}

// ID returns the stable chunk identifier for the index-th chunk of a
// source. Re-ingesting a source therefore overwrites its previous chunks
// instead of duplicating them.
func ID(sourceURI string, index int) string {
	return fmt.Sprintf("%s#chunk-%d", sourceURI, index)
}
