// Package chunk splits page text into overlapping chunks sized for
// language model prompts.
//
// The splitter tries separators from coarse to fine: paragraphs, lines,
// words and finally single characters. Text is only split further when a
// piece is still larger than the chunk size, so chunks keep as much
// structure as possible. Lengths are counted in runes.
package chunk

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Default splitter settings.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// DefaultSeparators are tried in order; "" splits into single runes.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Errors returned by NewSplitter.
var (
	// ErrInvalidSize is returned when the chunk size is not positive.
	ErrInvalidSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap is returned when the overlap is negative or not
	// smaller than the chunk size.
	ErrInvalidOverlap = errors.New("chunk overlap must be between 0 and chunk size")
)

// Splitter is a recursive character text splitter.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter returns a splitter producing chunks of at most size runes
// where consecutive chunks share up to overlap runes.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if overlap < 0 || overlap >= size {
		return nil, ErrInvalidOverlap
	}
	return &Splitter{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}, nil
}

// Split splits text into chunks. Chunks are trimmed and never empty.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

// SplitPages splits the text of every page and returns the chunks tagged
// with their page URL, in page order.
func (s *Splitter) SplitPages(pages []model.PageRecord) []model.Chunk {
	chunks := make([]model.Chunk, 0)
	for _, page := range pages {
		for i, text := range s.Split(page.Text) {
			chunks = append(chunks, model.Chunk{
				URL:   page.URL,
				Index: i,
				Text:  text,
			})
		}
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator present in the text; "" always matches.
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	pieces := strings.Split(text, separator)

	var (
		chunks []string
		small  []string
	)
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.size {
			small = append(small, piece)
			continue
		}

		if len(small) > 0 {
			chunks = append(chunks, s.merge(small, separator)...)
			small = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(small) > 0 {
		chunks = append(chunks, s.merge(small, separator)...)
	}

	return chunks
}

// merge joins small pieces into chunks of at most size runes, carrying up
// to overlap runes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)

	var (
		chunks  []string
		current []string
		total   int
	)

	joinedLen := func(n int) int {
		if len(current) > 0 {
			return total + n + sepLen
		}
		return total + n
	}

	for _, piece := range pieces {
		n := runeLen(piece)

		if joinedLen(n) > s.size && len(current) > 0 {
			if chunk := join(current, separator); chunk != "" {
				chunks = append(chunks, chunk)
			}

			// Drop leading pieces until the remainder fits as overlap and
			// leaves room for the new piece.
			for total > s.overlap || (total > 0 && joinedLen(n) > s.size) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}

		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, piece)
		total += n
	}

	if chunk := join(current, separator); chunk != "" {
		chunks = append(chunks, chunk)
	}

	return chunks
}

func join(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
