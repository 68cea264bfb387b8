// Package splitter provides a recursive character text splitter: chunks of
// at most chunkSize characters, split preferentially on paragraph, then
// line, then word boundaries before falling back to a hard character cut.
package splitter

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 300

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 0

// defaultSeparators is ordered from the most to the least semantic boundary.
// The final empty separator means "split between characters".
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter splits document text into retrieval-sized chunks. The same input
// and configuration always yield the same chunk sequence.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the number of characters shared between consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.chunkOverlap = overlap
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		separators:   defaultSeparators,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.chunkOverlap >= s.chunkSize {
		s.chunkOverlap = s.chunkSize / 4
	}

	return s
}

// Split returns the ordered chunk sequence for text. Whitespace-only input
// produces no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator that actually occurs in this text; the empty
	// separator always matches and cuts between characters.
	sep := separators[len(separators)-1]
	var rest []string
	for i, c := range separators {
		if c == "" {
			sep = ""
			rest = nil
			break
		}
		if strings.Contains(text, c) {
			sep = c
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = strings.Split(text, "") // one part per character
	} else {
		for _, p := range strings.Split(text, sep) {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}

	var chunks []string
	var fitting []string
	for _, p := range parts {
		if utf8.RuneCountInString(p) < s.chunkSize {
			fitting = append(fitting, p)
			continue
		}
		// An oversized part: flush what fits, then recurse with the finer
		// separators. With none left the part stays whole (an unsplittable
		// token longer than chunkSize).
		if len(fitting) > 0 {
			chunks = append(chunks, s.merge(fitting, sep)...)
			fitting = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, p)
		} else {
			chunks = append(chunks, s.split(p, rest)...)
		}
	}
	if len(fitting) > 0 {
		chunks = append(chunks, s.merge(fitting, sep)...)
	}
	return chunks
}

// merge greedily joins parts with sep into windows of at most chunkSize
// characters, retaining a tail of at most chunkOverlap characters as the
// seed of the next window.
func (s *Splitter) merge(parts []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)

	var (
		docs   []string
		window []string
		total  int
	)

	flush := func() {
		if len(window) == 0 {
			return
		}
		doc := strings.TrimSpace(strings.Join(window, sep))
		if doc != "" {
			docs = append(docs, doc)
		}
	}

	for _, p := range parts {
		n := utf8.RuneCountInString(p)
		join := 0
		if len(window) > 0 {
			join = sepLen
		}

		if total+join+n > s.chunkSize && len(window) > 0 {
			flush()
			// Drop head parts until the tail fits the overlap limit and
			// leaves room for the incoming part.
			for len(window) > 0 &&
				(total > s.chunkOverlap || (total+join+n > s.chunkSize && total > 0)) {
				total -= utf8.RuneCountInString(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
				join = 0
				if len(window) > 0 {
					join = sepLen
				}
			}
		}

		window = append(window, p)
		total += n
		if len(window) > 1 {
			total += sepLen
		}
	}
	flush()
	return docs
}
