package rag

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text recursively on the first separator found, then merges
// the pieces back into chunks of at most ChunkSize characters sharing up to
// ChunkOverlap characters with their predecessor.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewSplitter(size, overlap int) Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return Splitter{ChunkSize: size, ChunkOverlap: overlap, Separators: DefaultSeparators}
}

func (s Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, piece := range splitOn(text, separator) {
		if length(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good, separator)...)
			good = nil
		}
		if len(next) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good, separator)...)
	}
	return chunks
}

func (s Splitter) merge(pieces []string, separator string) []string {
	sepLen := length(separator)
	var (
		docs    []string
		current []string
		total   int
	)
	joined := func() {
		if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
			docs = append(docs, doc)
		}
	}
	for _, p := range pieces {
		l := length(p)
		if total+l+sepIf(len(current) > 0, sepLen) > s.ChunkSize && len(current) > 0 {
			joined()
			for total > s.ChunkOverlap || (total+l+sepIf(len(current) > 0, sepLen) > s.ChunkSize && total > 0) {
				total -= length(current[0]) + sepIf(len(current) > 1, sepLen)
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l + sepIf(len(current) > 1, sepLen)
	}
	joined()
	return docs
}

func splitOn(text, separator string) []string {
	if separator != "" {
		return strings.Split(text, separator)
	}
	out := make([]string, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

func sepIf(cond bool, n int) int {
	if cond {
		return n
	}
	return 0
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
