// Package chunker splits extracted document text into overlapping,
// size-bounded segments suitable for embedding.
package chunker

import (
	"errors"
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")

// Chunker packs sentences into chunks of at most chunkSize runes.
type Chunker struct {
	chunkSize int
	overlap   int
}

type Option func(*Chunker)

func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.chunkSize = size
	}
}

func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.chunkSize <= 0 || c.overlap < 0 || c.overlap >= c.chunkSize {
		return nil, ErrInvalidOverlap
	}
	return c, nil
}

func (c *Chunker) ChunkSize() int { return c.chunkSize }

func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text. Empty or whitespace-only input yields an
// empty, non-nil slice.
func (c *Chunker) Split(text string) []string {
	normalized := normalizeWhitespace(text)
	if normalized == "" {
		return []string{}
	}

	packed := c.packSentences(splitSentences(normalized))

	out := make([]string, 0, len(packed))
	for _, chunk := range packed {
		if runeLen(chunk) <= c.chunkSize {
			out = appendTrimmed(out, chunk)
			continue
		}
		for _, window := range c.slidingWindows(chunk) {
			out = appendTrimmed(out, window)
		}
	}
	return out
}

// Split chunks text with the given limits without building a Chunker.
func Split(text string, maxSize, overlap int) ([]string, error) {
	c, err := New(WithChunkSize(maxSize), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

func (c *Chunker) packSentences(sentences []string) []string {
	var chunks []string
	var current []rune

	for _, sentence := range sentences {
		s := []rune(sentence)
		if len(current)+len(s) > c.chunkSize && len(current) > 0 {
			chunks = append(chunks, string(current))
			next := make([]rune, 0, c.overlap+len(s))
			next = append(next, tail(current, c.overlap)...)
			current = append(next, s...)
			continue
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, s...)
	}
	if len(current) > 0 {
		chunks = append(chunks, string(current))
	}
	return chunks
}

// slidingWindows cuts an oversized chunk into windows of chunkSize runes that
// overlap by c.overlap. It stops at the first window reaching the end so no
// window is fully contained in its predecessor.
func (c *Chunker) slidingWindows(chunk string) []string {
	runes := []rune(chunk)
	step := c.chunkSize - c.overlap

	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return windows
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// splitSentences breaks normalized text after '.', '!' or '?' followed by a space.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		if !isTerminator(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentences = append(sentences, string(runes[start:i+1]))
		start = i + 2
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func tail(runes []rune, n int) []rune {
	if len(runes) <= n {
		return runes
	}
	return runes[len(runes)-n:]
}

func runeLen(s string) int {
	return len([]rune(s))
}

func appendTrimmed(out []string, s string) []string {
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		return append(out, trimmed)
	}
	return out
}
