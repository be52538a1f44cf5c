// Package pipeline turns book chapters into embedded, persisted chunks, resumably.
package pipeline

import "strings"

// Default chunking parameters, in words.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// TextChunk is one window of a chapter's text, with word offsets into the
// original chapter.
type TextChunk struct {
	Ordinal   int
	Text      string
	StartWord int
	EndWord   int
}

// Chunker splits chapter text into overlapping word-count windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
// Non-positive values fall back to the defaults.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 10
		}
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into windows of chunkSize words with chunkOverlap words
// shared between consecutive windows. The final window may be shorter; every
// word of the input appears in at least one window. Empty text yields nil.
func (c *Chunker) Chunk(text string) []TextChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []TextChunk
	for start := 0; start < len(words); start += step {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, TextChunk{
			Ordinal:   len(chunks),
			Text:      strings.Join(words[start:end], " "),
			StartWord: start,
			EndWord:   end,
		})
		if end >= len(words) {
			break
		}
	}
	return chunks
}
