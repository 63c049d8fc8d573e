package extract

import (
	"unicode"

	"github.com/voxhive/knowledged/core"
)

// Chunker splits normalized text into bounded segments with rune offsets.
// Splitting is deterministic: the same text and chunk size always yield the
// same sequence, which keeps re-processing idempotent.
type Chunker struct {
	chunkSize int // maximum characters per chunk
}

// NewChunker creates a chunker with the given maximum chunk size. Sizes below
// 32 characters are clamped to 32.
func NewChunker(chunkSize int) *Chunker {
	if chunkSize < 32 {
		chunkSize = 32
	}
	return &Chunker{chunkSize: chunkSize}
}

// Split produces the ordered chunk sequence for a document. Offsets are rune
// positions into the normalized text; chunks never overlap and indexes are
// dense from zero. Whitespace at chunk boundaries is trimmed, so the
// concatenation of chunk texts reconstructs the source modulo that trimming.
//
// Where possible a chunk breaks at a newline or space inside the second half
// of its window rather than mid-word.
func (c *Chunker) Split(documentId, text string) []core.Chunk {
	runes := []rune(text)
	var chunks []core.Chunk

	pos := 0
	for pos < len(runes) {
		// Skip inter-chunk whitespace.
		for pos < len(runes) && unicode.IsSpace(runes[pos]) {
			pos++
		}
		if pos >= len(runes) {
			break
		}

		end := pos + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = softBreak(runes, pos, end)
		}

		// Trim trailing whitespace from the emitted segment, keeping end as
		// the resume position.
		last := end
		for last > pos && unicode.IsSpace(runes[last-1]) {
			last--
		}
		if last > pos {
			chunks = append(chunks, core.Chunk{
				DocumentId: documentId,
				Index:      len(chunks),
				Start:      pos,
				End:        last,
				Text:       string(runes[pos:last]),
			})
		}
		pos = end
	}
	return chunks
}

// softBreak scans backwards from the hard limit for a whitespace boundary,
// but never gives up more than half the window.
func softBreak(runes []rune, start, limit int) int {
	min := start + (limit-start)/2
	for i := limit; i > min; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}
