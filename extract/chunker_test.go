package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhive/knowledged/core"
)

func TestSplitOffsets(t *testing.T) {
	text := NormalizeText(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200))
	chunker := NewChunker(300)

	chunks := chunker.Split("doc-1", text)
	require.NotEmpty(t, chunks)
	require.NoError(t, core.ValidateChunks(chunks))

	runes := []rune(text)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Size(), 300, "chunk %d exceeds max size", c.Index)
		assert.Equal(t, string(runes[c.Start:c.End]), c.Text, "chunk %d text does not match its offsets", c.Index)
	}
}

func TestSplitReconstruction(t *testing.T) {
	text := NormalizeText("First paragraph with some words.\n\nSecond paragraph, a bit longer, with " +
		strings.Repeat("filler ", 100) + "and a tail.\nThird line.")
	chunks := NewChunker(128).Split("doc-1", text)
	require.NotEmpty(t, chunks)

	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
		joined.WriteString(" ")
	}
	// Concatenation in index order reconstructs the source modulo
	// chunk-boundary whitespace.
	assert.Equal(t, collapseSpace(text), collapseSpace(joined.String()))
}

func TestSplitDeterministic(t *testing.T) {
	text := NormalizeText(strings.Repeat("alpha beta gamma delta epsilon. ", 500))
	chunker := NewChunker(512)

	a := chunker.Split("doc-1", text)
	b := chunker.Split("doc-1", text)
	require.Equal(t, a, b)
}

func TestSplitSmallInput(t *testing.T) {
	chunks := NewChunker(1000).Split("doc-1", "just one small chunk")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, "just one small chunk", chunks[0].Text)
}

func TestSplitWhitespaceOnly(t *testing.T) {
	assert.Empty(t, NewChunker(100).Split("doc-1", "   \n\n\t  "))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
