package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use and must
// honor context cancellation: a call abandoned by its context is cancelled,
// not left running in the background.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Used for search queries, which embed exactly one string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for a batch of strings. The
	// returned slice contains one vector per input, in input order. A batch
	// either succeeds entirely or returns an error; partial results are
	// never returned.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimensionality this embedder produces.
	// Every returned vector has exactly this length.
	Dimension() int
}
