package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/voxhive/knowledged/ai"
	"github.com/voxhive/knowledged/core"
)

// Embedder implements ai.Embedder against OpenAI-compatible embedding APIs.
// Each call runs under its own deadline; when the deadline passes the
// underlying HTTP request is cancelled through the context.
type Embedder struct {
	embedder  embeddings.Embedder
	dimension int
	timeout   time.Duration
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.Model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:  embedder,
		dimension: config.Dimension,
		timeout:   config.Timeout,
		logger:    slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates an embedder using the provided configuration.
//
// When no credential is configured the returned embedder is a disabled
// client: every call fails immediately with core.ErrEmbedderUnconfigured so
// ingestion fails fast instead of hanging against an unauthed backend.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if config.APIKey == "" {
		slog.Default().Warn("no embedding credential configured, embedder disabled")
		return &disabledEmbedder{dimension: config.Dimension}, nil
	}
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts generates vector embeddings for a batch of strings. Vectors are
// normalized to unit length before being returned so downstream cosine
// similarity can use a plain dot product.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Debug("generating embeddings", "count", len(texts))

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			e.logger.Warn("embedding call timed out", "count", len(texts), "timeout", e.timeout)
			return nil, fmt.Errorf("%w after %s", core.ErrEmbeddingTimeout, e.timeout)
		}
		e.logger.Error("embedding call failed", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %v", core.ErrProviderFailure, err)
	}

	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, received %d", core.ErrProviderFailure, len(texts), len(vecs))
	}
	for i, v := range vecs {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, model declares %d",
				core.ErrDimensionMismatch, i, len(v), e.dimension)
		}
		vecs[i] = core.NormalizeVector(v)
	}
	return vecs, nil
}

// Dimension returns the configured model dimensionality.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// disabledEmbedder is the no-credential mode of the client. It satisfies the
// interface but every call fails fast, so a misconfigured deployment turns
// into failed documents with a clear error instead of hung jobs.
type disabledEmbedder struct {
	dimension int
}

var _ ai.Embedder = (*disabledEmbedder)(nil)

func (d *disabledEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, core.ErrEmbedderUnconfigured
}

func (d *disabledEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, core.ErrEmbedderUnconfigured
}

func (d *disabledEmbedder) Dimension() int {
	return d.dimension
}
