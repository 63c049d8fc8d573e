// Copyright 2025 Voxhive Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/voxhive/knowledged/ai"
	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/extract"
	"github.com/voxhive/knowledged/storage"
)

// Config holds configuration for a reembedding run.
type Config struct {
	// BatchSize is the number of chunks sent to the embedder per request
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      50,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Reembedder regenerates the vectors of a company's completed documents.
type Reembedder struct {
	documents storage.DocumentRepository
	vectors   storage.VectorRepository
	blobs     storage.BlobStore
	extractor *extract.Extractor
	chunker   *extract.Chunker
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(
	documents storage.DocumentRepository,
	vectors storage.VectorRepository,
	blobs storage.BlobStore,
	extractor *extract.Extractor,
	chunker *extract.Chunker,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	return &Reembedder{
		documents: documents,
		vectors:   vectors,
		blobs:     blobs,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		config:    config,
		progress:  progress,
	}
}

// Run reembeds every completed document of the company. Documents still in
// flight or failed are skipped; failed ones have no vectors to refresh.
func (r *Reembedder) Run(ctx context.Context, companyId string) error {
	if companyId == "" {
		return core.ErrMissingCompany
	}

	docs, err := r.documents.ListDocuments(ctx, companyId, "")
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var targets []*core.Document
	for _, doc := range docs {
		if doc.Status == core.StatusCompleted {
			targets = append(targets, doc)
		}
	}
	if len(targets) == 0 {
		fmt.Fprintf(r.progress, "No completed documents found for company %s\n", companyId)
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents (batch size: %d)\n",
		len(targets), r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, len(targets), r.config.ReportInterval)
	tracker.Start()

	for _, doc := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.reembedDocument(ctx, doc); err != nil {
			return fmt.Errorf("document %s: %w", doc.Id, err)
		}
		tracker.Increment(1)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d documents in %v\n",
		len(targets), elapsed.Round(time.Second))
	return nil
}

func (r *Reembedder) reembedDocument(ctx context.Context, doc *core.Document) error {
	payload, err := r.blobs.GetBlob(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}

	text, err := r.extractor.Extract(bytes.NewReader(payload), doc.MimeType)
	if err != nil {
		return err
	}
	chunks := r.chunker.Split(doc.Id, text)
	if len(chunks) == 0 {
		return core.ErrEmptyDocument
	}

	// Chunking config may have changed since the original ingestion; drop
	// the old vectors so stale chunk indexes don't linger past the end of
	// the new set.
	if _, err := r.vectors.DeleteVectors(ctx, doc.CompanyId, doc.Id); err != nil {
		return err
	}

	for offset := 0; offset < len(chunks); offset += r.config.BatchSize {
		end := offset + r.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		embeddings, err := r.embedBatch(ctx, batch)
		if err != nil {
			return err
		}

		records := make([]*core.VectorRecord, len(batch))
		for i, chunk := range batch {
			records[i] = &core.VectorRecord{
				DocumentId: doc.Id,
				CompanyId:  doc.CompanyId,
				AgentId:    doc.AgentId,
				ChunkIndex: chunk.Index,
				Vector:     embeddings[i],
				Text:       chunk.Text,
				FileName:   doc.FileName,
				Start:      chunk.Start,
				End:        chunk.End,
			}
		}
		if err := r.vectors.UpsertVectors(ctx, records...); err != nil {
			return err
		}
	}

	_, err = r.documents.UpdateProgress(ctx, doc.Id, len(chunks), len(chunks))
	return err
}

func (r *Reembedder) embedBatch(ctx context.Context, batch []core.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.RetryDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.config.MaxRetries)), ctx)

	var embeddings [][]float32
	err := backoff.Retry(func() error {
		result, err := r.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(result) != len(texts) {
			return backoff.Permanent(fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(result)))
		}
		embeddings = result
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}
