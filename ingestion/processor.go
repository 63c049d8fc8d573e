package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/voxhive/knowledged/ai"
	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/extract"
	"github.com/voxhive/knowledged/storage"
)

// documentProcessor takes one leased job through extraction, chunking,
// batched embedding and vector persistence.
type documentProcessor struct {
	documents storage.DocumentRepository
	vectors   storage.VectorRepository
	blobs     storage.BlobStore
	jobs      storage.JobQueue
	extractor *extract.Extractor
	chunker   *extract.Chunker
	embedder  ai.Embedder
	config    Config
	logger    *slog.Logger

	// notify is invoked with the company id when a document reaches a
	// terminal state. Optional.
	notify func(companyId string)
}

func newDocumentProcessor(
	documents storage.DocumentRepository,
	vectors storage.VectorRepository,
	blobs storage.BlobStore,
	jobs storage.JobQueue,
	extractor *extract.Extractor,
	chunker *extract.Chunker,
	embedder ai.Embedder,
	config Config,
	logger *slog.Logger,
) *documentProcessor {
	return &documentProcessor{
		documents: documents,
		vectors:   vectors,
		blobs:     blobs,
		jobs:      jobs,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		config:    config,
		logger:    logger.With("component", "processor"),
	}
}

// process runs one leased job to a terminal outcome: document completed,
// document failed, or a clean release when the document vanished mid-flight.
// Returned errors are transient; the job stays leased and a later lease
// retries it.
func (p *documentProcessor) process(ctx context.Context, job *core.IngestJob) error {
	logger := p.logger.With("documentId", job.DocumentId, "attempt", job.Attempts)

	doc, err := p.documents.GetDocument(ctx, job.DocumentId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted after enqueue. Nothing to do.
			return p.jobs.Complete(ctx, job.DocumentId, job.LeaseToken)
		}
		return err
	}

	if doc.Status.Terminal() {
		logger.Warn("leased job for document already in terminal state", "status", doc.Status)
		return p.jobs.Complete(ctx, job.DocumentId, job.LeaseToken)
	}

	// First attempt moves pending to processing. A reclaimed job finds the
	// document already processing and resumes where the counts left off.
	if doc.Status == core.StatusPending {
		doc, err = p.documents.TransitionStatus(ctx, doc.Id, core.StatusProcessing, "")
		if err != nil {
			return err
		}
	}

	chunks, err := p.prepare(ctx, doc)
	if err != nil {
		// Extraction failures are deterministic; retrying cannot help.
		return p.fail(ctx, doc, job.LeaseToken, err)
	}
	if len(chunks) == 0 {
		return p.fail(ctx, doc, job.LeaseToken, core.ErrEmptyDocument)
	}

	if _, err := p.documents.UpdateProgress(ctx, doc.Id, len(chunks), doc.VectorCount); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return p.cleanupGone(ctx, doc, job.LeaseToken)
		}
		return err
	}

	if err := p.embedChunks(ctx, doc, chunks, job.LeaseToken, logger); err != nil {
		if errors.Is(err, errDocumentGone) {
			logger.Info("document deleted during processing, aborting")
			return p.cleanupGone(ctx, doc, job.LeaseToken)
		}
		if ctx.Err() != nil {
			// Shutdown, not failure. The lease lapses and another worker
			// resumes from the last durable batch.
			return ctx.Err()
		}
		if job.Attempts >= p.config.MaxJobAttempts {
			return p.fail(ctx, doc, job.LeaseToken, err)
		}
		logger.Warn("attempt failed, leaving job for retry", "err", err)
		return err
	}

	if _, err := p.documents.TransitionStatus(ctx, doc.Id, core.StatusCompleted, ""); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return p.cleanupGone(ctx, doc, job.LeaseToken)
		}
		return err
	}
	logger.Info("document ingested", "chunks", len(chunks))
	if p.notify != nil {
		p.notify(doc.CompanyId)
	}
	return p.jobs.Complete(ctx, doc.Id, job.LeaseToken)
}

// cleanupGone removes whatever a partially processed, since-deleted document
// left behind: its persisted vectors and its job.
func (p *documentProcessor) cleanupGone(ctx context.Context, doc *core.Document, leaseToken string) error {
	if _, err := p.vectors.DeleteVectors(ctx, doc.CompanyId, doc.Id); err != nil {
		return err
	}
	return p.jobs.Complete(ctx, doc.Id, leaseToken)
}

// abandon fails a job whose attempt budget ran out before processing could
// finish, typically after repeated worker crashes.
func (p *documentProcessor) abandon(ctx context.Context, job *core.IngestJob) error {
	doc, err := p.documents.GetDocument(ctx, job.DocumentId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return p.jobs.Complete(ctx, job.DocumentId, job.LeaseToken)
		}
		return err
	}
	if doc.Status.Terminal() {
		return p.jobs.Complete(ctx, job.DocumentId, job.LeaseToken)
	}
	if doc.Status == core.StatusPending {
		if doc, err = p.documents.TransitionStatus(ctx, doc.Id, core.StatusProcessing, ""); err != nil {
			return err
		}
	}
	return p.fail(ctx, doc, job.LeaseToken, errors.New("ingestion attempts exhausted"))
}

// prepare re-reads the payload from blob storage and turns it into chunks.
// Deterministic for a given document, so a resumed attempt reproduces the
// same chunk boundaries and indexes.
func (p *documentProcessor) prepare(ctx context.Context, doc *core.Document) ([]core.Chunk, error) {
	payload, err := p.blobs.GetBlob(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}

	text, err := p.extractor.Extract(bytes.NewReader(payload), doc.MimeType)
	if err != nil {
		return nil, err
	}

	return p.chunker.Split(doc.Id, text), nil
}

// embedChunks embeds and persists the document's chunks batch by batch,
// starting past whatever earlier attempts already persisted. Before each
// batch it confirms the document still exists and renews the job lease.
func (p *documentProcessor) embedChunks(ctx context.Context, doc *core.Document, chunks []core.Chunk, leaseToken string, logger *slog.Logger) error {
	batchSize := p.config.BatchSize(len(chunks))

	// VectorCount only advances on batch boundaries, so it is a safe
	// resume point. Upserts are idempotent either way.
	start := doc.VectorCount
	if start > len(chunks) {
		start = len(chunks)
	}
	if start > 0 {
		logger.Info("resuming from earlier progress", "persisted", start)
	}

	for offset := start; offset < len(chunks); offset += batchSize {
		end := offset + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		if _, err := p.documents.GetDocument(ctx, doc.Id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return errDocumentGone
			}
			return err
		}

		if err := p.jobs.Renew(ctx, doc.Id, leaseToken, p.config.JobLease); err != nil {
			// Lost the lease: another worker owns the document now.
			return err
		}

		embeddings, err := p.embedBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("embedding batch at chunk %d: %w", offset, err)
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
		if err := p.vectors.UpsertVectors(ctx, records...); err != nil {
			return err
		}

		if _, err := p.documents.UpdateProgress(ctx, doc.Id, len(chunks), end); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return errDocumentGone
			}
			return err
		}
		logger.Debug("batch persisted", "persisted", end, "total", len(chunks))
	}
	return nil
}

// embedBatch embeds one batch with exponential backoff. Configuration
// errors and context cancellation stop the retry loop immediately.
func (p *documentProcessor) embedBatch(ctx context.Context, batch []core.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.RetryInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.config.MaxBatchRetries)), ctx)

	var embeddings [][]float32
	operation := func() error {
		result, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			if errors.Is(err, core.ErrEmbedderUnconfigured) || errors.Is(err, core.ErrDimensionMismatch) {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(result) != len(texts) {
			return backoff.Permanent(fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(result)))
		}
		embeddings = result
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// fail moves the document to the failed state and removes its job.
func (p *documentProcessor) fail(ctx context.Context, doc *core.Document, leaseToken string, cause error) error {
	p.logger.Error("document ingestion failed", "documentId", doc.Id, "err", cause)

	if _, err := p.documents.TransitionStatus(ctx, doc.Id, core.StatusFailed, cause.Error()); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	if p.notify != nil {
		p.notify(doc.CompanyId)
	}
	return p.jobs.Complete(ctx, doc.Id, leaseToken)
}
