package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/voxhive/knowledged/ai"
	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/extract"
	"github.com/voxhive/knowledged/storage"
)

// Pipeline orchestrates document ingestion. It polls the durable job queue,
// leases claimable jobs and fans them out to a worker pool; each worker runs
// one document at a time while the lease keeps other workers away from it.
type Pipeline struct {
	jobs      storage.JobQueue
	documents storage.DocumentRepository
	processor *documentProcessor
	pool      *ants.Pool
	config    Config
	logger    *slog.Logger
	notify    func(companyId string)

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	inflight sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConfig overrides the default pipeline configuration.
func WithConfig(config Config) Option {
	return func(p *Pipeline) error {
		p.config = config.Normalize()
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChangeHook registers a callback invoked with the company id whenever a
// document reaches a terminal state. Used to invalidate cached search
// results.
func WithChangeHook(fn func(companyId string)) Option {
	return func(p *Pipeline) error {
		p.notify = fn
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	vectors storage.VectorRepository,
	blobs storage.BlobStore,
	jobs storage.JobQueue,
	extractor *extract.Extractor,
	chunker *extract.Chunker,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if jobs == nil {
		return nil, ErrJobQueueRequired
	}
	if extractor == nil || chunker == nil {
		return nil, ErrExtractorRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		jobs:      jobs,
		documents: documents,
		config:    DefaultConfig(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(p.config.Workers)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	p.processor = newDocumentProcessor(
		documents, vectors, blobs, jobs,
		extractor, chunker, embedder,
		p.config, p.logger,
	)
	p.processor.notify = p.notify

	return p, nil
}

// Enqueue registers a durable ingestion job for a document. At most one job
// exists per document at a time.
func (p *Pipeline) Enqueue(ctx context.Context, doc *core.Document) error {
	return p.jobs.Enqueue(ctx, &core.IngestJob{
		DocumentId: doc.Id,
		CompanyId:  doc.CompanyId,
	})
}

// Start launches the polling loop. Jobs left over from a previous process
// become claimable as their leases lapse, so a restart resumes unfinished
// work without any recovery step.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx)
}

// Stop halts polling, waits for in-flight documents and releases the worker
// pool. The pipeline should not be used after calling Stop.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	p.inflight.Wait()
	p.pool.Release()
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

// drain leases and dispatches jobs until the queue reports none claimable.
func (p *Pipeline) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		dispatched, err := p.dispatchOne(ctx)
		if err != nil {
			p.logger.Error("error dispatching job", "err", err)
			return
		}
		if !dispatched {
			return
		}
	}
}

// dispatchOne leases a single job and hands it to the pool. Returns false
// when nothing is claimable.
func (p *Pipeline) dispatchOne(ctx context.Context) (bool, error) {
	job, err := p.jobs.Lease(ctx, p.config.JobLease)
	if err != nil {
		if errors.Is(err, storage.ErrNoJob) {
			return false, nil
		}
		return false, err
	}

	// A job reclaimed past its attempt budget fails without another run.
	if job.Attempts > p.config.MaxJobAttempts {
		if err := p.processor.abandon(ctx, job); err != nil {
			p.logger.Error("error abandoning exhausted job", "documentId", job.DocumentId, "err", err)
		}
		return true, nil
	}

	p.inflight.Add(1)
	submitErr := p.pool.Submit(func() {
		defer p.inflight.Done()
		if err := p.processor.process(ctx, job); err != nil {
			p.logger.Error("error processing job", "documentId", job.DocumentId, "err", err)
		}
	})
	if submitErr != nil {
		p.inflight.Done()
		return false, submitErr
	}
	return true, nil
}

// ProcessNext leases and processes a single job synchronously. Returns
// storage.ErrNoJob when the queue has nothing claimable.
func (p *Pipeline) ProcessNext(ctx context.Context) error {
	job, err := p.jobs.Lease(ctx, p.config.JobLease)
	if err != nil {
		return err
	}
	if job.Attempts > p.config.MaxJobAttempts {
		return p.processor.abandon(ctx, job)
	}
	return p.processor.process(ctx, job)
}
