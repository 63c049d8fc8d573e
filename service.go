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


package knowledged

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/voxhive/knowledged/ai"
	"github.com/voxhive/knowledged/ai/openai"
	"github.com/voxhive/knowledged/cache"
	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/extract"
	"github.com/voxhive/knowledged/ingestion"
	"github.com/voxhive/knowledged/search"
	"github.com/voxhive/knowledged/storage"
	"github.com/voxhive/knowledged/storage/badger"
)

// Service is the document lifecycle facade: it owns the stores, the
// ingestion pipeline and the searcher, and exposes the operations the API
// layer calls.
type Service struct {
	backend   *badger.Backend
	documents storage.DocumentRepository
	vectors   storage.VectorRepository
	blobs     storage.BlobStore
	jobs      storage.JobQueue
	embedder  ai.Embedder
	extractor *extract.Extractor
	chunker   *extract.Chunker
	pipeline  *ingestion.Pipeline
	searcher  *search.Searcher
	cache     cache.Cache[[]*search.Result]
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig     *ai.Config
	ingestConfig ingestion.Config
	embedder     ai.Embedder
	chunkSize    int
	maxTextLen   int
	cacheTTL     time.Duration
	cacheEntries int64
	inMemory     bool
	logger       *slog.Logger
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(cfg *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.aiConfig = cfg
	}
}

// WithIngestionConfig tunes the ingestion pipeline.
func WithIngestionConfig(cfg ingestion.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.ingestConfig = cfg
	}
}

// WithEmbedder injects an embedder directly, bypassing the provider
// configuration. Used by tests.
func WithEmbedder(embedder ai.Embedder) ServiceOption {
	return func(o *serviceOptions) {
		o.embedder = embedder
	}
}

// WithChunkSize sets the chunk size in characters. Default 512.
func WithChunkSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.chunkSize = size
	}
}

// WithMaxTextLen caps extracted text length in characters. Default 1_000_000.
func WithMaxTextLen(n int) ServiceOption {
	return func(o *serviceOptions) {
		o.maxTextLen = n
	}
}

// WithSearchCache sets the search result cache TTL and capacity.
// A zero TTL disables the cache.
func WithSearchCache(ttl time.Duration, entries int64) ServiceOption {
	return func(o *serviceOptions) {
		o.cacheTTL = ttl
		o.cacheEntries = entries
	}
}

// WithInMemoryStorage runs on an in-memory store. Used by tests.
func WithInMemoryStorage() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithServiceLogger sets a custom logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewService opens the store at filePath and wires up the pipeline and
// searcher. Call Start to begin processing queued documents and Close to
// shut everything down.
func NewService(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		aiConfig:     ai.DefaultConfig(),
		ingestConfig: ingestion.DefaultConfig(),
		chunkSize:    512,
		maxTextLen:   1_000_000,
		cacheTTL:     30 * time.Second,
		cacheEntries: 1024,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	documents, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	vectors, err := badger.NewVectorRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	blobs, err := badger.NewBlobStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	jobs, err := badger.NewJobQueue(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	extractor := extract.NewExtractor(options.maxTextLen)
	chunker := extract.NewChunker(options.chunkSize)

	var searchOpts []search.Option
	searchOpts = append(searchOpts, search.WithLogger(options.logger))
	var resultCache cache.Cache[[]*search.Result]
	if options.cacheTTL > 0 {
		rc, err := cache.NewRistrettoCache[[]*search.Result](options.cacheEntries)
		if err != nil {
			backend.Close()
			return nil, err
		}
		resultCache = rc
		searchOpts = append(searchOpts, search.WithCache(resultCache, options.cacheTTL))
	}

	searcher, err := search.NewSearcher(vectors, embedder, searchOpts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(
		documents, vectors, blobs, jobs,
		extractor, chunker, embedder,
		ingestion.WithConfig(options.ingestConfig),
		ingestion.WithLogger(options.logger),
		ingestion.WithChangeHook(searcher.Invalidate),
	)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Service{
		backend:   backend,
		documents: documents,
		vectors:   vectors,
		blobs:     blobs,
		jobs:      jobs,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
		pipeline:  pipeline,
		searcher:  searcher,
		cache:     resultCache,
		logger:    options.logger,
	}, nil
}

// Start launches background ingestion.
func (s *Service) Start(ctx context.Context) {
	s.pipeline.Start(ctx)
}

// Close stops the pipeline and releases every resource.
func (s *Service) Close() error {
	s.pipeline.Stop()
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("error closing search cache", "err", err)
		}
	}
	if err := s.jobs.Close(); err != nil {
		s.logger.Error("error closing job queue", "err", err)
	}
	if err := s.vectors.Close(); err != nil {
		s.logger.Error("error closing vector repository", "err", err)
	}
	if err := s.documents.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
	}
	return s.backend.Close()
}

// SubmitRequest describes a document upload.
type SubmitRequest struct {
	CompanyId string
	AgentId   string
	Name      string
	FileName  string
	MimeType  string
	Metadata  map[string]string
	Payload   []byte
}

// SubmitDocument validates and records a document, stores its payload and
// queues it for ingestion. The returned document is in the pending state;
// poll GetDocument to observe progress.
func (s *Service) SubmitDocument(ctx context.Context, req SubmitRequest) (*core.Document, error) {
	if req.CompanyId == "" {
		return nil, core.ErrMissingCompany
	}
	if len(req.Payload) == 0 {
		return nil, core.ErrEmptyDocument
	}
	if !extract.Supported(req.MimeType) {
		return nil, core.ErrUnsupportedType
	}
	if err := s.extractor.CheckPayloadSize(req.Payload, req.MimeType); err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = req.FileName
	}

	doc := &core.Document{
		Id:         uuid.NewString(),
		CompanyId:  req.CompanyId,
		AgentId:    req.AgentId,
		Name:       name,
		FileName:   filepath.Base(req.FileName),
		StorageKey: s.storageKey(req.CompanyId, req.Payload),
		SizeBytes:  int64(len(req.Payload)),
		MimeType:   req.MimeType,
		Metadata:   req.Metadata,
		Status:     core.StatusPending,
	}

	if err := s.blobs.PutBlob(ctx, doc.StorageKey, req.Payload); err != nil {
		return nil, err
	}
	if err := s.documents.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.pipeline.Enqueue(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document submitted",
		"documentId", doc.Id, "companyId", doc.CompanyId,
		"fileName", doc.FileName, "sizeBytes", doc.SizeBytes)
	return doc, nil
}

// GetDocument returns a company's document. Documents of other companies are
// reported as not found, never as forbidden, to avoid leaking their
// existence.
func (s *Service) GetDocument(ctx context.Context, companyId, id string) (*core.Document, error) {
	doc, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.CompanyId != companyId {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

// ListDocuments returns a company's documents, newest first, optionally
// scoped to one agent.
func (s *Service) ListDocuments(ctx context.Context, companyId, agentId string) ([]*core.Document, error) {
	if companyId == "" {
		return nil, core.ErrMissingCompany
	}
	return s.documents.ListDocuments(ctx, companyId, agentId)
}

// DeleteDocument removes a document, its vectors and, when no sibling
// document shares it, its stored payload. An in-flight ingestion of the
// document notices the deletion at its next batch boundary and aborts.
func (s *Service) DeleteDocument(ctx context.Context, companyId, id string) error {
	doc, err := s.GetDocument(ctx, companyId, id)
	if err != nil {
		return err
	}

	if err := s.documents.DeleteDocument(ctx, id); err != nil {
		return err
	}
	deleted, err := s.vectors.DeleteVectors(ctx, companyId, id)
	if err != nil {
		return err
	}
	// Drop any queued or leased job; a worker mid-document cleans up after
	// itself when it sees the record is gone. The empty token removes the
	// job regardless of who holds its lease.
	if err := s.jobs.Complete(ctx, id, ""); err != nil {
		return err
	}

	if err := s.deleteBlobIfUnreferenced(ctx, doc); err != nil {
		return err
	}

	s.searcher.Invalidate(companyId)
	s.logger.Info("document deleted", "documentId", id, "companyId", companyId, "vectorsRemoved", deleted)
	return nil
}

// Search answers a semantic query within the company's documents.
func (s *Service) Search(ctx context.Context, companyId, agentId, query string, topK int) ([]*search.Result, error) {
	return s.searcher.Search(ctx, companyId, agentId, query, topK)
}

// ProcessNext drains one queued job synchronously. Used by tests and batch
// tooling; the running pipeline does this continuously.
func (s *Service) ProcessNext(ctx context.Context) error {
	return s.pipeline.ProcessNext(ctx)
}

// storageKey scopes payload locators to the owning company, so identical
// payloads dedupe within a company without sharing blobs across tenants.
func (s *Service) storageKey(companyId string, payload []byte) string {
	scoped := make([]byte, 0, len(companyId)+1+len(payload))
	scoped = append(scoped, companyId...)
	scoped = append(scoped, 0)
	scoped = append(scoped, payload...)
	return core.StorageKeyFromContent(scoped)
}

// deleteBlobIfUnreferenced removes the payload unless another of the
// company's documents shares it.
func (s *Service) deleteBlobIfUnreferenced(ctx context.Context, doc *core.Document) error {
	siblings, err := s.documents.ListDocuments(ctx, doc.CompanyId, "")
	if err != nil {
		return err
	}
	for _, sibling := range siblings {
		if sibling.StorageKey == doc.StorageKey {
			return nil
		}
	}
	if err := s.blobs.DeleteBlob(ctx, doc.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}
