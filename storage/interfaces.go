package storage

import (
	"context"
	"time"

	"github.com/voxhive/knowledged/core"
)

// VectorFilter scopes a similarity query. CompanyId is mandatory: a query
// never returns vectors belonging to another company. When AgentId is set the
// query returns that agent's vectors plus company-wide vectors (records with
// no agent); when empty, all of the company's vectors match.
type VectorFilter struct {
	CompanyId string
	AgentId   string
}

// DocumentRepository provides operations for managing document records.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// CreateDocument stores a new document record.
	// Returns ErrAlreadyExists if the id is taken.
	CreateDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by id.
	// Returns ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocuments retrieves a company's documents, newest first.
	// When agentId is set, only documents scoped to that agent or
	// company-wide documents are returned.
	ListDocuments(ctx context.Context, companyId, agentId string) ([]*core.Document, error)

	// TransitionStatus moves a document to the next lifecycle state,
	// enforcing monotonic transitions, and records lastError for failures.
	// Returns the updated record, ErrNotFound for unknown ids, or
	// core.ErrInvalidTransition for illegal moves.
	TransitionStatus(ctx context.Context, id string, next core.DocumentStatus, lastError string) (*core.Document, error)

	// UpdateProgress sets chunk and vector counts on a processing document
	// so pollers can observe progress. Counts only ever increase.
	UpdateProgress(ctx context.Context, id string, chunkCount, vectorCount int) (*core.Document, error)

	// DeleteDocument removes a document record.
	// Returns ErrNotFound if it does not exist.
	DeleteDocument(ctx context.Context, id string) error

	// Close releases repository resources.
	Close() error
}

// VectorRepository persists and queries embedding vectors. Writes from
// different documents may run concurrently; company-scoped keys prevent
// cross-contamination.
type VectorRepository interface {
	// UpsertVectors persists a batch of vectors. Keyed by
	// (document id, chunk index): re-upserting the same pair overwrites
	// rather than duplicates, making retries idempotent.
	UpsertVectors(ctx context.Context, records ...*core.VectorRecord) error

	// QueryVectors returns the topK nearest vectors to the query vector
	// within the filter scope, sorted by similarity descending with ties
	// broken stably by storage order.
	QueryVectors(ctx context.Context, vector []float32, filter VectorFilter, topK int) ([]*core.ScoredVector, error)

	// DeleteVectors removes every vector of a document and returns how many
	// were removed. Removing vectors of an unknown document is not an error.
	DeleteVectors(ctx context.Context, companyId, documentId string) (int, error)

	// CountVectors returns the number of persisted vectors for a document.
	CountVectors(ctx context.Context, companyId, documentId string) (int, error)

	// Close releases repository resources.
	Close() error
}

// BlobStore keeps original document payloads under content-hash locators so
// a worker, possibly in a different process after a restart, can re-read the
// source bytes.
type BlobStore interface {
	// PutBlob stores a payload. Storing the same key twice is a no-op
	// because keys are content hashes.
	PutBlob(ctx context.Context, key string, data []byte) error

	// GetBlob retrieves a payload. Returns ErrNotFound for unknown keys.
	GetBlob(ctx context.Context, key string) ([]byte, error)

	// DeleteBlob removes a payload. Unknown keys are not an error.
	DeleteBlob(ctx context.Context, key string) error
}

// JobQueue is the durable ingestion queue. Jobs are leased for a bounded
// visibility window; a crashed worker's job becomes claimable again once its
// lease lapses, which is what makes ingestion survive process restarts.
type JobQueue interface {
	// Enqueue adds a job for a document. Returns ErrJobInFlight if the
	// document already has a job.
	Enqueue(ctx context.Context, job *core.IngestJob) error

	// Lease claims the next claimable job for leaseFor, incrementing its
	// attempt counter and rotating its lease token. Returns ErrNoJob when
	// nothing is claimable.
	Lease(ctx context.Context, leaseFor time.Duration) (*core.IngestJob, error)

	// Renew extends the lease on a held job. Returns ErrLeaseLost if the
	// job is gone, no longer leased, or leased under a different token.
	Renew(ctx context.Context, documentId, leaseToken string, leaseFor time.Duration) error

	// Complete removes a finished job, successful or terminally failed.
	// A stale token returns ErrLeaseLost; an empty token removes the job
	// unconditionally, for administrative deletion.
	Complete(ctx context.Context, documentId, leaseToken string) error

	// Release returns a held job to the pending state without penalty,
	// used for cooperative aborts. Returns ErrLeaseLost on a stale token.
	Release(ctx context.Context, documentId, leaseToken string) error

	// GetJob retrieves a job by document id. Returns ErrNotFound if absent.
	GetJob(ctx context.Context, documentId string) (*core.IngestJob, error)

	// Close releases queue resources.
	Close() error
}
