package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// DocumentStatus tracks a document through its ingestion lifecycle.
// Transitions are monotonic: pending -> processing -> {completed, failed}.
type DocumentStatus string

const (
	// StatusPending means the document is recorded and queued but no worker
	// has picked it up yet.
	StatusPending DocumentStatus = "pending"
	// StatusProcessing means a worker holds the ingestion job lease.
	StatusProcessing DocumentStatus = "processing"
	// StatusCompleted means every chunk has a persisted vector.
	StatusCompleted DocumentStatus = "completed"
	// StatusFailed is terminal; LastError on the document explains why.
	StatusFailed DocumentStatus = "failed"
)

// CanTransitionTo reports whether moving from s to next is a legal lifecycle
// transition. Terminal states accept no transitions.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Terminal reports whether s is an end state of the lifecycle.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is a unit of ingestible content owned by a company and optionally
// scoped to a single agent.
type Document struct {
	Id          string
	CompanyId   string
	AgentId     string // empty means company-wide
	Name        string
	FileName    string
	StorageKey  string // content-hash locator of the stored payload
	SizeBytes   int64
	MimeType    string
	Status      DocumentStatus
	ChunkCount  int
	VectorCount int
	Metadata    map[string]string
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt time.Time // zero until the document reaches a terminal state
}

// Chunk is an ordered text segment derived from a document. Start and End are
// rune offsets into the normalized source text; chunks of one document are
// non-overlapping and strictly increasing by Index.
type Chunk struct {
	DocumentId string
	Index      int
	Start      int
	End        int
	Text       string
}

// Size returns the chunk length in characters.
func (c *Chunk) Size() int {
	return c.End - c.Start
}

// VectorRecord is the persisted embedding of one chunk. Company and agent ids
// are duplicated onto the record so queries can filter without a join, and the
// chunk text and offsets ride along for result display.
type VectorRecord struct {
	DocumentId string
	CompanyId  string
	AgentId    string
	ChunkIndex int
	Vector     []float32
	Text       string
	FileName   string
	Start      int
	End        int
}

// ScoredVector is a similarity-search hit.
type ScoredVector struct {
	Record *VectorRecord
	Score  float32
}

// JobState tracks the visibility of an ingestion job in the queue.
type JobState int

const (
	// JobStatePending means the job is visible and may be leased.
	JobStatePending JobState = iota + 1
	// JobStateLeased means a worker holds the job until LeaseExpiry.
	JobStateLeased
)

// IngestJob is a durable work item keyed by document id. At most one job
// exists per document, and at most one worker holds its lease at a time.
type IngestJob struct {
	DocumentId string
	CompanyId  string
	Attempts   int
	State      JobState

	// LeaseToken fences the lease: it is rotated on every claim and a
	// worker must present it to renew, release or complete. A stale
	// worker whose lease was reclaimed holds a dead token.
	LeaseToken  string
	LeaseExpiry time.Time
	EnqueuedAt  time.Time
}

// LeaseExpired reports whether a leased job's visibility window has lapsed
// and the job may be claimed by another worker.
func (j *IngestJob) LeaseExpired(now time.Time) bool {
	return j.State == JobStateLeased && now.After(j.LeaseExpiry)
}

// Claimable reports whether a worker may lease the job right now.
func (j *IngestJob) Claimable(now time.Time) bool {
	return j.State == JobStatePending || j.LeaseExpired(now)
}

// StorageKeyFromContent derives a deterministic content-hash locator for a
// document payload using BLAKE2b. Identical payloads share a locator, which
// makes payload storage idempotent.
func StorageKeyFromContent(data []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
