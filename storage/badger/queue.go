package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/storage"
)

// JobQueue implements storage.JobQueue for BadgerDB. Jobs are plain records
// keyed by document id; leasing is an atomic read-check-write under a
// transaction, with badger's optimistic concurrency detecting two workers
// racing for the same job.
type JobQueue struct {
	backend *Backend
}

var _ storage.JobQueue = (*JobQueue)(nil)

// NewJobQueue creates a new JobQueue.
func NewJobQueue(backend *Backend) (*JobQueue, error) {
	return &JobQueue{
		backend: backend,
	}, nil
}

// Close releases resources. JobQueue has no resources to release.
func (q *JobQueue) Close() error {
	return nil
}

// readJob reads a job by key within a transaction.
// Returns nil without error when the key is absent.
func readJob(tx *badger.Txn, key []byte) (*core.IngestJob, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var job *core.IngestJob
	err = item.Value(func(val []byte) error {
		var verr error
		job, verr = storage.UnmarshalIngestJob(val)
		return verr
	})
	return job, err
}

// Enqueue adds a job for a document. At most one job exists per document.
func (q *JobQueue) Enqueue(ctx context.Context, job *core.IngestJob) error {
	return q.backend.WithTx(func(tx *badger.Txn) error {
		key := jobKey(job.DocumentId)

		existing, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrJobInFlight
		}

		job.State = core.JobStatePending
		job.EnqueuedAt = time.Now().UTC()
		job.LeaseToken = ""
		job.LeaseExpiry = time.Time{}

		if err := tx.Set(key, storage.MarshalIngestJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Lease claims the next claimable job: pending, or leased with a lapsed
// visibility window. The attempt counter increments on every claim, so a job
// abandoned by a crashed worker carries its history into the next lease.
func (q *JobQueue) Lease(ctx context.Context, leaseFor time.Duration) (*core.IngestJob, error) {
	var leased *core.IngestJob

	err := q.backend.WithTxRetry(func(tx *badger.Txn) error {
		leased = nil
		now := time.Now().UTC()

		opts := badger.DefaultIteratorOptions
		opts.Prefix = jobPrefix
		it := tx.NewIterator(opts)

		var candidate *core.IngestJob
		for it.Rewind(); it.Valid(); it.Next() {
			var job *core.IngestJob
			if err := it.Item().Value(func(val []byte) error {
				var verr error
				job, verr = storage.UnmarshalIngestJob(val)
				return verr
			}); err != nil {
				it.Close()
				return err
			}

			if !job.Claimable(now) {
				continue
			}
			// Oldest enqueue wins.
			if candidate == nil || job.EnqueuedAt.Before(candidate.EnqueuedAt) {
				candidate = job
			}
		}
		it.Close()

		if candidate == nil {
			return storage.ErrNoJob
		}

		candidate.State = core.JobStateLeased
		candidate.LeaseToken = uuid.NewString()
		candidate.LeaseExpiry = now.Add(leaseFor)
		candidate.Attempts++

		if err := tx.Set(jobKey(candidate.DocumentId), storage.MarshalIngestJob(candidate)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		leased = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leased, nil
}

// Renew extends the lease on a held job. The caller must present the token
// its lease was stamped with; after a reclaim the old token is dead and the
// stale worker gets ErrLeaseLost instead of extending the new owner's lease.
func (q *JobQueue) Renew(ctx context.Context, documentId, leaseToken string, leaseFor time.Duration) error {
	return q.backend.WithTxRetry(func(tx *badger.Txn) error {
		key := jobKey(documentId)
		job, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if job == nil || job.State != core.JobStateLeased || job.LeaseToken != leaseToken {
			return storage.ErrLeaseLost
		}

		job.LeaseExpiry = time.Now().UTC().Add(leaseFor)
		if err := tx.Set(key, storage.MarshalIngestJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Complete removes a finished job so a new one may be enqueued for the
// document. Completing an already-removed job is not an error. An empty
// token skips the ownership check, for administrative deletion.
func (q *JobQueue) Complete(ctx context.Context, documentId, leaseToken string) error {
	return q.backend.WithTxRetry(func(tx *badger.Txn) error {
		key := jobKey(documentId)
		job, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if job == nil {
			return tx.Commit()
		}
		if leaseToken != "" && job.LeaseToken != leaseToken {
			return storage.ErrLeaseLost
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Release returns a held job to the pending state without counting an
// attempt, used when a worker aborts cooperatively.
func (q *JobQueue) Release(ctx context.Context, documentId, leaseToken string) error {
	return q.backend.WithTxRetry(func(tx *badger.Txn) error {
		key := jobKey(documentId)
		job, err := readJob(tx, key)
		if err != nil {
			return err
		}
		if job == nil || job.LeaseToken != leaseToken {
			return storage.ErrLeaseLost
		}

		job.State = core.JobStatePending
		job.LeaseToken = ""
		job.LeaseExpiry = time.Time{}
		if job.Attempts > 0 {
			job.Attempts--
		}

		if err := tx.Set(key, storage.MarshalIngestJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetJob retrieves a job by document id.
func (q *JobQueue) GetJob(ctx context.Context, documentId string) (*core.IngestJob, error) {
	var result *core.IngestJob
	err := q.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readJob(tx, jobKey(documentId))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}
