package badger

import (
	"context"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/storage"
)

// VectorRepository implements storage.VectorRepository for BadgerDB.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) (*VectorRepository, error) {
	return &VectorRepository{
		backend: backend,
	}, nil
}

// Close releases resources. VectorRepository has no resources to release.
func (r *VectorRepository) Close() error {
	return nil
}

// UpsertVectors persists a batch of vectors keyed by
// (company, document, chunk index). Writing the same key again overwrites in
// place, so a retried batch never duplicates records.
func (r *VectorRepository) UpsertVectors(ctx context.Context, records ...*core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, rec := range records {
			key := vectorKey(rec.CompanyId, rec.DocumentId, rec.ChunkIndex)
			if err := tx.Set(key, storage.MarshalVectorRecord(rec)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// QueryVectors scans the company's vectors, scores each against the query
// vector by dot product, and returns the topK hits sorted by score
// descending. Ties keep key order, which follows document id then chunk
// index. Agent filtering happens here, not in the caller: the scan never
// leaves the company prefix, and with agentId set only that agent's records
// and company-wide records (empty agent) are scored.
func (r *VectorRepository) QueryVectors(ctx context.Context, vector []float32, filter storage.VectorFilter, topK int) ([]*core.ScoredVector, error) {
	if filter.CompanyId == "" {
		return nil, core.ErrMissingCompany
	}
	if topK <= 0 {
		return nil, nil
	}

	var scored []*core.ScoredVector

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = vectorCompanyPrefix(filter.CompanyId)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var rec *core.VectorRecord
			if err := it.Item().Value(func(val []byte) error {
				var verr error
				rec, verr = storage.UnmarshalVectorRecord(val)
				return verr
			}); err != nil {
				return err
			}

			// The prefix scan is scoped already; the ownership re-check
			// keeps isolation intact even for pathological tenant ids.
			if rec.CompanyId != filter.CompanyId {
				continue
			}
			if filter.AgentId != "" && rec.AgentId != "" && rec.AgentId != filter.AgentId {
				continue
			}

			scored = append(scored, &core.ScoredVector{
				Record: rec,
				Score:  core.DotProduct(vector, rec.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// DeleteVectors removes every vector of a document and returns the count
// removed. An unknown document simply removes nothing.
func (r *VectorRepository) DeleteVectors(ctx context.Context, companyId, documentId string) (int, error) {
	var deleted int

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = vectorDocumentPrefix(companyId, documentId)
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
			deleted++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// CountVectors returns the number of persisted vectors for a document.
func (r *VectorRepository) CountVectors(ctx context.Context, companyId, documentId string) (int, error) {
	var count int

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = vectorDocumentPrefix(companyId, documentId)
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}
