package badger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{
		backend: backend,
	}, nil
}

// Close releases resources. DocumentRepository has no resources to release.
func (r *DocumentRepository) Close() error {
	return nil
}

// readDocument reads a document by key within a transaction.
// Returns nil without error when the key is absent.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var verr error
		doc, verr = storage.UnmarshalDocument(val)
		return verr
	})
	return doc, err
}

// CreateDocument stores a new document record and its company index entry.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := documentKey(doc.Id)

		existing, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrAlreadyExists
		}

		now := time.Now().UTC()
		doc.CreatedAt = now
		doc.UpdatedAt = now
		if doc.Status == "" {
			doc.Status = core.StatusPending
		}

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Set(companyIndexKey(doc.CompanyId, doc.Id), []byte(doc.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a document by id.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, documentKey(id))
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

// ListDocuments retrieves a company's documents, newest first. With agentId
// set, documents scoped to other agents are excluded; company-wide documents
// always match.
func (r *DocumentRepository) ListDocuments(ctx context.Context, companyId, agentId string) ([]*core.Document, error) {
	var docs []*core.Document

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = companyIndexPrefix(companyId)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			doc, err := readDocument(tx, documentKey(id))
			if err != nil {
				return err
			}
			if doc == nil {
				// Stale index entry; skip rather than fail the listing.
				continue
			}
			if doc.CompanyId != companyId {
				continue
			}
			if agentId != "" && doc.AgentId != "" && doc.AgentId != agentId {
				continue
			}
			docs = append(docs, doc)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// TransitionStatus moves a document through its lifecycle. Illegal moves are
// rejected with core.ErrInvalidTransition; terminal states additionally stamp
// ProcessedAt.
func (r *DocumentRepository) TransitionStatus(ctx context.Context, id string, next core.DocumentStatus, lastError string) (*core.Document, error) {
	var result *core.Document

	err := r.backend.WithTxRetry(func(tx *badger.Txn) error {
		key := documentKey(id)
		doc, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		if !doc.Status.CanTransitionTo(next) {
			return core.ErrInvalidTransition
		}

		now := time.Now().UTC()
		doc.Status = next
		doc.UpdatedAt = now
		if next.Terminal() {
			doc.ProcessedAt = now
		}
		if next == core.StatusFailed {
			doc.LastError = lastError
		}

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		result = doc
		return nil
	})
	return result, err
}

// UpdateProgress records chunk and vector counts on a document. Counts are
// monotonic: a retry that re-reports an earlier batch cannot move them
// backwards.
func (r *DocumentRepository) UpdateProgress(ctx context.Context, id string, chunkCount, vectorCount int) (*core.Document, error) {
	var result *core.Document

	err := r.backend.WithTxRetry(func(tx *badger.Txn) error {
		key := documentKey(id)
		doc, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		if chunkCount > doc.ChunkCount {
			doc.ChunkCount = chunkCount
		}
		if vectorCount > doc.VectorCount {
			doc.VectorCount = vectorCount
		}
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		result = doc
		return nil
	})
	return result, err
}

// DeleteDocument removes a document record and its company index entry.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := documentKey(id)
		doc, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(companyIndexKey(doc.CompanyId, doc.Id)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
