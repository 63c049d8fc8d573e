package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/voxhive/knowledged/storage"
)

// BlobStore implements storage.BlobStore for BadgerDB. Payloads live under
// content-hash locators, so re-storing identical bytes is a no-op overwrite.
type BlobStore struct {
	backend *Backend
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a new BlobStore.
func NewBlobStore(backend *Backend) (*BlobStore, error) {
	return &BlobStore{
		backend: backend,
	}, nil
}

// PutBlob stores a payload.
func (s *BlobStore) PutBlob(ctx context.Context, key string, data []byte) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(blobKey(key), data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetBlob retrieves a payload.
func (s *BlobStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(blobKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteBlob removes a payload. Unknown keys are not an error.
func (s *BlobStore) DeleteBlob(ctx context.Context, key string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(blobKey(key)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
