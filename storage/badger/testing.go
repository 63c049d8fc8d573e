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


package badger

import "github.com/voxhive/knowledged/storage"

// MemoryStores bundles every repository backed by one in-memory BadgerDB
// instance for testing. Caller must Close when done.
type MemoryStores struct {
	Documents storage.DocumentRepository
	Vectors   storage.VectorRepository
	Blobs     storage.BlobStore
	Jobs      storage.JobQueue
	Backend   *Backend
}

// Close closes every repository and the backend.
func (m *MemoryStores) Close() {
	m.Documents.Close()
	m.Vectors.Close()
	m.Jobs.Close()
	m.Backend.Close()
}

// NewMemoryStores creates in-memory repositories for testing.
func NewMemoryStores() (*MemoryStores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	docs, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	vectors, err := NewVectorRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	blobs, err := NewBlobStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	jobs, err := NewJobQueue(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &MemoryStores{
		Documents: docs,
		Vectors:   vectors,
		Blobs:     blobs,
		Jobs:      jobs,
		Backend:   backend,
	}, nil
}
