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


// Package storage provides the storage abstraction layer for knowledged.
//
// This package defines repository interfaces that decouple storage
// implementation from business logic. The BadgerDB implementation lives in
// storage/badger; consumers depend only on the interfaces here.
//
// Four concerns are covered:
//
//   - DocumentRepository: document records and their status lifecycle
//   - VectorRepository: embedding vectors with company/agent scoping
//   - BlobStore: original document payloads under content-hash locators
//   - JobQueue: durable, lease-based ingestion job dispatch
//
// All public constructors in backend packages return these interfaces to
// enforce abstraction and keep consumers swappable onto test doubles or
// alternative backends.
package storage
