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


// Package ingestion turns submitted documents into persisted vectors.
//
// The Pipeline leases durable jobs from the queue and hands each one to a
// worker, which re-reads the payload from blob storage, extracts and chunks
// the text, embeds the chunks batch by batch and persists a vector per
// chunk. Progress is recorded after every batch, so a job reclaimed after a
// crash resumes from the last durable batch instead of starting over.
//
// Batches within one document run sequentially; concurrency comes from
// processing different documents on different workers. The job lease keeps
// two workers off the same document.
package ingestion
