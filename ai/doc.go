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


// Package ai defines the embedding provider abstraction.
//
// The Embedder interface is the only contact point between the ingestion
// pipeline and an external embedding service. Implementations live in
// subpackages:
//
//   - ai/openai: OpenAI-compatible APIs via langchaingo, with a per-call
//     deadline and a disabled mode when no credential is configured
//   - ai/mock: deterministic test double
//
// Retry logic deliberately does not live here. The batch scheduler owns
// retries because only it knows batch boundaries and the document-level
// attempt budget.
package ai
