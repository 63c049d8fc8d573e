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


// Package search answers semantic queries over ingested documents.
//
// The Searcher embeds a query, scans the tenant's persisted vectors, and
// returns the best hits ranked by similarity. Each hit carries the chunk
// text, file name and character offsets alongside the score, so callers can
// display results without a second lookup.
//
// Recent queries are served from a short-TTL in-process cache keyed by
// tenant, agent, query and result count. Document deletion invalidates the
// owning tenant's cached entries.
package search
