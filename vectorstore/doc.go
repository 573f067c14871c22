// Copyright 2025 Poiesic Systems
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


// Package vectorstore implements the embedding store and nearest-neighbor
// index behind websage retrieval.
//
// # Identity
//
// Every record's external id is a 64-bit hash of its resolved key (page URL,
// chunk id, or a positional fallback, in that order). Ids are pure functions
// of content keys: deleting a record and re-adding an identical one yields
// the same id, and ids survive Save/Load round trips. Distinct keys hashing
// to the same id overwrite each other in the identity maps; retrieval
// deduplication upstream makes this harmless.
//
// # Search
//
// Vectors are L2-normalized on insert and queries are normalized on entry,
// so inner-product scores are cosine similarities in [-1, 1]. Four index
// kinds are supported: exact flat scan, an HNSW graph, and two inverted-file
// variants (exact residuals or product-quantized codes). The approximate
// structures are rebuilt lazily after mutations; IVF coarse quantizers train
// once the corpus reaches a minimum size and fall back to the exact scan
// before that. All training and construction is seeded, so a rebuild over
// the same vectors gives the same structure.
//
// # Persistence
//
// Save writes records, vectors, and the index configuration to a BadgerDB
// directory; Load restores them and retrains deterministically. Searches are
// safe for concurrent use; mutating calls must be serialized by the caller.
package vectorstore
