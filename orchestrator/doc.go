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


// Package orchestrator runs the retrieval-and-answer pipeline over one site.
//
// A query flows through the LLM route planner, one or more hybrid search
// passes (dense vector plus BM25, merged by a weighted score), optional
// link-graph and section expansions, coverage-driven follow-up searches,
// diversity-capped reranking, budgeted context assembly, and finally an
// answerability-gated generation step with best-effort and apology
// fallbacks. Every path returns a user-facing string; retrieval failures
// degrade to fallback messages rather than errors.
//
// The orchestrator never mutates the vector store. It caches a BM25 index
// over the store's records; callers that ingest new content must call
// InvalidateLexical to make it visible to lexical search.
package orchestrator
