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


// Package websage answers natural-language questions about a single website
// from its crawled and chunked content. Engine wires the vector store, the
// AI provider, and the query orchestrator into one handle.
package websage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/poiesic/websage/ai"
	"github.com/poiesic/websage/ai/openai"
	"github.com/poiesic/websage/ingest"
	"github.com/poiesic/websage/orchestrator"
	"github.com/poiesic/websage/reindex"
	"github.com/poiesic/websage/vectorstore"
)

// ErrDimensionRequired is returned when Open targets a path without a saved
// store and no index dimension was configured.
var ErrDimensionRequired = errors.New("index dimension required for a new store")

// Engine is the top-level handle over one site's Q&A index.
type Engine struct {
	store        *vectorstore.Store
	provider     ai.AIProvider
	orchestrator *orchestrator.Orchestrator
	path         string
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	aiConfig         *ai.Config
	provider         ai.AIProvider
	dim              int
	kind             vectorstore.IndexKind
	orchestratorOpts []orchestrator.Option
}

// WithAIConfig sets the OpenAI-compatible endpoint configuration used to
// build the default provider.
func WithAIConfig(config *ai.Config) Option {
	return func(o *engineOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider substitutes a custom AI provider, bypassing the default
// OpenAI-compatible one. The engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithIndex sets the embedding dimension and index kind used when Open
// creates a fresh store. Ignored when a saved store is loaded.
func WithIndex(dim int, kind vectorstore.IndexKind) Option {
	return func(o *engineOptions) {
		o.dim = dim
		o.kind = kind
	}
}

// WithOrchestratorOptions forwards options to the query orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(o *engineOptions) {
		o.orchestratorOpts = append(o.orchestratorOpts, opts...)
	}
}

// Open loads the store saved at filePath, or creates a fresh one when the
// path holds no snapshot. A fresh store needs WithIndex.
func Open(filePath string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		kind:     vectorstore.IndexFlat,
	}
	for _, opt := range opts {
		opt(options)
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
	}

	store := vectorstore.New()
	if snapshotExists(filePath) {
		if err := store.Load(filePath); err != nil {
			provider.Close()
			return nil, err
		}
	} else {
		if options.dim <= 0 {
			provider.Close()
			return nil, ErrDimensionRequired
		}
		if err := store.Create(options.dim, options.kind); err != nil {
			provider.Close()
			return nil, err
		}
	}

	orch, err := orchestrator.New(store, provider, options.orchestratorOpts...)
	if err != nil {
		provider.Close()
		return nil, err
	}

	return &Engine{
		store:        store,
		provider:     provider,
		orchestrator: orch,
		path:         filePath,
		logger:       slog.Default().With("component", "engine"),
	}, nil
}

// snapshotExists reports whether the path already holds a saved store.
func snapshotExists(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

// Close releases the orchestrator and the AI provider. The in-memory store
// is not saved; call Save first to persist it.
func (e *Engine) Close() error {
	if err := e.orchestrator.Close(); err != nil {
		e.logger.Error("error closing orchestrator", "err", err)
	}
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
		return err
	}
	return nil
}

// Query answers a question about the site. See orchestrator.Orchestrator.Query.
func (e *Engine) Query(ctx context.Context, question string, retryOnEmpty bool, memoryContext string) string {
	return e.orchestrator.Query(ctx, question, retryOnEmpty, memoryContext)
}

// Save persists the store to the engine's path.
func (e *Engine) Save() error {
	return e.store.Save(e.path)
}

// Refresh makes store mutations visible to lexical search.
func (e *Engine) Refresh() {
	e.orchestrator.InvalidateLexical()
}

// Store exposes the underlying vector store.
func (e *Engine) Store() *vectorstore.Store {
	return e.store
}

// NewIngestPipeline creates an ingestion pipeline writing into the engine's
// store. Call Refresh and Save after a run.
func (e *Engine) NewIngestPipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	return ingest.NewPipeline(e.store, e.provider.Embedder(), opts...)
}

// NewReindexer creates a reindexer that re-embeds the engine's store with
// the provider's current embedding model.
func (e *Engine) NewReindexer(config *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	return reindex.NewReindexer(e.store, e.provider.Embedder(), config, progress)
}
