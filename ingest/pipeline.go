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


package ingest

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/websage/ai"
	"github.com/poiesic/websage/core"
	"github.com/poiesic/websage/vectorstore"
)

const defaultBatchSize = 32

// Pipeline embeds chunk batches concurrently and writes them to the vector
// store through a single writer.
type Pipeline struct {
	store     *vectorstore.Store
	embedder  ai.Embedder
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size > 0 {
			p.batchSize = size
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingest")
		return nil
	}
}

// NewPipeline creates an ingestion pipeline writing into the given store.
func NewPipeline(store *vectorstore.Store, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:     store,
		embedder:  embedder,
		pool:      pool,
		batchSize: defaultBatchSize,
		logger:    slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Stats summarizes one ingestion run.
type Stats struct {
	Batches int // batches attempted
	Added   int // chunks written to the store
	Skipped int // chunks dropped with their failed batch
}

// Run drains the source, embedding full batches on the worker pool and
// appending each embedded batch to the store. Store writes are serialized
// under one mutex; a batch whose embedding or write fails is logged and
// skipped without stopping the run. A source error aborts the run after
// in-flight batches finish.
func (p *Pipeline) Run(ctx context.Context, source ChunkSource) (Stats, error) {
	var stats Stats
	if source == nil {
		return stats, ErrSourceRequired
	}

	var (
		wg      sync.WaitGroup
		writeMu sync.Mutex
	)

	flush := func(batch []*core.Chunk) {
		stats.Batches++
		wg.Add(1)
		task := func() {
			defer wg.Done()
			added := p.processBatch(ctx, batch)

			writeMu.Lock()
			stats.Added += added
			stats.Skipped += len(batch) - added
			writeMu.Unlock()
		}
		if err := p.pool.Submit(task); err != nil {
			task()
		}
	}

	var sourceErr error
	batch := make([]*core.Chunk, 0, p.batchSize)
	for chunk, err := range source {
		if err != nil {
			sourceErr = err
			break
		}
		if chunk == nil {
			continue
		}
		batch = append(batch, chunk)
		if len(batch) == p.batchSize {
			flush(batch)
			batch = make([]*core.Chunk, 0, p.batchSize)
		}
	}
	if sourceErr == nil && len(batch) > 0 {
		flush(batch)
	}

	wg.Wait()

	if sourceErr != nil {
		p.logger.Error("chunk source failed", "err", sourceErr, "added", stats.Added)
		return stats, sourceErr
	}
	p.logger.Info("ingestion complete",
		"batches", stats.Batches, "added", stats.Added, "skipped", stats.Skipped)
	return stats, nil
}

// processBatch embeds one batch and writes it. Returns the number of chunks
// actually added. The store's own lock serializes concurrent Add calls, so
// batch writes never interleave.
func (p *Pipeline) processBatch(ctx context.Context, batch []*core.Chunk) int {
	if ctx.Err() != nil {
		p.logger.Warn("batch dropped, context done", "chunks", len(batch))
		return 0
	}

	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		p.logger.Error("batch embedding failed, skipping", "chunks", len(batch), "err", err)
		return 0
	}
	if len(embeddings) != len(batch) {
		p.logger.Error("embedding result mismatch, skipping",
			"expected", len(batch), "received", len(embeddings))
		return 0
	}

	for i := range batch {
		batch[i].Embedding = embeddings[i]
	}

	if err := p.store.Add(batch); err != nil {
		p.logger.Error("store write failed, skipping batch", "chunks", len(batch), "err", err)
		return 0
	}
	return len(batch)
}

// Release releases the worker pool. The pipeline should not be used after
// calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
