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


package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/websage/ai"
	"github.com/poiesic/websage/core"
	"github.com/poiesic/websage/vectorstore"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedding batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every chunk in a vector store with the configured
// embedder, typically after an embedding model change.
type Reindexer struct {
	store    *vectorstore.Store
	embedder ai.Embedder
	config   *Config
	progress io.Writer
}

// NewReindexer creates a reindexer over the given store and embedder.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(store *vectorstore.Store, embedder ai.Embedder, config *Config, progress io.Writer) (*Reindexer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		store:    store,
		embedder: embedder,
		config:   config,
		progress: progress,
	}, nil
}

// Run re-embeds all stored chunks in batches, replacing vectors in place.
// External ids are keyed on the stored record keys and therefore survive.
// A batch that still fails after retries aborts the run; already updated
// chunks keep their new vectors.
func (r *Reindexer) Run(ctx context.Context) error {
	records := r.store.Records()
	total := len(records)
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in store (0 chunks)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reindexing of %d chunks (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	for start := 0; start < total; start += r.config.BatchSize {
		end := start + r.config.BatchSize
		if end > total {
			end = total
		}
		batch := records[start:end]

		if err := r.processBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch at chunk %d: %w", start, err)
		}

		processed += len(batch)
		tracker.Update(processed)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindexing complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}

// processBatch embeds one batch with retry and writes the vectors back.
func (r *Reindexer) processBatch(ctx context.Context, batch []*core.StoredRecord) error {
	texts := make([]string, len(batch))
	for i, rec := range batch {
		texts[i] = rec.Text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var embedErr error
		embeddings, embedErr = r.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, r.config.MaxRetries, r.config.RetryDelay)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedding result mismatch: expected %d, received %d",
			len(batch), len(embeddings))
	}

	for i, rec := range batch {
		chunk := rec.Chunk()
		chunk.Embedding = embeddings[i]
		if err := r.store.Update(core.IDFromKey(rec.Key), chunk); err != nil {
			return fmt.Errorf("updating chunk %s: %w", rec.FallbackID(), err)
		}
	}
	return nil
}
