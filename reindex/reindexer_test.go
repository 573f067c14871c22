package reindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websage/ai/mock"
	"github.com/poiesic/websage/core"
	"github.com/poiesic/websage/vectorstore"
)

func seededStore(t *testing.T, n int) *vectorstore.Store {
	t.Helper()
	store := vectorstore.New()
	require.NoError(t, store.Create(4, vectorstore.IndexFlat))

	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			Id:        fmt.Sprintf("chunk-%d", i),
			Url:       fmt.Sprintf("https://site.example.com/page-%d", i),
			Text:      fmt.Sprintf("Content of page %d.", i),
			Embedding: []float32{1, 0, 0, 0},
		}
	}
	require.NoError(t, store.Add(chunks))
	return store
}

func fastConfig() *Config {
	return &Config{
		BatchSize:      2,
		ReportInterval: 1,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
}

func TestNewReindexer_Validation(t *testing.T) {
	embedder := mock.NewMockEmbedder()

	_, err := NewReindexer(nil, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewReindexer(vectorstore.New(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestRun_ReplacesVectorsPreservingIds(t *testing.T) {
	store := seededStore(t, 5)

	idsBefore := make(map[string]core.ID)
	for _, rec := range store.Records() {
		idsBefore[rec.Key] = core.IDFromKey(rec.Key)
	}

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{0, 1, 0, 0}
		}
		return out, nil
	}

	var progress bytes.Buffer
	r, err := NewReindexer(store, embedder, fastConfig(), &progress)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	// All records now sit on the new axis; ids are unchanged.
	hits, err := store.Search([]float32{0, 1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 5)
	for _, hit := range hits {
		assert.InDelta(t, 1.0, hit.Score, 1e-5)
		assert.Equal(t, idsBefore[hit.Record.Key], hit.Id)
	}

	assert.Contains(t, progress.String(), "Reindexing complete. Processed 5 chunks")
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	store := seededStore(t, 2)

	calls := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient backend error")
		}
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{0, 0, 1, 0}
		}
		return out, nil
	}

	r, err := NewReindexer(store, embedder, fastConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestRun_GivesUpAfterMaxRetries(t *testing.T) {
	store := seededStore(t, 2)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("permanent backend error")
	}

	r, err := NewReindexer(store, embedder, fastConfig(), nil)
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding failed")
}

func TestRun_EmptyStore(t *testing.T) {
	store := vectorstore.New()
	require.NoError(t, store.Create(4, vectorstore.IndexFlat))

	var progress bytes.Buffer
	r, err := NewReindexer(store, mock.NewMockEmbedder(), fastConfig(), &progress)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, progress.String(), "No chunks found")
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("invalid attempts", func(t *testing.T) {
		err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})

	t.Run("succeeds on later attempt", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		}, 5, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		boom := errors.New("always")
		err := RetryWithBackoff(context.Background(), func() error { return boom }, 2, time.Millisecond)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("honors cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryWithBackoff(ctx, func() error { return errors.New("x") }, 3, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
