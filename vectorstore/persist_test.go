package vectorstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websage/core"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := New()
	require.NoError(t, s.Create(3, IndexFlat))
	chunks := []*core.Chunk{
		testChunk("https://example.com/a", "alpha text", []float32{1, 0, 0}),
		testChunk("https://example.com/b", "beta text", []float32{0, 1, 0}),
		testChunk("https://example.com/c", "gamma text", []float32{0, 0, 1}),
	}
	require.NoError(t, s.Add(chunks))
	require.NoError(t, s.Save(dir))

	loaded := New()
	require.NoError(t, loaded.Load(dir))

	assert.Equal(t, s.Len(), loaded.Len())
	assert.Equal(t, s.Dim(), loaded.Dim())
	assert.Equal(t, s.Kind(), loaded.Kind())

	// Ids survive the round trip.
	for _, url := range []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"} {
		want, ok := s.IDByKey(url)
		require.True(t, ok)
		got, ok := loaded.IDByKey(url)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	// Searches behave identically.
	want, err := s.Search([]float32{0, 1, 0}, 2)
	require.NoError(t, err)
	got, err := loaded.Search([]float32{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Id, got[i].Id)
		assert.Equal(t, want[i].Record.Text, got[i].Record.Text)
		assert.InDelta(t, float64(want[i].Score), float64(got[i].Score), 1e-5)
	}
}

func TestSaveLoad_TrainedIVF(t *testing.T) {
	dir := t.TempDir()
	const n, dim = 80, 8
	vectors := randomUnitVectors(n, dim, 17)

	s := New()
	require.NoError(t, s.Create(dim, IndexIVF))
	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		chunks[i] = testChunk(fmt.Sprintf("https://example.com/p%d", i), "text", vectors[i])
	}
	require.NoError(t, s.Add(chunks))
	require.NoError(t, s.Save(dir))

	loaded := New()
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, n, loaded.Len())

	// Training is seeded, so the reloaded store reproduces the search.
	want, err := s.Search(vectors[5], 3)
	require.NoError(t, err)
	got, err := loaded.Search(vectors[5], 3)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Id, got[i].Id)
	}
}

func TestSave_NotCreated(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Save(t.TempDir()), ErrNotCreated)
}

func TestSave_ReplacesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()

	s := New()
	require.NoError(t, s.Create(2, IndexFlat))
	require.NoError(t, s.Add([]*core.Chunk{
		testChunk("https://example.com/a", "alpha", []float32{1, 0}),
		testChunk("https://example.com/b", "beta", []float32{0, 1}),
	}))
	require.NoError(t, s.Save(dir))

	id, ok := s.IDByKey("https://example.com/b")
	require.True(t, ok)
	require.NoError(t, s.Delete([]core.ID{id}))
	require.NoError(t, s.Save(dir))

	loaded := New()
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, 1, loaded.Len())
	_, ok = loaded.IDByKey("https://example.com/b")
	assert.False(t, ok)
}

func TestStoreConfigRoundTrip(t *testing.T) {
	cfg := defaultConfig(IndexIVFPQ)
	cfg.NProbe = 16

	data := marshalStoreConfig(384, cfg)
	dim, got, err := unmarshalStoreConfig(data)
	require.NoError(t, err)
	assert.Equal(t, 384, dim)
	assert.Equal(t, cfg, got)
}
