package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websage/ai/mock"
	"github.com/poiesic/websage/core"
	"github.com/poiesic/websage/vectorstore"
)

func siteChunks() []*core.Chunk {
	return []*core.Chunk{
		{
			Id:        "paris-1",
			Url:       "https://travel.example.com/france/paris",
			Text:      "Paris is the capital of France and its largest city.",
			Hierarchy: []string{"France"},
			Embedding: []float32{1, 0, 0, 0},
		},
		{
			Id:        "berlin-1",
			Url:       "https://travel.example.com/germany/berlin",
			Text:      "Berlin is the capital of Germany.",
			Hierarchy: []string{"Germany"},
			Embedding: []float32{0, 1, 0, 0},
		},
		{
			Id:        "rome-1",
			Url:       "https://travel.example.com/italy/rome",
			Text:      "Rome is the capital of Italy.",
			Hierarchy: []string{"Italy"},
			Embedding: []float32{0, 0, 1, 0},
		},
	}
}

// newSiteOrchestrator wires an orchestrator over a small in-memory site with
// a scripted generator. Queries always embed near the Paris chunk.
func newSiteOrchestrator(t *testing.T, gen *mock.MockGenerator, chunks []*core.Chunk, opts ...Option) (*Orchestrator, *vectorstore.Store) {
	t.Helper()

	store := vectorstore.New()
	require.NoError(t, store.Create(4, vectorstore.IndexFlat))
	if len(chunks) > 0 {
		require.NoError(t, store.Add(chunks))
	}

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}

	o, err := New(store, mock.NewMockProviderWithServices(embedder, gen), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o, store
}

func TestSearchPass_CombinesDenseAndLexical(t *testing.T) {
	o, _ := newSiteOrchestrator(t, mock.NewMockGenerator(), siteChunks())

	cands := o.searchPass(context.Background(), o.logger, "capital of France", originInitial, 8)
	require.NotEmpty(t, cands)

	origins := make(map[string]bool)
	for _, c := range cands {
		origins[c.origin] = true
	}
	assert.True(t, origins[originInitial], "expected dense hits")
	assert.True(t, origins[originInitial+bm25Suffix], "expected lexical hits")

	// The lexical pass should surface the France chunk for its terms.
	var foundParis bool
	for _, c := range cands {
		if c.origin == originInitial+bm25Suffix && c.record.Id == "paris-1" {
			foundParis = true
		}
	}
	assert.True(t, foundParis)
}

func TestSearchPass_Degenerate(t *testing.T) {
	o, _ := newSiteOrchestrator(t, mock.NewMockGenerator(), siteChunks())

	assert.Nil(t, o.searchPass(context.Background(), o.logger, "   ", originInitial, 8))
	assert.Nil(t, o.searchPass(context.Background(), o.logger, "capital", originInitial, 0))
}

func TestLexicalIndex_CachedUntilInvalidated(t *testing.T) {
	o, store := newSiteOrchestrator(t, mock.NewMockGenerator(), siteChunks())

	first := o.lexicalIndex()
	assert.Same(t, first, o.lexicalIndex())
	assert.Equal(t, 3, first.Len())

	require.NoError(t, store.Add([]*core.Chunk{{
		Id:        "madrid-1",
		Url:       "https://travel.example.com/spain/madrid",
		Text:      "Madrid is the capital of Spain.",
		Hierarchy: []string{"Spain"},
		Embedding: []float32{0, 0, 0, 1},
	}}))

	// Still the stale snapshot until invalidation.
	assert.Equal(t, 3, o.lexicalIndex().Len())

	o.InvalidateLexical()
	rebuilt := o.lexicalIndex()
	assert.NotSame(t, first, rebuilt)
	assert.Equal(t, 4, rebuilt.Len())
}

func TestExpandSections_DedupsHeadings(t *testing.T) {
	o, _ := newSiteOrchestrator(t, mock.NewMockGenerator(), siteChunks())

	seeds := o.searchPass(context.Background(), o.logger, "capital of France", originInitial, 8)
	out := o.expandSections(context.Background(), o.logger, "capital of France", seeds)

	for _, c := range out {
		assert.Equal(t, originSection, c.origin)
		assert.Equal(t, boostSection, c.boost)
	}
}

func TestExpandGraph_UsesIncomingAnchors(t *testing.T) {
	chunks := siteChunks()
	chunks[0].Metadata.IncomingLinks = []core.Link{
		{AnchorText: "visit Paris", Target: "https://travel.example.com/france/paris"},
		{AnchorText: "visit Paris", Target: "https://travel.example.com/france"},
	}
	o, _ := newSiteOrchestrator(t, mock.NewMockGenerator(), chunks)
	embedCalls := 0
	o.embedder.(*mock.MockEmbedder).EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		embedCalls++
		return []float32{1, 0, 0, 0}, nil
	}

	seeds := o.searchPass(context.Background(), o.logger, "capital of France", originInitial, 8)
	embedCalls = 0

	out := o.expandGraph(context.Background(), o.logger, "capital of France", seeds)
	require.NotEmpty(t, out)

	// Duplicate anchors collapse to one expansion search.
	assert.Equal(t, 1, embedCalls)
	for _, c := range out {
		assert.Equal(t, originGraphAnchor, c.origin)
		assert.Equal(t, boostAnchor, c.boost)
	}
}
