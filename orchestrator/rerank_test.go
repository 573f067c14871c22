package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websage/core"
)

func rankedCand(id, url string, vec, bm float32, origin string, rank int) *candidate {
	return &candidate{
		record: &core.StoredRecord{
			Id:   id,
			Url:  url,
			Text: "text for " + id,
			Key:  url,
		},
		id:        core.IDFromKey(url),
		scoreVec:  vec,
		scoreBM25: bm,
		origin:    origin,
		rank:      rank,
	}
}

func TestMergeRerank_HybridOrdering(t *testing.T) {
	cands := []*candidate{
		rankedCand("a", "https://s.com/a", 0.70, 0, originInitial, 0),
		rankedCand("b", "https://s.com/b", 0.60, 2.0, originInitial, 1),
		rankedCand("c", "https://s.com/c", 0.90, 0, originInitial, 2),
	}

	out := mergeRerank(cands, 40, 2, 1)
	require.Len(t, out, 3)
	// b: 0.75*0.6 + 0.25*2.0 = 0.95; c: 0.675; a: 0.525
	assert.Equal(t, "b", out[0].record.Id)
	assert.Equal(t, "c", out[1].record.Id)
	assert.Equal(t, "a", out[2].record.Id)
}

func TestMergeRerank_CollapsesDuplicates(t *testing.T) {
	dense := rankedCand("a", "https://s.com/a", 0.90, 0, originInitial, 0)
	lexical := rankedCand("a", "https://s.com/a", 0, 3.0, originInitial+bm25Suffix, 1)

	out := mergeRerank([]*candidate{dense, lexical}, 40, 2, 1)
	require.Len(t, out, 1)

	// The lexical copy scores higher (0.25*3.0 = 0.75 vs 0.75*0.9 = 0.675)
	// and wins. Scores are not pooled across copies: the winner keeps only
	// its own pass's component.
	merged := out[0]
	assert.Equal(t, originInitial+bm25Suffix, merged.origin)
	assert.InDelta(t, 0, merged.scoreVec, 1e-6)
	assert.InDelta(t, 3.0, merged.scoreBM25, 1e-6)
	assert.InDelta(t, 0.75, merged.hybridScore(), 1e-6)
}

func TestMergeRerank_DuplicateBackfillsBoost(t *testing.T) {
	initial := rankedCand("a", "https://s.com/a", 0.90, 0, originInitial, 0)
	anchored := rankedCand("a", "https://s.com/a", 0.70, 0, originGraphAnchor, 0)
	anchored.boost = boostAnchor
	anchored.boostWhy = "anchor"

	out := mergeRerank([]*candidate{initial, anchored}, 40, 2, 1)
	require.Len(t, out, 1)

	// The initial copy wins (0.675 vs 0.625) and inherits the anchor boost
	// from the losing copy.
	merged := out[0]
	assert.Equal(t, originInitial, merged.origin)
	assert.InDelta(t, float64(boostAnchor), float64(merged.boost), 1e-6)
	assert.Equal(t, "anchor", merged.boostWhy)
	assert.InDelta(t, 0.775, merged.hybridScore(), 1e-6)
}

func TestMergeRerank_BoostLiftsExpansionHits(t *testing.T) {
	plain := rankedCand("a", "https://s.com/a", 0.80, 0, originInitial, 0)
	boosted := rankedCand("b", "https://s.com/b", 0.75, 0, originGraphAnchor, 0)
	boosted.boost = boostAnchor
	boosted.boostWhy = "anchor"

	out := mergeRerank([]*candidate{plain, boosted}, 40, 2, 1)
	require.Len(t, out, 2)
	// boosted: 0.75*0.75 + 0.10 = 0.6625 > plain 0.60
	assert.Equal(t, "b", out[0].record.Id)
}

func TestMergeRerank_TieBreaks(t *testing.T) {
	t.Run("origin priority wins over rank", func(t *testing.T) {
		anchor := rankedCand("a", "https://s.com/a", 0.80, 0, originGraphAnchor, 0)
		initial := rankedCand("b", "https://s.com/b", 0.80, 0, originInitial, 5)

		out := mergeRerank([]*candidate{anchor, initial}, 40, 2, 1)
		require.Len(t, out, 2)
		assert.Equal(t, "b", out[0].record.Id)
	})

	t.Run("equal priority falls back to in-pass rank", func(t *testing.T) {
		later := rankedCand("a", "https://s.com/a", 0.80, 0, originInitial, 3)
		earlier := rankedCand("b", "https://s.com/b", 0.80, 0, originAfterRecrawl, 1)

		out := mergeRerank([]*candidate{later, earlier}, 40, 2, 1)
		require.Len(t, out, 2)
		assert.Equal(t, "b", out[0].record.Id)
	})
}

func TestMergeRerank_ParentCap(t *testing.T) {
	var cands []*candidate
	for i, id := range []string{"a", "b", "c"} {
		c := rankedCand(id, "https://s.com/page-"+id, 0.9-float32(i)*0.1, 0, originInitial, i)
		c.record.Metadata.ParentId = "parent-1"
		cands = append(cands, c)
	}

	out := mergeRerank(cands, 40, 2, 1)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].record.Id)
	assert.Equal(t, "b", out[1].record.Id)
}

func TestMergeRerank_ParentFallsBackToURL(t *testing.T) {
	// No parent id: siblings on the same URL still share a parent key.
	a := rankedCand("a", "https://s.com/page", 0.9, 0, originInitial, 0)
	b := rankedCand("b", "https://s.com/page", 0.8, 0, originInitial, 1)
	c := rankedCand("c", "https://s.com/page", 0.7, 0, originInitial, 2)

	out := mergeRerank([]*candidate{a, b, c}, 40, 2, 2)
	require.Len(t, out, 2)
}

func TestMergeRerank_CanonicalCap(t *testing.T) {
	a := rankedCand("a", "https://s.com/pricing?utm_source=x", 0.9, 0, originInitial, 0)
	b := rankedCand("b", "https://s.com/pricing/", 0.8, 0, originInitial, 1)

	out := mergeRerank([]*candidate{a, b}, 40, 2, 1)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].record.Id)
}

func TestMergeRerank_TruncatesToMaxResults(t *testing.T) {
	var cands []*candidate
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		cands = append(cands, rankedCand(id, "https://s.com/"+id, 0.9, 0, originInitial, i))
	}

	out := mergeRerank(cands, 4, 2, 1)
	assert.Len(t, out, 4)
}
