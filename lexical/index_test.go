package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websage/core"
)

func rec(key, text string) *core.StoredRecord {
	return &core.StoredRecord{Url: key, Text: text, Key: key}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and splits",
			text: "Install the CLI Tool",
			want: []string{"install", "the", "cli", "tool"},
		},
		{
			name: "drops single characters and punctuation",
			text: "a b, c! go_fast v2",
			want: []string{"go_fast", "v2"},
		},
		{
			name: "empty text",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestSearch_RanksMatchingTerms(t *testing.T) {
	ix := NewIndex([]*core.StoredRecord{
		rec("https://example.com/pricing", "Our pricing plans start at ten dollars per month"),
		rec("https://example.com/install", "Install the agent by running the install script"),
		rec("https://example.com/about", "We are a small company based in Portland"),
	}, nil)

	results := ix.Search("install script", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "https://example.com/install", results[0].Record.Url)

	for _, r := range results {
		assert.Greater(t, r.Score, float32(0), "only positive scores may surface")
		assert.Equal(t, core.IDFromKey(r.Record.Key), r.Id)
	}

	// The unrelated page shares no token with the query.
	for _, r := range results {
		assert.NotEqual(t, "https://example.com/about", r.Record.Url)
	}
}

func TestSearch_TermFrequencySaturation(t *testing.T) {
	ix := NewIndex([]*core.StoredRecord{
		rec("https://example.com/once", "kubernetes deployment guide"),
		rec("https://example.com/many", "kubernetes kubernetes kubernetes kubernetes kubernetes"),
	}, nil)

	results := ix.Search("kubernetes", 2)
	require.Len(t, results, 2)
	// Repetition helps but saturates; both documents still score.
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_Degenerate(t *testing.T) {
	ix := NewIndex([]*core.StoredRecord{
		rec("https://example.com/a", "some indexed text"),
	}, nil)

	t.Run("no token overlap", func(t *testing.T) {
		assert.Empty(t, ix.Search("zzzz qqqq", 5))
	})

	t.Run("empty query", func(t *testing.T) {
		assert.Empty(t, ix.Search("!!", 5))
	})

	t.Run("k zero", func(t *testing.T) {
		assert.Empty(t, ix.Search("indexed", 0))
	})

	t.Run("empty index", func(t *testing.T) {
		empty := NewIndex(nil, nil)
		assert.Empty(t, empty.Search("indexed", 5))
		assert.Equal(t, 0, empty.Len())
	})
}

func TestSearch_LimitsToK(t *testing.T) {
	records := []*core.StoredRecord{
		rec("https://example.com/1", "shared term alpha"),
		rec("https://example.com/2", "shared term beta"),
		rec("https://example.com/3", "shared term gamma"),
		rec("https://example.com/4", "shared term delta"),
	}
	ix := NewIndex(records, nil)

	results := ix.Search("shared term", 2)
	assert.Len(t, results, 2)
}
