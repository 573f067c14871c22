package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		id1 := IDFromKey("https://example.com/docs")
		id2 := IDFromKey("https://example.com/docs")
		assert.Equal(t, id1, id2)
	})

	t.Run("different keys produce different IDs", func(t *testing.T) {
		id1 := IDFromKey("https://example.com/a")
		id2 := IDFromKey("https://example.com/b")
		assert.NotEqual(t, id1, id2)
	})

	t.Run("empty key is valid", func(t *testing.T) {
		id := IDFromKey("")
		assert.Equal(t, id, IDFromKey(""))
	})
}

func TestChunkID(t *testing.T) {
	t.Run("deterministic across calls", func(t *testing.T) {
		a := ChunkID("https://example.com", []string{"Intro", "Setup"}, 0)
		b := ChunkID("https://example.com", []string{"Intro", "Setup"}, 0)
		assert.Equal(t, a, b)
	})

	t.Run("local index changes the id", func(t *testing.T) {
		a := ChunkID("https://example.com", []string{"Intro"}, 0)
		b := ChunkID("https://example.com", []string{"Intro"}, 1)
		assert.NotEqual(t, a, b)
	})

	t.Run("hierarchy changes the id", func(t *testing.T) {
		a := ChunkID("https://example.com", []string{"Intro"}, 0)
		b := ChunkID("https://example.com", []string{"Usage"}, 0)
		assert.NotEqual(t, a, b)
	})
}

func TestFallbackID(t *testing.T) {
	t.Run("uses stamped id when present", func(t *testing.T) {
		c := &Chunk{Id: "abc123", Url: "https://example.com/x"}
		assert.Equal(t, "abc123", c.FallbackID())
	})

	t.Run("synthesizes url#chunk key when id missing", func(t *testing.T) {
		c := &Chunk{Url: "https://example.com/x", Metadata: ChunkMetadata{ChunkIndex: 4}}
		assert.Equal(t, "https://example.com/x#chunk_4", c.FallbackID())
	})
}

func TestTopHeading(t *testing.T) {
	c := &Chunk{Hierarchy: []string{"Guide", "Install"}}
	assert.Equal(t, "Guide", c.TopHeading())
	assert.Equal(t, "", (&Chunk{}).TopHeading())
}
