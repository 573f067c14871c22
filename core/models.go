package core

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// ID is the stable 64-bit external identifier assigned by the vector store.
// It is derived from a record's resolved key via content-based hashing, so
// the same key always maps to the same ID regardless of insertion order or
// on-disk layout.
type ID uint64

// IDFromKey generates a deterministic ID from a record key using BLAKE2b hashing.
// Identical keys always produce identical IDs.
func IDFromKey(key string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(key))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID computes the deterministic chunk identifier stamped by the chunking
// collaborator: a hash of the url, the heading hierarchy path, and the chunk's
// local index within its section. Stable across reindexing of the same page.
func ChunkID(url string, hierarchy []string, localIdx int) string {
	base := fmt.Sprintf("%s|%s|%d", url, strings.Join(hierarchy, " > "), localIdx)
	h, _ := blake2b.New(10, nil)
	h.Write([]byte(base))
	return hex.EncodeToString(h.Sum(nil))
}

// Link is an anchor found inside a chunk, or an incoming reference to it.
type Link struct {
	AnchorText string
	Target     string
}

// ChunkMetadata carries the chunker's structural bookkeeping for a chunk:
// which parent record it was segmented from, its position within the page,
// and the pages that link into it.
type ChunkMetadata struct {
	ParentId      string
	ChunkIndex    int
	SegmentIndex  int
	IncomingLinks []Link
}

// Chunk is the unit of retrieval: a bounded, heading-tagged span of page text
// with a deterministic identity. Chunks are produced by the external chunking
// collaborator and are immutable once created. The Embedding field is attached
// by the ingest pipeline before the chunk is added to the vector store; the
// store never returns it on search responses.
type Chunk struct {
	Id            string
	Url           string
	Text          string
	Hierarchy     []string // ordered heading titles, outermost first
	OutgoingLinks []Link
	Metadata      ChunkMetadata
	Embedding     []float32
}

// FallbackID returns the chunk's identity for dedup purposes: the stamped id
// when present, else a synthetic "url#chunk_<idx>" key.
func (c *Chunk) FallbackID() string {
	if c.Id != "" {
		return c.Id
	}
	return fmt.Sprintf("%s#chunk_%d", c.Url, c.Metadata.ChunkIndex)
}

// TopHeading returns the outermost heading of the chunk's hierarchy,
// or the empty string when the chunk has none.
func (c *Chunk) TopHeading() string {
	if len(c.Hierarchy) == 0 {
		return ""
	}
	return c.Hierarchy[0]
}

// StoredRecord is the persisted form of a chunk inside the vector store:
// all chunk fields minus the embedding, plus the resolved key the store
// derived the external ID from. The key is persisted so identity survives
// arbitrary internal rebuilds.
type StoredRecord struct {
	Id            string
	Url           string
	Text          string
	Hierarchy     []string
	OutgoingLinks []Link
	Metadata      ChunkMetadata
	Key           string
}

// Chunk converts the stored record back to a chunk value without an embedding.
func (r *StoredRecord) Chunk() *Chunk {
	return &Chunk{
		Id:            r.Id,
		Url:           r.Url,
		Text:          r.Text,
		Hierarchy:     r.Hierarchy,
		OutgoingLinks: r.OutgoingLinks,
		Metadata:      r.Metadata,
	}
}

// FallbackID mirrors Chunk.FallbackID for stored records.
func (r *StoredRecord) FallbackID() string {
	if r.Id != "" {
		return r.Id
	}
	return fmt.Sprintf("%s#chunk_%d", r.Url, r.Metadata.ChunkIndex)
}

// TopHeading mirrors Chunk.TopHeading for stored records.
func (r *StoredRecord) TopHeading() string {
	if len(r.Hierarchy) == 0 {
		return ""
	}
	return r.Hierarchy[0]
}

// SearchResult is a vector store match: the stored record, its stable
// external ID, and a similarity score in [-1, 1]. The score is transient and
// only populated on search responses.
type SearchResult struct {
	Record *StoredRecord
	Id     ID
	Score  float32
}
