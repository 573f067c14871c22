package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoredRecordRoundTrip(t *testing.T) {
	record := &StoredRecord{
		Id:        "chunk-1",
		Url:       "https://example.com/docs",
		Text:      "Some documentation text.",
		Hierarchy: []string{"Docs", "Getting Started"},
		OutgoingLinks: []Link{
			{AnchorText: "install guide", Target: "https://example.com/install"},
		},
		Metadata: ChunkMetadata{
			ParentId:     "page-1",
			ChunkIndex:   2,
			SegmentIndex: 1,
			IncomingLinks: []Link{
				{AnchorText: "docs", Target: "https://example.com/"},
			},
		},
		Key: "chunk-1",
	}

	data := MarshalStoredRecord(record)
	got, err := UnmarshalStoredRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestStoredRecordRoundTrip_EmptyFields(t *testing.T) {
	record := &StoredRecord{Url: "https://example.com", Text: "t", Key: "https://example.com"}

	data := MarshalStoredRecord(record)
	got, err := UnmarshalStoredRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record.Url, got.Url)
	assert.Equal(t, record.Key, got.Key)
	assert.Empty(t, got.Hierarchy)
	assert.Empty(t, got.OutgoingLinks)
}

func TestVectorRoundTrip(t *testing.T) {
	vector := []float32{0.25, -0.5, 0.125, 1.0}

	data := MarshalVector(vector)
	got, err := UnmarshalVector(data)
	require.NoError(t, err)
	assert.Equal(t, vector, got)
}

func TestUnmarshalStoredRecord_Corrupt(t *testing.T) {
	_, err := UnmarshalStoredRecord([]byte{0xff})
	assert.Error(t, err)
}
