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


package core

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for persisted types. Written by hand against the mus-go
// primitive serializers; field order is part of the on-disk format and must
// not change without a storage migration.
var (
	IDMUS           = idMUS{}
	LinkMUS         = linkMUS{}
	MetadataMUS     = chunkMetadataMUS{}
	StoredRecordMUS = storedRecordMUS{}

	// VectorMUS serializes raw embedding vectors.
	VectorMUS = ord.NewSliceSer[float32](varint.Float32)

	stringSliceMUS = ord.NewSliceSer[string](ord.String)
	linkSliceMUS   = ord.NewSliceSer[Link](LinkMUS)
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

type linkMUS struct{}

func (linkMUS) Marshal(v Link, bs []byte) (n int) {
	n = ord.String.Marshal(v.AnchorText, bs)
	n += ord.String.Marshal(v.Target, bs[n:])
	return
}

func (linkMUS) Unmarshal(bs []byte) (v Link, n int, err error) {
	var n1 int
	v.AnchorText, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Target, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (linkMUS) Size(v Link) (size int) {
	size = ord.String.Size(v.AnchorText)
	size += ord.String.Size(v.Target)
	return
}

func (s linkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type chunkMetadataMUS struct{}

func (chunkMetadataMUS) Marshal(v ChunkMetadata, bs []byte) (n int) {
	n = ord.String.Marshal(v.ParentId, bs)
	n += varint.Int.Marshal(v.ChunkIndex, bs[n:])
	n += varint.Int.Marshal(v.SegmentIndex, bs[n:])
	n += linkSliceMUS.Marshal(v.IncomingLinks, bs[n:])
	return
}

func (chunkMetadataMUS) Unmarshal(bs []byte) (v ChunkMetadata, n int, err error) {
	var n1 int
	v.ParentId, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SegmentIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.IncomingLinks, n1, err = linkSliceMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (chunkMetadataMUS) Size(v ChunkMetadata) (size int) {
	size = ord.String.Size(v.ParentId)
	size += varint.Int.Size(v.ChunkIndex)
	size += varint.Int.Size(v.SegmentIndex)
	size += linkSliceMUS.Size(v.IncomingLinks)
	return
}

func (s chunkMetadataMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type storedRecordMUS struct{}

func (storedRecordMUS) Marshal(v StoredRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Url, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += stringSliceMUS.Marshal(v.Hierarchy, bs[n:])
	n += linkSliceMUS.Marshal(v.OutgoingLinks, bs[n:])
	n += MetadataMUS.Marshal(v.Metadata, bs[n:])
	n += ord.String.Marshal(v.Key, bs[n:])
	return
}

func (storedRecordMUS) Unmarshal(bs []byte) (v StoredRecord, n int, err error) {
	var n1 int
	v.Id, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Url, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Hierarchy, n1, err = stringSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.OutgoingLinks, n1, err = linkSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Metadata, n1, err = MetadataMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Key, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (storedRecordMUS) Size(v StoredRecord) (size int) {
	size = ord.String.Size(v.Id)
	size += ord.String.Size(v.Url)
	size += ord.String.Size(v.Text)
	size += stringSliceMUS.Size(v.Hierarchy)
	size += linkSliceMUS.Size(v.OutgoingLinks)
	size += MetadataMUS.Size(v.Metadata)
	size += ord.String.Size(v.Key)
	return
}

func (s storedRecordMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// MarshalStoredRecord serializes a StoredRecord to bytes.
func MarshalStoredRecord(record *StoredRecord) []byte {
	buf := make([]byte, StoredRecordMUS.Size(*record))
	StoredRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalStoredRecord deserializes a StoredRecord from bytes.
func UnmarshalStoredRecord(data []byte) (*StoredRecord, error) {
	record, _, err := StoredRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, VectorMUS.Size(vector))
	VectorMUS.Marshal(vector, buf)
	return buf
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	vector, _, err := VectorMUS.Unmarshal(data)
	return vector, err
}
