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


package vectorstore

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/websage/core"
)

// Key prefixes for the persisted snapshot
const (
	recordKeyPrefix = "vsrec:"
	vectorKeyPrefix = "vsvec:"
	configKey       = "vsconf"
)

const saveBatchSize = 128

// makeRecordKey generates a key for a record at a position.
// Positions are BigEndian so lexicographic iteration preserves order.
func makeRecordKey(pos int) []byte {
	buf := make([]byte, len(recordKeyPrefix)+8)
	offset := copy(buf, recordKeyPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(pos))
	return buf
}

// makeVectorKey generates a key for a vector at a position.
func makeVectorKey(pos int) []byte {
	buf := make([]byte, len(vectorKeyPrefix)+8)
	offset := copy(buf, vectorKeyPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(pos))
	return buf
}

// Save writes the store's records, vectors, and index configuration to a
// BadgerDB directory at path, replacing any previous snapshot there.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.created {
		return ErrNotCreated
	}

	b, err := openBackend(path, s.logger)
	if err != nil {
		return fmt.Errorf("opening store at %s: %w", path, err)
	}
	defer b.Close()

	if err := b.DropAll(); err != nil {
		return err
	}

	err = b.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(configKey), marshalStoreConfig(s.dim, s.cfg)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	// Commit in batches to stay under badger's transaction size limit.
	for start := 0; start < len(s.records); start += saveBatchSize {
		end := start + saveBatchSize
		if end > len(s.records) {
			end = len(s.records)
		}
		err := b.WithTx(func(tx *badger.Txn) error {
			for pos := start; pos < end; pos++ {
				if err := tx.Set(makeRecordKey(pos), core.MarshalStoredRecord(s.records[pos])); err != nil {
					return err
				}
				if err := tx.Set(makeVectorKey(pos), core.MarshalVector(s.vectors[pos])); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}

	s.logger.Info("saved vector store", "path", path, "records", len(s.records))
	return nil
}

// Load replaces the store's contents with the snapshot at path. Identity maps
// are rebuilt from the loaded keys and the approximate index is retrained on
// demand, so searches behave the same as before the save.
func (s *Store) Load(path string) error {
	b, err := openBackend(path, s.logger)
	if err != nil {
		return fmt.Errorf("opening store at %s: %w", path, err)
	}
	defer b.Close()

	var (
		dim     int
		cfg     Config
		records []*core.StoredRecord
		vectors [][]float32
	)

	err = b.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(configKey))
		if err != nil {
			return fmt.Errorf("reading store config: %w", err)
		}
		err = item.Value(func(val []byte) error {
			dim, cfg, err = unmarshalStoreConfig(val)
			return err
		})
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				rec, err := core.UnmarshalStoredRecord(val)
				if err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				iter.Close()
				return err
			}
		}
		iter.Close()

		opts = badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorKeyPrefix)
		iter = tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				vec, err := core.UnmarshalVector(val)
				if err != nil {
					return err
				}
				vectors = append(vectors, vec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	if len(records) != len(vectors) {
		return fmt.Errorf("store data corrupt: %d records but %d vectors", len(records), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.created = true
	s.dim = dim
	s.cfg = cfg
	s.records = records
	s.vectors = vectors
	s.centroids = nil
	s.codebook = nil
	s.ann = nil
	s.rebuildMaps()
	s.maybeTrain()
	s.dirty = true

	s.logger.Info("loaded vector store", "path", path, "records", len(records), "dim", dim, "kind", cfg.Kind)
	return nil
}

func marshalStoreConfig(dim int, cfg Config) []byte {
	kind := string(cfg.Kind)
	fields := []int{
		dim, cfg.IVFNlist, cfg.NProbe, cfg.PQM, cfg.PQNbits,
		cfg.HNSWM, cfg.HNSWEfSearch, cfg.HNSWEfConstruct,
	}
	size := ord.String.Size(kind)
	for _, f := range fields {
		size += varint.Int.Size(f)
	}
	bs := make([]byte, size)
	n := ord.String.Marshal(kind, bs)
	for _, f := range fields {
		n += varint.Int.Marshal(f, bs[n:])
	}
	return bs
}

func unmarshalStoreConfig(bs []byte) (int, Config, error) {
	kind, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return 0, Config{}, err
	}
	fields := make([]int, 8)
	for i := range fields {
		v, n1, err := varint.Int.Unmarshal(bs[n:])
		if err != nil {
			return 0, Config{}, err
		}
		fields[i] = v
		n += n1
	}
	cfg := Config{
		Kind:            IndexKind(kind),
		IVFNlist:        fields[1],
		NProbe:          fields[2],
		PQM:             fields[3],
		PQNbits:         fields[4],
		HNSWM:           fields[5],
		HNSWEfSearch:    fields[6],
		HNSWEfConstruct: fields[7],
	}
	return fields[0], cfg, nil
}
