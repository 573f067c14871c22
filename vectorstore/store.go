package vectorstore

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/poiesic/websage/core"
)

// Store persists chunk embeddings and metadata and serves nearest-neighbor
// search by normalized inner product (cosine similarity). Every record gets a
// stable 64-bit external id derived by hashing its resolved key, so identity
// survives deletion, reinsertion, and save/load round trips.
//
// Searches are safe for concurrent use. Add, Delete, and Update are not
// guaranteed safe against each other and must be serialized by the caller.
type Store struct {
	mu sync.RWMutex

	created bool
	dim     int
	cfg     Config

	// records and vectors are position-parallel; vectors are unit-normalized.
	records []*core.StoredRecord
	vectors [][]float32

	keyToID map[string]core.ID
	idToPos map[core.ID]int

	// Coarse structures for IVF kinds, trained once on the first
	// sufficiently large batch and reused across rebuilds.
	centroids [][]float32
	codebook  *pqCodebook

	ann   annIndex
	dirty bool

	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// New creates an uninitialized store. Create or Load must be called before use.
func New(opts ...Option) *Store {
	s := &Store{
		logger: slog.Default().With("component", "vectorstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create initializes an empty store for a fixed embedding width using the
// default tuning parameters for the given index kind.
func (s *Store) Create(dim int, kind IndexKind) error {
	return s.CreateWithConfig(dim, defaultConfig(kind))
}

// CreateWithConfig initializes an empty store with explicit tuning parameters.
func (s *Store) CreateWithConfig(dim int, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dim <= 0 {
		return ErrInvalidDim
	}
	if !cfg.valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, cfg.Kind)
	}
	cfg.normalize()

	s.created = true
	s.dim = dim
	s.cfg = cfg
	s.records = nil
	s.vectors = nil
	s.keyToID = make(map[string]core.ID)
	s.idToPos = make(map[core.ID]int)
	s.centroids = nil
	s.codebook = nil
	s.ann = nil
	s.dirty = false
	return nil
}

// resolveKey returns the stable key used for id hashing.
// Priority: url -> chunk id -> positional fallback.
func resolveKey(chunk *core.Chunk, pos int) string {
	if chunk.Url != "" {
		return chunk.Url
	}
	if chunk.Id != "" {
		return chunk.Id
	}
	return fmt.Sprintf("record_%d", pos)
}

func toStored(chunk *core.Chunk, key string) *core.StoredRecord {
	return &core.StoredRecord{
		Id:            chunk.Id,
		Url:           chunk.Url,
		Text:          chunk.Text,
		Hierarchy:     chunk.Hierarchy,
		OutgoingLinks: chunk.OutgoingLinks,
		Metadata:      chunk.Metadata,
		Key:           key,
	}
}

// Add inserts a batch of chunk records. Each record must carry an embedding of
// the store's dimension; embeddings are L2-normalized before indexing so the
// inner product realizes cosine similarity. An empty batch is a no-op.
func (s *Store) Add(chunks []*core.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return ErrNotCreated
	}
	if len(chunks) == 0 {
		return nil
	}

	// Validate the whole batch before mutating anything.
	for _, chunk := range chunks {
		if err := core.ValidateEmbedded(chunk, s.dim); err != nil {
			return err
		}
	}

	for _, chunk := range chunks {
		pos := len(s.records)
		key := resolveKey(chunk, pos)
		rec := toStored(chunk, key)
		id := core.IDFromKey(key)

		s.records = append(s.records, rec)
		s.vectors = append(s.vectors, l2Normalized(chunk.Embedding))
		s.keyToID[key] = id
		s.idToPos[id] = pos
	}

	s.maybeTrain()
	s.dirty = true
	return nil
}

// Search returns up to k nearest neighbors of the query by inner product,
// each carrying its full metadata (embedding stripped), a similarity score in
// [-1, 1], and its stable external id. An empty store or k <= 0 yields an
// empty result, not an error.
func (s *Store) Search(query []float32, k int) ([]*core.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return nil, ErrNotCreated
	}
	if len(s.vectors) == 0 || k <= 0 {
		return []*core.SearchResult{}, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			ErrDimensionMismatch, len(query), s.dim)
	}

	if k > len(s.vectors) {
		k = len(s.vectors)
	}
	q := l2Normalized(query)

	s.ensureIndex()
	var hits []scoredPos
	if s.ann != nil {
		hits = s.ann.search(q, k)
	} else {
		hits = flatSearch(s.vectors, q, k)
	}

	results := make([]*core.SearchResult, 0, len(hits))
	for _, h := range hits {
		rec := s.records[h.pos]
		results = append(results, &core.SearchResult{
			Record: rec,
			Id:     core.IDFromKey(rec.Key),
			Score:  h.score,
		})
	}
	return results, nil
}

// Delete removes all records whose external id is in ids, along with their
// vectors. Position maps are rebuilt deterministically from the remaining
// records' stored keys, never from pre-removal offsets.
func (s *Store) Delete(ids []core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return ErrNotCreated
	}
	if len(ids) == 0 {
		return nil
	}

	drop := make(map[core.ID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	keptRecords := s.records[:0]
	keptVectors := s.vectors[:0]
	removed := 0
	for pos, rec := range s.records {
		if drop[core.IDFromKey(rec.Key)] {
			removed++
			continue
		}
		keptRecords = append(keptRecords, rec)
		keptVectors = append(keptVectors, s.vectors[pos])
	}
	s.records = keptRecords
	s.vectors = keptVectors

	if removed == 0 {
		return nil
	}

	s.rebuildMaps()
	s.dirty = true
	return nil
}

// DeleteByKey removes the record stored under the given key.
func (s *Store) DeleteByKey(key string) error {
	s.mu.RLock()
	id, ok := s.keyToID[key]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return s.Delete([]core.ID{id})
}

// Update atomically replaces the vector and metadata of the record with the
// given external id. The stored key is preserved, so the record keeps the
// same id after the update.
func (s *Store) Update(id core.ID, chunk *core.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return ErrNotCreated
	}
	pos, ok := s.idToPos[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrIDNotFound, id)
	}
	if err := core.ValidateEmbedded(chunk, s.dim); err != nil {
		return err
	}

	rec := toStored(chunk, s.records[pos].Key)
	s.records[pos] = rec
	s.vectors[pos] = l2Normalized(chunk.Embedding)
	s.dirty = true
	return nil
}

// Records returns a snapshot of the stored metadata in position order.
// Used by the lexical index and the reindexer; records must not be mutated.
func (s *Store) Records() []*core.StoredRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.StoredRecord, len(s.records))
	copy(out, s.records)
	return out
}

// IDByKey returns the stable external id for a key, if present.
func (s *Store) IDByKey(key string) (core.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keyToID[key]
	return id, ok
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dim returns the embedding width fixed at Create time.
func (s *Store) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Kind returns the configured index kind.
func (s *Store) Kind() IndexKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Kind
}

// rebuildMaps recomputes key and position maps from the stored keys.
// Callers must hold the write lock.
func (s *Store) rebuildMaps() {
	s.keyToID = make(map[string]core.ID, len(s.records))
	s.idToPos = make(map[core.ID]int, len(s.records))
	for pos, rec := range s.records {
		id := core.IDFromKey(rec.Key)
		s.keyToID[rec.Key] = id
		s.idToPos[id] = pos
	}
}

// minTrainPoints is the smallest corpus the IVF kinds will train on; below
// this searches fall back to an exact scan.
const minTrainPoints = 64

// maybeTrain trains the IVF coarse quantizer (and PQ codebooks) once the
// corpus is large enough. A no-op for flat/hnsw kinds and once trained.
// Callers must hold the write lock.
func (s *Store) maybeTrain() {
	if s.cfg.Kind != IndexIVF && s.cfg.Kind != IndexIVFPQ {
		return
	}
	if s.centroids != nil {
		return
	}
	n := len(s.vectors)
	if n < minTrainPoints {
		return
	}

	nlist := s.cfg.IVFNlist
	if max := n / 8; nlist > max {
		nlist = max
	}
	if nlist < 1 {
		nlist = 1
	}
	s.centroids = kmeans(s.vectors, nlist, kmeansIters)
	s.logger.Debug("trained IVF coarse quantizer", "nlist", nlist, "points", n)

	if s.cfg.Kind == IndexIVFPQ {
		s.codebook = trainPQ(s.vectors, s.dim, s.cfg.PQM, s.cfg.PQNbits)
		s.logger.Debug("trained PQ codebooks", "m", s.codebook.m, "ks", s.codebook.ks)
	}
}

// ensureIndex lazily (re)builds the ANN structure after mutations.
// Callers must hold the write lock.
func (s *Store) ensureIndex() {
	if !s.dirty && s.ann != nil {
		return
	}
	s.ann = nil
	switch s.cfg.Kind {
	case IndexHNSW:
		s.ann = buildHNSW(s.vectors, s.cfg)
	case IndexIVF:
		if s.centroids != nil {
			s.ann = buildIVF(s.vectors, s.centroids, nil, s.cfg)
		}
	case IndexIVFPQ:
		if s.centroids != nil {
			s.ann = buildIVF(s.vectors, s.centroids, s.codebook, s.cfg)
		}
	}
	s.dirty = false
}

// scoredPos pairs a record position with its similarity score.
type scoredPos struct {
	pos   int
	score float32
}

// annIndex is a rebuilt-on-demand approximate search structure over the
// store's current vectors.
type annIndex interface {
	search(query []float32, k int) []scoredPos
}

// flatSearch is the exact path: score every vector and keep the top k.
func flatSearch(vectors [][]float32, query []float32, k int) []scoredPos {
	scored := make([]scoredPos, len(vectors))
	for i, v := range vectors {
		scored[i] = scoredPos{pos: i, score: dotProduct(query, v)}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].pos < scored[j].pos
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// l2Normalized returns a unit-length copy of v. Zero vectors are returned
// unchanged.
func l2Normalized(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1.0 / sqrt32(sum)
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
