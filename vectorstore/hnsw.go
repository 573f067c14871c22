package vectorstore

import (
	"math"
	"math/rand"
	"sort"
)

// hnswIndex is a hierarchical navigable small-world graph over unit vectors,
// using inner product as the similarity measure. Construction is seeded so
// rebuilding over the same vectors yields the same graph.
type hnswIndex struct {
	vectors [][]float32

	// neighbors[node][level] holds the node's neighbor list at that level.
	neighbors [][][]int
	entry     int
	maxLevel  int

	m         int
	efSearch  int
	levelMult float64
	rng       *rand.Rand
}

func buildHNSW(vectors [][]float32, cfg Config) *hnswIndex {
	h := &hnswIndex{
		vectors:   vectors,
		neighbors: make([][][]int, len(vectors)),
		entry:     -1,
		maxLevel:  -1,
		m:         cfg.HNSWM,
		efSearch:  cfg.HNSWEfSearch,
		levelMult: 1.0 / math.Log(float64(cfg.HNSWM)),
		rng:       rand.New(rand.NewSource(1)),
	}
	for i := range vectors {
		h.insert(i, cfg.HNSWEfConstruct)
	}
	return h
}

func (h *hnswIndex) randomLevel() int {
	return int(-math.Log(h.rng.Float64()) * h.levelMult)
}

// maxDegree is the neighbor-list cap: 2*M at the base layer, M above it.
func (h *hnswIndex) maxDegree(level int) int {
	if level == 0 {
		return 2 * h.m
	}
	return h.m
}

func (h *hnswIndex) insert(node, efConstruct int) {
	level := h.randomLevel()
	h.neighbors[node] = make([][]int, level+1)

	if h.entry < 0 {
		h.entry = node
		h.maxLevel = level
		return
	}

	q := h.vectors[node]
	eps := []scoredPos{{pos: h.entry, score: dotProduct(q, h.vectors[h.entry])}}

	for l := h.maxLevel; l > level; l-- {
		eps = h.searchLayer(q, eps, 1, l)
	}

	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	for l := top; l >= 0; l-- {
		found := h.searchLayer(q, eps, efConstruct, l)
		selected := topBySimilarity(found, h.m)
		for _, n := range selected {
			h.connect(node, n.pos, l)
			h.connect(n.pos, node, l)
		}
		eps = found
	}

	if level > h.maxLevel {
		h.entry = node
		h.maxLevel = level
	}
}

// connect adds dst to src's neighbor list at the given level, pruning the
// list back to the degree cap by similarity when it overflows.
func (h *hnswIndex) connect(src, dst, level int) {
	if src == dst || level >= len(h.neighbors[src]) {
		return
	}
	list := h.neighbors[src][level]
	for _, n := range list {
		if n == dst {
			return
		}
	}
	list = append(list, dst)

	if limit := h.maxDegree(level); len(list) > limit {
		v := h.vectors[src]
		scored := make([]scoredPos, len(list))
		for i, n := range list {
			scored[i] = scoredPos{pos: n, score: dotProduct(v, h.vectors[n])}
		}
		scored = topBySimilarity(scored, limit)
		list = list[:0]
		for _, s := range scored {
			list = append(list, s.pos)
		}
	}
	h.neighbors[src][level] = list
}

// searchLayer runs a best-first expansion at one level, keeping the ef most
// similar nodes found.
func (h *hnswIndex) searchLayer(q []float32, eps []scoredPos, ef, level int) []scoredPos {
	visited := make(map[int]bool, ef*4)
	candidates := make([]scoredPos, 0, ef*2)
	results := make([]scoredPos, 0, ef+1)

	for _, ep := range eps {
		if visited[ep.pos] {
			continue
		}
		visited[ep.pos] = true
		candidates = append(candidates, ep)
		results = append(results, ep)
	}
	sortBySimilarity(results)

	for len(candidates) > 0 {
		// Pop the most similar unexpanded candidate.
		best := 0
		for i := 1; i < len(candidates); i++ {
			if candidates[i].score > candidates[best].score {
				best = i
			}
		}
		c := candidates[best]
		candidates[best] = candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]

		if len(results) >= ef && c.score < results[len(results)-1].score {
			break
		}

		if level >= len(h.neighbors[c.pos]) {
			continue
		}
		for _, n := range h.neighbors[c.pos][level] {
			if visited[n] {
				continue
			}
			visited[n] = true
			sim := dotProduct(q, h.vectors[n])
			if len(results) < ef || sim > results[len(results)-1].score {
				item := scoredPos{pos: n, score: sim}
				candidates = append(candidates, item)
				results = append(results, item)
				sortBySimilarity(results)
				if len(results) > ef {
					results = results[:ef]
				}
			}
		}
	}
	return results
}

func (h *hnswIndex) search(query []float32, k int) []scoredPos {
	if h.entry < 0 {
		return nil
	}
	eps := []scoredPos{{pos: h.entry, score: dotProduct(query, h.vectors[h.entry])}}
	for l := h.maxLevel; l > 0; l-- {
		eps = h.searchLayer(query, eps, 1, l)
	}
	ef := h.efSearch
	if ef < k {
		ef = k
	}
	found := h.searchLayer(query, eps, ef, 0)
	return topBySimilarity(found, k)
}

func topBySimilarity(items []scoredPos, k int) []scoredPos {
	out := make([]scoredPos, len(items))
	copy(out, items)
	sortBySimilarity(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func sortBySimilarity(items []scoredPos) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].pos < items[j].pos
	})
}
