package vectorstore

import (
	"math"
	"math/rand"
)

const kmeansIters = 10

// kmeans runs seeded spherical k-means over unit vectors and returns unit
// centroids. Deterministic for a given input.
func kmeans(vectors [][]float32, k, iters int) [][]float32 {
	n := len(vectors)
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(2))
	perm := rng.Perm(n)
	centroids := make([][]float32, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float32(nil), vectors[perm[i]]...)
	}

	dim := len(vectors[0])
	assign := make([]int, n)
	for iter := 0; iter < iters; iter++ {
		changed := false
		for i, v := range vectors {
			best, bestSim := 0, float32(math.Inf(-1))
			for c, cent := range centroids {
				if sim := dotProduct(v, cent); sim > bestSim {
					best, bestSim = c, sim
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([][]float32, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += x
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Reseed empty partitions from a random point.
				centroids[c] = append([]float32(nil), vectors[rng.Intn(n)]...)
				continue
			}
			centroids[c] = l2Normalized(sums[c])
		}
	}
	return centroids
}

// euclideanKMeans clusters raw subvectors by squared distance; used for the
// PQ codebooks where vectors are not unit length.
func euclideanKMeans(points [][]float32, k, iters int, rng *rand.Rand) [][]float32 {
	n := len(points)
	if k > n {
		k = n
	}
	perm := rng.Perm(n)
	centers := make([][]float32, k)
	for i := 0; i < k; i++ {
		centers[i] = append([]float32(nil), points[perm[i]]...)
	}

	dim := len(points[0])
	assign := make([]int, n)
	for iter := 0; iter < iters; iter++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, float32(math.Inf(1))
			for c, cent := range centers {
				var dist float32
				for d := range p {
					diff := p[d] - cent[d]
					dist += diff * diff
				}
				if dist < bestDist {
					best, bestDist = c, dist
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([][]float32, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for d, x := range p {
				sums[c][d] += x
			}
		}
		for c := range centers {
			if counts[c] == 0 {
				centers[c] = append([]float32(nil), points[rng.Intn(n)]...)
				continue
			}
			inv := 1.0 / float32(counts[c])
			for d := range centers[c] {
				centers[c][d] = sums[c][d] * inv
			}
		}
	}
	return centers
}

// pqCodebook holds per-subspace quantization centers. A vector is encoded as
// m one-byte codes; queries score codes through a per-query lookup table
// (asymmetric distance computation against the exact query).
type pqCodebook struct {
	m    int // subquantizer count; divides the dimension
	ks   int // centers per subquantizer, at most 256
	dsub int // dimensions per subspace

	// centers[j][c] is the c-th center of subspace j.
	centers [][][]float32
}

// trainPQ fits codebooks over the current vectors. The requested subquantizer
// count is lowered to the largest divisor of dim when it does not divide
// evenly.
func trainPQ(vectors [][]float32, dim, m, nbits int) *pqCodebook {
	for dim%m != 0 {
		m--
	}
	ks := 1 << nbits
	if ks > len(vectors) {
		ks = len(vectors)
	}
	dsub := dim / m

	rng := rand.New(rand.NewSource(3))
	cb := &pqCodebook{m: m, ks: ks, dsub: dsub, centers: make([][][]float32, m)}
	sub := make([][]float32, len(vectors))
	for j := 0; j < m; j++ {
		lo := j * dsub
		for i, v := range vectors {
			sub[i] = v[lo : lo+dsub]
		}
		cb.centers[j] = euclideanKMeans(sub, ks, kmeansIters, rng)
	}
	return cb
}

func (cb *pqCodebook) encode(v []float32) []uint8 {
	codes := make([]uint8, cb.m)
	for j := 0; j < cb.m; j++ {
		lo := j * cb.dsub
		sub := v[lo : lo+cb.dsub]
		best, bestDist := 0, float32(math.Inf(1))
		for c, cent := range cb.centers[j] {
			var dist float32
			for d := range sub {
				diff := sub[d] - cent[d]
				dist += diff * diff
			}
			if dist < bestDist {
				best, bestDist = c, dist
			}
		}
		codes[j] = uint8(best)
	}
	return codes
}

// lookupTable precomputes per-subspace inner products of the query against
// every center, so scoring a code is m table reads.
func (cb *pqCodebook) lookupTable(query []float32) [][]float32 {
	table := make([][]float32, cb.m)
	for j := 0; j < cb.m; j++ {
		lo := j * cb.dsub
		sub := query[lo : lo+cb.dsub]
		row := make([]float32, len(cb.centers[j]))
		for c, cent := range cb.centers[j] {
			row[c] = dotProduct(sub, cent)
		}
		table[j] = row
	}
	return table
}

// ivfIndex partitions vectors into inverted lists keyed by their nearest
// coarse centroid. Queries scan only the nprobe closest lists, scoring
// either exact vectors or PQ codes.
type ivfIndex struct {
	vectors   [][]float32
	centroids [][]float32
	lists     [][]int
	codes     [][]uint8 // aligned with vectors; nil without PQ
	codebook  *pqCodebook
	nprobe    int
}

func buildIVF(vectors, centroids [][]float32, codebook *pqCodebook, cfg Config) *ivfIndex {
	ix := &ivfIndex{
		vectors:   vectors,
		centroids: centroids,
		lists:     make([][]int, len(centroids)),
		codebook:  codebook,
		nprobe:    cfg.NProbe,
	}
	if codebook != nil {
		ix.codes = make([][]uint8, len(vectors))
	}
	for pos, v := range vectors {
		best, bestSim := 0, float32(math.Inf(-1))
		for c, cent := range centroids {
			if sim := dotProduct(v, cent); sim > bestSim {
				best, bestSim = c, sim
			}
		}
		ix.lists[best] = append(ix.lists[best], pos)
		if codebook != nil {
			ix.codes[pos] = codebook.encode(v)
		}
	}
	return ix
}

func (ix *ivfIndex) search(query []float32, k int) []scoredPos {
	ranked := make([]scoredPos, len(ix.centroids))
	for c, cent := range ix.centroids {
		ranked[c] = scoredPos{pos: c, score: dotProduct(query, cent)}
	}
	sortBySimilarity(ranked)
	nprobe := ix.nprobe
	if nprobe > len(ranked) {
		nprobe = len(ranked)
	}

	var table [][]float32
	if ix.codebook != nil {
		table = ix.codebook.lookupTable(query)
	}

	var found []scoredPos
	for _, c := range ranked[:nprobe] {
		for _, pos := range ix.lists[c.pos] {
			var sim float32
			if table != nil {
				for j, code := range ix.codes[pos] {
					sim += table[j][code]
				}
				// ADC estimates can drift past the cosine range.
				if sim > 1 {
					sim = 1
				} else if sim < -1 {
					sim = -1
				}
			} else {
				sim = dotProduct(query, ix.vectors[pos])
			}
			found = append(found, scoredPos{pos: pos, score: sim})
		}
	}
	return topBySimilarity(found, k)
}
