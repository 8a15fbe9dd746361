package vector

import (
	"math"
	"sort"
)

// subvectorChoices in descending preference. The largest value dividing the
// embedding dimension wins; dimensions none of them divide fall back to the
// smallest.
var subvectorChoices = []int{128, 64, 32, 16, 8}

// SubvectorCount picks how many sub-vector blocks the index splits a vector
// into. Index scoring accumulates each block separately in float64, which
// keeps high-dimension dot products stable during clustering and probing.
func SubvectorCount(dim int) int {
	for _, c := range subvectorChoices {
		if dim%c == 0 {
			return c
		}
	}
	return subvectorChoices[len(subvectorChoices)-1]
}

// PartitionCount derives the number of IVF partitions for a row count:
// ceil(sqrt(N)) clamped to a minimum of 8.
func PartitionCount(n int) int {
	nlist := int(math.Ceil(math.Sqrt(float64(n))))
	if nlist < 8 {
		nlist = 8
	}
	return nlist
}

// ivfIndex is an in-memory inverted-file index over unit-length vectors.
// Cosine similarity over unit vectors reduces to the dot product.
type ivfIndex struct {
	nlist      int
	subvectors int
	dim        int
	centroids  [][]float32
	members    [][]string
}

const kmeansIterations = 8

// buildIVF clusters the vectors with Lloyd iterations seeded by spreading
// the initial centroids across the input.
func buildIVF(ids []string, vectors [][]float32, dim int) *ivfIndex {
	n := len(ids)
	idx := &ivfIndex{
		nlist:      PartitionCount(n),
		subvectors: SubvectorCount(dim),
		dim:        dim,
	}
	if idx.nlist > n {
		idx.nlist = n
	}

	// Seed centroids evenly over the input order.
	idx.centroids = make([][]float32, idx.nlist)
	for i := range idx.centroids {
		seed := vectors[i*n/idx.nlist]
		centroid := make([]float32, dim)
		copy(centroid, seed)
		idx.centroids[i] = centroid
	}

	width := idx.blockWidth()
	assignment := make([]int, n)
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, vec := range vectors {
			best := nearestCentroid(idx.centroids, vec, width)
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([][]float64, idx.nlist)
		counts := make([]int, idx.nlist)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, vec := range vectors {
			c := assignment[i]
			counts[c]++
			for d, v := range vec {
				sums[c][d] += float64(v)
			}
		}
		for c := range idx.centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range idx.centroids[c] {
				idx.centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
			normalizeInPlace(idx.centroids[c])
		}
	}

	idx.members = make([][]string, idx.nlist)
	for i, id := range ids {
		c := assignment[i]
		idx.members[c] = append(idx.members[c], id)
	}
	return idx
}

// probe returns the member ids of the nprobe clusters nearest the query.
func (idx *ivfIndex) probe(query []float32, nprobe int) []string {
	if nprobe < 1 {
		nprobe = 1
	}
	if nprobe > idx.nlist {
		nprobe = idx.nlist
	}

	type scored struct {
		cluster int
		score   float32
	}
	width := idx.blockWidth()
	ranked := make([]scored, len(idx.centroids))
	for i, c := range idx.centroids {
		ranked[i] = scored{cluster: i, score: blockDot(c, query, width)}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var out []string
	for _, r := range ranked[:nprobe] {
		out = append(out, idx.members[r.cluster]...)
	}
	return out
}

func nearestCentroid(centroids [][]float32, vec []float32, width int) int {
	best, bestScore := 0, float32(math.Inf(-1))
	for i, c := range centroids {
		if s := blockDot(c, vec, width); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// blockWidth is the per-block dimension count implied by the sub-vector
// count; dimensions the count does not divide leave a shorter final block.
func (idx *ivfIndex) blockWidth() int {
	width := idx.dim / idx.subvectors
	if width < 1 {
		width = 1
	}
	return width
}

// blockDot sums the dot product one sub-vector block at a time, accumulating
// each block in float64 before combining.
func blockDot(a, b []float32, width int) float32 {
	var total float64
	for start := 0; start < len(a); start += width {
		end := start + width
		if end > len(a) {
			end = len(a)
		}
		var block float64
		for i := start; i < end; i++ {
			block += float64(a[i]) * float64(b[i])
		}
		total += block
	}
	return float32(total)
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func normalizeInPlace(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
