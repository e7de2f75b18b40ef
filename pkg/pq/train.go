package pq

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/gibram-io/vamana/pkg/verrors"
)

// TrainConfig controls codebook training for one subspace.
type TrainConfig struct {
	K              int // codebook size, typically 256
	MaxIterations  int // Lloyd iteration cap, typical 15
	Rand           *rand.Rand
	Weights        []float64 // optional per-point weight, anisotropic PQ
}

// Codebook holds the K centroids trained for one subspace, each of
// length Size (the subspace's dimension).
type Codebook struct {
	Centroids [][]float32
}

// trainSubspace runs k-means++ seeding followed by Lloyd iteration over the
// projected subvectors points (each of length size), returning the trained
// codebook. points[i] may share storage with the caller's vectors: training
// only reads them, and every centroid is a separate copy.
func trainSubspace(points [][]float32, size int, cfg TrainConfig) (*Codebook, error) {
	n := len(points)
	if n == 0 {
		return nil, verrors.New(verrors.InvalidArgument, "cannot train PQ codebook from zero points")
	}
	k := cfg.K
	if k > n {
		k = n
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}

	centroids := seedPlusPlus(points, size, k, rnd)
	assignments := make([]int, n)

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 15
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := assignNearest(points, centroids, assignments)
		recomputeCentroids(points, centroids, assignments, size, cfg, rnd)
		if !changed && iter > 0 {
			break
		}
	}

	return &Codebook{Centroids: centroids}, nil
}

// seedPlusPlus picks k initial centroids via k-means++: the first uniformly
// at random, each subsequent one sampled proportional to its squared
// distance from the nearest already-chosen centroid, using gonum's weighted
// sampler for the proportional draw.
func seedPlusPlus(points [][]float32, size, k int, rnd *rand.Rand) [][]float32 {
	n := len(points)
	centroids := make([][]float32, 0, k)
	first := rnd.Intn(n)
	centroids = append(centroids, cloneVec(points[first]))

	minDistSq := make([]float64, n)
	for len(centroids) < k {
		for i, p := range points {
			d := sqDist64(p, centroids[len(centroids)-1])
			if len(centroids) == 1 || d < minDistSq[i] {
				minDistSq[i] = d
			}
		}
		total := floats.Sum(minDistSq)
		if total == 0 {
			// All remaining points coincide with a chosen centroid;
			// duplicate arbitrarily to fill out k, Lloyd will separate
			// them naturally if the data allows it.
			centroids = append(centroids, cloneVec(points[rnd.Intn(n)]))
			continue
		}
		w := sampleuv.NewWeighted(minDistSq, rnd)
		idx, ok := w.Take()
		if !ok {
			idx = rnd.Intn(n)
		}
		centroids = append(centroids, cloneVec(points[idx]))
	}
	return centroids
}

// assignNearest assigns each point to its nearest centroid by squared
// Euclidean distance, returning whether any assignment changed.
func assignNearest(points [][]float32, centroids [][]float32, assignments []int) bool {
	changed := false
	for i, p := range points {
		best := 0
		bestDist := sqDist64(p, centroids[0])
		for c := 1; c < len(centroids); c++ {
			d := sqDist64(p, centroids[c])
			if d < bestDist {
				bestDist = d
				best = c
			}
		}
		if assignments[i] != best {
			assignments[i] = best
			changed = true
		}
	}
	return changed
}

// recomputeCentroids recomputes each centroid as the (optionally weighted)
// mean of its assigned members, reseeding empty clusters from the point
// with the largest residual to its current centroid (tie-break: lowest
// centroid index, matching the spec's reseed rule).
func recomputeCentroids(points [][]float32, centroids [][]float32, assignments []int, size int, cfg TrainConfig, rnd *rand.Rand) {
	k := len(centroids)
	sums := make([][]float64, k)
	counts := make([]float64, k)
	for c := 0; c < k; c++ {
		sums[c] = make([]float64, size)
	}
	for i, p := range points {
		c := assignments[i]
		w := 1.0
		if cfg.Weights != nil {
			w = cfg.Weights[i]
		}
		counts[c] += w
		for j, x := range p {
			sums[c][j] += w * float64(x)
		}
	}

	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			reseedEmptyCluster(points, centroids, assignments, c)
			continue
		}
		for j := range centroids[c] {
			centroids[c][j] = float32(sums[c][j] / counts[c])
		}
	}
}

// reseedEmptyCluster replaces centroid c with the point currently farthest
// from its own assigned centroid (the largest-residual point), per the
// spec's empty-cluster reseed rule.
func reseedEmptyCluster(points [][]float32, centroids [][]float32, assignments []int, c int) {
	worstIdx := -1
	worstDist := -1.0
	for i, p := range points {
		d := sqDist64(p, centroids[assignments[i]])
		if d > worstDist {
			worstDist = d
			worstIdx = i
		}
	}
	if worstIdx >= 0 {
		copy(centroids[c], points[worstIdx])
		assignments[worstIdx] = c
	}
}

func sqDist64(a []float32, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
