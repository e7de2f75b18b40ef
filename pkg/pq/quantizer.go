package pq

import (
	"github.com/gibram-io/vamana/pkg/vecmath"
	"github.com/gibram-io/vamana/pkg/verrors"
)

// Quantizer is a trained Product Quantizer: M independent subspace
// codebooks covering the full dimension d. Codes are M bytes (assuming
// K<=256, the typical and only case this implementation targets — larger K
// is out of scope for this core).
type Quantizer struct {
	Dimension     int
	Subspaces     []Subspace
	Codebooks     []*Codebook
	GlobalCentroid []float32 // optional, subtracted before encoding
}

// Train builds a Quantizer from n sample vectors of dimension d, training
// each of m subspace codebooks independently. cfg.K must be <= 256.
func Train(vectors [][]float32, d, m int, cfg TrainConfig) (*Quantizer, error) {
	if m <= 0 || m > d {
		return nil, verrors.New(verrors.InvalidArgument, "invalid subspace count %d for dimension %d", m, d)
	}
	if cfg.K <= 0 || cfg.K > 256 {
		return nil, verrors.New(verrors.InvalidArgument, "codebook size %d out of supported range [1,256]", cfg.K)
	}
	subspaces := SplitSubspaces(d, m)
	codebooks := make([]*Codebook, m)

	type result struct {
		idx int
		cb  *Codebook
		err error
	}
	results := make(chan result, m)
	for i, sub := range subspaces {
		go func(i int, sub Subspace) {
			points := make([][]float32, len(vectors))
			for j, v := range vectors {
				if len(v) != d {
					results <- result{i, nil, verrors.New(verrors.InvalidArgument, "vector %d has dimension %d, expected %d", j, len(v), d)}
					return
				}
				points[j] = v[sub.Offset : sub.Offset+sub.Size]
			}
			cb, err := trainSubspace(points, sub.Size, cfg)
			results <- result{i, cb, err}
		}(i, sub)
	}
	for range subspaces {
		r := <-results
		if r.err != nil {
			return nil, r.err
		}
		codebooks[r.idx] = r.cb
	}

	return &Quantizer{Dimension: d, Subspaces: subspaces, Codebooks: codebooks}, nil
}

// Encode computes the nearest centroid index per subspace (linear scan over
// K), returning M bytes.
func (q *Quantizer) Encode(vec []float32) ([]byte, error) {
	if len(vec) != q.Dimension {
		return nil, verrors.New(verrors.InvalidArgument, "vector has dimension %d, quantizer expects %d", len(vec), q.Dimension)
	}
	code := make([]byte, len(q.Subspaces))
	for i, sub := range q.Subspaces {
		sv := vec[sub.Offset : sub.Offset+sub.Size]
		if q.GlobalCentroid != nil {
			gv := make([]float32, sub.Size)
			for j := range gv {
				gv[j] = sv[j] - q.GlobalCentroid[sub.Offset+j]
			}
			sv = gv
		}
		code[i] = byte(q.nearestCentroid(i, sv))
	}
	return code, nil
}

func (q *Quantizer) nearestCentroid(subspace int, sv []float32) int {
	cb := q.Codebooks[subspace]
	best := 0
	bestDist := sqDist32(sv, cb.Centroids[0])
	for c := 1; c < len(cb.Centroids); c++ {
		d := sqDist32(sv, cb.Centroids[c])
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// Decode reconstructs an approximate vector from an encoded code by
// concatenating the chosen centroids per subspace.
func (q *Quantizer) Decode(code []byte) []float32 {
	out := make([]float32, q.Dimension)
	for i, sub := range q.Subspaces {
		centroid := q.Codebooks[i].Centroids[code[i]]
		copy(out[sub.Offset:sub.Offset+sub.Size], centroid)
		if q.GlobalCentroid != nil {
			for j := 0; j < sub.Size; j++ {
				out[sub.Offset+j] += q.GlobalCentroid[sub.Offset+j]
			}
		}
	}
	return out
}

func sqDist32(a, b []float32) float32 {
	return vecmath.SqDist(a, b)
}
