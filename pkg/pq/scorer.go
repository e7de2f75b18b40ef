package pq

import (
	"github.com/chewxy/math32"

	"github.com/gibram-io/vamana/pkg/vecmath"
)

// PrecomputedScorer precomputes an M×K table of per-subspace partial
// similarities to a fixed query, so SimilarityTo(encoded) is M table
// lookups plus a sum — the scorer used when many candidates are scored per
// query (beam search's main loop).
type PrecomputedScorer struct {
	q         *Quantizer
	sim       vecmath.Similarity
	table     [][]float32 // [subspace][centroid] partial dot / squared distance
	magTable  [][]float32 // cosine only: partial |centroid|^2 contribution
	queryNorm float32
}

// NewPrecomputedScorer builds the partial-sum table for query against
// quantizer q under similarity sim.
func NewPrecomputedScorer(q *Quantizer, sim vecmath.Similarity, query []float32) *PrecomputedScorer {
	s := &PrecomputedScorer{q: q, sim: sim}
	s.table = make([][]float32, len(q.Subspaces))
	if sim == vecmath.Cosine {
		s.magTable = make([][]float32, len(q.Subspaces))
		s.queryNorm = vecmath.Norm(query)
	}
	for i, sub := range q.Subspaces {
		qv := query[sub.Offset : sub.Offset+sub.Size]
		cb := q.Codebooks[i]
		row := make([]float32, len(cb.Centroids))
		var magRow []float32
		if s.magTable != nil {
			magRow = make([]float32, len(cb.Centroids))
		}
		for c, centroid := range cb.Centroids {
			switch sim {
			case vecmath.Euclidean:
				row[c] = vecmath.SqDist(qv, centroid)
			default: // Dot, Cosine: both driven by the partial dot product
				row[c] = vecmath.DotProduct(qv, centroid)
			}
			if magRow != nil {
				magRow[c] = vecmath.DotProduct(centroid, centroid)
			}
		}
		s.table[i] = row
		if magRow != nil {
			s.magTable[i] = magRow
		}
	}
	return s
}

// SimilarityTo sums the M precomputed subspace partial values for encoded,
// then applies the score transform. Cosine additionally folds in the
// precomputed partial-magnitude table to approximate ||decoded vector||.
func (s *PrecomputedScorer) SimilarityTo(encoded []byte) float32 {
	switch s.sim {
	case vecmath.Euclidean:
		var sum float32
		for i, c := range encoded {
			sum += s.table[i][c]
		}
		return vecmath.Score(vecmath.Euclidean, sum)
	case vecmath.Cosine:
		var dot, magSq float32
		for i, c := range encoded {
			dot += s.table[i][c]
			magSq += s.magTable[i][c]
		}
		norm := sqrtf(magSq)
		if norm == 0 || s.queryNorm == 0 {
			return vecmath.Score(vecmath.Cosine, 0)
		}
		return vecmath.Score(vecmath.Cosine, dot/(norm*s.queryNorm))
	default: // Dot
		var sum float32
		for i, c := range encoded {
			sum += s.table[i][c]
		}
		return vecmath.Score(vecmath.Dot, sum)
	}
}

// LazyScorer computes partial similarities only for the codes actually
// requested per call, useful when a query is only scored against a
// handful of candidates (amortizing a full precompute would waste work).
type LazyScorer struct {
	q     *Quantizer
	sim   vecmath.Similarity
	query []float32
}

func NewLazyScorer(q *Quantizer, sim vecmath.Similarity, query []float32) *LazyScorer {
	return &LazyScorer{q: q, sim: sim, query: query}
}

func (s *LazyScorer) SimilarityTo(encoded []byte) float32 {
	decoded := s.q.Decode(encoded)
	return vecmath.ScoreOf(s.sim, s.query, decoded)
}

func sqrtf(x float32) float32 {
	if x <= 0 {
		return 0
	}
	return math32.Sqrt(x)
}
