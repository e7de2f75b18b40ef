package scorer

import (
	"github.com/gibram-io/vamana/pkg/pool"
	"github.com/gibram-io/vamana/pkg/source"
	"github.com/gibram-io/vamana/pkg/vecmath"
)

// ExactFromVectors scores ordinals by reading their vectors from a
// VectorSource and computing exact similarity against a fixed query — the
// scorer variant the teacher's cosineSimilarity call site always used.
type ExactFromVectors struct {
	src    source.VectorSource
	sim    vecmath.Similarity
	query  []float32
	pooled []float32
	vp     *pool.VectorPool
}

// NewExactFromVectors builds a scorer fixed at query under sim, reading
// candidate vectors from src.
func NewExactFromVectors(src source.VectorSource, sim vecmath.Similarity, query []float32) *ExactFromVectors {
	return &ExactFromVectors{src: src, sim: sim, query: query}
}

// NewExactFromVectorsForNode builds a scorer whose fixed vantage point is
// node's own vector — the "insert using its own vector as query" case
// described for search_provider_for(node_id). If vectors is non-nil and src
// reports IsValueShared (its Get buffer is reused across calls), the copy
// is drawn from the pool rather than a fresh make(); callers done with the
// returned scorer should call Release to return it.
func NewExactFromVectorsForNode(src source.VectorSource, sim vecmath.Similarity, node int, vectors *pool.VectorPool) (*ExactFromVectors, error) {
	v, err := src.Get(node)
	if err != nil {
		return nil, err
	}
	var pooled []float32
	if src.IsValueShared() {
		if vectors != nil {
			pooled = vectors.Get(len(v))
			copy(pooled, v)
			v = pooled
		} else {
			cp := make([]float32, len(v))
			copy(cp, v)
			v = cp
		}
	}
	e := NewExactFromVectors(src, sim, v)
	e.pooled = pooled
	e.vp = vectors
	return e, nil
}

// Release returns any pool-backed vantage vector acquired by
// NewExactFromVectorsForNode. Safe to call on a scorer that never pooled
// one (NewExactFromVectors, or a source that isn't value-shared).
func (e *ExactFromVectors) Release() {
	if e.vp != nil && e.pooled != nil {
		e.vp.Put(e.pooled)
		e.pooled = nil
	}
}

func (e *ExactFromVectors) SimilarityTo(ord int) (float32, error) {
	v, err := e.src.Get(ord)
	if err != nil {
		return 0, err
	}
	return vecmath.ScoreOf(e.sim, e.query, v), nil
}

func (e *ExactFromVectors) SupportsBulk() bool { return false }

func (e *ExactFromVectors) BulkSimilarityTo(ords []int) ([]float32, error) {
	return BulkByLoop(e.SimilarityTo, ords)
}

func (e *ExactFromVectors) IsExact() bool { return true }
