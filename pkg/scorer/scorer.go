// Package scorer defines the capability-set replacement for score-function
// polymorphism (spec §9): rather than an inheritance hierarchy, every
// scorer variant implements the same small interface, and the builder and
// searcher accept any implementor.
package scorer

// Scorer is the capability set a build score provider or searcher consumes.
// Implementations: ExactFromVectors, and pq.PrecomputedScorer/LazyScorer
// wrapped by PQAdapter.
type Scorer interface {
	// SimilarityTo returns the score (higher is better) between the
	// scorer's fixed vantage point and ord.
	SimilarityTo(ord int) (float32, error)
	// SupportsBulk reports whether BulkSimilarityTo is implemented
	// efficiently (vs. falling back to a per-ordinal loop).
	SupportsBulk() bool
	// BulkSimilarityTo scores every ordinal in ords in one call.
	BulkSimilarityTo(ords []int) ([]float32, error)
	// IsExact reports whether this scorer computes similarity from the
	// original vectors (true) or from a lossy compressed representation
	// (false, e.g. PQ) — the searcher uses this to decide whether a
	// reranking pass is required.
	IsExact() bool
}

// BulkByLoop scores every ordinal by repeated calls to similarityTo,
// for scorer variants with no dedicated bulk fast path.
func BulkByLoop(similarityTo func(ord int) (float32, error), ords []int) ([]float32, error) {
	out := make([]float32, len(ords))
	for i, ord := range ords {
		s, err := similarityTo(ord)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
