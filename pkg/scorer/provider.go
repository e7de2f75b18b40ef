package scorer

import (
	"github.com/gibram-io/vamana/pkg/pool"
	"github.com/gibram-io/vamana/pkg/source"
	"github.com/gibram-io/vamana/pkg/vecmath"
)

// Pair bundles the two scorers a builder needs for one insertion or search:
// search uses whichever scorer is cheapest to evaluate broadly, diversity
// uses whichever scorer is trustworthy enough not to corrupt pruning
// decisions.
type Pair struct {
	Search    Scorer
	Diversity Scorer
}

// BuildScoreProvider encapsulates the scorer(s) the builder uses, per
// spec §4.F. ExactProvider and PQRerankProvider are the two standard
// variants.
type BuildScoreProvider interface {
	SearchProviderForQuery(query []float32) (Pair, error)
	SearchProviderForNode(node int) (Pair, error)
	Similarity() vecmath.Similarity
}

// ExactProvider is the "exact in-memory" variant: both search and
// diversity use exact similarity from a random-access vector source.
type ExactProvider struct {
	src     source.VectorSource
	sim     vecmath.Similarity
	vectors *pool.VectorPool
}

func NewExactProvider(src source.VectorSource, sim vecmath.Similarity) *ExactProvider {
	return &ExactProvider{src: src, sim: sim}
}

// SetVectorPool attaches a scratch pool SearchProviderForNode draws its
// vantage-vector copy from instead of a fresh make() — the builder wires
// its own pool.VectorPool in here when the provider supports it. Passing
// nil disables pooling.
func (p *ExactProvider) SetVectorPool(v *pool.VectorPool) { p.vectors = v }

func (p *ExactProvider) Similarity() vecmath.Similarity { return p.sim }

func (p *ExactProvider) SearchProviderForQuery(query []float32) (Pair, error) {
	s := NewExactFromVectors(p.src, p.sim, query)
	return Pair{Search: s, Diversity: s}, nil
}

func (p *ExactProvider) SearchProviderForNode(node int) (Pair, error) {
	s, err := NewExactFromVectorsForNode(p.src, p.sim, node, p.vectors)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Search: s, Diversity: s}, nil
}

// PQRerankProvider is the "PQ + rerank" variant: search uses the PQ
// approximate scorer (cheap, scans the whole candidate frontier); diversity
// uses an exact scorer, so RobustPrune decisions are never corrupted by PQ
// quantization noise.
type PQRerankProvider struct {
	src       source.VectorSource
	sim       vecmath.Similarity
	codes     codeSource
	newApprox func(query []float32) approxScorer
	vectors   *pool.VectorPool
}

// NewPQRerankProvider builds a provider. newApprox constructs a fresh
// approximate PQ scorer (precomputed or lazy) for a given query vector —
// callers choose which by the constructor they pass in (e.g.
// func(q []float32) approxScorer { return pq.NewPrecomputedScorer(trained, sim, q) }).
func NewPQRerankProvider(src source.VectorSource, sim vecmath.Similarity, codes codeSource, newApprox func([]float32) approxScorer) *PQRerankProvider {
	return &PQRerankProvider{src: src, sim: sim, codes: codes, newApprox: newApprox}
}

// SetVectorPool attaches a scratch pool SearchProviderForNode draws its
// vantage-vector copy from instead of a fresh make(). Passing nil disables
// pooling.
func (p *PQRerankProvider) SetVectorPool(v *pool.VectorPool) { p.vectors = v }

func (p *PQRerankProvider) Similarity() vecmath.Similarity { return p.sim }

func (p *PQRerankProvider) SearchProviderForQuery(query []float32) (Pair, error) {
	approx := NewPQAdapter(p.newApprox(query), p.codes)
	exact := NewExactFromVectors(p.src, p.sim, query)
	return Pair{Search: approx, Diversity: exact}, nil
}

func (p *PQRerankProvider) SearchProviderForNode(node int) (Pair, error) {
	v, err := p.src.Get(node)
	if err != nil {
		return Pair{}, err
	}
	if p.src.IsValueShared() {
		if p.vectors != nil {
			pooled := p.vectors.Get(len(v))
			copy(pooled, v)
			v = pooled
		} else {
			cp := make([]float32, len(v))
			copy(cp, v)
			v = cp
		}
	}
	return p.SearchProviderForQuery(v)
}
