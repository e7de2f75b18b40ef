package scorer

import "github.com/gibram-io/vamana/pkg/verrors"

// codeSource supplies the encoded PQ bytes for an ordinal — implemented by
// the on-heap InMemoryCodeTable. The disk reader does not implement it.
type codeSource interface {
	CodeFor(ord int) ([]byte, error)
}

// approxScorer is the subset of pq.PrecomputedScorer/pq.LazyScorer this
// adapter needs: scoring a single already-encoded candidate.
type approxScorer interface {
	SimilarityTo(encoded []byte) float32
}

// PQAdapter wraps a trained PQ approximate scorer (precomputed or lazy) and
// a code source into the Scorer capability set, so the builder/searcher
// never need to know which PQ scoring strategy is underneath.
type PQAdapter struct {
	approx approxScorer
	codes  codeSource
}

// NewPQAdapter builds an adapter over approx (a *pq.PrecomputedScorer or
// *pq.LazyScorer) and a source of encoded candidate bytes.
func NewPQAdapter(approx approxScorer, codes codeSource) *PQAdapter {
	return &PQAdapter{approx: approx, codes: codes}
}

func (p *PQAdapter) SimilarityTo(ord int) (float32, error) {
	code, err := p.codes.CodeFor(ord)
	if err != nil {
		return 0, verrors.Wrap(verrors.Io, err, "fetch PQ code for ordinal %d", ord)
	}
	return p.approx.SimilarityTo(code), nil
}

func (p *PQAdapter) SupportsBulk() bool { return false }

func (p *PQAdapter) BulkSimilarityTo(ords []int) ([]float32, error) {
	return BulkByLoop(p.SimilarityTo, ords)
}

func (p *PQAdapter) IsExact() bool { return false }

// InMemoryCodeTable is the simplest codeSource: an in-memory map from
// ordinal to encoded bytes, populated as nodes are inserted during build.
type InMemoryCodeTable struct {
	codes map[int][]byte
}

func NewInMemoryCodeTable() *InMemoryCodeTable {
	return &InMemoryCodeTable{codes: make(map[int][]byte)}
}

func (t *InMemoryCodeTable) Put(ord int, code []byte) { t.codes[ord] = code }

func (t *InMemoryCodeTable) CodeFor(ord int) ([]byte, error) {
	c, ok := t.codes[ord]
	if !ok {
		return nil, verrors.New(verrors.OutOfRange, "no PQ code recorded for ordinal %d", ord)
	}
	return c, nil
}
