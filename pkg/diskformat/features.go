package diskformat

import (
	"encoding/binary"
	"math"

	"github.com/gibram-io/vamana/pkg/builder"
	"github.com/gibram-io/vamana/pkg/nvq"
	"github.com/gibram-io/vamana/pkg/pq"
	"github.com/gibram-io/vamana/pkg/source"
	"github.com/gibram-io/vamana/pkg/verrors"
)

// maxFusedNeighbors bounds the per-node FUSED_ADC row width: up to this many
// neighbor codes are transposed into each subspace row, zero-padded if a
// node has fewer live neighbors.
const maxFusedNeighbors = 32

// FeatureSource supplies one feature's header blob and per-node records
// during a writer pass. Whether a node's record ends up inline in the
// layer0 stream or in a separated end-of-file blob is decided by the
// feature id's isInline(), not by this interface.
type FeatureSource interface {
	ID() FeatureID
	HeaderBlob() []byte
	RecordSize() int
	RecordFor(ord int) ([]byte, error)
}

// InlineVectorSource writes each node's full float32 vector inline in its
// layer0 record.
type InlineVectorSource struct {
	src source.VectorSource
}

func NewInlineVectorSource(src source.VectorSource) *InlineVectorSource {
	return &InlineVectorSource{src: src}
}

func (s *InlineVectorSource) ID() FeatureID    { return InlineVectors }
func (s *InlineVectorSource) HeaderBlob() []byte {
	h := make([]byte, 4)
	binary.LittleEndian.PutUint32(h, uint32(s.src.Dimension()))
	return h
}
func (s *InlineVectorSource) RecordSize() int { return s.src.Dimension() * 4 }
func (s *InlineVectorSource) RecordFor(ord int) ([]byte, error) {
	v, err := s.src.Get(ord)
	if err != nil {
		return nil, err
	}
	return encodeFloats(v), nil
}

// SeparatedVectorSource is the same payload as InlineVectorSource but
// placed in the separated blob, for callers who want layer0 node records
// kept small for cache-friendly traversal (spec's SEPARATED_VECTORS).
type SeparatedVectorSource struct {
	*InlineVectorSource
}

func NewSeparatedVectorSource(src source.VectorSource) *SeparatedVectorSource {
	return &SeparatedVectorSource{InlineVectorSource: NewInlineVectorSource(src)}
}

func (s *SeparatedVectorSource) ID() FeatureID { return SeparatedVectors }

// NVQVectorSource writes each node's NVQ-compressed vector inline.
type NVQVectorSource struct {
	src   source.VectorSource
	codec *nvq.Codec
}

func NewNVQVectorSource(src source.VectorSource, codec *nvq.Codec) *NVQVectorSource {
	return &NVQVectorSource{src: src, codec: codec}
}

func (s *NVQVectorSource) ID() FeatureID      { return NVQVectors }
func (s *NVQVectorSource) HeaderBlob() []byte { return encodeNVQCodec(s.codec) }
func (s *NVQVectorSource) RecordSize() int    { return s.codec.RecordSize() }
func (s *NVQVectorSource) RecordFor(ord int) ([]byte, error) {
	v, err := s.src.Get(ord)
	if err != nil {
		return nil, err
	}
	return s.codec.Encode(v)
}

// SeparatedNVQSource is NVQVectorSource placed in the separated blob.
type SeparatedNVQSource struct {
	*NVQVectorSource
}

func NewSeparatedNVQSource(src source.VectorSource, codec *nvq.Codec) *SeparatedNVQSource {
	return &SeparatedNVQSource{NVQVectorSource: NewNVQVectorSource(src, codec)}
}

func (s *SeparatedNVQSource) ID() FeatureID { return SeparatedNVQ }

// FusedADCSource writes, per node, the PQ codes of that node's layer0
// neighbors transposed into per-subspace rows: row m's byte i is the PQ
// code of neighbor i in subspace m. This lets a beam-search hop score every
// neighbor of the current node from one sequential read, without a
// separate fetch per neighbor (the "fused" part of fused asymmetric
// distance computation).
type FusedADCSource struct {
	graph     *builder.OnHeapGraph
	quantizer *pq.Quantizer
	codeFor   func(ord int) ([]byte, error)
}

func NewFusedADCSource(graph *builder.OnHeapGraph, quantizer *pq.Quantizer, codeFor func(ord int) ([]byte, error)) *FusedADCSource {
	return &FusedADCSource{graph: graph, quantizer: quantizer, codeFor: codeFor}
}

func (s *FusedADCSource) ID() FeatureID      { return FusedADC }
func (s *FusedADCSource) HeaderBlob() []byte { return encodeQuantizer(s.quantizer) }
func (s *FusedADCSource) RecordSize() int    { return len(s.quantizer.Subspaces) * maxFusedNeighbors }
func (s *FusedADCSource) RecordFor(ord int) ([]byte, error) {
	neighbors := s.graph.NeighborsOf(0, ord).Nodes
	if len(neighbors) > maxFusedNeighbors {
		neighbors = neighbors[:maxFusedNeighbors]
	}
	m := len(s.quantizer.Subspaces)
	out := make([]byte, m*maxFusedNeighbors)
	for i, n := range neighbors {
		code, err := s.codeFor(n)
		if err != nil {
			return nil, verrors.Wrap(verrors.Io, err, "fetch PQ code for neighbor %d of node %d", n, ord)
		}
		for sub := 0; sub < m; sub++ {
			out[sub*maxFusedNeighbors+i] = code[sub]
		}
	}
	return out, nil
}

func encodeFloats(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
