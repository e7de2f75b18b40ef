package diskformat

import (
	"bytes"
	"encoding/binary"

	"github.com/gibram-io/vamana/pkg/nvq"
	"github.com/gibram-io/vamana/pkg/pq"
	"github.com/gibram-io/vamana/pkg/verrors"
)

// encodeQuantizer serializes a trained pq.Quantizer's subspace layout and
// codebook centroids into the flat header blob the FUSED_ADC feature
// carries.
func encodeQuantizer(q *pq.Quantizer) []byte {
	var buf bytes.Buffer
	writeU32(&buf, uint32(q.Dimension))
	writeU32(&buf, uint32(len(q.Subspaces)))
	for _, sub := range q.Subspaces {
		writeU32(&buf, uint32(sub.Offset))
		writeU32(&buf, uint32(sub.Size))
	}
	for i, cb := range q.Codebooks {
		sub := q.Subspaces[i]
		writeU32(&buf, uint32(len(cb.Centroids)))
		for _, centroid := range cb.Centroids {
			for _, f := range centroid {
				_ = sub // size implied by Subspaces already recorded
				binary.Write(&buf, binary.LittleEndian, f)
			}
		}
	}
	hasGlobal := uint32(0)
	if q.GlobalCentroid != nil {
		hasGlobal = 1
	}
	writeU32(&buf, hasGlobal)
	if q.GlobalCentroid != nil {
		for _, f := range q.GlobalCentroid {
			binary.Write(&buf, binary.LittleEndian, f)
		}
	}
	return buf.Bytes()
}

// decodeQuantizer is the inverse of encodeQuantizer.
func decodeQuantizer(data []byte) (*pq.Quantizer, error) {
	r := bytes.NewReader(data)
	dimension, err := readU32(r)
	if err != nil {
		return nil, err
	}
	m, err := readU32(r)
	if err != nil {
		return nil, err
	}
	subs := make([]pq.Subspace, m)
	for i := range subs {
		off, err := readU32(r)
		if err != nil {
			return nil, err
		}
		size, err := readU32(r)
		if err != nil {
			return nil, err
		}
		subs[i] = pq.Subspace{Offset: int(off), Size: int(size)}
	}
	codebooks := make([]*pq.Codebook, m)
	for i, sub := range subs {
		k, err := readU32(r)
		if err != nil {
			return nil, err
		}
		centroids := make([][]float32, k)
		for c := range centroids {
			centroid := make([]float32, sub.Size)
			for j := range centroid {
				if err := binary.Read(r, binary.LittleEndian, &centroid[j]); err != nil {
					return nil, verrors.Wrap(verrors.Io, err, "read centroid %d of subspace %d", c, i)
				}
			}
			centroids[c] = centroid
		}
		codebooks[i] = &pq.Codebook{Centroids: centroids}
	}
	hasGlobal, err := readU32(r)
	if err != nil {
		return nil, err
	}
	var global []float32
	if hasGlobal != 0 {
		global = make([]float32, dimension)
		for j := range global {
			if err := binary.Read(r, binary.LittleEndian, &global[j]); err != nil {
				return nil, verrors.Wrap(verrors.Io, err, "read global centroid component %d", j)
			}
		}
	}
	return &pq.Quantizer{Dimension: int(dimension), Subspaces: subs, Codebooks: codebooks, GlobalCentroid: global}, nil
}

// encodeNVQCodec serializes an nvq.Codec's per-dimension range table.
func encodeNVQCodec(c *nvq.Codec) []byte {
	var buf bytes.Buffer
	writeU32(&buf, uint32(c.Dimension))
	writeU32(&buf, uint32(c.BitWidth))
	for d := 0; d < c.Dimension; d++ {
		binary.Write(&buf, binary.LittleEndian, c.Min[d])
		binary.Write(&buf, binary.LittleEndian, c.Max[d])
	}
	return buf.Bytes()
}

func decodeNVQCodec(data []byte) (*nvq.Codec, error) {
	r := bytes.NewReader(data)
	dimension, err := readU32(r)
	if err != nil {
		return nil, err
	}
	bitWidth, err := readU32(r)
	if err != nil {
		return nil, err
	}
	c := &nvq.Codec{
		Dimension: int(dimension),
		BitWidth:  int(bitWidth),
		Min:       make([]float32, dimension),
		Max:       make([]float32, dimension),
	}
	for d := 0; d < int(dimension); d++ {
		if err := binary.Read(r, binary.LittleEndian, &c.Min[d]); err != nil {
			return nil, verrors.Wrap(verrors.Io, err, "read min[%d]", d)
		}
		if err := binary.Read(r, binary.LittleEndian, &c.Max[d]); err != nil {
			return nil, verrors.Wrap(verrors.Io, err, "read max[%d]", d)
		}
	}
	return c, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return 0, verrors.Wrap(verrors.Io, err, "read uint32 field")
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}
