// Package nvq implements a non-uniform per-dimension vector quantizer: each
// dimension is linearly rescaled into its own observed [min,max] range and
// packed into a configurable bit width, trading reconstruction accuracy for
// a compact, fixed-size on-disk record. Grounded on the PQ codebook/encode
// split in pkg/pq, generalized from subspace codebooks to a per-dimension
// scalar codec.
package nvq

import "github.com/gibram-io/vamana/pkg/verrors"

// Codec is a trained per-dimension scalar quantizer.
type Codec struct {
	Dimension int
	BitWidth  int // 1..8, bits per dimension
	Min       []float32
	Max       []float32
}

// Train fits Min/Max ranges per dimension from sample vectors at the given
// bit width.
func Train(vectors [][]float32, dimension, bitWidth int) (*Codec, error) {
	if bitWidth < 1 || bitWidth > 8 {
		return nil, verrors.New(verrors.InvalidArgument, "bit width %d out of supported range [1,8]", bitWidth)
	}
	c := &Codec{
		Dimension: dimension,
		BitWidth:  bitWidth,
		Min:       make([]float32, dimension),
		Max:       make([]float32, dimension),
	}
	for d := 0; d < dimension; d++ {
		c.Min[d] = 0
		c.Max[d] = 0
	}
	first := true
	for _, v := range vectors {
		if len(v) != dimension {
			return nil, verrors.New(verrors.InvalidArgument, "vector has dimension %d, expected %d", len(v), dimension)
		}
		for d, x := range v {
			if first || x < c.Min[d] {
				c.Min[d] = x
			}
			if first || x > c.Max[d] {
				c.Max[d] = x
			}
		}
		first = false
	}
	for d := 0; d < dimension; d++ {
		if c.Max[d] == c.Min[d] {
			c.Max[d] = c.Min[d] + 1
		}
	}
	return c, nil
}

// RecordSize returns the fixed packed-record size in bytes for Dimension
// scalars at BitWidth bits each.
func (c *Codec) RecordSize() int {
	bits := c.Dimension * c.BitWidth
	return (bits + 7) / 8
}

func (c *Codec) levels() uint32 {
	return (uint32(1) << uint(c.BitWidth)) - 1
}

// Encode packs vec into a RecordSize()-byte big-endian bitstream of
// per-dimension levels.
func (c *Codec) Encode(vec []float32) ([]byte, error) {
	if len(vec) != c.Dimension {
		return nil, verrors.New(verrors.InvalidArgument, "vector has dimension %d, expected %d", len(vec), c.Dimension)
	}
	out := make([]byte, c.RecordSize())
	levels := c.levels()
	var bitPos uint
	for d, x := range vec {
		frac := (x - c.Min[d]) / (c.Max[d] - c.Min[d])
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		level := uint32(frac*float32(levels) + 0.5)
		for b := c.BitWidth - 1; b >= 0; b-- {
			bit := (level >> uint(b)) & 1
			if bit != 0 {
				out[bitPos/8] |= 1 << uint(7-bitPos%8)
			}
			bitPos++
		}
	}
	return out, nil
}

// Decode reconstructs an approximate vector from a packed record.
func (c *Codec) Decode(record []byte) []float32 {
	out := make([]float32, c.Dimension)
	levels := float32(c.levels())
	var bitPos uint
	for d := 0; d < c.Dimension; d++ {
		var level uint32
		for b := 0; b < c.BitWidth; b++ {
			byteVal := record[bitPos/8]
			bit := (byteVal >> uint(7-bitPos%8)) & 1
			level = (level << 1) | uint32(bit)
			bitPos++
		}
		frac := float32(level) / levels
		out[d] = c.Min[d] + frac*(c.Max[d]-c.Min[d])
	}
	return out
}
