// Package diskformat implements the versioned, memory-mapped on-disk index
// layout of spec §4.I: a common header, a pluggable set of per-node
// "features" (inline vectors, fused-ADC neighbor codes, NVQ-compressed
// vectors, and their separated variants), layer-0 node records, and
// higher-layer adjacency arrays. Grounded on the teacher's
// HNSWIndex.Save/Load binary.Write framing and pkg/backup/wal.go's
// checksummed record layout, generalized to a single streaming pass with
// atomic publish via renameio.
package diskformat

import "github.com/gibram-io/vamana/pkg/verrors"

// Magic identifies a vamana on-disk index file.
var Magic = [4]byte{'V', 'A', 'M', 'A'}

// Version is the current on-disk format version this package writes.
// Versions 1-2 (single layer, no hierarchy) are still readable.
const Version = 3

// FeatureID enumerates the pluggable per-node payloads a file may carry,
// in the ascending order spec §4.I's table lists them.
type FeatureID uint32

const (
	InlineVectors FeatureID = iota
	FusedADC
	NVQVectors
	SeparatedVectors
	SeparatedNVQ
	featureCount
)

func (f FeatureID) String() string {
	switch f {
	case InlineVectors:
		return "inline_vectors"
	case FusedADC:
		return "fused_adc"
	case NVQVectors:
		return "nvq_vectors"
	case SeparatedVectors:
		return "separated_vectors"
	case SeparatedNVQ:
		return "separated_nvq"
	default:
		return "unknown_feature"
	}
}

// isInline reports whether this feature's per-node record is written
// inline in the layer0 node record stream (true) or in a separated blob at
// the end of the file (false).
func (f FeatureID) isInline() bool {
	return f == InlineVectors || f == FusedADC || f == NVQVectors
}

func validateFeatureBits(bits uint32) error {
	if bits>>uint(featureCount) != 0 {
		return verrors.New(verrors.IncompatibleVersion, "feature bitmask 0x%x sets unknown bits beyond id %d", bits, featureCount-1)
	}
	return nil
}

// LayerHeader is the per-layer {size, degree} pair in COMMON_HEADER.
type LayerHeader struct {
	Size   uint32
	Degree uint32
}

// CommonHeader is the fixed-shape header every version writes, followed by
// per-feature header blobs whose length depends on the feature.
type CommonHeader struct {
	Dimension    uint32
	EntryNode    uint32
	LayerCount   uint32
	Layers       []LayerHeader
	IDUpperBound uint32
	FeatureBits  uint32
}
