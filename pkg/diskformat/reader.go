package diskformat

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/blevesearch/mmap-go"
	"github.com/cespare/xxhash/v2"

	"github.com/gibram-io/vamana/pkg/container"
	"github.com/gibram-io/vamana/pkg/verrors"
)

const trailerSize = 16 // 8-byte checksum + 8-byte footer offset

type separatedInfo struct {
	offset     uint32
	recordSize uint32
}

type layer0Record struct {
	offset int64 // byte offset of the record's first field (new_ordinal)
	oldID  int
	degree int
}

// View is a read-only, memory-mapped handle onto one index file. It holds
// no decoded copies of node data — every accessor computes a byte offset
// and slices directly into the mapped region, per the "no decompression on
// load" contract.
type View struct {
	file   *os.File
	handle mmap.MMap
	data   []byte

	Dimension    int
	EntryNode    int
	LayerCount   int
	Layers       []LayerHeader
	IDUpperBound int
	FeatureBits  uint32

	featureHeaders     map[FeatureID][]byte
	inlineFeatureOrder []FeatureID
	separated          map[FeatureID]separatedInfo

	layer0        []layer0Record // indexed by new ordinal, zero-value degree=-1 means absent
	higherLayers  []map[int]int64 // level -> new ordinal -> record offset (levels 1..LayerCount-1)
	rankByOrdinal []int           // new ordinal -> sequential position in the separated blobs
}

// Open mmaps path, validates the magic/version/checksum, and parses the
// header and node-record index. Versions 1-2 (no hierarchy, single layer)
// are accepted; the caller sees LayerCount==1 in that case. If the host
// cannot mmap the file (no mmap syscall, or it is rejected, e.g. a network
// filesystem), Open falls back to reading the whole file into one bounded
// buffer instead — every accessor below reads through v.data regardless of
// which path produced it, so the interface is unchanged either way.
func Open(path string) (*View, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, verrors.Wrap(verrors.Io, err, "open index file %s", path)
	}

	var data []byte
	var handle mmap.MMap
	if handle, err = mmap.Map(f, mmap.RDONLY, 0); err == nil {
		madviseRandom(handle)
		data = []byte(handle)
	} else {
		buffered, rerr := bufferedReadFallback(f)
		if rerr != nil {
			f.Close()
			return nil, verrors.Wrap(verrors.Io, rerr, "mmap index file %s (and buffered fallback failed)", path)
		}
		handle = nil
		data = buffered
	}

	v := &View{file: f, handle: handle, data: data}
	if err := v.parse(); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// bufferedReadFallback reads the whole file into one heap buffer, for hosts
// where Open cannot mmap. The buffer lives as long as the View itself, so
// it is not drawn from pkg/pool's scratch pools — those are for short-lived
// per-call allocations, not a long-lived index-sized buffer.
func bufferedReadFallback(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close unmaps the file (if mmapped) and releases the descriptor.
func (v *View) Close() error {
	var err error
	if v.handle != nil {
		err = v.handle.Unmap()
	}
	if v.file != nil {
		if cerr := v.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (v *View) parse() error {
	data := v.data
	if len(data) < 4+4+trailerSize {
		return verrors.New(verrors.Io, "index file too small to contain a header and trailer")
	}
	if string(data[0:4]) != string(Magic[:]) {
		return verrors.New(verrors.IncompatibleVersion, "index file missing VAMA magic")
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version < 1 || version > Version {
		return verrors.New(verrors.IncompatibleVersion, "index file version %d not supported (this reader handles 1..%d)", version, Version)
	}

	trailer := data[len(data)-trailerSize:]
	storedChecksum := binary.LittleEndian.Uint64(trailer[0:8])
	footerStart := binary.LittleEndian.Uint64(trailer[8:16])
	body := data[:len(data)-trailerSize]
	if xxhash.Sum64(body) != storedChecksum {
		return verrors.New(verrors.Corrupt, "index file checksum mismatch, file is corrupt or truncated")
	}

	off := int64(8)
	v.Dimension = int(readU32At(data, &off))
	v.EntryNode = int(readU32At(data, &off))
	v.LayerCount = int(readU32At(data, &off))
	v.Layers = make([]LayerHeader, v.LayerCount)
	for l := 0; l < v.LayerCount; l++ {
		v.Layers[l] = LayerHeader{Size: readU32At(data, &off), Degree: readU32At(data, &off)}
	}
	v.IDUpperBound = int(readU32At(data, &off))
	v.FeatureBits = readU32At(data, &off)
	if err := validateFeatureBits(v.FeatureBits); err != nil {
		return err
	}

	v.featureHeaders = make(map[FeatureID][]byte)
	for bit := FeatureID(0); bit < featureCount; bit++ {
		if v.FeatureBits&(1<<uint(bit)) == 0 {
			continue
		}
		id := FeatureID(readU32At(data, &off))
		blobLen := readU32At(data, &off)
		v.featureHeaders[id] = data[off : off+int64(blobLen)]
		off += int64(blobLen)
		if id.isInline() {
			v.inlineFeatureOrder = append(v.inlineFeatureOrder, id)
		}
	}

	v.layer0 = make([]layer0Record, v.IDUpperBound)
	for i := range v.layer0 {
		v.layer0[i].degree = -1
	}
	v.rankByOrdinal = make([]int, v.IDUpperBound)
	for i := range v.rankByOrdinal {
		v.rankByOrdinal[i] = -1
	}

	layer0Size := int(v.Layers[0].Size)
	for rank := 0; rank < layer0Size; rank++ {
		recordStart := off
		n := int(readU32At(data, &off))
		oldID := int(readU32At(data, &off))
		degree := int(readU32At(data, &off))
		off += int64(degree) * 4 // skip neighbor ordinals, read on demand
		for _, fid := range v.inlineFeatureOrder {
			off += int64(v.recordSizeFor(fid))
		}
		if n >= 0 && n < len(v.layer0) {
			v.layer0[n] = layer0Record{offset: recordStart, oldID: oldID, degree: degree}
			v.rankByOrdinal[n] = rank
		}
	}

	if v.LayerCount > 1 {
		v.higherLayers = make([]map[int]int64, v.LayerCount)
		for l := 1; l < v.LayerCount; l++ {
			count := int(readU32At(data, &off))
			m := make(map[int]int64, count)
			for i := 0; i < count; i++ {
				recordStart := off
				n := int(readU32At(data, &off))
				degree := int(readU32At(data, &off))
				off += int64(degree) * 4
				m[n] = recordStart
			}
			v.higherLayers[l] = m
		}
	}

	v.separated = make(map[FeatureID]separatedInfo)
	fOff := int64(footerStart)
	count := int(readU32At(data, &fOff))
	for i := 0; i < count; i++ {
		id := FeatureID(readU32At(data, &fOff))
		offset := readU32At(data, &fOff)
		recordSize := readU32At(data, &fOff)
		v.separated[id] = separatedInfo{offset: offset, recordSize: recordSize}
	}
	return nil
}

func (v *View) recordSizeFor(fid FeatureID) int {
	switch fid {
	case InlineVectors, SeparatedVectors:
		return v.Dimension * 4
	case FusedADC:
		q, err := decodeQuantizer(v.featureHeaders[fid])
		if err != nil {
			return 0
		}
		return len(q.Subspaces) * maxFusedNeighbors
	case NVQVectors, SeparatedNVQ:
		c, err := decodeNVQCodec(v.featureHeaders[fid])
		if err != nil {
			return 0
		}
		return c.RecordSize()
	default:
		return 0
	}
}

func readU32At(data []byte, off *int64) uint32 {
	v := binary.LittleEndian.Uint32(data[*off : *off+4])
	*off += 4
	return v
}

// HasFeature reports whether the file carries the given feature.
func (v *View) HasFeature(id FeatureID) bool {
	return v.FeatureBits&(1<<uint(id)) != 0
}

// NeighborsOf returns the layer-0 (or higher layer, if level>0) neighbor
// list for ord, read directly from the mapped region.
func (v *View) NeighborsOf(level, ord int) (*container.NodeArray, error) {
	var recordOffset int64
	if level == 0 {
		if ord < 0 || ord >= len(v.layer0) || v.layer0[ord].degree < 0 {
			return container.NewNodeArray(0), nil
		}
		recordOffset = v.layer0[ord].offset + 8 // skip new_ordinal + old_id
	} else {
		if level >= len(v.higherLayers) {
			return nil, verrors.New(verrors.OutOfRange, "level %d exceeds layer count %d", level, v.LayerCount)
		}
		off, ok := v.higherLayers[level][ord]
		if !ok {
			return container.NewNodeArray(0), nil
		}
		recordOffset = off + 4 // skip new_ordinal
	}
	degree := int(binary.LittleEndian.Uint32(v.data[recordOffset : recordOffset+4]))
	recordOffset += 4
	out := container.NewNodeArray(degree)
	for i := 0; i < degree; i++ {
		n := int32(binary.LittleEndian.Uint32(v.data[recordOffset : recordOffset+4]))
		out.Nodes = append(out.Nodes, int(n))
		recordOffset += 4
	}
	return out, nil
}

// GetVector returns the INLINE_VECTORS or SEPARATED_VECTORS payload for
// ord, decoded into a float32 slice. Returns an error if neither feature is
// present in this file.
func (v *View) GetVector(ord int) ([]float32, error) {
	if v.HasFeature(InlineVectors) {
		rec, err := v.inlineFeatureRecord(ord, InlineVectors)
		if err != nil {
			return nil, err
		}
		return decodeFloats(rec), nil
	}
	if v.HasFeature(SeparatedVectors) {
		rec, err := v.separatedFeatureRecord(ord, SeparatedVectors)
		if err != nil {
			return nil, err
		}
		return decodeFloats(rec), nil
	}
	return nil, verrors.New(verrors.InvalidArgument, "index file carries neither INLINE_VECTORS nor SEPARATED_VECTORS")
}

// FeatureRecord returns the raw per-node bytes for any feature id, inline
// or separated, without interpreting them — the seam the builder's PQ/NVQ
// scorers read encoded codes through at query time.
func (v *View) FeatureRecord(ord int, id FeatureID) ([]byte, error) {
	if id.isInline() {
		return v.inlineFeatureRecord(ord, id)
	}
	return v.separatedFeatureRecord(ord, id)
}

func (v *View) inlineFeatureRecord(ord int, id FeatureID) ([]byte, error) {
	if !v.HasFeature(id) {
		return nil, verrors.New(verrors.InvalidArgument, "feature %s not present in this file", id)
	}
	if ord < 0 || ord >= len(v.layer0) || v.layer0[ord].degree < 0 {
		return nil, verrors.New(verrors.OutOfRange, "ordinal %d not present in layer0", ord)
	}
	rec := v.layer0[ord]
	cursor := rec.offset + 12 + int64(rec.degree)*4
	for _, fid := range v.inlineFeatureOrder {
		size := v.recordSizeFor(fid)
		if fid == id {
			return v.data[cursor : cursor+int64(size)], nil
		}
		cursor += int64(size)
	}
	return nil, verrors.New(verrors.InvalidArgument, "feature %s not present in this file", id)
}

func (v *View) separatedFeatureRecord(ord int, id FeatureID) ([]byte, error) {
	info, ok := v.separated[id]
	if !ok {
		return nil, verrors.New(verrors.InvalidArgument, "feature %s not present in this file", id)
	}
	if ord < 0 || ord >= len(v.rankByOrdinal) || v.rankByOrdinal[ord] < 0 {
		return nil, verrors.New(verrors.OutOfRange, "ordinal %d not present in layer0", ord)
	}
	rank := v.rankByOrdinal[ord]
	start := int64(info.offset) + int64(rank)*int64(info.recordSize)
	return v.data[start : start+int64(info.recordSize)], nil
}

// FeatureHeader returns the raw header blob for a feature (the trained PQ
// quantizer or NVQ codec), for callers that want to decode it themselves.
func (v *View) FeatureHeader(id FeatureID) ([]byte, bool) {
	b, ok := v.featureHeaders[id]
	return b, ok
}
