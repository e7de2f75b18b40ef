package diskformat

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/google/renameio/v2"

	"github.com/gibram-io/vamana/pkg/builder"
	"github.com/gibram-io/vamana/pkg/config"
	"github.com/gibram-io/vamana/pkg/verrors"
)

// Write serializes graph (plus any features) to path in one in-memory pass,
// then publishes it atomically via renameio so a reader never observes a
// partially-written file. renumbering, if non-nil, maps old (in-memory)
// ordinals to the compacted ordinals RemoveDeletedNodes computed; pass nil
// to keep ordinals as-is. Grounded on the teacher's HNSWIndex.Save
// binary.Write framing, generalized to a pluggable feature set and an
// end-of-file footer table so SEPARATED_* features don't need their offset
// known before the rest of the file is written.
//
// path's parent directory is sanitized through config.SanitizeDataDir and
// path itself validated to resolve inside it before anything is written,
// rejecting a destination under a disallowed filesystem root or one that
// escapes its own parent via ".." traversal.
func Write(graph *builder.OnHeapGraph, renumbering map[int]int, path string, features []FeatureSource) error {
	dataDir, err := config.SanitizeDataDir(filepath.Dir(path))
	if err != nil {
		return verrors.Wrap(verrors.InvalidArgument, err, "validate write destination %s", path)
	}
	path, err = config.ValidatePath(dataDir, path)
	if err != nil {
		return err
	}

	layerCount := graph.LevelCount()

	newOrd := func(old int) int {
		if renumbering == nil {
			return old
		}
		n, ok := renumbering[old]
		if !ok {
			return -1
		}
		return n
	}

	oldOrdinals := graph.Ordinals(0)
	sort.Ints(oldOrdinals)

	newToOld := make(map[int]int, len(oldOrdinals))
	idUpperBound := 0
	for _, old := range oldOrdinals {
		n := newOrd(old)
		if n < 0 {
			continue
		}
		newToOld[n] = old
		if n+1 > idUpperBound {
			idUpperBound = n + 1
		}
	}
	order := make([]int, 0, len(newToOld))
	for n := range newToOld {
		order = append(order, n)
	}
	sort.Ints(order)

	entryOld := graph.EntryNode(layerCount - 1)
	entryNew := 0
	if entryOld >= 0 {
		if n := newOrd(entryOld); n >= 0 {
			entryNew = n
		}
	}

	var bits uint32
	for _, f := range features {
		bits |= 1 << uint(f.ID())
	}
	if err := validateFeatureBits(bits); err != nil {
		return err
	}

	var inlineFeatures, separatedFeatures []FeatureSource
	for _, f := range features {
		if f.ID().isInline() {
			inlineFeatures = append(inlineFeatures, f)
		} else {
			separatedFeatures = append(separatedFeatures, f)
		}
	}

	var buf bytes.Buffer
	buf.Write(Magic[:])
	writeU32(&buf, Version)
	writeU32(&buf, uint32(graph.Dimension))
	writeU32(&buf, uint32(entryNew))
	writeU32(&buf, uint32(layerCount))
	for l := 0; l < layerCount; l++ {
		writeU32(&buf, uint32(len(graph.Ordinals(l))))
		writeU32(&buf, uint32(graph.MaxDegree(l)))
	}
	writeU32(&buf, uint32(idUpperBound))
	writeU32(&buf, bits)

	for _, f := range features {
		blob := f.HeaderBlob()
		writeU32(&buf, uint32(f.ID()))
		writeU32(&buf, uint32(len(blob)))
		buf.Write(blob)
	}

	// layer0 records are written in ascending new-ordinal order; each record
	// is [new_ordinal][old_id][degree][neighbor new-ordinals...][inline
	// feature payloads]. new_ordinal is redundant with record position only
	// when ordinals are contiguous post-compaction — writing it explicitly
	// keeps the reader's index build correct for the uncompacted case too.
	for _, n := range order {
		old := newToOld[n]
		neighbors := graph.NeighborsOf(0, old).Nodes
		writeU32(&buf, uint32(n))
		writeU32(&buf, uint32(old))
		writeU32(&buf, uint32(len(neighbors)))
		for _, nb := range neighbors {
			nn := newOrd(nb)
			if nn < 0 {
				nn = 0
			}
			writeU32(&buf, uint32(nn))
		}
		for _, f := range inlineFeatures {
			rec, err := f.RecordFor(old)
			if err != nil {
				return verrors.Wrap(verrors.Io, err, "encode %s record for node %d", f.ID(), old)
			}
			buf.Write(rec)
		}
	}

	for l := 1; l < layerCount; l++ {
		lvlOrdinals := graph.Ordinals(l)
		sort.Ints(lvlOrdinals)
		writeU32(&buf, uint32(len(lvlOrdinals)))
		for _, old := range lvlOrdinals {
			n := newOrd(old)
			if n < 0 {
				continue
			}
			neighbors := graph.NeighborsOf(l, old).Nodes
			writeU32(&buf, uint32(n))
			writeU32(&buf, uint32(len(neighbors)))
			for _, nb := range neighbors {
				nn := newOrd(nb)
				if nn < 0 {
					nn = 0
				}
				writeU32(&buf, uint32(nn))
			}
		}
	}

	type separatedEntry struct {
		id         FeatureID
		offset     uint32
		recordSize uint32
	}
	var entries []separatedEntry
	for _, f := range separatedFeatures {
		entries = append(entries, separatedEntry{id: f.ID(), offset: uint32(buf.Len()), recordSize: uint32(f.RecordSize())})
		for _, n := range order {
			old := newToOld[n]
			rec, err := f.RecordFor(old)
			if err != nil {
				return verrors.Wrap(verrors.Io, err, "encode %s record for node %d", f.ID(), old)
			}
			buf.Write(rec)
		}
	}

	footerStart := uint32(buf.Len())
	writeU32(&buf, uint32(len(entries)))
	for _, e := range entries {
		writeU32(&buf, uint32(e.id))
		writeU32(&buf, e.offset)
		writeU32(&buf, e.recordSize)
	}

	checksum := xxhash.Sum64(buf.Bytes())
	var trailer [16]byte
	binary.LittleEndian.PutUint64(trailer[0:8], checksum)
	binary.LittleEndian.PutUint64(trailer[8:16], uint64(footerStart))
	buf.Write(trailer[:])

	return renameio.WriteFile(path, buf.Bytes(), 0o644)
}
