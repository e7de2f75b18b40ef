package cache

import (
	"github.com/gibram-io/vamana/pkg/builder"
	"github.com/gibram-io/vamana/pkg/diskformat"
	"github.com/gibram-io/vamana/pkg/source"
)

// DiskSource adapts a diskformat.View into a cache.Source, using whichever
// vector feature (INLINE_VECTORS or SEPARATED_VECTORS) the file carries.
type DiskSource struct {
	View *diskformat.View
}

func (d DiskSource) NeighborsOf(level, ord int) ([]int, error) {
	arr, err := d.View.NeighborsOf(level, ord)
	if err != nil {
		return nil, err
	}
	return arr.Nodes, nil
}

func (d DiskSource) Vector(ord int) ([]float32, error) { return d.View.GetVector(ord) }
func (d DiskSource) EntryNode(level int) int           { return d.View.EntryNode }

// BuildSource adapts an in-progress builder.OnHeapGraph plus its backing
// source.VectorSource into a cache.Source, letting a long-running build
// warm a cache without first serializing to disk.
type BuildSource struct {
	Graph *builder.OnHeapGraph
	Src   source.VectorSource
}

func (b BuildSource) NeighborsOf(level, ord int) ([]int, error) {
	return b.Graph.NeighborsOf(level, ord).Nodes, nil
}

func (b BuildSource) Vector(ord int) ([]float32, error) { return b.Src.Get(ord) }
func (b BuildSource) EntryNode(level int) int           { return b.Graph.EntryNode(level) }
