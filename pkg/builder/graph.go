package builder

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gibram-io/vamana/pkg/container"
	"github.com/gibram-io/vamana/pkg/neighbor"
	"github.com/gibram-io/vamana/pkg/vecmath"
)

// OnHeapGraph is the in-memory result of a build: up to L layers, each with
// its own adjacency and entry node. Layer 0 contains every live node;
// higher layers are a geometric-probability subset used only to seed beam
// search (spec §3 Graph). New layers are appended rarely (only when a node
// samples a level above the current maximum), so a single RWMutex around
// the layer slice is cheap relative to the per-node sharded locking inside
// each level's adjacency.
type OnHeapGraph struct {
	Dimension  int
	Similarity vecmath.Similarity

	levelsMu sync.RWMutex
	Levels   []*levelGraph
}

type levelGraph struct {
	maxDegree int
	adjacency *shardedNeighborMap
	entryNode atomic.Int64 // -1 means empty
	size      atomic.Int64
}

func newLevelGraph(maxDegree int) *levelGraph {
	lg := &levelGraph{maxDegree: maxDegree, adjacency: newShardedNeighborMap()}
	lg.entryNode.Store(-1)
	return lg
}

func (g *OnHeapGraph) levelAt(level int) *levelGraph {
	g.levelsMu.RLock()
	defer g.levelsMu.RUnlock()
	return g.Levels[level]
}

// EntryNode returns the current entry node for a level, or -1 if the level
// is empty.
func (g *OnHeapGraph) EntryNode(level int) int {
	return int(g.levelAt(level).entryNode.Load())
}

// NeighborsOf returns the published neighbor list for ord at level, or an
// empty NodeArray if ord has no entry yet at that level.
func (g *OnHeapGraph) NeighborsOf(level, ord int) *container.NodeArray {
	lg := g.levelAt(level)
	set, ok := lg.adjacency.get(ord)
	if !ok {
		return container.NewNodeArray(0)
	}
	return set.Load()
}

// LevelCount returns the number of layers in the graph.
func (g *OnHeapGraph) LevelCount() int {
	g.levelsMu.RLock()
	defer g.levelsMu.RUnlock()
	return len(g.Levels)
}

// LiveCount returns the approximate number of nodes installed at level 0.
func (g *OnHeapGraph) LiveCount() int {
	return int(g.levelAt(0).size.Load())
}

// MaxDegree returns the configured per-level degree bound.
func (g *OnHeapGraph) MaxDegree(level int) int { return g.levelAt(level).maxDegree }

// Ordinals returns every ordinal with a published adjacency entry at level,
// for callers that need to enumerate the graph (the disk writer's
// streaming pass, integrity tooling outside this package).
func (g *OnHeapGraph) Ordinals(level int) []int {
	lg := g.levelAt(level)
	var out []int
	lg.adjacency.forEach(func(ord int, _ *neighbor.Set) {
		out = append(out, ord)
	})
	return out
}

// ensureLevels grows the graph so that level index `level` exists, creating
// any intermediate layers with their geometrically-halved degree bound.
func (g *OnHeapGraph) ensureLevels(level int, maxDegreeForLevel func(int) int) {
	g.levelsMu.Lock()
	defer g.levelsMu.Unlock()
	for len(g.Levels) <= level {
		l := len(g.Levels)
		g.Levels = append(g.Levels, newLevelGraph(maxDegreeForLevel(l)))
	}
}

// ValidateIntegrity checks the invariants spec §8 tests for: degree bounds,
// sortedness, and (when deletionBits is supplied) that no neighbor list
// still references a deleted ordinal — ported from the teacher's
// ValidateIntegrity/validateIntegrityLocked.
func (g *OnHeapGraph) ValidateIntegrity(deletionBits *container.FixedBitSet) []string {
	g.levelsMu.RLock()
	levels := append([]*levelGraph(nil), g.Levels...)
	g.levelsMu.RUnlock()

	var problems []string
	for level, lg := range levels {
		level := level
		lg.adjacency.forEach(func(ord int, set *neighbor.Set) {
			list := set.Load()
			if list.Len() > lg.maxDegree {
				problems = append(problems, fmt.Sprintf("level %d node %d: degree %d exceeds maxDegree %d", level, ord, list.Len(), lg.maxDegree))
			}
			for i := 1; i < list.Len(); i++ {
				if list.Scores[i] > list.Scores[i-1] {
					problems = append(problems, fmt.Sprintf("level %d node %d: neighbor list not sorted descending", level, ord))
					break
				}
			}
			if deletionBits != nil {
				for _, n := range list.Nodes {
					if deletionBits.Get(n) {
						problems = append(problems, fmt.Sprintf("level %d node %d: neighbor list references deleted ordinal %d", level, ord, n))
					}
				}
			}
		})
	}
	return problems
}
