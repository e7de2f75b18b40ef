// Package cache implements the graph cache (spec §4.J): a breadth-first
// preload from the entry node out to a fixed depth, holding each visited
// node's neighbor list and vector in an unbounded hash map with no
// eviction. Grounded on the teacher's pkg/graph.BFSTraversal queue/visited
// walk, recombined with pkg/memory.Manager's cache-holds-decoded-payloads
// shape but without its LRU eviction — the spec's preload is a one-shot
// warm set sized by depth, not a steady-state memory-pressure cache.
package cache

import "github.com/gibram-io/vamana/pkg/verrors"

// DefaultDepth is the BFS preload depth used when callers don't override
// it (spec §4.J: "default 3").
const DefaultDepth = 3

// Source is the read-backed graph a cache preloads from — satisfied by
// diskformat.View or builder.OnHeapGraph wrapped with a vector lookup.
type Source interface {
	NeighborsOf(level, ord int) (nodes []int, err error)
	Vector(ord int) ([]float32, error)
	EntryNode(level int) int
}

// Entry is the cached payload for one node: its layer-0 neighbor ordinals
// and its vector.
type Entry struct {
	Neighbors []int
	Vector    []float32
}

// Cache holds every node discovered by a BFS preload from the entry node,
// keyed by ordinal, with no eviction — entries live until the Cache is
// discarded.
type Cache struct {
	depth   int
	entries map[int]Entry
}

// Warm runs the BFS preload over src starting at its level-0 entry node,
// out to depth hops, and returns the populated cache. depth <= 0 uses
// DefaultDepth.
func Warm(src Source, depth int) (*Cache, error) {
	if depth <= 0 {
		depth = DefaultDepth
	}
	c := &Cache{depth: depth, entries: make(map[int]Entry)}

	entry := src.EntryNode(0)
	if entry < 0 {
		return c, nil
	}

	hop := map[int]int{entry: 0}
	queue := []int{entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curHop := hop[cur]

		if _, ok := c.entries[cur]; !ok {
			vec, err := src.Vector(cur)
			if err != nil {
				return nil, verrors.Wrap(verrors.Io, err, "load vector for node %d during cache warm", cur)
			}
			neighbors, err := src.NeighborsOf(0, cur)
			if err != nil {
				return nil, verrors.Wrap(verrors.Io, err, "load neighbors for node %d during cache warm", cur)
			}
			c.entries[cur] = Entry{Neighbors: neighbors, Vector: vec}
		}

		if curHop >= depth {
			continue
		}
		for _, n := range c.entries[cur].Neighbors {
			if _, seen := hop[n]; !seen {
				hop[n] = curHop + 1
				queue = append(queue, n)
			}
		}
	}
	return c, nil
}

// Get returns the cached entry for ord, or false if it was never visited
// by the preload.
func (c *Cache) Get(ord int) (Entry, bool) {
	e, ok := c.entries[ord]
	return e, ok
}

// Len returns the number of cached nodes.
func (c *Cache) Len() int { return len(c.entries) }

// Depth returns the BFS depth this cache was warmed with.
func (c *Cache) Depth() int { return c.depth }
