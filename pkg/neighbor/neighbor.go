// Package neighbor implements the per-node diverse neighbor set: a
// concurrently-updated, score-sorted, bounded-degree adjacency list with
// RobustPrune diversity pruning, generalized from the teacher's
// selectNeighbors/reconnectNeighbors pruning logic into the spec's
// optimistic publish-via-pointer-swap design.
package neighbor

import (
	"sync"
	"sync/atomic"

	"github.com/gibram-io/vamana/pkg/container"
)

// Scorer supplies the pairwise score between two ordinals, as seen from a
// fixed vantage point (the node a neighbor set belongs to). Implementations
// range over exact-from-vectors, PQ-approximate, and disk-backed variants;
// RobustPrune only needs score(a,b) to be callable any number of times.
type Scorer interface {
	Score(a, b int) float32
}

// Set holds the current published neighbor list for one node, plus a
// private scratch accumulator for in-flight inserts. Readers call Load to
// get an immutable snapshot; writers (InsertDiverse, MarkDangling,
// ReplaceIfOverflowing) swap in a new one atomically.
// This is the lock-free adjacency entry the spec's sharded concurrent map
// stores one of per live node.
type Set struct {
	published atomic.Pointer[container.NodeArray]
	mu        sync.Mutex // guards the scratch accumulator only
	scratch   *container.NodeArray
	maxDegree int
}

// NewSet creates an empty neighbor set with the given per-level maxDegree.
func NewSet(maxDegree int) *Set {
	s := &Set{maxDegree: maxDegree}
	s.published.Store(container.NewNodeArray(0))
	s.scratch = container.NewNodeArray(0)
	return s
}

// Load returns the current published neighbor list. The returned NodeArray
// is treated as immutable by convention — callers must not mutate it.
func (s *Set) Load() *container.NodeArray {
	return s.published.Load()
}

// Insert appends a candidate to the private scratch list, used by step 5 of
// addGraphNode ("for each selected neighbor n, call n.insert(ord, score)").
func (s *Set) Insert(candidate int, score float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scratch.InsertSorted(candidate, score)
}

// InsertDiverse merges natural and concurrent candidate sources with the
// existing published neighbors, applies RobustPrune with the given
// diversity factor alphaDiversity, and publishes the pruned result with release
// semantics so subsequent readers observe it via an acquire-load.
func (s *Set) InsertDiverse(natural, concurrent *container.NodeArray, scorer Scorer, self int, alphaDiversity float32) {
	s.mu.Lock()
	merged := container.Merge(s.published.Load(), natural)
	merged = container.Merge(merged, concurrent)
	merged = container.Merge(merged, s.scratch)
	s.scratch = container.NewNodeArray(0)
	s.mu.Unlock()

	pruned := RobustPrune(self, merged, scorer, s.maxDegree, alphaDiversity)
	s.published.Store(pruned)
}

// MarkDangling prunes entries whose ordinal is in removed and returns the
// new size after pruning; a cleanup pass compares that size against
// maxDegree to decide whether this node needs a refill scan.
func (s *Set) MarkDangling(removed *container.FixedBitSet) int {
	for {
		old := s.published.Load()
		pruned := old.Clone()
		pruned.Retain(func(node int) bool { return !removed.Get(node) })
		if s.published.CompareAndSwap(old, pruned) {
			return pruned.Len()
		}
	}
}

// ReplaceIfOverflowing atomically replaces the published list with a
// RobustPrune-repacked version when it exceeds the overflow bound
// ceil(alphaOverflow*maxDegree), matching step 5's "if n's published list
// exceeds α_o·maxDegree, immediately RobustPrune it back to maxDegree".
// Returns true if a re-prune happened.
func (s *Set) ReplaceIfOverflowing(scorer Scorer, self int, alphaOverflow, alphaDiversity float32) bool {
	overflowBound := int(alphaOverflow*float32(s.maxDegree) + 0.999999)
	for {
		old := s.published.Load()
		merged := container.Merge(old, s.drainScratch())
		if merged.Len() <= overflowBound {
			if merged.Len() != old.Len() {
				if s.published.CompareAndSwap(old, merged) {
					return false
				}
				continue
			}
			return false
		}
		pruned := RobustPrune(self, merged, scorer, s.maxDegree, alphaDiversity)
		if s.published.CompareAndSwap(old, pruned) {
			return true
		}
	}
}

func (s *Set) drainScratch() *container.NodeArray {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.scratch
	s.scratch = container.NewNodeArray(0)
	return drained
}

// RobustPrune implements DiskANN's diversity-pruned neighbor selection:
// iterate candidates best-score-first, accept c iff for every already
// accepted a, score(a,c) <= alpha*score(self,c); stop once maxDegree are
// accepted. candidates must already be sorted by score descending (the
// caller's merged NodeArray always is).
func RobustPrune(self int, candidates *container.NodeArray, scorer Scorer, maxDegree int, alpha float32) *container.NodeArray {
	accepted := container.NewNodeArray(maxDegree)
	for i, c := range candidates.Nodes {
		if c == self {
			continue
		}
		scoreSelfC := candidates.Scores[i]
		diverse := true
		for _, a := range accepted.Nodes {
			if scorer.Score(a, c) > alpha*scoreSelfC {
				diverse = false
				break
			}
		}
		if diverse {
			accepted.InsertSorted(c, scoreSelfC)
			if accepted.Len() >= maxDegree {
				break
			}
		}
	}
	return accepted
}
