package container

import "sort"

// DuplicateIndex is returned by InsertSorted when node is already present;
// no insertion happens and the existing index is returned.
const DuplicateIndex = -1

// NodeArray is a bounded-capacity, score-descending parallel array of
// (node, score) pairs — the representation used for both a node's published
// neighbor list and RobustPrune's working candidate set. Ties are broken by
// smallest ordinal first so merges are deterministic.
type NodeArray struct {
	Nodes  []int
	Scores []float32
	cap    int
}

// NewNodeArray creates an empty array with the given capacity hint. capacity
// <= 0 means unbounded (growable).
func NewNodeArray(capacity int) *NodeArray {
	return &NodeArray{cap: capacity}
}

func less(scoreA float32, nodeA int, scoreB float32, nodeB int) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	return nodeA < nodeB
}

// Len returns the current number of entries.
func (a *NodeArray) Len() int { return len(a.Nodes) }

// Contains reports whether node is already present.
func (a *NodeArray) Contains(node int) bool {
	for _, n := range a.Nodes {
		if n == node {
			return true
		}
	}
	return false
}

// AddInOrder appends (node, score) assuming the caller guarantees scores are
// supplied in non-increasing order; it panics otherwise, since that
// invariant is what lets this path skip the sorted-insert search.
func (a *NodeArray) AddInOrder(node int, score float32) {
	if n := len(a.Scores); n > 0 && score > a.Scores[n-1] {
		panic("container: AddInOrder requires non-increasing scores")
	}
	a.Nodes = append(a.Nodes, node)
	a.Scores = append(a.Scores, score)
}

// InsertSorted inserts (node, score) maintaining score-descending order,
// returning the index it was inserted at, or DuplicateIndex if node is
// already present (the array is left unchanged).
func (a *NodeArray) InsertSorted(node int, score float32) int {
	if a.Contains(node) {
		return DuplicateIndex
	}
	idx := sort.Search(len(a.Nodes), func(i int) bool {
		return less(score, node, a.Scores[i], a.Nodes[i]) || (score == a.Scores[i] && node == a.Nodes[i])
	})
	a.Nodes = append(a.Nodes, 0)
	a.Scores = append(a.Scores, 0)
	copy(a.Nodes[idx+1:], a.Nodes[idx:len(a.Nodes)-1])
	copy(a.Scores[idx+1:], a.Scores[idx:len(a.Scores)-1])
	a.Nodes[idx] = node
	a.Scores[idx] = score
	if a.cap > 0 && len(a.Nodes) > a.cap {
		a.RemoveLast()
	}
	return idx
}

// RemoveIndex removes the entry at idx.
func (a *NodeArray) RemoveIndex(idx int) {
	a.Nodes = append(a.Nodes[:idx], a.Nodes[idx+1:]...)
	a.Scores = append(a.Scores[:idx], a.Scores[idx+1:]...)
}

// RemoveLast removes the lowest-scoring (last) entry.
func (a *NodeArray) RemoveLast() {
	if len(a.Nodes) == 0 {
		return
	}
	a.Nodes = a.Nodes[:len(a.Nodes)-1]
	a.Scores = a.Scores[:len(a.Scores)-1]
}

// Retain keeps only entries for which keep(node) returns true, preserving
// order.
func (a *NodeArray) Retain(keep func(node int) bool) {
	nodes := a.Nodes[:0]
	scores := a.Scores[:0]
	for i, n := range a.Nodes {
		if keep(n) {
			nodes = append(nodes, n)
			scores = append(scores, a.Scores[i])
		}
	}
	a.Nodes = nodes
	a.Scores = scores
}

// Clone returns an independent copy.
func (a *NodeArray) Clone() *NodeArray {
	out := &NodeArray{cap: a.cap}
	out.Nodes = append([]int(nil), a.Nodes...)
	out.Scores = append([]float32(nil), a.Scores...)
	return out
}

// Merge returns a new NodeArray containing the deduplicated union of a and
// other, sorted by score descending (ties by smallest ordinal). When a node
// appears in both, the higher score is kept — the spec's prescribed
// tie-break for mergeNeighbors (duplicate-by-node, keep-higher-score).
func Merge(a, other *NodeArray) *NodeArray {
	best := make(map[int]float32, a.Len()+other.Len())
	for i, n := range a.Nodes {
		best[n] = a.Scores[i]
	}
	for i, n := range other.Nodes {
		if s, ok := best[n]; !ok || other.Scores[i] > s {
			best[n] = other.Scores[i]
		}
	}
	out := &NodeArray{cap: a.cap}
	out.Nodes = make([]int, 0, len(best))
	out.Scores = make([]float32, 0, len(best))
	for n, s := range best {
		out.Nodes = append(out.Nodes, n)
		out.Scores = append(out.Scores, s)
	}
	sort.Sort(byScoreDesc{out})
	return out
}

type byScoreDesc struct{ a *NodeArray }

func (b byScoreDesc) Len() int { return len(b.a.Nodes) }
func (b byScoreDesc) Less(i, j int) bool {
	return less(b.a.Scores[i], b.a.Nodes[i], b.a.Scores[j], b.a.Nodes[j])
}
func (b byScoreDesc) Swap(i, j int) {
	b.a.Nodes[i], b.a.Nodes[j] = b.a.Nodes[j], b.a.Nodes[i]
	b.a.Scores[i], b.a.Scores[j] = b.a.Scores[j], b.a.Scores[i]
}
