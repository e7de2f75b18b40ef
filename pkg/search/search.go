// Package search implements the beam-search query engine: greedy best-first
// traversal with an approximate score function plus an optional exact
// reranker, resumable and bounded by either top-K or a similarity
// threshold, grounded on the teacher's searchLayer/searchLayerClosest and
// generalized to the spec's candidate-heap/result-heap/visited-bitset
// state machine (spec §4.H).
package search

import (
	"sort"

	"github.com/gibram-io/vamana/pkg/container"
	"github.com/gibram-io/vamana/pkg/metrics"
	"github.com/gibram-io/vamana/pkg/pool"
	"github.com/gibram-io/vamana/pkg/scorer"
	"github.com/gibram-io/vamana/pkg/verrors"
)

// GraphView is the read-only graph contract the searcher traverses — both
// builder.OnHeapGraph and a future on-disk-backed graph satisfy it.
type GraphView interface {
	LevelCount() int
	EntryNode(level int) int
	NeighborsOf(level, ord int) *container.NodeArray
	LiveCount() int
}

// AcceptFunc decides whether a candidate may appear in the result set. It
// does not gate traversal — a rejected node can still be expanded as an
// intermediate hop.
type AcceptFunc func(ord int) bool

// AcceptAll accepts every ordinal.
func AcceptAll(int) bool { return true }

// AcceptExcluding returns an AcceptFunc that rejects every ordinal set in
// excluded — the usual way to combine a deletion tombstone set into the
// accept mask, per spec §5's "callers wanting strict filtering must
// combine the deletion bit set into their accept mask".
func AcceptExcluding(excluded *container.FixedBitSet) AcceptFunc {
	return func(ord int) bool { return !excluded.Get(ord) }
}

// NodeScore is one (ordinal, score) result entry.
type NodeScore struct {
	Ord   int
	Score float32
}

// Result is the outcome of a search or search_threshold call.
type Result struct {
	Nodes        []NodeScore
	VisitedCount int
	WorstInTopK  float32
}

// Searcher holds the resumable traversal state for one query: the
// candidate frontier, the result heap, and the discovered-ordinal bitset.
// A fresh Searcher is created per query; Resume continues the same one.
type Searcher struct {
	graph      GraphView
	scorerFn   scorer.Scorer
	reranker   scorer.Scorer
	accept     AcceptFunc
	topK       int
	overqueryK int

	discovered   *container.GrowableBitSet
	candidates   *container.NodeQueue
	results      *container.NodeQueue
	visitedCount int
	drained      bool

	metrics *metrics.Collector
}

// SetMetrics attaches a collector that Search records the visited-count
// gauge and beam-width histogram into. Passing nil disables instrumentation.
func (sr *Searcher) SetMetrics(m *metrics.Collector) { sr.metrics = m }

// New creates a Searcher for one query, seeding the frontier at the entry
// node(s), descending through any higher hierarchy layers with a
// beamWidth=1 greedy traversal before beam-searching layer 0.
func New(graph GraphView, s scorer.Scorer, reranker scorer.Scorer, accept AcceptFunc, topK, overqueryK int) (*Searcher, error) {
	return newSearcher(graph, s, reranker, accept, topK, overqueryK, nil)
}

// NewWithScratch is New, but reuses a pool.SearchScratch bundle instead of
// allocating a fresh bitset and heaps — the hot path for a high-QPS
// searcher drawing scratch state from a pool.SearchScratchPool. Callers
// must return the bundle to the pool themselves once the Searcher (and any
// Resume calls on it) are done with it.
func NewWithScratch(graph GraphView, s scorer.Scorer, reranker scorer.Scorer, accept AcceptFunc, topK, overqueryK int, scratch *pool.SearchScratch) (*Searcher, error) {
	return newSearcher(graph, s, reranker, accept, topK, overqueryK, scratch)
}

func newSearcher(graph GraphView, s scorer.Scorer, reranker scorer.Scorer, accept AcceptFunc, topK, overqueryK int, scratch *pool.SearchScratch) (*Searcher, error) {
	if topK <= 0 {
		return nil, verrors.New(verrors.InvalidArgument, "topK must be positive, got %d", topK)
	}
	if overqueryK < topK {
		overqueryK = topK
	}
	if accept == nil {
		accept = AcceptAll
	}

	sr := &Searcher{
		graph:      graph,
		scorerFn:   s,
		reranker:   reranker,
		accept:     accept,
		topK:       topK,
		overqueryK: overqueryK,
	}
	if scratch != nil {
		sr.discovered = scratch.Discovered
		sr.candidates = scratch.Candidates
		sr.results = scratch.Results
	} else {
		sr.discovered = container.NewGrowableBitSet()
		sr.candidates = container.NewNodeQueue(container.MaxHeap, 0)
		sr.results = container.NewNodeQueue(container.MaxHeap, overqueryK)
	}

	if graph.LiveCount() == 0 {
		sr.drained = true
		return sr, nil
	}

	topLevel := graph.LevelCount() - 1
	entry := graph.EntryNode(topLevel)
	if entry < 0 {
		sr.drained = true
		return sr, nil
	}

	for l := topLevel; l > 0; l-- {
		refined, err := sr.greedyStep(l, s, entry)
		if err != nil {
			return nil, err
		}
		entry = refined
	}

	score, err := s.SimilarityTo(entry)
	if err != nil {
		return nil, verrors.Wrap(verrors.Io, err, "score entry node %d", entry)
	}
	sr.discover(entry, score)
	return sr, nil
}

// greedyStep performs one beamWidth=1 descent at level: move to the best
// unvisited-by-this-step neighbor of entry, or stay if none scores higher.
func (sr *Searcher) greedyStep(level int, s scorer.Scorer, entry int) (int, error) {
	best := entry
	bestScore, err := s.SimilarityTo(entry)
	if err != nil {
		return 0, verrors.Wrap(verrors.Io, err, "score node %d", entry)
	}
	changed := true
	for changed {
		changed = false
		for _, n := range sr.graph.NeighborsOf(level, best).Nodes {
			score, err := s.SimilarityTo(n)
			if err != nil {
				return 0, verrors.Wrap(verrors.Io, err, "score node %d", n)
			}
			if score > bestScore {
				best, bestScore, changed = n, score, true
			}
		}
	}
	return best, nil
}

func (sr *Searcher) discover(ord int, score float32) {
	sr.discovered.Set(ord)
	sr.candidates.Push(ord, score)
	if sr.accept(ord) {
		sr.results.Push(ord, score)
	}
}

// Search drains the layer-0 frontier until topK results are found and no
// remaining candidate can improve on the worst result, then reranks if a
// reranker was supplied and the search scorer is approximate.
func (sr *Searcher) Search() (Result, error) {
	for !sr.drained && sr.candidates.Len() > 0 {
		cur, curScore, _ := sr.candidates.Pop()
		if sr.results.Len() >= sr.overqueryK {
			_, worst, _ := sr.results.PeekWorst()
			if curScore < worst {
				break
			}
		}
		sr.visitedCount++
		for _, n := range sr.graph.NeighborsOf(0, cur).Nodes {
			if sr.discovered.Get(n) {
				continue
			}
			score, err := sr.scorerFn.SimilarityTo(n)
			if err != nil {
				return Result{}, verrors.Wrap(verrors.Io, err, "score node %d", n)
			}
			sr.discover(n, score)
		}
	}
	if sr.candidates.Len() == 0 {
		sr.drained = true
	}
	if sr.metrics != nil {
		sr.metrics.Gauge("search.visited_count", int64(sr.visitedCount))
		sr.metrics.Histogram("search.beam_width", float64(sr.candidates.Len()))
	}
	return sr.finalize()
}

func (sr *Searcher) finalize() (Result, error) {
	sorted := sr.results.ToSortedNodeArray()
	// ToSortedNodeArray drains sr.results; rebuild it so a subsequent Resume
	// still has the frontier it needs.
	for i, n := range sorted.Nodes {
		sr.results.Push(n, sorted.Scores[i])
	}

	nodes := make([]NodeScore, 0, sorted.Len())
	if sr.reranker != nil && !sr.scorerFn.IsExact() {
		take := sorted.Len()
		if take > sr.overqueryK {
			take = sr.overqueryK
		}
		reranked := make([]NodeScore, 0, take)
		for i := 0; i < take; i++ {
			score, err := sr.reranker.SimilarityTo(sorted.Nodes[i])
			if err != nil {
				return Result{}, verrors.Wrap(verrors.Io, err, "rerank node %d", sorted.Nodes[i])
			}
			reranked = append(reranked, NodeScore{Ord: sorted.Nodes[i], Score: score})
		}
		sort.Slice(reranked, func(i, j int) bool {
			if reranked[i].Score != reranked[j].Score {
				return reranked[i].Score > reranked[j].Score
			}
			return reranked[i].Ord < reranked[j].Ord
		})
		if len(reranked) > sr.topK {
			reranked = reranked[:sr.topK]
		}
		nodes = reranked
	} else {
		limit := sorted.Len()
		if limit > sr.topK {
			limit = sr.topK
		}
		for i := 0; i < limit; i++ {
			nodes = append(nodes, NodeScore{Ord: sorted.Nodes[i], Score: sorted.Scores[i]})
		}
	}

	worst := float32(0)
	if len(nodes) > 0 {
		worst = nodes[len(nodes)-1].Score
	}
	return Result{Nodes: nodes, VisitedCount: sr.visitedCount, WorstInTopK: worst}, nil
}

// Resume continues a drained-or-not search to produce up to moreK further
// results beyond the previous call's topK, reusing the preserved
// candidate/result/discovered state.
func (sr *Searcher) Resume(moreK int) (Result, error) {
	sr.topK += moreK
	if sr.overqueryK < sr.topK {
		sr.overqueryK = sr.topK
		sr.results = growResultCapacity(sr.results, sr.overqueryK)
	}
	return sr.Search()
}

func growResultCapacity(old *container.NodeQueue, capacity int) *container.NodeQueue {
	grown := container.NewNodeQueue(container.MaxHeap, capacity)
	for old.Len() > 0 {
		node, score, _ := old.Pop()
		grown.Push(node, score)
	}
	return grown
}

// ThresholdSearch implements search_threshold (spec §4.H): traversal
// without a topK bound, returning every visited node whose final score is
// >= threshold. patience is the number of consecutive below-threshold pops
// tolerated before giving up — the tunable the spec's open question on
// search_threshold's termination criterion calls for; 1 is correct for an
// admissible (monotonically non-increasing) scorer, higher values trade
// extra traversal for recall against a non-admissible one.
func ThresholdSearch(graph GraphView, s scorer.Scorer, reranker scorer.Scorer, accept AcceptFunc, threshold float32, patience int) (Result, error) {
	if patience <= 0 {
		patience = 1
	}
	if accept == nil {
		accept = AcceptAll
	}
	if graph.LiveCount() == 0 {
		return Result{}, nil
	}

	topLevel := graph.LevelCount() - 1
	entry := graph.EntryNode(topLevel)
	if entry < 0 {
		return Result{}, nil
	}

	sr := &Searcher{
		graph:      graph,
		scorerFn:   s,
		accept:     accept,
		discovered: container.NewGrowableBitSet(),
		candidates: container.NewNodeQueue(container.MaxHeap, 0),
	}
	for l := topLevel; l > 0; l-- {
		refined, err := sr.greedyStep(l, s, entry)
		if err != nil {
			return Result{}, err
		}
		entry = refined
	}
	entryScore, err := s.SimilarityTo(entry)
	if err != nil {
		return Result{}, verrors.Wrap(verrors.Io, err, "score entry node %d", entry)
	}
	sr.discovered.Set(entry)
	sr.candidates.Push(entry, entryScore)

	var accepted []NodeScore
	if accept(entry) && entryScore >= threshold {
		accepted = append(accepted, NodeScore{Ord: entry, Score: entryScore})
	}

	stale := 0
	for sr.candidates.Len() > 0 {
		cur, curScore, _ := sr.candidates.Pop()
		if curScore < threshold {
			stale++
			if stale >= patience {
				break
			}
		} else {
			stale = 0
		}
		sr.visitedCount++
		for _, n := range graph.NeighborsOf(0, cur).Nodes {
			if sr.discovered.Get(n) {
				continue
			}
			sr.discovered.Set(n)
			score, err := s.SimilarityTo(n)
			if err != nil {
				return Result{}, verrors.Wrap(verrors.Io, err, "score node %d", n)
			}
			sr.candidates.Push(n, score)
			if accept(n) && score >= threshold {
				accepted = append(accepted, NodeScore{Ord: n, Score: score})
			}
		}
	}

	if reranker != nil && !s.IsExact() {
		rescored := make([]NodeScore, 0, len(accepted))
		for _, ns := range accepted {
			score, err := reranker.SimilarityTo(ns.Ord)
			if err != nil {
				return Result{}, verrors.Wrap(verrors.Io, err, "rerank node %d", ns.Ord)
			}
			if score >= threshold {
				rescored = append(rescored, NodeScore{Ord: ns.Ord, Score: score})
			}
		}
		accepted = rescored
	}

	sort.Slice(accepted, func(i, j int) bool {
		if accepted[i].Score != accepted[j].Score {
			return accepted[i].Score > accepted[j].Score
		}
		return accepted[i].Ord < accepted[j].Ord
	})

	worst := float32(0)
	if len(accepted) > 0 {
		worst = accepted[len(accepted)-1].Score
	}
	return Result{Nodes: accepted, VisitedCount: sr.visitedCount, WorstInTopK: worst}, nil
}
