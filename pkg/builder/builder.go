// Package builder implements the concurrent incremental graph builder: the
// teacher's HNSWIndex.Add/Remove generalized to the diverse-neighbor,
// optimistic-publish design of spec §4.G. Nodes are inserted one at a time
// while concurrent searches run; a bounded-degree diverse neighbor set per
// node is maintained via RobustPrune, with tombstone deletion and parallel
// compaction.
package builder

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/gibram-io/vamana/pkg/container"
	"github.com/gibram-io/vamana/pkg/logging"
	"github.com/gibram-io/vamana/pkg/metrics"
	"github.com/gibram-io/vamana/pkg/neighbor"
	"github.com/gibram-io/vamana/pkg/pool"
	"github.com/gibram-io/vamana/pkg/scorer"
	"github.com/gibram-io/vamana/pkg/source"
	"github.com/gibram-io/vamana/pkg/verrors"
)

// Config bundles the construction-time tunables spec §4.G names:
// maxDegree, beamWidth, the neighbor-overflow factor α_o, the
// diversity-relaxation factor α_d, and whether to maintain the optional
// hierarchy of geometrically-shrinking layers above layer 0.
type Config struct {
	MaxDegree      int
	BeamWidth      int
	AlphaOverflow  float32
	AlphaDiversity float32
	Hierarchy      bool
	// IDUpperBound bounds the ordinal space; AddGraphNode rejects ord >=
	// IDUpperBound with OutOfRange. Mirrors the on-disk header's
	// id_upper_bound field (spec §4.I).
	IDUpperBound int
}

func (c Config) maxDegreeForLevel(level int) int {
	d := c.MaxDegree
	for i := 0; i < level; i++ {
		d /= 2
		if d < 4 {
			return 4
		}
	}
	return d
}

// Builder incrementally constructs an OnHeapGraph. Safe for concurrent
// AddGraphNode/MarkNodeDeleted/search calls; Cleanup serializes against
// itself only, not against concurrent inserts or searches.
type Builder struct {
	cfg      Config
	provider scorer.BuildScoreProvider
	graph    *OnHeapGraph
	deleted  *container.AtomicBitSet
	cleanup  sync.Mutex
	vectors  *pool.VectorPool

	metrics *metrics.Collector
	logger  *logging.Logger
}

// vectorPoolSetter is implemented by BuildScoreProvider types willing to
// draw their SearchProviderForNode vantage-vector copies from a shared
// pool.VectorPool rather than allocating one per call. Not part of the
// BuildScoreProvider interface itself, since not every provider needs it.
type vectorPoolSetter interface {
	SetVectorPool(*pool.VectorPool)
}

// SetMetrics attaches a collector that AddGraphNode records its latency
// histogram and overflow-prune counter into; Cleanup records no metrics.
// Passing nil disables
// instrumentation (the default).
func (b *Builder) SetMetrics(m *metrics.Collector) { b.metrics = m }

// SetLogger attaches a logger for cleanup/compaction diagnostics. Passing
// nil disables logging (the default).
func (b *Builder) SetLogger(l *logging.Logger) { b.logger = l }

// New validates cfg and returns an empty Builder over a fresh single-layer
// OnHeapGraph (more layers are added lazily as nodes sample them, when
// cfg.Hierarchy is set).
func New(provider scorer.BuildScoreProvider, dimension int, cfg Config) (*Builder, error) {
	if dimension <= 0 {
		return nil, verrors.New(verrors.InvalidArgument, "dimension must be positive, got %d", dimension)
	}
	if cfg.MaxDegree <= 0 {
		return nil, verrors.New(verrors.InvalidArgument, "maxDegree must be positive, got %d", cfg.MaxDegree)
	}
	if cfg.BeamWidth <= 0 {
		cfg.BeamWidth = cfg.MaxDegree
	}
	if cfg.AlphaOverflow <= 0 {
		cfg.AlphaOverflow = 1.2
	}
	if cfg.AlphaDiversity <= 0 {
		cfg.AlphaDiversity = 1.2
	}
	if cfg.IDUpperBound <= 0 {
		return nil, verrors.New(verrors.InvalidArgument, "idUpperBound must be positive, got %d", cfg.IDUpperBound)
	}

	graph := &OnHeapGraph{
		Dimension:  dimension,
		Similarity: provider.Similarity(),
		Levels:     []*levelGraph{newLevelGraph(cfg.MaxDegree)},
	}
	vectors := pool.NewVectorPool()
	if vp, ok := provider.(vectorPoolSetter); ok {
		vp.SetVectorPool(vectors)
	}
	return &Builder{
		cfg:      cfg,
		provider: provider,
		graph:    graph,
		deleted:  container.NewAtomicBitSet(cfg.IDUpperBound),
		vectors:  vectors,
	}, nil
}

// Graph returns the OnHeapGraph under construction. Callers must not mutate
// it directly; all structural changes go through the Builder.
func (b *Builder) Graph() *OnHeapGraph { return b.graph }

// AddGraphNode inserts ord with vector vec, per spec §4.G steps 1-6.
func (b *Builder) AddGraphNode(ord int, vec []float32) error {
	if b.metrics != nil {
		start := time.Now()
		defer func() { b.metrics.Histogram("builder.insert_latency_ms", float64(time.Since(start).Microseconds())/1000) }()
	}
	if ord < 0 || ord >= b.cfg.IDUpperBound {
		return verrors.New(verrors.OutOfRange, "ordinal %d exceeds id upper bound %d", ord, b.cfg.IDUpperBound)
	}
	if len(vec) != b.graph.Dimension {
		return verrors.New(verrors.InvalidArgument, "vector has dimension %d, graph expects %d", len(vec), b.graph.Dimension)
	}

	// Step 1: empty-graph bootstrap.
	if b.installIfEmpty(ord) {
		return nil
	}

	pair, err := b.provider.SearchProviderForQuery(vec)
	if err != nil {
		return err
	}
	diversity := newDiversityScorer(b.provider)
	defer diversity.Close()

	// Step 2: sample this node's top level.
	level := b.sampleLevel()
	topBefore := b.graph.LevelCount() - 1
	if level > topBefore {
		b.graph.ensureLevels(level, b.cfg.maxDegreeForLevel)
	}

	entry := b.graph.EntryNode(topBefore)
	if entry == -1 {
		entry = ord
	}

	// Step 3: greedy descent (beamWidth=1) down to level+1, then a full
	// beam search of width BeamWidth at each level from level to 0.
	for l := topBefore; l > level; l-- {
		refined, _, err := b.beamSearchLevel(l, pair.Search, entry, 1)
		if err != nil {
			return err
		}
		if refined.Len() > 0 {
			entry = refined.Nodes[0]
		}
	}

	startLevel := level
	if startLevel > topBefore {
		startLevel = topBefore
	}
	for l := startLevel; l >= 0; l-- {
		candidates, _, err := b.beamSearchLevel(l, pair.Search, entry, b.cfg.BeamWidth)
		if err != nil {
			return err
		}
		if candidates.Len() > 0 {
			entry = candidates.Nodes[0]
		}

		maxDegree := b.graph.MaxDegree(l)

		// Step 4: RobustPrune candidates into ord's neighbor set and publish.
		pruned := neighbor.RobustPrune(ord, candidates, diversity, maxDegree, b.cfg.AlphaDiversity)
		set := b.getOrCreate(l, ord, maxDegree)
		set.InsertDiverse(pruned, container.NewNodeArray(0), diversity, ord, b.cfg.AlphaDiversity)

		// Step 5: offer ord back to each selected neighbor; re-prune on
		// overflow past α_o·maxDegree.
		for i, n := range pruned.Nodes {
			score := pruned.Scores[i]
			nset := b.getOrCreate(l, n, maxDegree)
			nset.Insert(ord, score)
			if overflowed := nset.ReplaceIfOverflowing(diversity, n, b.cfg.AlphaOverflow, b.cfg.AlphaDiversity); overflowed && b.metrics != nil {
				b.metrics.Counter("builder.overflow_prunes", 1)
			}
		}

		b.graph.levelAt(l).size.Add(1)
	}

	// Step 6: promote ord to entry only for the newly created levels above
	// the prior top; existing lower levels keep whatever entry they had.
	if level > topBefore {
		for l := topBefore + 1; l <= level; l++ {
			b.graph.levelAt(l).entryNode.Store(int64(ord))
		}
	}

	return nil
}

func (b *Builder) installIfEmpty(ord int) bool {
	lg := b.graph.levelAt(0)
	if lg.entryNode.CompareAndSwap(-1, int64(ord)) {
		b.getOrCreate(0, ord, lg.maxDegree)
		lg.size.Add(1)
		return true
	}
	return false
}

func (b *Builder) getOrCreate(level, ord, maxDegree int) *neighbor.Set {
	return b.graph.levelAt(level).adjacency.getOrCreate(ord, maxDegree)
}

// sampleLevel draws ℓ* = floor(-ln(U(0,1])/ln(maxDegree)), matching the
// geometric-probability level distribution spec §4.G step 2 prescribes.
// Hierarchy disabled always returns 0.
func (b *Builder) sampleLevel() int {
	if !b.cfg.Hierarchy {
		return 0
	}
	u := 1 - rand.Float64() // rand.Float64 is [0,1); shift to (0,1].
	level := int(math.Floor(-math.Log(u) / math.Log(float64(b.cfg.MaxDegree))))
	if level < 0 {
		level = 0
	}
	return level
}

// beamSearchLevel runs a beam search of the given width at level, seeded
// from entry, returning up to width candidates sorted by score descending
// plus the number of distinct ordinals visited.
func (b *Builder) beamSearchLevel(level int, s scorer.Scorer, entry int, width int) (*container.NodeArray, int, error) {
	visited := container.NewGrowableBitSet()
	candidates := container.NewNodeQueue(container.MaxHeap, 0)
	results := container.NewNodeQueue(container.MaxHeap, width)

	entryScore, err := s.SimilarityTo(entry)
	if err != nil {
		return nil, 0, err
	}
	visited.Set(entry)
	candidates.Push(entry, entryScore)
	results.Push(entry, entryScore)
	visitedCount := 1

	for candidates.Len() > 0 {
		cur, curScore, _ := candidates.Pop()
		if results.Len() >= width {
			_, worstScore, _ := results.PeekWorst()
			if curScore < worstScore {
				break
			}
		}
		for _, n := range b.graph.NeighborsOf(level, cur).Nodes {
			if visited.Get(n) {
				continue
			}
			visited.Set(n)
			visitedCount++
			score, err := s.SimilarityTo(n)
			if err != nil {
				return nil, 0, err
			}
			candidates.Push(n, score)
			results.Push(n, score)
		}
	}
	return results.ToSortedNodeArray(), visitedCount, nil
}

// MarkNodeDeleted sets ord's tombstone bit. Idempotent and thread-safe; the
// node remains reachable as an intermediate hop until Cleanup runs.
func (b *Builder) MarkNodeDeleted(ord int) error {
	if ord < 0 || ord >= b.cfg.IDUpperBound {
		return verrors.New(verrors.OutOfRange, "ordinal %d exceeds id upper bound %d", ord, b.cfg.IDUpperBound)
	}
	b.deleted.Set(ord)
	return nil
}

// Cleanup removes deleted nodes per spec §4.G: repairs neighbor lists that
// reference a tombstoned ordinal (refilling short lists via a local beam
// search), drops the deleted nodes from the adjacency map, and re-elects
// entry nodes that were deleted. Serializes against itself but not against
// concurrent inserts/searches.
func (b *Builder) Cleanup() error {
	b.cleanup.Lock()
	defer b.cleanup.Unlock()

	removed := b.deleted.Snapshot()
	if removed.Cardinality() == 0 {
		return nil
	}
	if b.logger != nil {
		b.logger.Info("cleanup: repairing neighbor lists for %d tombstoned nodes", removed.Cardinality())
	}

	levelCount := b.graph.LevelCount()
	for l := 0; l < levelCount; l++ {
		lg := b.graph.levelAt(l)
		var repairErr error
		lg.adjacency.forEach(func(ord int, set *neighbor.Set) {
			if repairErr != nil || removed.Get(ord) {
				return
			}
			shortfall := set.MarkDangling(removed)
			if shortfall >= lg.maxDegree {
				return
			}
			pairForNode, err := b.provider.SearchProviderForNode(ord)
			if err != nil {
				repairErr = err
				return
			}
			entry := lg.entryNode.Load()
			if entry == -1 || removed.Get(int(entry)) {
				return
			}
			refill, _, err := b.beamSearchLevel(l, pairForNode.Search, int(entry), lg.maxDegree)
			if err != nil {
				repairErr = err
				return
			}
			refill.Retain(func(n int) bool { return n != ord && !removed.Get(n) && !set.Load().Contains(n) })
			diversity := newDiversityScorer(b.provider)
			set.InsertDiverse(refill, container.NewNodeArray(0), diversity, ord, b.cfg.AlphaDiversity)
			diversity.Close()
		})
		if repairErr != nil {
			return repairErr
		}

		for i := removed.NextSetBit(0); i != container.NoMoreBits; i = removed.NextSetBit(i + 1) {
			if _, ok := lg.adjacency.get(i); ok {
				lg.adjacency.delete(i)
				lg.size.Add(-1)
			}
		}

		if entry := lg.entryNode.Load(); entry != -1 && removed.Get(int(entry)) {
			b.reelectEntry(l, removed)
		}
	}
	return nil
}

// reelectEntry installs as level's entry node the first live ordinal that
// the level's adjacency iteration yields (-1 if none is left). The choice is
// not randomized, and no ascent from that node toward a better-connected
// one is performed.
func (b *Builder) reelectEntry(level int, removed *container.FixedBitSet) {
	lg := b.graph.levelAt(level)
	candidate := -1
	lg.adjacency.forEach(func(ord int, set *neighbor.Set) {
		if candidate == -1 && !removed.Get(ord) {
			candidate = ord
		}
	})
	lg.entryNode.Store(int64(candidate))
}

// RemoveDeletedNodes runs Cleanup, then computes a compaction map assigning
// every remaining live ordinal (at level 0) a new, hole-free ordinal in
// ascending order of its old value. Returns nil if no ordinal was deleted
// (nothing to compact) — the writer's renumbering parameter is optional,
// and this is what "None" means per spec §6. The in-memory graph itself
// keeps its original ordinals; the caller applies the map when calling the
// writer.
func (b *Builder) RemoveDeletedNodes() (map[int]int, error) {
	if err := b.Cleanup(); err != nil {
		return nil, err
	}
	if b.deleted.Snapshot().Cardinality() == 0 {
		return nil, nil
	}

	lg := b.graph.levelAt(0)
	var live []int
	lg.adjacency.forEach(func(ord int, _ *neighbor.Set) {
		live = append(live, ord)
	})
	sort.Ints(live)

	mapping := make(map[int]int, len(live))
	for newOrd, oldOrd := range live {
		mapping[oldOrd] = newOrd
	}
	return mapping, nil
}

// SetEntryPoint forces ord as the entry node for level, used by callers
// restoring a graph or correcting a pathological re-election.
func (b *Builder) SetEntryPoint(ord, level int) error {
	if level >= b.graph.LevelCount() {
		b.graph.ensureLevels(level, b.cfg.maxDegreeForLevel)
	}
	b.graph.levelAt(level).entryNode.Store(int64(ord))
	return nil
}

// Build is the convenience entry point spec §6 names: add every vector in
// src, then run Cleanup once, returning the resulting OnHeapGraph.
func (b *Builder) Build(src source.VectorSource) (*OnHeapGraph, error) {
	n := src.Size()
	for ord := 0; ord < n; ord++ {
		vec, err := src.Get(ord)
		if err != nil {
			continue
		}
		if err := b.AddGraphNode(ord, vec); err != nil {
			return nil, err
		}
	}
	if err := b.Cleanup(); err != nil {
		return nil, err
	}
	return b.graph, nil
}

// Close releases builder-owned scratch state. b.vectors is a sync.Pool and
// needs no explicit teardown, so this is a no-op kept for interface parity
// with spec §6's close().
func (b *Builder) Close() {}

// diversityScorer adapts the BuildScoreProvider's per-node exact Diversity
// scorer into the pairwise neighbor.Scorer RobustPrune needs: score(a,c)
// for two arbitrary ordinals, not just self-to-query. It does this by
// asking the provider for a's own vantage point and scoring c against it.
//
// RobustPrune's accept loop calls Score(a,c) once per (accepted, candidate)
// pair, so the same vantage node a is re-scored against every later
// candidate — diversityScorer caches the Pair per a so a single pruning
// call (or neighbor-set repair) builds each vantage scorer once instead of
// once per pairwise comparison. The cache is owned by one diversityScorer
// instance and is not safe to share across goroutines; each call site
// below constructs its own.
type diversityScorer struct {
	provider scorer.BuildScoreProvider
	cache    map[int]scorer.Pair
}

func newDiversityScorer(provider scorer.BuildScoreProvider) *diversityScorer {
	return &diversityScorer{provider: provider, cache: make(map[int]scorer.Pair)}
}

func (d *diversityScorer) Score(a, c int) float32 {
	pair, ok := d.cache[a]
	if !ok {
		var err error
		pair, err = d.provider.SearchProviderForNode(a)
		if err != nil {
			return 0
		}
		d.cache[a] = pair
	}
	score, err := pair.Diversity.SimilarityTo(c)
	if err != nil {
		return 0
	}
	return score
}

// Close returns any pool-backed vantage vectors the cache accumulated
// during this pruning call.
func (d *diversityScorer) Close() {
	for _, pair := range d.cache {
		if r, ok := pair.Diversity.(releaser); ok {
			r.Release()
		}
	}
}

type releaser interface {
	Release()
}
