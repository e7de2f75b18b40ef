package search

import (
	"math"
	"testing"

	"github.com/gibram-io/vamana/pkg/builder"
	"github.com/gibram-io/vamana/pkg/container"
	"github.com/gibram-io/vamana/pkg/pool"
	"github.com/gibram-io/vamana/pkg/scorer"
	"github.com/gibram-io/vamana/pkg/source"
	"github.com/gibram-io/vamana/pkg/vecmath"
)

func ringGraph(t *testing.T) (*builder.OnHeapGraph, *source.InMemorySource) {
	t.Helper()
	src := source.NewInMemorySource(2)
	for i := 0; i < 3; i++ {
		theta := 2 * math.Pi * float64(i) / 3
		v := []float32{float32(math.Cos(theta)), float32(math.Sin(theta))}
		if err := src.Put(i, v); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	provider := scorer.NewExactProvider(src, vecmath.Cosine)
	b, err := builder.New(provider, 2, builder.Config{
		MaxDegree:      2,
		BeamWidth:      10,
		AlphaOverflow:  1.0,
		AlphaDiversity: 1.0,
		IDUpperBound:   8,
	})
	if err != nil {
		t.Fatalf("builder.New failed: %v", err)
	}
	graph, err := b.Build(src)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return graph, src
}

func TestSearchReturnsOtherTwoRingNodes(t *testing.T) {
	graph, src := ringGraph(t)
	query, _ := src.Get(0)
	s := scorer.NewExactFromVectors(src, vecmath.Cosine, query)

	excluded := container.NewFixedBitSet(8)
	excluded.Set(0)
	sr, err := New(graph, s, nil, AcceptExcluding(excluded), 2, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	result, err := sr.Search()
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Nodes) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Nodes))
	}
	seen := map[int]bool{}
	for _, n := range result.Nodes {
		seen[n.Ord] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected nodes {1,2}, got %v", result.Nodes)
	}
}

func TestSearchEmptyGraphReturnsEmptyResult(t *testing.T) {
	src := source.NewInMemorySource(2)
	provider := scorer.NewExactProvider(src, vecmath.Cosine)
	b, err := builder.New(provider, 2, builder.Config{MaxDegree: 2, BeamWidth: 2, AlphaOverflow: 1.0, AlphaDiversity: 1.0, IDUpperBound: 4})
	if err != nil {
		t.Fatalf("builder.New failed: %v", err)
	}

	s := scorer.NewExactFromVectors(src, vecmath.Cosine, []float32{1, 0})
	sr, err := New(b.Graph(), s, nil, nil, 3, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	result, err := sr.Search()
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Nodes) != 0 || result.VisitedCount != 0 {
		t.Fatalf("expected empty result on empty graph, got %+v", result)
	}
}

func TestNewWithScratchReusesProvidedState(t *testing.T) {
	graph, src := ringGraph(t)
	query, _ := src.Get(0)
	s := scorer.NewExactFromVectors(src, vecmath.Cosine, query)

	scratchPool := pool.NewSearchScratchPool()
	scratch := scratchPool.Get()
	defer scratchPool.Put(scratch)
	sr, err := NewWithScratch(graph, s, nil, nil, 2, 2, scratch)
	if err != nil {
		t.Fatalf("NewWithScratch failed: %v", err)
	}
	if sr.discovered != scratch.Discovered || sr.candidates != scratch.Candidates || sr.results != scratch.Results {
		t.Fatal("expected Searcher to reuse the provided scratch state, not allocate fresh state")
	}
	result, err := sr.Search()
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Nodes) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Nodes))
	}
}

func TestThresholdSearchReturnsAboveThresholdOnly(t *testing.T) {
	graph, src := ringGraph(t)
	query, _ := src.Get(0)
	s := scorer.NewExactFromVectors(src, vecmath.Cosine, query)

	result, err := ThresholdSearch(graph, s, nil, nil, 0.9, 3)
	if err != nil {
		t.Fatalf("ThresholdSearch failed: %v", err)
	}
	for _, n := range result.Nodes {
		if n.Score < 0.9 {
			t.Fatalf("result node %d scored %v below threshold", n.Ord, n.Score)
		}
	}
	if len(result.Nodes) == 0 {
		t.Fatal("expected at least the query's own node above threshold 0.9")
	}
}
