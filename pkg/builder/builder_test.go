package builder

import (
	"math"
	"testing"

	"github.com/gibram-io/vamana/pkg/scorer"
	"github.com/gibram-io/vamana/pkg/source"
	"github.com/gibram-io/vamana/pkg/vecmath"
)

func ringSource(t *testing.T) *source.InMemorySource {
	t.Helper()
	src := source.NewInMemorySource(2)
	for i := 0; i < 3; i++ {
		theta := 2 * math.Pi * float64(i) / 3
		v := []float32{float32(math.Cos(theta)), float32(math.Sin(theta))}
		if err := src.Put(i, v); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	return src
}

func newTestBuilder(t *testing.T, src source.VectorSource) *Builder {
	t.Helper()
	provider := scorer.NewExactProvider(src, vecmath.Cosine)
	b, err := New(provider, 2, Config{
		MaxDegree:      2,
		BeamWidth:      10,
		AlphaOverflow:  1.0,
		AlphaDiversity: 1.0,
		IDUpperBound:   16,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return b
}

func TestTinyRingFullyConnected(t *testing.T) {
	src := ringSource(t)
	b := newTestBuilder(t, src)
	for i := 0; i < 3; i++ {
		v, _ := src.Get(i)
		if err := b.AddGraphNode(i, v); err != nil {
			t.Fatalf("AddGraphNode(%d) failed: %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		neighbors := b.Graph().NeighborsOf(0, i)
		if neighbors.Len() != 2 {
			t.Fatalf("node %d: expected 2 neighbors, got %d", i, neighbors.Len())
		}
		for _, n := range neighbors.Nodes {
			if n == i {
				t.Fatalf("node %d: neighbor list contains self", i)
			}
		}
	}

	if problems := b.Graph().ValidateIntegrity(nil); len(problems) != 0 {
		t.Fatalf("unexpected integrity problems: %v", problems)
	}
}

func TestDeleteThenCleanupRepairsNeighbors(t *testing.T) {
	src := ringSource(t)
	b := newTestBuilder(t, src)
	for i := 0; i < 3; i++ {
		v, _ := src.Get(i)
		if err := b.AddGraphNode(i, v); err != nil {
			t.Fatalf("AddGraphNode(%d) failed: %v", i, err)
		}
	}

	if err := b.MarkNodeDeleted(0); err != nil {
		t.Fatalf("MarkNodeDeleted failed: %v", err)
	}
	if err := b.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	deleted := b.deleted.Snapshot()
	problems := b.Graph().ValidateIntegrity(deleted)
	if len(problems) != 0 {
		t.Fatalf("unexpected integrity problems after cleanup: %v", problems)
	}

	for _, live := range []int{1, 2} {
		neighbors := b.Graph().NeighborsOf(0, live)
		if neighbors.Contains(0) {
			t.Fatalf("node %d still references deleted node 0", live)
		}
	}
}

func TestAddGraphNodeRejectsOutOfRangeOrdinal(t *testing.T) {
	src := ringSource(t)
	b := newTestBuilder(t, src)
	v, _ := src.Get(0)
	if err := b.AddGraphNode(100, v); err == nil {
		t.Fatal("expected OutOfRange error for ordinal beyond IDUpperBound")
	}
}

func TestAddGraphNodeRejectsDimensionMismatch(t *testing.T) {
	src := ringSource(t)
	b := newTestBuilder(t, src)
	if err := b.AddGraphNode(0, []float32{1, 2, 3}); err == nil {
		t.Fatal("expected InvalidArgument error for dimension mismatch")
	}
}

func TestBuildConvenienceWrapper(t *testing.T) {
	src := ringSource(t)
	provider := scorer.NewExactProvider(src, vecmath.Cosine)
	b, err := New(provider, 2, Config{MaxDegree: 2, BeamWidth: 10, AlphaOverflow: 1.0, AlphaDiversity: 1.0, IDUpperBound: 8})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	graph, err := b.Build(src)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if graph.LiveCount() != 3 {
		t.Fatalf("expected 3 live nodes, got %d", graph.LiveCount())
	}
}
