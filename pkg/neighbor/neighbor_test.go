package neighbor

import (
	"testing"

	"github.com/gibram-io/vamana/pkg/container"
)

// tableScorer scores pairs from a fixed lookup table, letting tests pin
// exact diversity outcomes without wiring real vectors.
type tableScorer struct {
	scores map[[2]int]float32
}

func (t *tableScorer) Score(a, b int) float32 {
	if s, ok := t.scores[[2]int{a, b}]; ok {
		return s
	}
	if s, ok := t.scores[[2]int{b, a}]; ok {
		return s
	}
	return 0
}

func TestRobustPruneRespectsMaxDegree(t *testing.T) {
	cands := container.NewNodeArray(0)
	cands.InsertSorted(1, 0.9)
	cands.InsertSorted(2, 0.8)
	cands.InsertSorted(3, 0.7)
	scorer := &tableScorer{scores: map[[2]int]float32{}}
	out := RobustPrune(0, cands, scorer, 2, 1.0)
	if out.Len() != 2 {
		t.Fatalf("Len = %d, want 2", out.Len())
	}
	if out.Nodes[0] != 1 || out.Nodes[1] != 2 {
		t.Fatalf("expected top two by score, got %v", out.Nodes)
	}
}

func TestRobustPruneDiversityRejectsDominated(t *testing.T) {
	// candidate 3 is dominated by already-accepted candidate 1 because
	// score(1,3) > alpha*score(self,3).
	cands := container.NewNodeArray(0)
	cands.InsertSorted(1, 0.9)
	cands.InsertSorted(2, 0.85)
	cands.InsertSorted(3, 0.8)
	scorer := &tableScorer{scores: map[[2]int]float32{
		{1, 3}: 0.95, // dominates candidate 3 relative to self's score of 0.8
	}}
	out := RobustPrune(0, cands, scorer, 3, 1.0)
	for _, n := range out.Nodes {
		if n == 3 {
			t.Fatalf("expected node 3 rejected by diversity, got %v", out.Nodes)
		}
	}
}

func TestSetInsertDiversePublishesSortedResult(t *testing.T) {
	s := NewSet(2)
	scorer := &tableScorer{}
	natural := container.NewNodeArray(0)
	natural.InsertSorted(1, 0.9)
	natural.InsertSorted(2, 0.5)
	concurrent := container.NewNodeArray(0)
	concurrent.InsertSorted(3, 0.7)

	s.InsertDiverse(natural, concurrent, scorer, 0, 1.2)
	list := s.Load()
	if list.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (maxDegree)", list.Len())
	}
	if list.Nodes[0] != 1 || list.Nodes[1] != 3 {
		t.Fatalf("expected [1,3] by score, got %v", list.Nodes)
	}
}

func TestSetMarkDanglingPrunesRemoved(t *testing.T) {
	s := NewSet(4)
	scorer := &tableScorer{}
	natural := container.NewNodeArray(0)
	natural.InsertSorted(1, 0.9)
	natural.InsertSorted(2, 0.8)
	s.InsertDiverse(natural, container.NewNodeArray(0), scorer, 0, 1.0)

	removed := container.NewFixedBitSet(10)
	removed.Set(1)
	newLen := s.MarkDangling(removed)
	if newLen != 1 {
		t.Fatalf("newLen = %d, want 1", newLen)
	}
	if s.Load().Contains(1) {
		t.Fatal("expected node 1 pruned from published list")
	}
}
