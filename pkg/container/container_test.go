package container

import "testing"

func TestFixedBitSetBasics(t *testing.T) {
	b := NewFixedBitSet(100)
	b.Set(5)
	b.Set(63)
	b.Set(64)
	if !b.Get(5) || !b.Get(63) || !b.Get(64) {
		t.Fatal("expected bits set")
	}
	if b.Get(6) {
		t.Fatal("expected bit 6 unset")
	}
	if b.Cardinality() != 3 {
		t.Fatalf("Cardinality = %d, want 3", b.Cardinality())
	}
	b.Clear(63)
	if b.Get(63) {
		t.Fatal("expected bit 63 cleared")
	}
}

func TestNextSetBitSentinel(t *testing.T) {
	b := NewFixedBitSet(10)
	if got := b.NextSetBit(0); got != NoMoreBits {
		t.Fatalf("NextSetBit on empty set = %d, want %d", got, NoMoreBits)
	}
	b.Set(7)
	if got := b.NextSetBit(0); got != 7 {
		t.Fatalf("NextSetBit(0) = %d, want 7", got)
	}
	if got := b.NextSetBit(8); got != NoMoreBits {
		t.Fatalf("NextSetBit(8) = %d, want %d", got, NoMoreBits)
	}
}

func TestPrevSetBit(t *testing.T) {
	b := NewFixedBitSet(200)
	b.Set(10)
	b.Set(100)
	if got := b.PrevSetBit(150); got != 100 {
		t.Fatalf("PrevSetBit(150) = %d, want 100", got)
	}
	if got := b.PrevSetBit(5); got != NoMoreBits {
		t.Fatalf("PrevSetBit(5) = %d, want %d", got, NoMoreBits)
	}
}

func TestUnionIntersectXor(t *testing.T) {
	a := NewFixedBitSet(64)
	b := NewFixedBitSet(64)
	a.Set(1)
	a.Set(2)
	b.Set(2)
	b.Set(3)

	u := a.Clone()
	u.Union(b)
	if u.Cardinality() != 3 {
		t.Fatalf("union cardinality = %d, want 3", u.Cardinality())
	}

	i := a.Clone()
	i.Intersect(b)
	if i.Cardinality() != 1 || !i.Get(2) {
		t.Fatalf("intersect wrong result")
	}

	x := a.Clone()
	x.Xor(b)
	if x.Cardinality() != 2 || !x.Get(1) || !x.Get(3) {
		t.Fatalf("xor wrong result")
	}
}

func TestAtomicBitSetConcurrentSet(t *testing.T) {
	b := NewAtomicBitSet(256)
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			for i := g; i < 256; i += 4 {
				b.Set(i)
			}
			done <- struct{}{}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}
	for i := 0; i < 256; i++ {
		if !b.Get(i) {
			t.Fatalf("bit %d not set after concurrent writers", i)
		}
	}
}

func TestNodeArrayInsertSorted(t *testing.T) {
	a := NewNodeArray(0)
	a.InsertSorted(1, 0.5)
	a.InsertSorted(2, 0.9)
	a.InsertSorted(3, 0.1)
	if a.Nodes[0] != 2 || a.Nodes[1] != 1 || a.Nodes[2] != 3 {
		t.Fatalf("not sorted descending: %v / %v", a.Nodes, a.Scores)
	}
	if idx := a.InsertSorted(2, 0.9); idx != DuplicateIndex {
		t.Fatalf("expected duplicate index, got %d", idx)
	}
}

func TestNodeArrayCapacityEviction(t *testing.T) {
	a := NewNodeArray(2)
	a.InsertSorted(1, 0.9)
	a.InsertSorted(2, 0.5)
	a.InsertSorted(3, 0.7)
	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}
	if a.Nodes[0] != 1 || a.Nodes[1] != 3 {
		t.Fatalf("expected top two kept by score: %v", a.Nodes)
	}
}

func TestMergeDedupAndUnion(t *testing.T) {
	a := NewNodeArray(0)
	a.InsertSorted(1, 0.5)
	a.InsertSorted(2, 0.8)
	b := NewNodeArray(0)
	b.InsertSorted(2, 0.9) // higher score for node 2, should win
	b.InsertSorted(3, 0.1)

	merged := Merge(a, b)
	if merged.Len() != 3 {
		t.Fatalf("merged length = %d, want 3", merged.Len())
	}
	for i, n := range merged.Nodes {
		if n == 2 && merged.Scores[i] != 0.9 {
			t.Fatalf("expected merged node 2 score 0.9, got %v", merged.Scores[i])
		}
	}
	for i := 1; i < merged.Len(); i++ {
		if merged.Scores[i] > merged.Scores[i-1] {
			t.Fatalf("merged result not sorted descending")
		}
	}
}

func TestNodeQueueMinHeapOrder(t *testing.T) {
	q := NewNodeQueue(MinHeap, 0)
	q.Push(1, 0.5)
	q.Push(2, 0.1)
	q.Push(3, 0.9)
	node, score, ok := q.Pop()
	if !ok || node != 2 || score != 0.1 {
		t.Fatalf("Pop = (%d, %v), want (2, 0.1)", node, score)
	}
}

func TestNodeQueueMaxHeapBounded(t *testing.T) {
	q := NewNodeQueue(MaxHeap, 2)
	q.Push(1, 0.5)
	q.Push(2, 0.9)
	retained := q.Push(3, 0.1) // worse than both, should be discarded
	if retained {
		t.Fatal("expected low-score push to be discarded in full bounded max-heap")
	}
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	node, score, ok := q.Pop()
	if !ok || node != 2 || score != 0.9 {
		t.Fatalf("Pop = (%d, %v), want (2, 0.9)", node, score)
	}
}

func TestNodeQueuePopWorst(t *testing.T) {
	q := NewNodeQueue(MaxHeap, 0)
	q.Push(1, 0.9)
	q.Push(2, 0.1)
	q.Push(3, 0.5)
	node, score, ok := q.PopWorst()
	if !ok || node != 2 || score != 0.1 {
		t.Fatalf("PopWorst = (%d, %v), want (2, 0.1)", node, score)
	}
}
