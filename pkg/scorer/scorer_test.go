package scorer

import (
	"testing"

	"github.com/gibram-io/vamana/pkg/source"
	"github.com/gibram-io/vamana/pkg/vecmath"
)

func newTestSource(t *testing.T) *source.InMemorySource {
	t.Helper()
	src := source.NewInMemorySource(2)
	vecs := map[int][]float32{
		0: {1, 0},
		1: {0, 1},
		2: {-1, 0},
	}
	for ord, v := range vecs {
		if err := src.Put(ord, v); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	return src
}

func TestExactFromVectorsSimilarityTo(t *testing.T) {
	src := newTestSource(t)
	s := NewExactFromVectors(src, vecmath.Cosine, []float32{1, 0})
	got, err := s.SimilarityTo(0)
	if err != nil {
		t.Fatalf("SimilarityTo failed: %v", err)
	}
	if got < 0.99 {
		t.Fatalf("expected near-1 score for identical vector, got %v", got)
	}
	if !s.IsExact() {
		t.Fatal("ExactFromVectors should report IsExact() true")
	}
}

func TestExactProviderSharesSearchAndDiversityScorer(t *testing.T) {
	src := newTestSource(t)
	provider := NewExactProvider(src, vecmath.Cosine)
	pair, err := provider.SearchProviderForNode(0)
	if err != nil {
		t.Fatalf("SearchProviderForNode failed: %v", err)
	}
	if !pair.Search.IsExact() || !pair.Diversity.IsExact() {
		t.Fatal("exact provider scorers should both be exact")
	}
	s1, _ := pair.Search.SimilarityTo(1)
	s2, _ := pair.Diversity.SimilarityTo(1)
	if s1 != s2 {
		t.Fatalf("exact provider should share the same scorer: %v != %v", s1, s2)
	}
}

func TestPQAdapterUsesCodeSource(t *testing.T) {
	codes := NewInMemoryCodeTable()
	codes.Put(5, []byte{1, 2, 3})
	fake := fakeApprox{byCode: map[string]float32{"\x01\x02\x03": 0.75}}
	adapter := NewPQAdapter(fake, codes)
	got, err := adapter.SimilarityTo(5)
	if err != nil {
		t.Fatalf("SimilarityTo failed: %v", err)
	}
	if got != 0.75 {
		t.Fatalf("got %v, want 0.75", got)
	}
	if adapter.IsExact() {
		t.Fatal("PQAdapter should report IsExact() false")
	}
	if _, err := adapter.SimilarityTo(999); err == nil {
		t.Fatal("expected error for unknown ordinal")
	}
}

type fakeApprox struct {
	byCode map[string]float32
}

func (f fakeApprox) SimilarityTo(encoded []byte) float32 {
	return f.byCode[string(encoded)]
}
