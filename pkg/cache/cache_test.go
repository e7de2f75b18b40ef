package cache

import (
	"math"
	"testing"

	"github.com/gibram-io/vamana/pkg/builder"
	"github.com/gibram-io/vamana/pkg/scorer"
	"github.com/gibram-io/vamana/pkg/source"
	"github.com/gibram-io/vamana/pkg/vecmath"
)

func ringGraph(t *testing.T) (*builder.OnHeapGraph, *source.InMemorySource) {
	t.Helper()
	src := source.NewInMemorySource(2)
	for i := 0; i < 5; i++ {
		theta := 2 * math.Pi * float64(i) / 5
		v := []float32{float32(math.Cos(theta)), float32(math.Sin(theta))}
		if err := src.Put(i, v); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	provider := scorer.NewExactProvider(src, vecmath.Cosine)
	b, err := builder.New(provider, 2, builder.Config{
		MaxDegree:      4,
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

func TestWarmVisitsEntireRingWithinDepth(t *testing.T) {
	graph, src := ringGraph(t)
	c, err := Warm(BuildSource{Graph: graph, Src: src}, 5)
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if c.Len() != 5 {
		t.Fatalf("expected all 5 ring nodes cached, got %d", c.Len())
	}
	for i := 0; i < 5; i++ {
		e, ok := c.Get(i)
		if !ok {
			t.Fatalf("node %d missing from cache", i)
		}
		if len(e.Vector) != 2 {
			t.Fatalf("node %d: expected 2-dim vector, got %d", i, len(e.Vector))
		}
	}
}

func TestWarmRespectsDepthBound(t *testing.T) {
	graph, src := ringGraph(t)
	c, err := Warm(BuildSource{Graph: graph, Src: src}, 1)
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if c.Len() >= 5 {
		t.Fatalf("expected depth-1 preload to miss some ring nodes, got all %d", c.Len())
	}
}

func TestWarmEmptyGraphReturnsEmptyCache(t *testing.T) {
	src := source.NewInMemorySource(2)
	provider := scorer.NewExactProvider(src, vecmath.Cosine)
	b, err := builder.New(provider, 2, builder.Config{MaxDegree: 2, BeamWidth: 2, AlphaOverflow: 1.0, AlphaDiversity: 1.0, IDUpperBound: 4})
	if err != nil {
		t.Fatalf("builder.New failed: %v", err)
	}
	c, err := Warm(BuildSource{Graph: b.Graph(), Src: src}, DefaultDepth)
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
}
