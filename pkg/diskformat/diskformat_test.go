package diskformat

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gibram-io/vamana/pkg/builder"
	"github.com/gibram-io/vamana/pkg/scorer"
	"github.com/gibram-io/vamana/pkg/source"
	"github.com/gibram-io/vamana/pkg/vecmath"
)

func ringGraph(t *testing.T) (*builder.Builder, *source.InMemorySource) {
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
	if _, err := b.Build(src); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return b, src
}

func TestWriteThenOpenRoundTripsVectorsAndNeighbors(t *testing.T) {
	b, src := ringGraph(t)
	graph := b.Graph()

	path := filepath.Join(t.TempDir(), "index.vamana")
	features := []FeatureSource{NewInlineVectorSource(src)}
	if err := Write(graph, nil, path, features); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	v, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer v.Close()

	if v.Dimension != 2 {
		t.Fatalf("expected dimension 2, got %d", v.Dimension)
	}
	if v.LayerCount != 1 {
		t.Fatalf("expected 1 layer, got %d", v.LayerCount)
	}

	for i := 0; i < 3; i++ {
		want, _ := src.Get(i)
		got, err := v.GetVector(i)
		if err != nil {
			t.Fatalf("GetVector(%d) failed: %v", i, err)
		}
		for d := range want {
			if math.Abs(float64(want[d]-got[d])) > 1e-6 {
				t.Fatalf("node %d dim %d: want %v got %v", i, d, want[d], got[d])
			}
		}

		neighbors, err := v.NeighborsOf(0, i)
		if err != nil {
			t.Fatalf("NeighborsOf(%d) failed: %v", i, err)
		}
		if neighbors.Len() != 2 {
			t.Fatalf("node %d: expected 2 neighbors, got %d", i, neighbors.Len())
		}
	}
}

func TestOpenRejectsCorruptChecksum(t *testing.T) {
	b, src := ringGraph(t)
	path := filepath.Join(t.TempDir(), "index.vamana")
	if err := Write(b.Graph(), nil, path, []FeatureSource{NewInlineVectorSource(src)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	data[20] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("expected checksum mismatch error, got nil")
	}
}

func TestBufferedReadFallbackMatchesFileContents(t *testing.T) {
	b, src := ringGraph(t)
	path := filepath.Join(t.TempDir(), "index.vamana")
	if err := Write(b.Graph(), nil, path, []FeatureSource{NewInlineVectorSource(src)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	got, err := bufferedReadFallback(f)
	if err != nil {
		t.Fatalf("bufferedReadFallback failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d mismatch: want %x got %x", i, want[i], got[i])
		}
	}
}

func TestSeparatedVectorsRoundTrip(t *testing.T) {
	b, src := ringGraph(t)
	path := filepath.Join(t.TempDir(), "index.vamana")
	if err := Write(b.Graph(), nil, path, []FeatureSource{NewSeparatedVectorSource(src)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	v, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer v.Close()

	for i := 0; i < 3; i++ {
		want, _ := src.Get(i)
		got, err := v.GetVector(i)
		if err != nil {
			t.Fatalf("GetVector(%d) failed: %v", i, err)
		}
		for d := range want {
			if math.Abs(float64(want[d]-got[d])) > 1e-6 {
				t.Fatalf("node %d dim %d: want %v got %v", i, d, want[d], got[d])
			}
		}
	}
}
