package vecmath

import "testing"

func TestDotProduct(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	got := DotProduct(a, b)
	want := float32(32)
	if !approxEqual(float64(got), float64(want)) {
		t.Errorf("DotProduct = %v, want %v", got, want)
	}
}

func TestCosIdentical(t *testing.T) {
	a := []float32{1, 0, 0}
	got := Cos(a, a)
	if !approxEqual(float64(got), 1.0) {
		t.Errorf("Cos(a,a) = %v, want 1", got)
	}
}

func TestCosOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	got := Cos(a, b)
	if !approxEqual(float64(got), 0.0) {
		t.Errorf("Cos(a,b) = %v, want 0", got)
	}
}

func TestCosZeroVector(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	if got := Cos(a, b); got != 0 {
		t.Errorf("Cos with zero vector = %v, want 0", got)
	}
}

func TestSqDist(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}
	got := SqDist(a, b)
	if !approxEqual(float64(got), 25.0) {
		t.Errorf("SqDist = %v, want 25", got)
	}
}

func TestScoreBounds(t *testing.T) {
	if s := Score(Cosine, 1); s != 1 {
		t.Errorf("Score(Cosine, 1) = %v, want 1", s)
	}
	if s := Score(Cosine, -1); s != 0 {
		t.Errorf("Score(Cosine, -1) = %v, want 0", s)
	}
	if s := Score(Euclidean, 0); s != 1 {
		t.Errorf("Score(Euclidean, 0) = %v, want 1", s)
	}
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	L2Normalize(v)
	if n := Norm(v); !approxEqual(float64(n), 1.0) {
		t.Errorf("Norm after L2Normalize = %v, want 1", n)
	}
}

func TestCompareMulti(t *testing.T) {
	q := []float32{1, 0}
	packed := []float32{1, 0, 0, 1, -1, 0}
	results := make([]float32, 3)
	CompareMulti(Cosine, q, packed, results)
	if !approxEqual(float64(results[0]), 1.0) {
		t.Errorf("results[0] = %v, want 1", results[0])
	}
	if !approxEqual(float64(results[2]), 0.0) {
		t.Errorf("results[2] = %v, want 0", results[2])
	}
}

func TestAddSubScale(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{1, 1, 1}
	AddInPlace(a, b)
	if a[0] != 2 || a[1] != 3 || a[2] != 4 {
		t.Errorf("AddInPlace = %v", a)
	}
	SubInPlace(a, b)
	if a[0] != 1 || a[1] != 2 || a[2] != 3 {
		t.Errorf("SubInPlace = %v", a)
	}
	Scale(a, 2)
	if a[0] != 2 || a[1] != 4 || a[2] != 6 {
		t.Errorf("Scale = %v", a)
	}
}

func TestMinMaxSum(t *testing.T) {
	v := []float32{3, -1, 4, 1, 5}
	if Min(v) != -1 {
		t.Errorf("Min = %v, want -1", Min(v))
	}
	if Max(v) != 5 {
		t.Errorf("Max = %v, want 5", Max(v))
	}
	if !approxEqual(float64(Sum(v)), 12.0) {
		t.Errorf("Sum = %v, want 12", Sum(v))
	}
}
