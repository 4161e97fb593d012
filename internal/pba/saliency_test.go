package pba

import (
	"math"
	"testing"
)

func TestSaliencyMapConstantImageIsZero(t *testing.T) {
	m := SaliencyMap(makeConstantImage(8, 8, 50))
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if got := m.At(r, c); got != 0 {
				t.Fatalf("saliency(%d,%d) = %f on constant image, want 0", r, c, got)
			}
		}
	}
}

func TestSaliencyMapGradientMagnitude(t *testing.T) {
	// Horizontal ramp with slope 10 per column: |gx| = 10, |gy| = 0.
	m := SaliencyMap(makeGradientImage(8, 8, 0, 10))
	for r := 1; r < 7; r++ {
		for c := 1; c < 7; c++ {
			if got := m.At(r, c); math.Abs(got-10) > 1e-6 {
				t.Fatalf("saliency(%d,%d) = %f on ramp, want 10", r, c, got)
			}
		}
	}
}

func TestSaliencyMapBordersStayZero(t *testing.T) {
	m := SaliencyMap(makeGradientImage(8, 8, 3, 7))
	for i := 0; i < 8; i++ {
		if m.At(0, i) != 0 || m.At(7, i) != 0 || m.At(i, 0) != 0 || m.At(i, 7) != 0 {
			t.Fatalf("saliency border not zero at index %d", i)
		}
	}
}

func TestSaliencyMapIsolatedDot(t *testing.T) {
	img := makeConstantImage(9, 9, 0)
	img.Set(4, 4, 90)
	m := SaliencyMap(img)

	// The dot itself has symmetric neighbors, so its own score is zero;
	// the four direct neighbors each see half the step on one axis.
	if got := m.At(4, 4); got != 0 {
		t.Errorf("dot center saliency = %f, want 0", got)
	}
	for _, p := range [][2]int{{4, 3}, {4, 5}, {3, 4}, {5, 4}} {
		if got := m.At(p[0], p[1]); math.Abs(got-45) > 1e-6 {
			t.Errorf("dot neighbor (%d,%d) saliency = %f, want 45", p[0], p[1], got)
		}
	}
}

func TestSmooth3x3ConstantPreserved(t *testing.T) {
	out := smooth3x3(makeConstantImage(6, 6, 4))
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			if got := out.At(r, c); math.Abs(got-4) > 1e-6 {
				t.Fatalf("smoothed(%d,%d) = %f, want 4", r, c, got)
			}
		}
	}
}

func TestSmooth3x3AveragesAndCopiesBorder(t *testing.T) {
	img := makeConstantImage(5, 5, 0)
	img.Set(2, 2, 9)
	out := smooth3x3(img)

	if got := out.At(2, 2); math.Abs(got-1) > 1e-6 {
		t.Errorf("smoothed spike center = %f, want 1 (9/9)", got)
	}
	if got := out.At(1, 1); math.Abs(got-1) > 1e-6 {
		t.Errorf("smoothed spike diagonal = %f, want 1", got)
	}
	if got := out.At(0, 2); got != 0 {
		t.Errorf("border pixel = %f, want copied-through 0", got)
	}

	edge := makeConstantImage(5, 5, 0)
	edge.Set(0, 0, 8)
	if got := smooth3x3(edge).At(0, 0); got != 8 {
		t.Errorf("corner pixel = %f, want copied-through 8", got)
	}
}

func TestIsLocalMaxStrict(t *testing.T) {
	img := makeConstantImage(7, 7, 1)
	img.Set(3, 3, 5)

	if !isLocalMax(img, 3, 3, 1) {
		t.Errorf("strict peak not detected")
	}
	if isLocalMax(img, 3, 2, 1) {
		t.Errorf("neighbor of peak reported as max")
	}

	// A tied plateau produces no maximum at all.
	img.Set(3, 4, 5)
	if isLocalMax(img, 3, 3, 1) || isLocalMax(img, 3, 4, 1) {
		t.Errorf("tied plateau reported as max")
	}
}

func TestIsLocalMaxAtImageEdge(t *testing.T) {
	img := makeConstantImage(5, 5, 0)
	img.Set(0, 0, 3)

	// Off-image neighbors are ignored rather than treated as competitors.
	if !isLocalMax(img, 0, 0, 1) {
		t.Errorf("corner peak not detected")
	}
}
