package pba

import (
	"math"
	"testing"
)

func TestCalibrationProjectBackprojectRoundTrip(t *testing.T) {
	c := Calibration{Fx: 500, Fy: 500, Cx: 320, Cy: 240}

	for _, px := range [][3]float64{
		{320, 240, 1},
		{100.5, 400.25, 7.5},
		{0, 0, 0.1},
		{639, 479, 42},
	} {
		u0, v0, z := px[0], px[1], px[2]
		p := c.Backproject(u0, v0, z)
		if p[2] != z {
			t.Fatalf("Backproject depth = %f, want %f", p[2], z)
		}
		u, v, ok := c.Project(p)
		if !ok {
			t.Fatalf("Project(%v) not ok", p)
		}
		if math.Abs(u-u0) > 1e-9 || math.Abs(v-v0) > 1e-9 {
			t.Errorf("round trip (%f,%f,z=%f) -> (%f,%f)", u0, v0, z, u, v)
		}
	}
}

func TestCalibrationProjectBehindCamera(t *testing.T) {
	c := Calibration{Fx: 500, Fy: 500, Cx: 320, Cy: 240}

	if _, _, ok := c.Project(Vec3{1, 1, 0}); ok {
		t.Errorf("point on camera plane projected ok")
	}
	if _, _, ok := c.Project(Vec3{1, 1, -2}); ok {
		t.Errorf("point behind camera projected ok")
	}
}

func TestCalibrationProjectPrincipalRay(t *testing.T) {
	c := Calibration{Fx: 500, Fy: 450, Cx: 320, Cy: 240}

	u, v, ok := c.Project(Vec3{0, 0, 5})
	if !ok || u != 320 || v != 240 {
		t.Errorf("principal ray projects to (%f,%f), want (320,240)", u, v)
	}
}

func TestCalibrationValid(t *testing.T) {
	if !(Calibration{Fx: 1, Fy: 1}).Valid() {
		t.Errorf("positive focal lengths rejected")
	}
	if (Calibration{Fx: 0, Fy: 1}).Valid() {
		t.Errorf("zero fx accepted")
	}
	if (Calibration{Fx: 1, Fy: -2}).Valid() {
		t.Errorf("negative fy accepted")
	}
}
