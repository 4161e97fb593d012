package pba

import (
	"strings"
	"testing"
)

func TestGray32FromBytes(t *testing.T) {
	g, err := Gray32FromBytes(2, 3, []uint8{0, 1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("Gray32FromBytes returned error: %v", err)
	}
	if got := g.At(0, 0); got != 0 {
		t.Errorf("At(0,0) = %f, want 0", got)
	}
	if got := g.At(1, 2); got != 5 {
		t.Errorf("At(1,2) = %f, want 5", got)
	}

	if _, err := Gray32FromBytes(2, 3, make([]uint8, 5)); err == nil {
		t.Errorf("short buffer accepted")
	} else if !strings.Contains(err.Error(), "5 bytes") {
		t.Errorf("error %q does not name the bad length", err)
	}
}

func TestGray32FromBytesCopies(t *testing.T) {
	buf := []uint8{10, 20, 30, 40}
	g, err := Gray32FromBytes(2, 2, buf)
	if err != nil {
		t.Fatalf("Gray32FromBytes returned error: %v", err)
	}
	buf[0] = 99
	if got := g.At(0, 0); got != 10 {
		t.Errorf("raster sees caller mutation: At(0,0) = %f", got)
	}
}

func TestGray32FromFloatsAliases(t *testing.T) {
	buf := []float32{1, 2, 3, 4}
	g, err := Gray32FromFloats(2, 2, buf)
	if err != nil {
		t.Fatalf("Gray32FromFloats returned error: %v", err)
	}
	buf[3] = 7.5
	if got := g.At(1, 1); got != 7.5 {
		t.Errorf("wrapped raster does not alias the buffer: At(1,1) = %f", got)
	}

	if _, err := Gray32FromFloats(2, 2, make([]float32, 3)); err == nil {
		t.Errorf("short float buffer accepted")
	}
}

func TestGray32SetAt(t *testing.T) {
	g := NewGray32(3, 4)
	g.Set(2, 3, 1.25)
	if got := g.At(2, 3); got != 1.25 {
		t.Errorf("At after Set = %f, want 1.25", got)
	}
	if got := g.Size(); got != (ImageSize{Rows: 3, Cols: 4}) {
		t.Errorf("Size = %v, want {3 4}", got)
	}
}

func TestImageSizeContains(t *testing.T) {
	s := ImageSize{Rows: 10, Cols: 20}

	cases := []struct {
		row, col, border int
		want             bool
	}{
		{0, 0, 0, true},
		{9, 19, 0, true},
		{10, 0, 0, false},
		{0, 20, 0, false},
		{-1, 5, 0, false},
		{3, 3, 3, true},
		{2, 3, 3, false},
		{3, 17, 3, false},
		{6, 16, 3, true},
	}
	for _, tc := range cases {
		if got := s.Contains(tc.row, tc.col, tc.border); got != tc.want {
			t.Errorf("Contains(%d,%d,border=%d) = %v, want %v", tc.row, tc.col, tc.border, got, tc.want)
		}
	}
}

func TestImageSizeValid(t *testing.T) {
	if !(ImageSize{Rows: 1, Cols: 1}).Valid() {
		t.Errorf("1x1 rejected")
	}
	if (ImageSize{Rows: 0, Cols: 5}).Valid() {
		t.Errorf("zero rows accepted")
	}
}
