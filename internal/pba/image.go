package pba

import "fmt"

// Image is the read-only scalar field the sampling path consumes. Any 2-D
// source (intensity frame, depth map, saliency map) satisfies it; the core
// never owns or mutates pixel data behind this interface.
type Image interface {
	Rows() int
	Cols() int
	// At returns the sample at integer (row, col). Callers guarantee the
	// coordinate is in bounds; implementations may panic otherwise.
	At(row, col int) float64
}

// ImageSize describes frame dimensions in pixels.
type ImageSize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Valid reports whether both dimensions are positive.
func (s ImageSize) Valid() bool {
	return s.Rows > 0 && s.Cols > 0
}

// Contains reports whether integer pixel (row, col) lies inside the frame
// with a margin of border pixels on every side.
func (s ImageSize) Contains(row, col, border int) bool {
	return row >= border && row < s.Rows-border && col >= border && col < s.Cols-border
}

// Gray32 is a row-major single-channel float32 raster. It is the concrete
// frame type buffered by the orchestrator and the output type of the
// saliency filters.
type Gray32 struct {
	rows, cols int
	pix        []float32
}

// NewGray32 allocates a zeroed raster of the given dimensions.
func NewGray32(rows, cols int) *Gray32 {
	return &Gray32{rows: rows, cols: cols, pix: make([]float32, rows*cols)}
}

// Gray32FromBytes copies an 8-bit row-major intensity buffer into a raster.
// len(data) must equal rows*cols.
func Gray32FromBytes(rows, cols int, data []uint8) (*Gray32, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("intensity buffer is %d bytes, want %d (%dx%d)", len(data), rows*cols, rows, cols)
	}
	g := NewGray32(rows, cols)
	for i, v := range data {
		g.pix[i] = float32(v)
	}
	return g, nil
}

// Gray32FromFloats wraps a row-major float32 buffer without copying.
// len(data) must equal rows*cols. Used for depth maps, where a sample
// <= 0 marks invalid depth.
func Gray32FromFloats(rows, cols int, data []float32) (*Gray32, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("float buffer is %d samples, want %d (%dx%d)", len(data), rows*cols, rows, cols)
	}
	return &Gray32{rows: rows, cols: cols, pix: data}, nil
}

// Rows returns the vertical dimension.
func (g *Gray32) Rows() int { return g.rows }

// Cols returns the horizontal dimension.
func (g *Gray32) Cols() int { return g.cols }

// At returns the sample at (row, col).
func (g *Gray32) At(row, col int) float64 {
	return float64(g.pix[row*g.cols+col])
}

// Set stores a sample at (row, col).
func (g *Gray32) Set(row, col int, v float32) {
	g.pix[row*g.cols+col] = v
}

// Size returns the raster dimensions.
func (g *Gray32) Size() ImageSize {
	return ImageSize{Rows: g.rows, Cols: g.cols}
}
