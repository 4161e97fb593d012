package pba

import "math"

// SaliencyMap computes a per-pixel texture score as the absolute gradient
// magnitude |dI/dx| + |dI/dy| by central differences. Border pixels are
// left at zero, which keeps point selection away from the frame edge.
func SaliencyMap(img Image) *Gray32 {
	rows, cols := img.Rows(), img.Cols()
	out := NewGray32(rows, cols)
	for y := 1; y < rows-1; y++ {
		for x := 1; x < cols-1; x++ {
			gx := 0.5 * (img.At(y, x+1) - img.At(y, x-1))
			gy := 0.5 * (img.At(y+1, x) - img.At(y-1, x))
			out.Set(y, x, float32(math.Abs(gx)+math.Abs(gy)))
		}
	}
	return out
}

// smooth3x3 applies one 3x3 box-blur pass. Selecting on the smoothed map
// favors coherent texture over single-pixel noise. Border pixels copy
// through unsmoothed.
func smooth3x3(m *Gray32) *Gray32 {
	rows, cols := m.Rows(), m.Cols()
	out := NewGray32(rows, cols)
	for y := 0; y < rows; y++ {
		out.Set(y, 0, float32(m.At(y, 0)))
		out.Set(y, cols-1, float32(m.At(y, cols-1)))
	}
	for x := 0; x < cols; x++ {
		out.Set(0, x, float32(m.At(0, x)))
		out.Set(rows-1, x, float32(m.At(rows-1, x)))
	}
	for y := 1; y < rows-1; y++ {
		for x := 1; x < cols-1; x++ {
			sum := m.At(y-1, x-1) + m.At(y-1, x) + m.At(y-1, x+1) +
				m.At(y, x-1) + m.At(y, x) + m.At(y, x+1) +
				m.At(y+1, x-1) + m.At(y+1, x) + m.At(y+1, x+1)
			out.Set(y, x, float32(sum/9.0))
		}
	}
	return out
}

// isLocalMax reports whether (row, col) holds the strict maximum of m
// within a square window of the given radius. Ties lose, so plateaus do
// not spawn clusters of points.
func isLocalMax(m *Gray32, row, col, radius int) bool {
	v := m.At(row, col)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dy == 0 && dx == 0 {
				continue
			}
			y, x := row+dy, col+dx
			if y < 0 || y >= m.Rows() || x < 0 || x >= m.Cols() {
				continue
			}
			if m.At(y, x) >= v {
				return false
			}
		}
	}
	return true
}
