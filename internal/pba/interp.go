package pba

import "math"

// SampleBilinear samples img at continuous pixel coordinates (x, y) with
// bilinear interpolation. x runs along columns, y along rows. offset is
// added to both coordinates before the integer/fractional split, so a
// caller whose convention centers pixels differently can shift the whole
// lattice in one place.
//
// Border policy:
//  1. Strict interior: blend the four surrounding samples.
//  2. Exactly on the last column (or last row) with zero remaining
//     fraction on that axis: interpolate 1-D along the remaining axis.
//  3. Exactly on the last-row/last-column corner with zero fraction on
//     both axes: return the corner sample.
//  4. Anything else returns fill.
func SampleBilinear(img Image, x, y, fill, offset float64) float64 {
	maxCol := img.Cols() - 1
	maxRow := img.Rows() - 1

	x += offset
	y += offset

	xi := int(math.Floor(x))
	yi := int(math.Floor(y))
	xf := x - float64(xi)
	yf := y - float64(yi)

	switch {
	case xi >= 0 && xi < maxCol && yi >= 0 && yi < maxRow:
		wx := 1.0 - xf
		return (1.0-yf)*(img.At(yi, xi)*wx+img.At(yi, xi+1)*xf) +
			yf*(img.At(yi+1, xi)*wx+img.At(yi+1, xi+1)*xf)

	case xi == maxCol && yi >= 0 && yi < maxRow:
		if xf <= 0.0 {
			return (1.0-yf)*img.At(yi, xi) + yf*img.At(yi+1, xi)
		}
		return fill

	case yi == maxRow && xi >= 0 && xi < maxCol:
		if yf <= 0.0 {
			return (1.0-xf)*img.At(yi, xi) + xf*img.At(yi, xi+1)
		}
		return fill

	case xi == maxCol && yi == maxRow:
		if xf <= 0.0 && yf <= 0.0 {
			return img.At(yi, xi)
		}
		return fill

	default:
		return fill
	}
}
