package pba

import "math"

// Patch template geometry. The matching template is a flattened square
// neighborhood around a projection; its layout is column-major (outer loop
// over the horizontal offset, inner over the vertical offset). Both
// extractors below and the ZNCC matcher share this layout, so two patches
// are comparable element-for-element by position.
const (
	// PatchRadius is the half-width of the square matching template.
	PatchRadius = 2
	// PatchSide is the template edge length in pixels.
	PatchSide = 2*PatchRadius + 1
	// PatchSize is the flattened template length.
	PatchSize = PatchSide * PatchSide
)

// Patch is the stack-allocated matching template. Samples are single
// precision; scoring accumulates in double precision.
type Patch [PatchSize]float32

// ExtractPatch fills dst with interpolated samples around the continuous
// center (x, y). dst must hold (2*radius+1)^2 elements. Out-of-bounds taps
// receive fill; the center itself is not validated, so an off-image center
// silently yields a fill-dominated patch.
func ExtractPatch(dst []float32, radius int, img Image, x, y, fill float64) {
	i := 0
	for c := -radius; c <= radius; c++ {
		xf := x + float64(c)
		for r := -radius; r <= radius; r++ {
			dst[i] = float32(SampleBilinear(img, xf, y+float64(r), fill, 0))
			i++
		}
	}
}

// ExtractPatchNearest fills dst with raw samples around (x, y) rounded to
// the nearest pixel. Every tap coordinate is clamped into
// [radius, dim-1-radius], so the patch never reads within radius of the
// image border. No interpolation and no fill value; border robustness over
// smoothness.
func ExtractPatchNearest(dst []float32, radius int, img Image, x, y float64) {
	xi := int(math.Round(x))
	yi := int(math.Round(y))

	maxCol := img.Cols() - 1 - radius
	maxRow := img.Rows() - 1 - radius

	i := 0
	for c := -radius; c <= radius; c++ {
		col := clampInt(xi+c, radius, maxCol)
		for r := -radius; r <= radius; r++ {
			row := clampInt(yi+r, radius, maxRow)
			dst[i] = float32(img.At(row, col))
			i++
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
