package pba

import "math"

const (
	// MinZnccNormProduct guards normalization against textureless patches.
	// A norm product at or below this threshold yields the sentinel score.
	MinZnccNormProduct = 1e-6
	// ZnccInvalidScore is the sentinel returned when a correlation cannot
	// be trusted. It sits at the bottom of the legitimate [-1, 1] range.
	ZnccInvalidScore = -1.0
)

// ZnccPatch holds a matching template in zero-mean form together with its
// Euclidean norm. Both are refreshed by every Set call; the norm is never
// recomputed lazily.
type ZnccPatch struct {
	data Patch
	norm float32
}

// NewZnccPatch extracts and normalizes a template at (x, y) in img.
func NewZnccPatch(img Image, x, y float64) ZnccPatch {
	var z ZnccPatch
	z.Set(img, x, y)
	return z
}

// Set extracts an interpolated patch at (x, y) with zero fill, subtracts
// the patch's own mean from every element, and stores the vector with its
// Euclidean norm. After Set the stored data sums to approximately zero.
func (z *ZnccPatch) Set(img Image, x, y float64) {
	ExtractPatch(z.data[:], PatchRadius, img, x, y, 0.0)

	var sum float32
	for _, v := range z.data {
		sum += v
	}
	mean := sum / float32(PatchSize)

	var sq float64
	for i := range z.data {
		z.data[i] -= mean
		d := float64(z.data[i])
		sq += d * d
	}
	z.norm = float32(math.Sqrt(sq))
}

// Score returns the normalized cross-correlation against other: the dot
// product of the two zero-mean vectors over the product of their norms.
// If the norm product is at or below MinZnccNormProduct (flat patch on
// either side) the result is ZnccInvalidScore. Symmetric in its arguments.
func (z *ZnccPatch) Score(other *ZnccPatch) float64 {
	d := float64(z.norm) * float64(other.norm)
	if d <= MinZnccNormProduct {
		return ZnccInvalidScore
	}
	var dot float64
	for i := range z.data {
		dot += float64(z.data[i]) * float64(other.data[i])
	}
	return dot / d
}

// Norm returns the Euclidean norm of the zero-mean template.
func (z *ZnccPatch) Norm() float64 { return float64(z.norm) }

// Data returns the zero-mean template samples. The returned slice aliases
// the patch storage; callers must treat it as read-only.
func (z *ZnccPatch) Data() []float32 { return z.data[:] }
