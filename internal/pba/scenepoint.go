package pba

// initialVisibilityCapacity sizes the visibility list for a point living
// inside a short sliding window, so the common case never reallocates.
const initialVisibilityCapacity = 8

// ScenePoint is the persistent per-landmark record: current and original
// 3-D position, the ordered list of frames that observed it, the reference
// appearance patch, and auxiliary bookkeeping for the optimizer.
//
// A point is owned by a single goroutine during a matching pass, so the
// type carries no locking. Structural collection changes happen outside
// the parallel region.
type ScenePoint struct {
	x          Vec3
	xOriginal  Vec3
	visibility []uint32
	patch      ZnccPatch
	descriptor []float64

	saliency   float64
	wasRefined bool

	firstProjection [2]int
}

// NewScenePoint creates a landmark at position x whose reference
// observation is frame refFrame. The visibility list starts with that one
// entry and only ever grows. The original position is retained unmutated
// as a drift anchor.
func NewScenePoint(x Vec3, refFrame uint32) *ScenePoint {
	p := &ScenePoint{
		x:          x,
		xOriginal:  x,
		visibility: make([]uint32, 1, initialVisibilityCapacity),
	}
	p.visibility[0] = refFrame
	return p
}

// HasFrame reports whether frame id is in the visibility list. Linear scan;
// the list stays a handful of entries inside a bounded window, so a scan
// beats a hashed lookup here.
func (p *ScenePoint) HasFrame(id uint32) bool {
	for _, f := range p.visibility {
		if f == id {
			return true
		}
	}
	return false
}

// AddFrame appends an observation. Append-only: ids are never removed or
// reordered, and duplicates are not rejected, so callers must not re-add a
// frame unless re-observation is intended.
func (p *ScenePoint) AddFrame(id uint32) {
	p.visibility = append(p.visibility, id)
}

// VisibilityList returns a copy of the observing frame ids, oldest first.
func (p *ScenePoint) VisibilityList() []uint32 {
	out := make([]uint32, len(p.visibility))
	copy(out, p.visibility)
	return out
}

// RefFrameID returns the reference frame, the first entry of the
// visibility list.
func (p *ScenePoint) RefFrameID() uint32 { return p.visibility[0] }

// LastFrameID returns the most recent observation, the last entry of the
// visibility list.
func (p *ScenePoint) LastFrameID() uint32 { return p.visibility[len(p.visibility)-1] }

// NumFrames returns the number of recorded observations.
func (p *ScenePoint) NumFrames() int { return len(p.visibility) }

// X returns the current estimated 3-D position.
func (p *ScenePoint) X() Vec3 { return p.x }

// SetX updates the current position. Called by the refinement write-back;
// the original position is not affected.
func (p *ScenePoint) SetX(x Vec3) { p.x = x }

// OriginalX returns the position at creation time.
func (p *ScenePoint) OriginalX() Vec3 { return p.xOriginal }

// Patch returns the reference matching template. Read-only to callers.
func (p *ScenePoint) Patch() *ZnccPatch { return &p.patch }

// SetZnccPatch (re)captures the reference template from img at the
// projection (x, y). Called once at the reference frame, or again when the
// reference is deliberately refreshed.
func (p *ScenePoint) SetZnccPatch(img Image, x, y float64) {
	p.patch.Set(img, x, y)
}

// Descriptor returns the opaque descriptor slice. Produced and interpreted
// externally; this package never reads its contents.
func (p *ScenePoint) Descriptor() []float64 { return p.descriptor }

// SetDescriptor stores an externally produced descriptor as-is.
func (p *ScenePoint) SetDescriptor(d []float64) { p.descriptor = d }

// Saliency returns the texture score recorded at selection time.
func (p *ScenePoint) Saliency() float64 { return p.saliency }

// SetSaliency records the texture score.
func (p *ScenePoint) SetSaliency(v float64) { p.saliency = v }

// WasRefined reports whether the optimizer has adjusted this point at
// least once.
func (p *ScenePoint) WasRefined() bool { return p.wasRefined }

// SetRefined records that the optimizer adjusted this point.
func (p *ScenePoint) SetRefined(v bool) { p.wasRefined = v }

// FirstProjection returns the integer pixel (col, row) of the point's
// first reprojection.
func (p *ScenePoint) FirstProjection() [2]int { return p.firstProjection }

// SetFirstProjection caches the integer pixel (col, row) of the first
// reprojection for reseeding and residual initialization.
func (p *ScenePoint) SetFirstProjection(col, row int) {
	p.firstProjection = [2]int{col, row}
}
