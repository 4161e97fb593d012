package pba

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// storedFrame is one entry of the sliding window: the frame id, its
// intensity raster, and its camera-to-world pose.
type storedFrame struct {
	id    uint32
	image *Gray32
	pose  Mat44
}

// matchResult is the per-point outcome of one matching pass. Workers write
// only their own index, so the slice needs no locking.
type matchResult struct {
	projected bool // reprojection landed inside the bordered frame
	matched   bool // score cleared the acceptance threshold
	u, v      float64
	score     float64
}

// PhotometricBundleAdjustment owns the calibration, frame geometry, and
// options, aggregates the scene-point population, and drives the per-frame
// match/evict/select/refine cycle.
//
// AddFrame is not safe for concurrent callers; the parallelism lives
// inside the matching phase, partitioned by point.
type PhotometricBundleAdjustment struct {
	calib   Calibration
	size    ImageSize
	options Options

	points []*ScenePoint
	frames []storedFrame // sliding window, oldest first
	nextID uint32
}

// NewPhotometricBundleAdjustment validates the calibration, frame
// geometry, and options, and returns an empty orchestrator.
func NewPhotometricBundleAdjustment(calib Calibration, size ImageSize, options Options) (*PhotometricBundleAdjustment, error) {
	if !calib.Valid() {
		return nil, fmt.Errorf("calibration needs positive focal lengths, got fx=%f fy=%f", calib.Fx, calib.Fy)
	}
	if !size.Valid() {
		return nil, fmt.Errorf("image size must be positive, got %dx%d", size.Rows, size.Cols)
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return &PhotometricBundleAdjustment{
		calib:   calib,
		size:    size,
		options: options,
	}, nil
}

// AddFrame ingests one frame: intensity is a row-major 8-bit image of the
// configured size, depth an optional row-major metric depth map (nil to
// skip point selection), pose the camera-to-world transform for this
// frame. result may be nil.
//
// All inputs are validated before any state changes, so a rejected frame
// consumes no frame id and leaves the window and point set untouched.
//
// The call projects every active point into the frame, scores its
// reference patch against the new appearance, records accepted matches in
// the point's visibility list, evicts points that fell out of the window,
// selects new points from salient well-spaced pixels with valid depth, and
// hands the window to the refiner once it is full.
func (pb *PhotometricBundleAdjustment) AddFrame(intensity []uint8, depth []float32, pose Mat44, result *Result) error {
	img, err := Gray32FromBytes(pb.size.Rows, pb.size.Cols, intensity)
	if err != nil {
		return fmt.Errorf("frame %d: %w", pb.nextID, err)
	}
	var dm *Gray32
	if len(depth) > 0 {
		dm, err = Gray32FromFloats(pb.size.Rows, pb.size.Cols, depth)
		if err != nil {
			return fmt.Errorf("frame %d: %w", pb.nextID, err)
		}
	}
	if !pose.IsValidTransform() {
		opsf("frame %d: rejected non-rigid pose", pb.nextID)
		return fmt.Errorf("frame %d: pose is not a rigid transform", pb.nextID)
	}
	worldToCam, err := pose.Inverse()
	if err != nil {
		return fmt.Errorf("frame %d: %w", pb.nextID, err)
	}

	frameID := pb.nextID
	pb.nextID++
	tracked := len(pb.points)

	pb.frames = append(pb.frames, storedFrame{id: frameID, image: img, pose: pose})
	if len(pb.frames) > pb.options.MaxFrameDistance {
		pb.frames = pb.frames[1:]
	}

	// Parallel phase: per-point match, point-confined writes only.
	results := pb.matchPoints(img, worldToCam, frameID)

	// Serialized bookkeeping from here on.
	mask := make([]bool, pb.size.Rows*pb.size.Cols)
	numMatched := 0
	numProjected := 0
	var scoreSum float64
	for i := range results {
		r := &results[i]
		if r.projected {
			numProjected++
		}
		if !r.matched {
			continue
		}
		numMatched++
		scoreSum += r.score
		stampMask(mask, pb.size.Rows, pb.size.Cols,
			int(math.Round(r.v)), int(math.Round(r.u)), pb.options.MaskBlockRadius)
	}
	meanScore := 0.0
	if numMatched > 0 {
		meanScore = scoreSum / float64(numMatched)
	}

	dropped := pb.evictStale(frameID)

	added := 0
	if dm != nil {
		added = pb.selectPoints(img, dm, pose, frameID, mask)
	}

	refined := false
	message := ""
	if pb.options.Refiner != nil && len(pb.frames) == pb.options.MaxFrameDistance {
		refined, message = pb.refineWindow(frameID)
	}

	diagf("frame %d: tracked=%d projected=%d matched=%d dropped=%d added=%d mean=%.3f refined=%v",
		frameID, tracked, numProjected, numMatched, dropped, added, meanScore, refined)

	if result != nil {
		result.FrameID = frameID
		result.Poses = pb.WindowPoses()
		result.NumPointsTracked = tracked
		result.NumMatched = numMatched
		result.NumDropped = dropped
		result.NumAdded = added
		result.MeanScore = meanScore
		result.Refined = refined
		result.Message = message
	}
	return nil
}

// matchPoints projects every point into the frame and scores it against
// its reference patch. Accepted matches append to the point's visibility
// list inside the worker; each worker owns a disjoint index range, so no
// point is touched by two goroutines.
func (pb *PhotometricBundleAdjustment) matchPoints(img *Gray32, worldToCam Mat44, frameID uint32) []matchResult {
	n := len(pb.points)
	results := make([]matchResult, n)
	if n == 0 {
		return results
	}

	workers := 1
	if pb.options.EnableParallel {
		workers = pb.options.NumWorkers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		if workers > n {
			workers = n
		}
	}
	if workers <= 1 {
		pb.matchRange(img, worldToCam, frameID, 0, n, results)
		return results
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			pb.matchRange(img, worldToCam, frameID, lo, hi, results)
		}(lo, hi)
	}
	wg.Wait()
	return results
}

func (pb *PhotometricBundleAdjustment) matchRange(img *Gray32, worldToCam Mat44, frameID uint32, lo, hi int, results []matchResult) {
	border := pb.options.PatchBorder
	for i := lo; i < hi; i++ {
		pt := pb.points[i]
		u, v, ok := pb.calib.Project(worldToCam.Apply(pt.X()))
		if !ok {
			continue
		}
		row := int(math.Round(v))
		col := int(math.Round(u))
		if !pb.size.Contains(row, col, border) {
			continue
		}
		cur := NewZnccPatch(img, u, v)
		score := pt.Patch().Score(&cur)
		results[i] = matchResult{projected: true, u: u, v: v, score: score}
		if score >= pb.options.MinZnccScore {
			pt.AddFrame(frameID)
			results[i].matched = true
		}
		tracef("frame %d point %d uv=(%.1f,%.1f) score=%.3f", frameID, i, u, v, score)
	}
}

// evictStale removes points whose most recent observation has fallen out
// of the sliding window. Runs after the parallel phase; structural changes
// to the population never overlap matching.
func (pb *PhotometricBundleAdjustment) evictStale(frameID uint32) int {
	oldest := int64(frameID) - int64(pb.options.MaxFrameDistance)
	kept := pb.points[:0]
	dropped := 0
	for _, pt := range pb.points {
		if int64(pt.LastFrameID()) < oldest {
			dropped++
			continue
		}
		kept = append(kept, pt)
	}
	// Release evicted pointers so the backing array does not pin them.
	for i := len(kept); i < len(pb.points); i++ {
		pb.points[i] = nil
	}
	pb.points = kept
	return dropped
}

// selectPoints seeds new landmarks from the current frame: pixels that
// clear the saliency quantile, are a strict local maximum, sit outside the
// occupancy mask, and carry depth inside the valid band. Each new point is
// anchored at this frame and stamped into the mask so later candidates
// keep their distance.
func (pb *PhotometricBundleAdjustment) selectPoints(img, depth *Gray32, camToWorld Mat44, frameID uint32, mask []bool) int {
	border := pb.options.PatchBorder
	rows, cols := pb.size.Rows, pb.size.Cols
	if rows <= 2*border || cols <= 2*border {
		return 0
	}

	sal := smooth3x3(SaliencyMap(img))

	samples := make([]float64, 0, (rows-2*border)*(cols-2*border))
	for y := border; y < rows-border; y++ {
		for x := border; x < cols-border; x++ {
			samples = append(samples, sal.At(y, x))
		}
	}
	sort.Float64s(samples)
	thresh := stat.Quantile(pb.options.SaliencyQuantile, stat.Empirical, samples, nil)

	added := 0
	for y := border; y < rows-border; y++ {
		for x := border; x < cols-border; x++ {
			if mask[y*cols+x] {
				continue
			}
			s := sal.At(y, x)
			if s <= 0 || s < thresh {
				continue
			}
			if !isLocalMax(sal, y, x, pb.options.NonMaxSuppRadius) {
				continue
			}
			z := depth.At(y, x)
			if z < pb.options.MinDepth || z > pb.options.MaxDepth {
				continue
			}

			pw := camToWorld.Apply(pb.calib.Backproject(float64(x), float64(y), z))
			pt := NewScenePoint(pw, frameID)
			pt.SetZnccPatch(img, float64(x), float64(y))
			pt.SetFirstProjection(x, y)
			pt.SetSaliency(s)
			if pb.options.DescriptorFunc != nil {
				pt.SetDescriptor(pb.options.DescriptorFunc(img, float64(x), float64(y)))
			}
			pb.points = append(pb.points, pt)
			stampMask(mask, rows, cols, y, x, pb.options.MaskBlockRadius)
			added++
		}
	}
	return added
}

// refineWindow builds the optimizer problem over the current window and
// applies the refinement on success. Returns whether a refinement was
// applied and the refiner's summary message.
func (pb *PhotometricBundleAdjustment) refineWindow(frameID uint32) (bool, string) {
	prob := pb.buildProblem()
	if len(prob.Points) == 0 {
		return false, ""
	}
	ref, err := pb.options.Refiner.Refine(prob)
	if err != nil {
		opsf("frame %d: refiner failed: %v", frameID, err)
		return false, ""
	}
	if len(ref.Points) != len(prob.Points) || len(ref.Poses) != len(prob.Poses) {
		opsf("frame %d: refiner returned mismatched sizes (%d/%d points, %d/%d poses)",
			frameID, len(ref.Points), len(prob.Points), len(ref.Poses), len(prob.Poses))
		return false, ""
	}
	for i, pt := range prob.Points {
		pt.SetX(ref.Points[i])
		pt.SetRefined(true)
	}
	for i := range pb.frames {
		pb.frames[i].pose = ref.Poses[i]
	}
	diagf("frame %d: refined %d points over %d frames in %d iterations (cost %.4g -> %.4g)",
		frameID, len(ref.Points), len(ref.Poses), ref.Iterations, ref.InitialCost, ref.FinalCost)
	return true, ref.Message
}

// buildProblem collects the points visible in at least two window frames,
// the window poses, and the per-frame reprojections the solver treats as
// observations.
func (pb *PhotometricBundleAdjustment) buildProblem() *Problem {
	prob := &Problem{
		FrameIDs: make([]uint32, len(pb.frames)),
		Poses:    make([]Mat44, len(pb.frames)),
	}
	inverses := make([]Mat44, len(pb.frames))
	for i, f := range pb.frames {
		prob.FrameIDs[i] = f.id
		prob.Poses[i] = f.pose
		inv, err := f.pose.Inverse()
		if err != nil {
			// Poses were validated at ingestion; a singular one here means
			// a broken invariant upstream.
			opsf("window frame %d: pose became singular: %v", f.id, err)
			inv = Mat44Identity()
		}
		inverses[i] = inv
	}

	for _, pt := range pb.points {
		inWindow := 0
		for _, f := range pb.frames {
			if pt.HasFrame(f.id) {
				inWindow++
			}
		}
		if inWindow < 2 {
			continue
		}
		idx := len(prob.Points)
		prob.Points = append(prob.Points, pt)
		for i, f := range pb.frames {
			if !pt.HasFrame(f.id) {
				continue
			}
			u, v, ok := pb.calib.Project(inverses[i].Apply(pt.X()))
			if !ok {
				continue
			}
			prob.Observations = append(prob.Observations, Observation{
				PointIndex: idx,
				FrameID:    f.id,
				U:          u,
				V:          v,
			})
		}
	}
	return prob
}

// stampMask marks a square occupancy block around (row, col).
func stampMask(mask []bool, rows, cols, row, col, radius int) {
	for y := row - radius; y <= row+radius; y++ {
		if y < 0 || y >= rows {
			continue
		}
		for x := col - radius; x <= col+radius; x++ {
			if x < 0 || x >= cols {
				continue
			}
			mask[y*cols+x] = true
		}
	}
}

// NumPoints returns the size of the active point population.
func (pb *PhotometricBundleAdjustment) NumPoints() int { return len(pb.points) }

// Points returns the active points. The slice is a copy; the pointed-to
// records are live.
func (pb *PhotometricBundleAdjustment) Points() []*ScenePoint {
	out := make([]*ScenePoint, len(pb.points))
	copy(out, pb.points)
	return out
}

// WindowPoses returns the poses of the buffered window, oldest first.
func (pb *PhotometricBundleAdjustment) WindowPoses() []Mat44 {
	out := make([]Mat44, len(pb.frames))
	for i, f := range pb.frames {
		out[i] = f.pose
	}
	return out
}

// WindowFrameIDs returns the frame ids of the buffered window, oldest
// first.
func (pb *PhotometricBundleAdjustment) WindowFrameIDs() []uint32 {
	out := make([]uint32, len(pb.frames))
	for i, f := range pb.frames {
		out[i] = f.id
	}
	return out
}

// Calibration returns the intrinsics the orchestrator projects through.
func (pb *PhotometricBundleAdjustment) Calibration() Calibration { return pb.calib }

// Size returns the configured frame geometry.
func (pb *PhotometricBundleAdjustment) Size() ImageSize { return pb.size }

// Options returns the active configuration.
func (pb *PhotometricBundleAdjustment) Options() Options { return pb.options }
