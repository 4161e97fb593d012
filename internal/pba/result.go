package pba

// Result reports one AddFrame call: the window poses after any refinement
// and the per-frame tracking counters.
type Result struct {
	FrameID uint32  // id assigned to the ingested frame
	Poses   []Mat44 // window poses, oldest first, refined when Refined is true

	NumPointsTracked int     // active points before this frame
	NumMatched       int     // points whose match cleared the score threshold
	NumDropped       int     // points evicted after this frame
	NumAdded         int     // points selected from this frame
	MeanScore        float64 // mean accepted ZNCC score; 0 when nothing matched

	Refined bool   // true when the refiner ran and was applied
	Message string // refiner summary, empty otherwise
}

// FrameStats mirrors the Result counters for persistence.
type FrameStats struct {
	FrameID          uint32
	NumPointsTracked int
	NumMatched       int
	NumDropped       int
	NumAdded         int
	MeanScore        float64
	Refined          bool
}

// StatsFromResult extracts the persistable counters from a Result.
func StatsFromResult(r *Result) FrameStats {
	return FrameStats{
		FrameID:          r.FrameID,
		NumPointsTracked: r.NumPointsTracked,
		NumMatched:       r.NumMatched,
		NumDropped:       r.NumDropped,
		NumAdded:         r.NumAdded,
		MeanScore:        r.MeanScore,
		Refined:          r.Refined,
	}
}
