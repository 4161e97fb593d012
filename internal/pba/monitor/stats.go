package monitor

import (
	"gonum.org/v1/gonum/stat"

	"github.com/keyframe-data/photobundle/internal/pba"
)

// Summary aggregates the per-frame counters of a run.
type Summary struct {
	Frames        int
	TotalMatched  int
	TotalAdded    int
	TotalDropped  int
	MeanMatched   float64
	StdDevMatched float64
	MeanScore     float64 // over frames that matched anything
	RefinedFrames int
}

// Summarize reduces per-frame stats to run-level aggregates.
func Summarize(stats []pba.FrameStats) Summary {
	s := Summary{Frames: len(stats)}
	if len(stats) == 0 {
		return s
	}

	matched := make([]float64, len(stats))
	scores := make([]float64, 0, len(stats))
	for i, fs := range stats {
		matched[i] = float64(fs.NumMatched)
		s.TotalMatched += fs.NumMatched
		s.TotalAdded += fs.NumAdded
		s.TotalDropped += fs.NumDropped
		if fs.Refined {
			s.RefinedFrames++
		}
		if fs.NumMatched > 0 {
			scores = append(scores, fs.MeanScore)
		}
	}

	s.MeanMatched = stat.Mean(matched, nil)
	if len(matched) > 1 {
		s.StdDevMatched = stat.StdDev(matched, nil)
	}
	if len(scores) > 0 {
		s.MeanScore = stat.Mean(scores, nil)
	}
	return s
}
