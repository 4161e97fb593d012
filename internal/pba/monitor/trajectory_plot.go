package monitor

import (
	"fmt"
	"image/color"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/keyframe-data/photobundle/internal/pba/store"
)

var (
	pathColor     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	refinedColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	landmarkColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// SaveTrajectoryPlot writes a top-down (x, z) PNG of the camera path.
// Refined poses are overlaid as markers.
func SaveTrajectoryPlot(path string, traj []*store.PoseRecord) error {
	if len(traj) == 0 {
		return fmt.Errorf("no poses to plot")
	}

	p := plot.New()
	p.Title.Text = "Camera trajectory (top-down)"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "z (m)"

	pts := make(plotter.XYs, 0, len(traj))
	refined := make(plotter.XYs, 0)
	for _, rec := range traj {
		t := rec.Pose.Translation()
		xy := plotter.XY{X: t[0], Y: t[2]}
		pts = append(pts, xy)
		if rec.Refined {
			refined = append(refined, xy)
		}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("trajectory line: %w", err)
	}
	line.Color = pathColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("path", line)

	if len(refined) > 0 {
		sc, err := plotter.NewScatter(refined)
		if err != nil {
			return fmt.Errorf("refined markers: %w", err)
		}
		sc.GlyphStyle.Color = refinedColor
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("refined", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}

// SaveLandmarkPlot writes a top-down (x, z) PNG of the landmark map.
func SaveLandmarkPlot(path string, points []*store.PointRecord) error {
	if len(points) == 0 {
		return fmt.Errorf("no landmarks to plot")
	}

	p := plot.New()
	p.Title.Text = "Landmark map (top-down)"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "z (m)"

	pts := make(plotter.XYs, len(points))
	for i, rec := range points {
		pts[i] = plotter.XY{X: rec.X, Y: rec.Z}
	}

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("landmark scatter: %w", err)
	}
	sc.GlyphStyle.Color = landmarkColor
	sc.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(sc)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save landmark plot: %w", err)
	}
	return nil
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakeReportOutputDir returns a timestamped output directory for one run's
// report artifacts: <baseDir>/<dataset>/<timestamp>.
func MakeReportOutputDir(baseDir, dataset string) string {
	ts := FormatTimestamp(time.Now())
	if dataset != "" {
		return filepath.Join(baseDir, filepath.Base(dataset), ts)
	}
	return filepath.Join(baseDir, "run_"+ts)
}
