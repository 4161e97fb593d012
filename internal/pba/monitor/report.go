// Package monitor renders offline run reports: an ECharts HTML summary of
// per-frame tracking counters plus static PNG plots of the trajectory and
// landmark map, all generated from a persisted run.
package monitor

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/keyframe-data/photobundle/internal/pba"
	"github.com/keyframe-data/photobundle/internal/pba/store"
)

// viridisRamp is the color ramp used for visual maps in every chart.
var viridisRamp = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// RunReport bundles everything the HTML report shows for one run.
type RunReport struct {
	Run        *store.Run
	Stats      []pba.FrameStats
	Trajectory []*store.PoseRecord
	Points     []*store.PointRecord
}

// BuildRunReport loads a run and its artifacts from the store. pointLimit
// bounds the landmark scatter payload; <= 0 loads everything.
func BuildRunReport(st *store.Store, runID string, pointLimit int) (*RunReport, error) {
	run, err := st.GetRun(runID)
	if err != nil {
		return nil, err
	}
	stats, err := st.GetFrameStats(runID)
	if err != nil {
		return nil, err
	}
	traj, err := st.GetTrajectory(runID)
	if err != nil {
		return nil, err
	}
	points, err := st.GetPoints(runID, pointLimit)
	if err != nil {
		return nil, err
	}
	return &RunReport{Run: run, Stats: stats, Trajectory: traj, Points: points}, nil
}

// WriteHTML renders the full report page.
func (r *RunReport) WriteHTML(w io.Writer) error {
	page := components.NewPage()
	page.AddCharts(
		r.scoreChart(),
		r.counterChart(),
		r.trajectoryChart(),
		r.landmarkChart(),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// WriteHTMLFile renders the report to a file.
func (r *RunReport) WriteHTMLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	return r.WriteHTML(f)
}

func (r *RunReport) subtitle() string {
	started := time.Unix(0, r.Run.StartedUnixNanos).UTC().Format(time.RFC3339)
	return fmt.Sprintf("run=%s dataset=%s started=%s frames=%d points=%d",
		r.Run.RunID, r.Run.Dataset, started, r.Run.FrameCount, r.Run.PointCount)
}

func (r *RunReport) frameLabels() []string {
	labels := make([]string, len(r.Stats))
	for i, s := range r.Stats {
		labels[i] = fmt.Sprintf("%d", s.FrameID)
	}
	return labels
}

// scoreChart plots the mean accepted correlation score per frame.
func (r *RunReport) scoreChart() *charts.Line {
	data := make([]opts.LineData, len(r.Stats))
	for i, s := range r.Stats {
		data[i] = opts.LineData{Value: s.MeanScore}
	}

	sum := Summarize(r.Stats)
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "photobundle run", Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Mean match score per frame",
			Subtitle: fmt.Sprintf("%s mean=%.3f", r.subtitle(), sum.MeanScore),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ZNCC", Min: -1, Max: 1}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
	)
	line.SetXAxis(r.frameLabels()).AddSeries("mean score", data)
	return line
}

// counterChart plots the per-frame tracking counters as grouped bars.
func (r *RunReport) counterChart() *charts.Bar {
	matched := make([]opts.BarData, len(r.Stats))
	added := make([]opts.BarData, len(r.Stats))
	dropped := make([]opts.BarData, len(r.Stats))
	for i, s := range r.Stats {
		matched[i] = opts.BarData{Value: s.NumMatched}
		added[i] = opts.BarData{Value: s.NumAdded}
		dropped[i] = opts.BarData{Value: s.NumDropped}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tracking counters per frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
	)
	bar.SetXAxis(r.frameLabels()).
		AddSeries("matched", matched).
		AddSeries("added", added).
		AddSeries("dropped", dropped)
	return bar
}

// trajectoryChart plots the camera path top-down with symmetric axes.
func (r *RunReport) trajectoryChart() *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(r.Trajectory))
	maxAbs := 0.0
	for _, rec := range r.Trajectory {
		t := rec.Pose.Translation()
		x, z := t[0], t[2]
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(z) > maxAbs {
			maxAbs = math.Abs(z)
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, z, rec.FrameID}})
	}
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	maxFrame := float64(1)
	if n := len(r.Trajectory); n > 0 {
		maxFrame = float64(r.Trajectory[n-1].FrameID)
		if maxFrame == 0 {
			maxFrame = 1
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "700px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Camera trajectory", Subtitle: fmt.Sprintf("poses=%d", len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "x (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "z (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxFrame),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisRamp},
		}),
	)
	scatter.AddSeries("trajectory", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter
}

// landmarkChart plots the landmark map top-down, colored by how many
// frames observed each point.
func (r *RunReport) landmarkChart() *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(r.Points))
	maxAbs := 0.0
	maxSeen := float64(1)
	for _, p := range r.Points {
		if math.Abs(p.X) > maxAbs {
			maxAbs = math.Abs(p.X)
		}
		if math.Abs(p.Z) > maxAbs {
			maxAbs = math.Abs(p.Z)
		}
		if float64(p.NumFrames) > maxSeen {
			maxSeen = float64(p.NumFrames)
		}
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Z, p.NumFrames}})
	}
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "700px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Landmark map", Subtitle: fmt.Sprintf("points=%d", len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "x (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "z (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSeen),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisRamp},
		}),
	)
	scatter.AddSeries("landmarks", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter
}
