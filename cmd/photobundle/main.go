// Package main replays a KITTI-style odometry sequence through the
// photometric bundle adjustment pipeline. Each frame's pose and tracking
// counters are persisted to SQLite as they are produced; the surviving
// landmarks are written at the end, followed by an HTML report and PNG
// trajectory plots.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/keyframe-data/photobundle/internal/config"
	"github.com/keyframe-data/photobundle/internal/dataset"
	"github.com/keyframe-data/photobundle/internal/pba"
	"github.com/keyframe-data/photobundle/internal/pba/monitor"
	"github.com/keyframe-data/photobundle/internal/pba/store"
	"github.com/keyframe-data/photobundle/internal/version"
)

// replayConfig holds the parsed command-line flags.
type replayConfig struct {
	DatasetDir string
	ConfigPath string
	DBPath     string
	ReportDir  string
	MaxFrames  int
	Serial     bool
	Workers    int
	Verbose    bool
	NoReport   bool
	ShowVer    bool
}

func parseFlags() replayConfig {
	cfg := replayConfig{}

	flag.StringVar(&cfg.DatasetDir, "dataset", "", "Path to a KITTI-style sequence directory (required)")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Path to a tuning config JSON (built-in defaults when empty)")
	flag.StringVar(&cfg.DBPath, "db", "photobundle.db", "SQLite database for run output")
	flag.StringVar(&cfg.ReportDir, "report-dir", "reports", "Base directory for HTML reports and plots")
	flag.IntVar(&cfg.MaxFrames, "max-frames", 0, "Stop after this many frames (0 = whole sequence)")
	flag.BoolVar(&cfg.Serial, "serial", false, "Disable parallel point matching")
	flag.IntVar(&cfg.Workers, "workers", 0, "Worker goroutines for matching (0 = one per CPU)")
	flag.BoolVar(&cfg.Verbose, "v", false, "Verbose per-frame logging")
	flag.BoolVar(&cfg.NoReport, "no-report", false, "Skip report and plot generation")
	flag.BoolVar(&cfg.ShowVer, "version", false, "Print build version and exit")

	flag.Parse()

	return cfg
}

func main() {
	cfg := parseFlags()

	if cfg.ShowVer {
		fmt.Printf("photobundle %s\n", version.String())
		return
	}
	if cfg.DatasetDir == "" {
		fmt.Fprintln(os.Stderr, "usage: photobundle -dataset <sequence dir> [flags]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	tuning := config.EmptyTuningConfig()
	if cfg.ConfigPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(cfg.ConfigPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	if cfg.Verbose {
		pba.SetLogWriters(os.Stderr, os.Stderr, nil)
	} else {
		pba.SetLogWriters(os.Stderr, nil, nil)
	}

	log.Printf("photobundle %s", version.String())
	if err := replay(cfg, tuning); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
}

func replay(cfg replayConfig, tuning *config.TuningConfig) error {
	ds, err := dataset.Load(cfg.DatasetDir, tuning.GetDepthDivisor())
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	frames := ds.FrameCount()
	if cfg.MaxFrames > 0 && cfg.MaxFrames < frames {
		frames = cfg.MaxFrames
	}
	log.Printf("Loaded %s: %d frames, %dx%d px, depth=%v",
		cfg.DatasetDir, ds.FrameCount(), ds.Size.Cols, ds.Size.Rows, ds.HasDepth())

	opts := pba.OptionsFromTuning(tuning)
	if cfg.Serial {
		opts = opts.WithWorkers(false, 0)
	} else if cfg.Workers > 0 {
		opts = opts.WithWorkers(true, cfg.Workers)
	}
	pb, err := pba.NewPhotometricBundleAdjustment(ds.Calib, ds.Size, opts)
	if err != nil {
		return fmt.Errorf("init estimator: %w", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	params, err := json.Marshal(tuning)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	run := &store.Run{
		Dataset:          cfg.DatasetDir,
		StartedUnixNanos: time.Now().UnixNano(),
		ParamsJSON:       params,
	}
	if err := st.InsertRun(run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	log.Printf("Run %s started", run.RunID)

	start := time.Now()
	processed := 0
	for i := 0; i < frames; i++ {
		fd, err := ds.Frame(i)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}

		var res pba.Result
		if err := pb.AddFrame(fd.Intensity, fd.Depth, fd.Pose, &res); err != nil {
			// Rejected frames consume no frame id; keep replaying.
			log.Printf("Frame %d skipped: %v", i, err)
			continue
		}
		processed++

		if err := st.InsertFrameStats(run.RunID, pba.StatsFromResult(&res)); err != nil {
			return fmt.Errorf("frame %d stats: %w", i, err)
		}
		if len(res.Poses) > 0 {
			rec := &store.PoseRecord{
				RunID:   run.RunID,
				FrameID: res.FrameID,
				Pose:    res.Poses[len(res.Poses)-1],
				Refined: res.Refined,
			}
			if err := st.InsertPose(rec); err != nil {
				return fmt.Errorf("frame %d pose: %w", i, err)
			}
		}

		if cfg.Verbose || (i+1)%50 == 0 || i == frames-1 {
			log.Printf("Frame %d/%d: tracked=%d matched=%d added=%d dropped=%d score=%.3f",
				i+1, frames, res.NumPointsTracked, res.NumMatched, res.NumAdded,
				res.NumDropped, res.MeanScore)
		}
	}
	elapsed := time.Since(start)

	if err := st.InsertPoints(run.RunID, pb.Points()); err != nil {
		return fmt.Errorf("insert points: %w", err)
	}
	if err := st.FinishRun(run.RunID, processed, pb.NumPoints()); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	log.Printf("Run %s finished: %d frames in %s, %d live points",
		run.RunID, processed, elapsed.Round(time.Millisecond), pb.NumPoints())

	if cfg.NoReport {
		return nil
	}
	return writeReport(st, run.RunID, cfg.ReportDir, cfg.DatasetDir, tuning.GetReportPointLimit())
}

func writeReport(st *store.Store, runID, baseDir, datasetDir string, pointLimit int) error {
	rep, err := monitor.BuildRunReport(st, runID, pointLimit)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	outDir := monitor.MakeReportOutputDir(baseDir, datasetDir)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	htmlPath := filepath.Join(outDir, "report.html")
	if err := rep.WriteHTMLFile(htmlPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if len(rep.Trajectory) > 0 {
		if err := monitor.SaveTrajectoryPlot(filepath.Join(outDir, "trajectory.png"), rep.Trajectory); err != nil {
			return fmt.Errorf("trajectory plot: %w", err)
		}
	}
	if len(rep.Points) > 0 {
		if err := monitor.SaveLandmarkPlot(filepath.Join(outDir, "landmarks.png"), rep.Points); err != nil {
			return fmt.Errorf("landmark plot: %w", err)
		}
	}
	log.Printf("Report written to %s", htmlPath)
	return nil
}
