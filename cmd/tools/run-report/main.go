// Package main regenerates the HTML report and trajectory plots for a
// stored run without replaying the sequence. With no -run flag it picks
// the most recently started run in the database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/keyframe-data/photobundle/internal/pba/monitor"
	"github.com/keyframe-data/photobundle/internal/pba/store"
)

func main() {
	dbPath := flag.String("db", "photobundle.db", "path to sqlite DB file")
	runID := flag.String("run", "", "run id to report on (empty = latest run)")
	outDir := flag.String("out", "reports", "base directory for report output")
	limit := flag.Int("limit", 2000, "max landmarks to include in the report")
	list := flag.Bool("list", false, "list stored runs and exit")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("DB path %s not accessible: %v", *dbPath, err)
	}
	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if *list {
		listRuns(st)
		return
	}

	id := *runID
	if id == "" {
		id, err = st.LatestRunID()
		if err != nil {
			log.Fatalf("No run specified and no runs found: %v", err)
		}
		log.Printf("Using latest run %s", id)
	}

	rep, err := monitor.BuildRunReport(st, id, *limit)
	if err != nil {
		log.Fatalf("Failed to build report: %v", err)
	}

	dir := monitor.MakeReportOutputDir(*outDir, rep.Run.Dataset)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	htmlPath := filepath.Join(dir, "report.html")
	if err := rep.WriteHTMLFile(htmlPath); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	if len(rep.Trajectory) > 0 {
		if err := monitor.SaveTrajectoryPlot(filepath.Join(dir, "trajectory.png"), rep.Trajectory); err != nil {
			log.Fatalf("Failed to save trajectory plot: %v", err)
		}
	}
	if len(rep.Points) > 0 {
		if err := monitor.SaveLandmarkPlot(filepath.Join(dir, "landmarks.png"), rep.Points); err != nil {
			log.Fatalf("Failed to save landmark plot: %v", err)
		}
	}
	log.Printf("Report written to %s", htmlPath)
}

func listRuns(st *store.Store) {
	runs, err := st.ListRuns()
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs stored")
		return
	}
	for _, r := range runs {
		started := time.Unix(0, r.StartedUnixNanos).Format(time.RFC3339)
		state := "finished"
		if r.FinishedUnixNanos == 0 {
			state = "running"
		}
		fmt.Printf("%s  %s  frames=%d points=%d  %s  %s\n",
			r.RunID, started, r.FrameCount, r.PointCount, state, r.Dataset)
	}
}
