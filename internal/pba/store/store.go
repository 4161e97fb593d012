// Package store persists photobundle runs: window poses, the landmark
// population at run end, and per-frame tracking statistics, all keyed by a
// generated run id. Backed by sqlite with the schema managed through
// embedded migrations.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/keyframe-data/photobundle/internal/pba"
)

// Run is one replay of a dataset through the pipeline.
type Run struct {
	RunID             string          `json:"run_id"`
	Dataset           string          `json:"dataset"`
	StartedUnixNanos  int64           `json:"started_unix_nanos"`
	FinishedUnixNanos int64           `json:"finished_unix_nanos,omitempty"`
	FrameCount        int             `json:"frame_count"`
	PointCount        int             `json:"point_count"`
	ParamsJSON        json.RawMessage `json:"params_json,omitempty"`
}

// PoseRecord is one frame's camera-to-world pose within a run.
type PoseRecord struct {
	RunID   string    `json:"run_id"`
	FrameID uint32    `json:"frame_id"`
	Pose    pba.Mat44 `json:"pose"`
	Refined bool      `json:"refined"`
}

// PointRecord is the persisted summary of one landmark at run end.
type PointRecord struct {
	RunID       string  `json:"run_id"`
	PointID     string  `json:"point_id"`
	RefFrameID  uint32  `json:"ref_frame_id"`
	LastFrameID uint32  `json:"last_frame_id"`
	NumFrames   int     `json:"num_frames"`
	Saliency    float64 `json:"saliency"`
	WasRefined  bool    `json:"was_refined"`
	X, Y, Z     float64
	X0, Y0, Z0  float64
}

// PointRecordFrom summarizes a live ScenePoint for persistence. PointID is
// generated here; live points carry no identity of their own.
func PointRecordFrom(runID string, p *pba.ScenePoint) PointRecord {
	x := p.X()
	x0 := p.OriginalX()
	return PointRecord{
		RunID:       runID,
		PointID:     uuid.New().String(),
		RefFrameID:  p.RefFrameID(),
		LastFrameID: p.LastFrameID(),
		NumFrames:   p.NumFrames(),
		Saliency:    p.Saliency(),
		WasRefined:  p.WasRefined(),
		X:           x[0],
		Y:           x[1],
		Z:           x[2],
		X0:          x0[0],
		Y0:          x0[1],
		Z0:          x0[2],
	}
}

// Store provides persistence for photobundle runs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and applies any
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SchemaVersion reports the applied migration version and dirty state.
func (s *Store) SchemaVersion() (uint, bool, error) {
	return migrateVersion(s.db)
}

// InsertRun creates a new run row. If run.RunID is empty a new UUID is
// generated; if StartedUnixNanos is zero the current time is used.
func (s *Store) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedUnixNanos == 0 {
		run.StartedUnixNanos = time.Now().UnixNano()
	}
	params := string(run.ParamsJSON)
	if params == "" {
		params = "{}"
	}

	query := `
		INSERT INTO pba_runs (
			run_id, dataset, started_unix_nanos, finished_unix_nanos,
			frame_count, point_count, params_json
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		run.RunID,
		run.Dataset,
		run.StartedUnixNanos,
		run.FinishedUnixNanos,
		run.FrameCount,
		run.PointCount,
		params,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run's end time and final counters.
func (s *Store) FinishRun(runID string, frameCount, pointCount int) error {
	query := `
		UPDATE pba_runs
		SET finished_unix_nanos = ?, frame_count = ?, point_count = ?
		WHERE run_id = ?
	`
	result, err := s.db.Exec(query, time.Now().UnixNano(), frameCount, pointCount, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check finish result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	query := `
		SELECT run_id, dataset, started_unix_nanos, finished_unix_nanos,
		       frame_count, point_count, params_json
		FROM pba_runs
		WHERE run_id = ?
	`
	var run Run
	var params string
	err := s.db.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.Dataset,
		&run.StartedUnixNanos,
		&run.FinishedUnixNanos,
		&run.FrameCount,
		&run.PointCount,
		&params,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if params != "" {
		run.ParamsJSON = json.RawMessage(params)
	}
	return &run, nil
}

// ListRuns retrieves all runs, newest first.
func (s *Store) ListRuns() ([]*Run, error) {
	query := `
		SELECT run_id, dataset, started_unix_nanos, finished_unix_nanos,
		       frame_count, point_count, params_json
		FROM pba_runs
		ORDER BY started_unix_nanos DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var params string
		if err := rows.Scan(
			&run.RunID,
			&run.Dataset,
			&run.StartedUnixNanos,
			&run.FinishedUnixNanos,
			&run.FrameCount,
			&run.PointCount,
			&params,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if params != "" {
			run.ParamsJSON = json.RawMessage(params)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return runs, nil
}

// LatestRunID returns the id of the most recently started run.
func (s *Store) LatestRunID() (string, error) {
	var runID string
	err := s.db.QueryRow(`
		SELECT run_id FROM pba_runs ORDER BY started_unix_nanos DESC LIMIT 1
	`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no runs recorded")
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return runID, nil
}

// InsertPose upserts one frame's pose. Re-inserting the same (run, frame)
// replaces the stored pose; refinement write-back relies on this.
func (s *Store) InsertPose(rec *PoseRecord) error {
	poseJSON, err := json.Marshal(rec.Pose)
	if err != nil {
		return fmt.Errorf("marshal pose: %w", err)
	}
	query := `
		INSERT INTO pba_poses (run_id, frame_id, pose_json, refined)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, frame_id) DO UPDATE SET
			pose_json = excluded.pose_json,
			refined = excluded.refined
	`
	if _, err := s.db.Exec(query, rec.RunID, rec.FrameID, string(poseJSON), boolToInt(rec.Refined)); err != nil {
		return fmt.Errorf("insert pose: %w", err)
	}
	return nil
}

// GetTrajectory returns the run's poses ordered by frame id.
func (s *Store) GetTrajectory(runID string) ([]*PoseRecord, error) {
	query := `
		SELECT run_id, frame_id, pose_json, refined
		FROM pba_poses
		WHERE run_id = ?
		ORDER BY frame_id ASC
	`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trajectory: %w", err)
	}
	defer rows.Close()

	var recs []*PoseRecord
	for rows.Next() {
		var rec PoseRecord
		var poseJSON string
		var refined int
		if err := rows.Scan(&rec.RunID, &rec.FrameID, &poseJSON, &refined); err != nil {
			return nil, fmt.Errorf("scan pose row: %w", err)
		}
		if err := json.Unmarshal([]byte(poseJSON), &rec.Pose); err != nil {
			return nil, fmt.Errorf("unmarshal pose for frame %d: %w", rec.FrameID, err)
		}
		rec.Refined = refined != 0
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trajectory rows: %w", err)
	}
	return recs, nil
}

// InsertPoints persists the landmark population in one transaction.
func (s *Store) InsertPoints(runID string, points []*pba.ScenePoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin points tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO pba_points (
			run_id, point_id, ref_frame_id, last_frame_id, num_frames,
			saliency, was_refined, x, y, z, x0, y0, z0
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare points insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		rec := PointRecordFrom(runID, p)
		if _, err := stmt.Exec(
			rec.RunID, rec.PointID, rec.RefFrameID, rec.LastFrameID, rec.NumFrames,
			rec.Saliency, boolToInt(rec.WasRefined),
			rec.X, rec.Y, rec.Z, rec.X0, rec.Y0, rec.Z0,
		); err != nil {
			return fmt.Errorf("insert point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit points tx: %w", err)
	}
	return nil
}

// GetPoints retrieves up to limit point records for a run, most-observed
// first. limit <= 0 means no limit.
func (s *Store) GetPoints(runID string, limit int) ([]*PointRecord, error) {
	query := `
		SELECT run_id, point_id, ref_frame_id, last_frame_id, num_frames,
		       saliency, was_refined, x, y, z, x0, y0, z0
		FROM pba_points
		WHERE run_id = ?
		ORDER BY num_frames DESC, point_id ASC
	`
	args := []interface{}{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}
	defer rows.Close()

	var recs []*PointRecord
	for rows.Next() {
		var rec PointRecord
		var refined int
		if err := rows.Scan(
			&rec.RunID, &rec.PointID, &rec.RefFrameID, &rec.LastFrameID, &rec.NumFrames,
			&rec.Saliency, &refined,
			&rec.X, &rec.Y, &rec.Z, &rec.X0, &rec.Y0, &rec.Z0,
		); err != nil {
			return nil, fmt.Errorf("scan point row: %w", err)
		}
		rec.WasRefined = refined != 0
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("points rows: %w", err)
	}
	return recs, nil
}

// InsertFrameStats persists one frame's tracking counters.
func (s *Store) InsertFrameStats(runID string, fs pba.FrameStats) error {
	query := `
		INSERT INTO pba_frame_stats (
			run_id, frame_id, num_points_tracked, num_matched,
			num_dropped, num_added, mean_score, refined
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, frame_id) DO UPDATE SET
			num_points_tracked = excluded.num_points_tracked,
			num_matched = excluded.num_matched,
			num_dropped = excluded.num_dropped,
			num_added = excluded.num_added,
			mean_score = excluded.mean_score,
			refined = excluded.refined
	`
	_, err := s.db.Exec(query,
		runID, fs.FrameID, fs.NumPointsTracked, fs.NumMatched,
		fs.NumDropped, fs.NumAdded, fs.MeanScore, boolToInt(fs.Refined),
	)
	if err != nil {
		return fmt.Errorf("insert frame stats: %w", err)
	}
	return nil
}

// GetFrameStats returns the run's per-frame counters ordered by frame id.
func (s *Store) GetFrameStats(runID string) ([]pba.FrameStats, error) {
	query := `
		SELECT frame_id, num_points_tracked, num_matched,
		       num_dropped, num_added, mean_score, refined
		FROM pba_frame_stats
		WHERE run_id = ?
		ORDER BY frame_id ASC
	`
	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("get frame stats: %w", err)
	}
	defer rows.Close()

	var out []pba.FrameStats
	for rows.Next() {
		var fs pba.FrameStats
		var refined int
		if err := rows.Scan(
			&fs.FrameID, &fs.NumPointsTracked, &fs.NumMatched,
			&fs.NumDropped, &fs.NumAdded, &fs.MeanScore, &refined,
		); err != nil {
			return nil, fmt.Errorf("scan frame stats row: %w", err)
		}
		fs.Refined = refined != 0
		out = append(out, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("frame stats rows: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
