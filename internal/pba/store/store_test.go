package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyframe-data/photobundle/internal/pba"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesMigrations(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	// Reopening the same file must be a no-op, not a failure.
	path := filepath.Join(t.TempDir(), "reopen.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	run := &Run{Dataset: "seq-00", ParamsJSON: json.RawMessage(`{"min_zncc_score":0.75}`)}
	require.NoError(t, s.InsertRun(run))
	assert.NotEmpty(t, run.RunID, "InsertRun should generate a run id")
	assert.NotZero(t, run.StartedUnixNanos)

	require.NoError(t, s.FinishRun(run.RunID, 42, 310))

	got, err := s.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "seq-00", got.Dataset)
	assert.Equal(t, 42, got.FrameCount)
	assert.Equal(t, 310, got.PointCount)
	assert.NotZero(t, got.FinishedUnixNanos)
	assert.JSONEq(t, `{"min_zncc_score":0.75}`, string(got.ParamsJSON))

	latest, err := s.LatestRunID()
	require.NoError(t, err)
	assert.Equal(t, run.RunID, latest)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)
}

func TestFinishRunUnknownID(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishRun("no-such-run", 1, 1)
	assert.Error(t, err)
}

func TestGetRunUnknownID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun("no-such-run")
	assert.Error(t, err)
}

func TestPoseRoundTripAndUpsert(t *testing.T) {
	s := openTestStore(t)

	run := &Run{Dataset: "seq-01"}
	require.NoError(t, s.InsertRun(run))

	pose := pba.Mat44Identity()
	pose[3] = 1.5 // x translation
	require.NoError(t, s.InsertPose(&PoseRecord{
		RunID:   run.RunID,
		FrameID: 0,
		Pose:    pose,
		Refined: false,
	}))

	// Refinement write-back replaces the stored pose for the same frame.
	pose[3] = 1.48
	require.NoError(t, s.InsertPose(&PoseRecord{
		RunID:   run.RunID,
		FrameID: 0,
		Pose:    pose,
		Refined: true,
	}))

	traj, err := s.GetTrajectory(run.RunID)
	require.NoError(t, err)
	require.Len(t, traj, 1)
	assert.Equal(t, uint32(0), traj[0].FrameID)
	assert.True(t, traj[0].Refined)
	assert.InDelta(t, 1.48, traj[0].Pose[3], 1e-12)
}

func TestTrajectoryOrderedByFrame(t *testing.T) {
	s := openTestStore(t)

	run := &Run{Dataset: "seq-02"}
	require.NoError(t, s.InsertRun(run))

	for _, id := range []uint32{2, 0, 1} {
		pose := pba.Mat44Identity()
		pose[11] = float64(id) // z translation
		require.NoError(t, s.InsertPose(&PoseRecord{RunID: run.RunID, FrameID: id, Pose: pose}))
	}

	traj, err := s.GetTrajectory(run.RunID)
	require.NoError(t, err)
	require.Len(t, traj, 3)
	for i, rec := range traj {
		assert.Equal(t, uint32(i), rec.FrameID)
		assert.Equal(t, float64(i), rec.Pose[11])
	}
}

func TestPointsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	run := &Run{Dataset: "seq-03"}
	require.NoError(t, s.InsertRun(run))

	a := pba.NewScenePoint(pba.Vec3{1, 2, 3}, 0)
	a.AddFrame(1)
	a.AddFrame(2)
	a.SetSaliency(7.5)
	a.SetX(pba.Vec3{1.1, 2.1, 3.1})
	a.SetRefined(true)

	b := pba.NewScenePoint(pba.Vec3{-4, 0, 9}, 2)

	require.NoError(t, s.InsertPoints(run.RunID, []*pba.ScenePoint{a, b}))

	recs, err := s.GetPoints(run.RunID, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Ordered most-observed first.
	first := recs[0]
	assert.Equal(t, 3, first.NumFrames)
	assert.Equal(t, uint32(0), first.RefFrameID)
	assert.Equal(t, uint32(2), first.LastFrameID)
	assert.True(t, first.WasRefined)
	assert.InDelta(t, 7.5, first.Saliency, 1e-12)
	assert.InDelta(t, 1.1, first.X, 1e-12)
	assert.InDelta(t, 1.0, first.X0, 1e-12)

	second := recs[1]
	assert.Equal(t, 1, second.NumFrames)
	assert.False(t, second.WasRefined)
	assert.InDelta(t, -4.0, second.X, 1e-12)

	limited, err := s.GetPoints(run.RunID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFrameStatsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	run := &Run{Dataset: "seq-04"}
	require.NoError(t, s.InsertRun(run))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertFrameStats(run.RunID, pba.FrameStats{
			FrameID:          uint32(i),
			NumPointsTracked: 100 + i,
			NumMatched:       90 + i,
			NumDropped:       i,
			NumAdded:         10,
			MeanScore:        0.9,
			Refined:          i == 2,
		}))
	}

	stats, err := s.GetFrameStats(run.RunID)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, 100, stats[0].NumPointsTracked)
	assert.Equal(t, 92, stats[2].NumMatched)
	assert.True(t, stats[2].Refined)
	assert.False(t, stats[0].Refined)
	assert.InDelta(t, 0.9, stats[1].MeanScore, 1e-12)
}
