package main

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/config"
	"github.com/your-org/vca/internal/export"
	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/storage"
	"github.com/your-org/vca/internal/traffic"
)

type fakeSource struct {
	fps    float64
	frames int
	err    error // returned after the last frame
}

func (s *fakeSource) Info() analysis.SourceInfo {
	return analysis.SourceInfo{FPS: s.fps, Width: 640, Height: 480, Frames: s.frames}
}

func (s *fakeSource) Frames(ctx context.Context, fn func(analysis.Frame) error) error {
	for i := 0; i < s.frames; i++ {
		if err := fn(analysis.Frame{Index: i}); err != nil {
			return err
		}
	}
	return s.err
}

// scriptedTracker returns one frame's objects per call.
type scriptedTracker struct {
	frames [][]analysis.TrackedObject
	calls  int
}

func (t *scriptedTracker) Track(context.Context, image.Image) ([]analysis.TrackedObject, error) {
	defer func() { t.calls++ }()
	if t.calls < len(t.frames) {
		return t.frames[t.calls], nil
	}
	return nil, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(context.Context, image.Image) ([]analysis.FaceEmotion, error) {
	var p analysis.EmotionProfile
	p[1] = 75 // happiness
	p[0] = 25
	return []analysis.FaceEmotion{{Box: image.Rect(0, 0, 10, 10), Profile: p}}, nil
}

type fakeEvents struct {
	mu        sync.Mutex
	progress  []models.RunProgress
	completed []models.RunCompleted
}

func (e *fakeEvents) PublishProgress(_ context.Context, ev models.RunProgress) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = append(e.progress, ev)
	return nil
}

func (e *fakeEvents) PublishCompleted(_ context.Context, ev models.RunCompleted) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, ev)
	return nil
}

type fakeUploader struct {
	files []string
}

func (u *fakeUploader) UploadArtifacts(_ context.Context, runID uuid.UUID, files []string) ([]string, error) {
	u.files = append(u.files, files...)
	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, storage.ArtifactKey(runID, f))
	}
	return keys, nil
}

func intPtr(v int) *int { return &v }

func newTestRunner(t *testing.T, source analysis.FrameSource, tracker analysis.ObjectTracker) (*Runner, *fakeEvents) {
	t.Helper()
	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Export = config.ExportConfig{OutputDir: t.TempDir(), Workbook: "counts.xlsx"}
	cfg.Emotion.CurveFiles = map[string]string{"joy": "joy.png"}
	cfg.Display.OutputVideo = ""
	cfg.Emotion.OutputVideo = ""
	cfg.Vision.ProgressEveryFrames = 1

	zones, err := cfg.ZoneSet()
	require.NoError(t, err)

	events := &fakeEvents{}
	return &Runner{
		cfg:   cfg,
		zones: zones,
		open: func(context.Context, string, int, int) (analysis.FrameSource, error) {
			return source, nil
		},
		newTracker: func() analysis.ObjectTracker { return tracker },
		analyzer:   fakeAnalyzer{},
		events:     events,
	}, events
}

// A car entering through zone A and leaving through zone B, plus a pedestrian.
func crossingTracker() *scriptedTracker {
	return &scriptedTracker{frames: [][]analysis.TrackedObject{
		{{ID: intPtr(1), Label: "car", Box: image.Rect(380, 50, 400, 70)}},
		{
			{ID: intPtr(1), Label: "car", Box: image.Rect(490, 290, 510, 310)},
			{ID: intPtr(2), Label: "person", Box: image.Rect(10, 400, 30, 440)},
		},
	}}
}

func TestRunnerCountRun(t *testing.T) {
	r, events := newTestRunner(t, &fakeSource{fps: 25, frames: 2}, crossingTracker())
	id := uuid.New()

	err := r.Execute(context.Background(), models.RunCommand{
		Action: "start", RunID: id.String(), Mode: models.RunModeCount, URL: "video.mp4",
	})
	require.NoError(t, err)

	require.Len(t, events.completed, 1)
	c := events.completed[0]
	assert.Equal(t, id, c.Run.ID)
	assert.Equal(t, models.RunStatusCompleted, c.Run.Status)
	assert.Equal(t, 2, c.Run.Frames)
	assert.Equal(t, 1, c.Run.Vehicles)
	assert.Equal(t, 1, c.Run.Persons)
	assert.NotNil(t, c.Run.FinishedAt)
	assert.Equal(t, []traffic.TransitionCount{
		{Transition: traffic.Transition{Entry: "A", Exit: "B"}, Count: 1},
	}, c.Transitions)
	assert.Empty(t, c.Run.Artifacts)

	// start + one per frame
	assert.Len(t, events.progress, 3)
	assert.Equal(t, 1, events.progress[2].Vehicles)

	assert.FileExists(t, filepath.Join(r.cfg.Export.OutputDir, id.String(), "counts.xlsx"))
}

func TestRunnerUploadsArtifacts(t *testing.T) {
	r, events := newTestRunner(t, &fakeSource{fps: 25, frames: 2}, crossingTracker())
	uploader := &fakeUploader{}
	r.artifacts = uploader
	r.cfg.Export.UploadResults = true
	id := uuid.New()

	require.NoError(t, r.Execute(context.Background(), models.RunCommand{
		Action: "start", RunID: id.String(), Mode: models.RunModeCount,
	}))

	require.Len(t, uploader.files, 1)
	assert.Equal(t, []string{storage.ArtifactKey(id, "counts.xlsx")}, events.completed[0].Run.Artifacts)
}

func TestRunnerStoppedRunKeepsPartialResults(t *testing.T) {
	r, events := newTestRunner(t, &fakeSource{fps: 25, frames: 2}, crossingTracker())
	id := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, r.Execute(ctx, models.RunCommand{
		Action: "start", RunID: id.String(), Mode: models.RunModeCount,
	}))

	require.Len(t, events.completed, 1)
	assert.Equal(t, models.RunStatusStopped, events.completed[0].Run.Status)
	assert.FileExists(t, filepath.Join(r.cfg.Export.OutputDir, id.String(), "counts.xlsx"))
}

func TestRunnerEmotionRun(t *testing.T) {
	r, events := newTestRunner(t, &fakeSource{fps: 2, frames: 4}, nil)
	id := uuid.New()

	require.NoError(t, r.Execute(context.Background(), models.RunCommand{
		Action: "start", RunID: id.String(), Mode: models.RunModeEmotion,
	}))

	require.Len(t, events.completed, 1)
	c := events.completed[0]
	assert.Equal(t, models.RunStatusCompleted, c.Run.Status)
	assert.Equal(t, 2, c.Run.Samples)
	require.Len(t, c.Samples, 2)
	assert.Equal(t, 2, c.Samples[1].Frame)
	assert.Equal(t, 75.0, c.Samples[1].Joy)

	_, err := os.Stat(filepath.Join(r.cfg.Export.OutputDir, id.String(), "joy.png"))
	assert.NoError(t, err)
}

func TestRunnerFailures(t *testing.T) {
	t.Run("source", func(t *testing.T) {
		r, events := newTestRunner(t, nil, nil)
		r.open = func(context.Context, string, int, int) (analysis.FrameSource, error) {
			return nil, errors.New("no such file")
		}
		err := r.Execute(context.Background(), models.RunCommand{
			Action: "start", RunID: uuid.NewString(), Mode: models.RunModeCount,
		})
		require.Error(t, err)

		require.Len(t, events.completed, 1)
		run := events.completed[0].Run
		assert.Equal(t, models.RunStatusFailed, run.Status)
		assert.Contains(t, run.ErrorMessage, "open source")
	})

	t.Run("mode", func(t *testing.T) {
		r, events := newTestRunner(t, &fakeSource{fps: 25, frames: 1}, nil)
		err := r.Execute(context.Background(), models.RunCommand{
			Action: "start", RunID: uuid.NewString(), Mode: "dance",
		})
		require.Error(t, err)
		assert.Equal(t, models.RunStatusFailed, events.completed[0].Run.Status)
	})

	t.Run("run id", func(t *testing.T) {
		r, events := newTestRunner(t, nil, nil)
		require.Error(t, r.Execute(context.Background(), models.RunCommand{Action: "start", RunID: "x"}))
		assert.Empty(t, events.completed)
	})
}

func TestRunnerReportsExportFailures(t *testing.T) {
	r, events := newTestRunner(t, &fakeSource{fps: 25, frames: 2}, crossingTracker())
	r.cfg.Export.Workbook = "counts.txt"
	r.cfg.Export.HTMLReport = "report.html"

	require.NoError(t, r.Execute(context.Background(), models.RunCommand{
		Action: "start", RunID: uuid.NewString(), Mode: models.RunModeCount,
	}))

	require.Len(t, events.completed, 1)
	run := events.completed[0].Run
	assert.Equal(t, models.RunStatusCompleted, run.Status, "counts are still valid")
	assert.Equal(t, 1, run.Vehicles)
	assert.Contains(t, run.ErrorMessage, "export")
	assert.Contains(t, run.ErrorMessage, "workbook")
}

func TestRunnerSharesSQLiteAcrossRuns(t *testing.T) {
	r, _ := newTestRunner(t, &fakeSource{fps: 25, frames: 2}, nil)
	r.newTracker = func() analysis.ObjectTracker { return crossingTracker() }
	r.cfg.Export.SQLitePath = "results.db"

	for i := 0; i < 2; i++ {
		require.NoError(t, r.Execute(context.Background(), models.RunCommand{
			Action: "start", RunID: uuid.NewString(), Mode: models.RunModeCount,
		}))
	}

	store, err := export.OpenSQLite(filepath.Join(r.cfg.Export.OutputDir, "results.db"))
	require.NoError(t, err)
	defer store.Close()
	records, err := store.ListCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, 1, rec.Vehicles)
		assert.Equal(t, 1, rec.Persons)
	}
}

func TestRunnerSourceFailureExportsPartialResults(t *testing.T) {
	boom := errors.New("pipe closed")
	r, events := newTestRunner(t, &fakeSource{fps: 25, frames: 2, err: boom}, crossingTracker())
	id := uuid.New()

	err := r.Execute(context.Background(), models.RunCommand{
		Action: "start", RunID: id.String(), Mode: models.RunModeCount,
	})
	require.ErrorIs(t, err, boom)

	require.Len(t, events.completed, 1)
	c := events.completed[0]
	assert.Equal(t, models.RunStatusFailed, c.Run.Status)
	assert.Contains(t, c.Run.ErrorMessage, "pipe closed")
	assert.Equal(t, 2, c.Run.Frames)
	assert.Equal(t, 1, c.Run.Vehicles)
	assert.Len(t, c.Transitions, 1)
	assert.FileExists(t, filepath.Join(r.cfg.Export.OutputDir, id.String(), "counts.xlsx"))
}
