package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/config"
	"github.com/your-org/vca/internal/export"
	"github.com/your-org/vca/internal/ingest"
	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/render"
	"github.com/your-org/vca/internal/traffic"
)

// EventPublisher reports run progress and outcome on the RUNS stream.
type EventPublisher interface {
	PublishProgress(ctx context.Context, ev models.RunProgress) error
	PublishCompleted(ctx context.Context, ev models.RunCompleted) error
}

// ArtifactUploader stores exported files under the run's prefix.
type ArtifactUploader interface {
	UploadArtifacts(ctx context.Context, runID uuid.UUID, files []string) ([]string, error)
}

type sourceOpener func(ctx context.Context, url string, fps, width int) (analysis.FrameSource, error)

func openFFmpeg(ctx context.Context, url string, fps, width int) (analysis.FrameSource, error) {
	return ingest.Open(ctx, url, fps, width)
}

// Runner executes analysis runs for the ingest manager.
type Runner struct {
	cfg        *config.Config
	zones      *traffic.ZoneSet
	open       sourceOpener
	newTracker func() analysis.ObjectTracker
	analyzer   analysis.FaceAnalyzer
	events     EventPublisher
	artifacts  ArtifactUploader // nil disables uploads
}

func (r *Runner) Execute(ctx context.Context, cmd models.RunCommand) error {
	id, err := uuid.Parse(cmd.RunID)
	if err != nil {
		return fmt.Errorf("parse run id: %w", err)
	}

	run := models.Run{
		ID:         id,
		Mode:       cmd.Mode,
		SourceURL:  cmd.URL,
		SourceType: cmd.SourceType,
		Status:     models.RunStatusRunning,
		CreatedAt:  time.Now().UTC(),
	}
	r.progress(ctx, models.RunProgress{RunID: id})

	completed, runErr := r.execute(ctx, &run, cmd)
	if runErr != nil {
		run.Status = models.RunStatusFailed
		msg := runErr.Error()
		if run.ErrorMessage != "" {
			msg += "; " + run.ErrorMessage
		}
		run.ErrorMessage = msg
	}
	now := time.Now().UTC()
	run.UpdatedAt = now
	run.FinishedAt = &now
	completed.Run = run

	// The run context is cancelled on stop; the final event must still go out.
	if err := r.events.PublishCompleted(context.WithoutCancel(ctx), completed); err != nil {
		return errors.Join(runErr, fmt.Errorf("publish completed: %w", err))
	}
	slog.Info("run published", "run_id", id, "status", run.Status, "artifacts", len(run.Artifacts))
	return runErr
}

func (r *Runner) execute(ctx context.Context, run *models.Run, cmd models.RunCommand) (models.RunCompleted, error) {
	var completed models.RunCompleted

	var video string
	switch cmd.Mode {
	case models.RunModeCount:
		video = r.cfg.Display.OutputVideo
	case models.RunModeEmotion:
		video = r.cfg.Emotion.OutputVideo
	default:
		return completed, fmt.Errorf("unknown mode %q", cmd.Mode)
	}

	fps := cmd.FPS
	if fps == 0 {
		fps = r.cfg.Vision.FPS
	}
	source, err := r.open(ctx, cmd.URL, fps, r.cfg.Vision.FrameWidth)
	if err != nil {
		return completed, fmt.Errorf("open source: %w", err)
	}
	if s, ok := source.(interface{ Stop() }); ok {
		defer s.Stop()
	}

	dir := filepath.Join(r.cfg.Export.OutputDir, run.ID.String())
	exportCfg := r.exportConfig(dir)

	// The video must be finalized before it is uploaded, so it is closed
	// right after the analysis and only deferred for the error paths.
	var annotated analysis.Renderer
	closeVideo := func() {}
	defer func() { closeVideo() }()
	if video != "" {
		video = filepath.Join(dir, filepath.Base(video))
		vw, err := r.openVideo(source.Info(), video, cmd.Mode == models.RunModeCount)
		if err != nil {
			slog.Warn("open annotated video", "run_id", run.ID, "error", err)
			video = ""
		} else {
			annotated = vw
			closeVideo = func() {
				if err := vw.Close(); err != nil {
					slog.Warn("close annotated video", "run_id", run.ID, "error", err)
				}
			}
		}
	}

	progress := func(p analysis.Progress) {
		r.progress(ctx, models.RunProgress{
			RunID:    run.ID,
			Frame:    p.Frame,
			Vehicles: p.Vehicles,
			Persons:  p.Persons,
			Samples:  p.Samples,
		})
	}

	// A source failure still yields the partial result, which is exported
	// before the run is reported as failed.
	var (
		exporter *export.Exporter
		content  export.Report
		stopped  bool
		runErr   error
	)
	switch cmd.Mode {
	case models.RunModeCount:
		result, err := (&analysis.CountRun{
			Source:        source,
			Tracker:       r.newTracker(),
			Renderer:      annotated,
			Zones:         r.zones,
			Categories:    r.cfg.Classes.Categories(),
			ProgressEvery: r.cfg.Vision.ProgressEveryFrames,
			Progress:      progress,
		}).Run(ctx)
		if result == nil {
			return completed, err
		}
		runErr = err
		summary := result.Summary
		run.Frames, run.FrameErrors = result.Frames, len(result.FrameErrors)
		run.Vehicles, run.Persons = summary.Vehicles, summary.Persons
		completed.Transitions = summary.Matrix.Rows()
		completed.Trajectories = summary.Trajectories
		exporter = export.NewExporter(exportCfg, nil)
		content = export.Report{Counts: &summary}
		stopped = result.Stopped

	case models.RunModeEmotion:
		result, err := (&analysis.EmotionRun{
			Source:        source,
			Analyzer:      r.analyzer,
			Renderer:      annotated,
			SampleEvery:   sampleEvery(r.cfg.Emotion, source.Info().FPS),
			ProgressEvery: r.cfg.Vision.ProgressEveryFrames,
			Progress:      progress,
		}).Run(ctx)
		if result == nil {
			return completed, err
		}
		runErr = err
		run.Frames, run.FrameErrors = result.Frames, len(result.FrameErrors)
		run.Samples = len(result.Samples)
		completed.Samples = result.Samples
		exporter = export.NewExporter(exportCfg, r.cfg.Emotion.CurveFiles)
		content = export.Report{Samples: result.Samples}
		stopped = result.Stopped
	}

	closeVideo()
	closeVideo = func() {}

	run.Status = models.RunStatusCompleted
	if stopped {
		run.Status = models.RunStatusStopped
	}

	// Partial results of a stopped run are exported too.
	exportCtx := context.WithoutCancel(ctx)
	files, err := exporter.Export(exportCtx, content)
	if err != nil {
		slog.Warn("export run", "run_id", run.ID, "error", err)
		run.ErrorMessage = fmt.Sprintf("export: %v", err)
	}
	if video != "" {
		files = append(files, video)
	}

	if r.artifacts != nil && r.cfg.Export.UploadResults && len(files) > 0 {
		keys, err := r.artifacts.UploadArtifacts(exportCtx, run.ID, files)
		if err != nil {
			slog.Warn("upload artifacts", "run_id", run.ID, "error", err)
		}
		run.Artifacts = keys
	}
	return completed, runErr
}

// exportConfig points the run's exports at dir. The sqlite file accumulates
// one row per run, so a relative path resolves against the shared output
// directory instead.
func (r *Runner) exportConfig(dir string) config.ExportConfig {
	cfg := r.cfg.Export
	cfg.OutputDir = dir
	if p := cfg.SQLitePath; p != "" && !filepath.IsAbs(p) {
		path := filepath.Join(r.cfg.Export.OutputDir, p)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		cfg.SQLitePath = path
	}
	return cfg
}

func (r *Runner) openVideo(info analysis.SourceInfo, path string, counters bool) (*render.Renderer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return render.New(render.Options{
		Counters:    counters,
		OutputVideo: path,
		FPS:         info.FPS,
		Width:       info.Width,
		Height:      info.Height,
	})
}

func (r *Runner) progress(ctx context.Context, ev models.RunProgress) {
	ev.Timestamp = time.Now().UTC()
	if err := r.events.PublishProgress(ctx, ev); err != nil {
		slog.Warn("publish progress", "run_id", ev.RunID, "error", err)
	}
}

// sampleEvery converts the configured sample interval to a frame count.
func sampleEvery(cfg config.EmotionConfig, fps float64) int {
	if fps <= 0 {
		return 0
	}
	return analysis.SampleInterval(fps * cfg.SampleInterval.Seconds())
}
