package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/vca/internal/observability"
	"github.com/your-org/vca/internal/traffic"
)

// CountRun counts unique vehicles and persons over one video and records
// the zone each vehicle entered and left through.
type CountRun struct {
	Source     FrameSource
	Tracker    ObjectTracker
	Renderer   Renderer // optional
	Zones      *traffic.ZoneSet
	Categories *traffic.Categories

	ProgressEvery int
	Progress      func(Progress)
}

// CountResult is the outcome of a count run. A stopped run carries the
// partial counts accumulated up to the stop.
type CountResult struct {
	Summary     traffic.Summary
	Frames      int
	Stopped     bool
	Duration    time.Duration
	FrameErrors []FrameError
}

// Err joins the per-frame failures of the run.
func (r *CountResult) Err() error {
	return joinFrameErrors(r.FrameErrors)
}

// Run processes the source frame by frame. Detection failures skip the frame.
// The returned error is non-nil only when the source itself fails; the result
// then still carries the counts accumulated before the failure.
func (r *CountRun) Run(ctx context.Context) (*CountResult, error) {
	renderer := r.Renderer
	if renderer == nil {
		renderer = nopRenderer{}
	}
	tracker := traffic.NewTracker(r.Zones, r.Categories)
	zones := r.Zones.Zones()
	result := &CountResult{}
	start := time.Now()

	err := r.Source.Frames(ctx, func(frame Frame) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Frames++
		observability.FramesProcessed.WithLabelValues("count").Inc()

		t0 := time.Now()
		objects, err := r.Tracker.Track(ctx, frame.Image)
		observability.InferenceDuration.WithLabelValues("track").Observe(time.Since(t0).Seconds())

		overlay := Overlay{Zones: zones}
		if err != nil {
			fe := FrameError{Frame: frame.Index, Stage: "detect", Err: err}
			result.FrameErrors = append(result.FrameErrors, fe)
			observability.FrameFailures.WithLabelValues(fe.Stage).Inc()
			slog.Warn("detect frame", "frame", frame.Index, "error", err)
		} else {
			overlay.Objects = r.observe(tracker, objects)
		}
		overlay.Vehicles = tracker.VehicleCount()
		overlay.Persons = tracker.PersonCount()

		if r.Progress != nil && r.ProgressEvery > 0 && result.Frames%r.ProgressEvery == 0 {
			r.Progress(Progress{Frame: frame.Index, Vehicles: overlay.Vehicles, Persons: overlay.Persons})
		}

		stop, err := renderer.Render(frame, overlay)
		if err != nil {
			fe := FrameError{Frame: frame.Index, Stage: "render", Err: err}
			result.FrameErrors = append(result.FrameErrors, fe)
			observability.FrameFailures.WithLabelValues(fe.Stage).Inc()
			slog.Warn("render frame", "frame", frame.Index, "error", err)
		}
		if stop {
			return ErrStopped
		}
		return nil
	})

	stopped, fatal := finish(ctx, err)
	result.Stopped = stopped
	result.Summary = tracker.Summary()
	result.Duration = time.Since(start)
	if fatal != nil {
		return result, fmt.Errorf("read frames: %w", fatal)
	}
	if stopped {
		slog.Info("count run stopped", "frames", result.Frames)
	}
	return result, nil
}

// observe feeds one frame's detections to the tracker. Detections without an
// identity or outside the counted categories are not drawn.
func (r *CountRun) observe(tracker *traffic.Tracker, objects []TrackedObject) []AnnotatedObject {
	annotated := make([]AnnotatedObject, 0, len(objects))
	for _, obj := range objects {
		if obj.ID != nil && !obj.Origin.Empty() {
			tracker.Process(traffic.Observation{ID: obj.ID, Label: obj.Label, Box: obj.Origin})
		}
		out := tracker.Process(traffic.Observation{ID: obj.ID, Label: obj.Label, Box: obj.Box})
		if !out.Counted {
			continue
		}
		observability.ObjectsDetected.WithLabelValues(out.Category.String()).Inc()
		annotated = append(annotated, AnnotatedObject{
			TrackedObject: obj,
			Category:      out.Category,
			Code:          tracker.Categories().Code(obj.Label),
			Zone:          out.Zone,
		})
	}
	return annotated
}
