package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/vca/internal/api/handlers"
	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/queue"
	"github.com/your-org/vca/internal/traffic"
	"github.com/your-org/vca/pkg/dto"
)

// RunRecorder persists what a worker reports when a run ends.
type RunRecorder interface {
	UpdateRun(ctx context.Context, r *models.Run) error
	ReplaceTransitions(ctx context.Context, runID uuid.UUID, rows []traffic.TransitionCount) error
	ReplaceEmotionSamples(ctx context.Context, runID uuid.UUID, samples []models.EmotionSample) error
}

type Broadcaster interface {
	BroadcastEvent(event *dto.WSEvent)
}

// EventSink turns RUNS stream messages into database rows and WebSocket
// pushes.
type EventSink struct {
	db  RunRecorder
	hub Broadcaster
}

func NewEventSink(db RunRecorder, hub Broadcaster) *EventSink {
	return &EventSink{db: db, hub: hub}
}

// Handle processes one message. A returned error makes the message eligible
// for redelivery; malformed messages are logged and dropped.
func (s *EventSink) Handle(ctx context.Context, subject string, data []byte) error {
	ev, err := queue.DecodeEvent(subject, data)
	if err != nil {
		slog.Warn("drop run event", "subject", subject, "error", err)
		return nil
	}

	switch {
	case ev.Progress != nil:
		p := ev.Progress
		s.hub.BroadcastEvent(&dto.WSEvent{
			Type:  dto.WSRunProgress,
			RunID: p.RunID,
			Progress: &dto.ProgressData{
				Frame:    p.Frame,
				Vehicles: p.Vehicles,
				Persons:  p.Persons,
				Samples:  p.Samples,
			},
			Status: string(models.RunStatusRunning),
		})
		return nil

	case ev.Completed != nil:
		return s.complete(ctx, ev.Completed)
	}
	return nil
}

func (s *EventSink) complete(ctx context.Context, c *models.RunCompleted) error {
	run := c.Run
	if err := s.db.UpdateRun(ctx, &run); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	if len(c.Transitions) > 0 {
		if err := s.db.ReplaceTransitions(ctx, run.ID, c.Transitions); err != nil {
			return fmt.Errorf("record transitions of %s: %w", run.ID, err)
		}
	}
	if len(c.Samples) > 0 {
		samples := make([]models.EmotionSample, 0, len(c.Samples))
		for _, es := range c.Samples {
			samples = append(samples, models.NewEmotionSample(run.ID, es))
		}
		if err := s.db.ReplaceEmotionSamples(ctx, run.ID, samples); err != nil {
			return fmt.Errorf("record emotion samples of %s: %w", run.ID, err)
		}
	}

	slog.Info("run recorded", "run_id", run.ID, "status", run.Status,
		"vehicles", run.Vehicles, "persons", run.Persons, "samples", run.Samples)

	resp := handlers.RunToResponse(&run)
	s.hub.BroadcastEvent(&dto.WSEvent{
		Type:   dto.WSRunCompleted,
		RunID:  run.ID,
		Run:    &resp,
		Status: string(run.Status),
	})
	return nil
}
