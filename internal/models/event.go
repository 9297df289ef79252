package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/traffic"
)

// RunProgress is published while a run advances.
type RunProgress struct {
	RunID     uuid.UUID `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Frame     int       `json:"frame"`
	Vehicles  int       `json:"vehicles"`
	Persons   int       `json:"persons"`
	Samples   int       `json:"samples"`
}

// RunCompleted is published once when a run ends, whatever the outcome.
type RunCompleted struct {
	Run          Run                            `json:"run"`
	Transitions  []traffic.TransitionCount      `json:"transitions,omitempty"`
	Trajectories []traffic.IdentifiedTrajectory `json:"trajectories,omitempty"`
	Samples      []analysis.EmotionSample       `json:"samples,omitempty"`
}

// EmotionSample is a stored point of a run's emotion timeline.
type EmotionSample struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RunID     uuid.UUID `json:"run_id" db:"run_id"`
	Frame     int       `json:"frame" db:"frame"`
	Second    float64   `json:"second" db:"second"`
	Faces     int       `json:"faces" db:"faces"`
	Joy       float64   `json:"joy" db:"joy"`
	Sadness   float64   `json:"sadness" db:"sadness"`
	Anger     float64   `json:"anger" db:"anger"`
	Surprise  float64   `json:"surprise" db:"surprise"`
	Profile   []float32 `json:"profile" db:"profile"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewEmotionSample converts a timeline point for storage.
func NewEmotionSample(runID uuid.UUID, s analysis.EmotionSample) EmotionSample {
	return EmotionSample{
		ID:       uuid.New(),
		RunID:    runID,
		Frame:    s.Frame,
		Second:   s.Second,
		Faces:    s.Faces,
		Joy:      s.Joy,
		Sadness:  s.Sadness,
		Anger:    s.Anger,
		Surprise: s.Surprise,
		Profile:  s.Profile.Vector(),
	}
}

// SimilarSample is one result of a nearest-profile search.
type SimilarSample struct {
	EmotionSample
	Distance float32 `json:"distance"`
}
