package dto

import "github.com/google/uuid"

const (
	WSRunProgress  = "run_progress"
	WSRunCompleted = "run_completed"
)

type ProgressData struct {
	Frame    int `json:"frame"`
	Vehicles int `json:"vehicles"`
	Persons  int `json:"persons"`
	Samples  int `json:"samples"`
}

// WSEvent is a WebSocket message for live run updates.
type WSEvent struct {
	Type     string        `json:"type"` // run_progress, run_completed
	RunID    uuid.UUID     `json:"run_id"`
	Progress *ProgressData `json:"progress,omitempty"`
	Run      *RunResponse  `json:"run,omitempty"`
	Status   string        `json:"status,omitempty"`
}
