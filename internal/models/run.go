package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceTypeFile    SourceType = "file"
	SourceTypeHTTP    SourceType = "http"
	SourceTypeRTSP    SourceType = "rtsp"
	SourceTypeYouTube SourceType = "youtube"
)

// InferSourceType guesses the source type from a URL.
func InferSourceType(url string) SourceType {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "youtube.com/") || strings.Contains(lower, "youtu.be/"):
		return SourceTypeYouTube
	case strings.HasPrefix(lower, "rtsp://"):
		return SourceTypeRTSP
	case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
		return SourceTypeHTTP
	default:
		return SourceTypeFile
	}
}

type RunMode string

const (
	RunModeCount   RunMode = "count"
	RunModeEmotion RunMode = "emotion"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one analysis of one video.
type Run struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Mode         RunMode    `json:"mode" db:"mode"`
	SourceURL    string     `json:"source_url" db:"source_url"`
	SourceType   SourceType `json:"source_type" db:"source_type"`
	Status       RunStatus  `json:"status" db:"status"`
	Frames       int        `json:"frames" db:"frames"`
	FrameErrors  int        `json:"frame_errors" db:"frame_errors"`
	Vehicles     int        `json:"vehicles" db:"vehicles"`
	Persons      int        `json:"persons" db:"persons"`
	Samples      int        `json:"samples" db:"samples"`
	Artifacts    []string   `json:"artifacts" db:"artifacts"` // MinIO keys
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Finished reports whether the run reached a terminal status.
func (r Run) Finished() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusStopped, RunStatusFailed:
		return true
	default:
		return false
	}
}

// RunCommand is published on the control subject to start or stop a run.
type RunCommand struct {
	Action     string     `json:"action"` // start, stop
	RunID      string     `json:"run_id"`
	Mode       RunMode    `json:"mode,omitempty"`
	URL        string     `json:"url,omitempty"`
	SourceType SourceType `json:"source_type,omitempty"`
	FPS        int        `json:"fps,omitempty"`
}
