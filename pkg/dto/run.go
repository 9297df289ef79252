package dto

import "github.com/google/uuid"

type CreateRunRequest struct {
	URL        string `json:"url" binding:"required"`
	Mode       string `json:"mode" binding:"required,oneof=count emotion"`
	SourceType string `json:"source_type" binding:"omitempty,oneof=file http rtsp youtube"`
	FPS        int    `json:"fps" binding:"gte=0,lte=60"`
}

type RunResponse struct {
	ID           uuid.UUID `json:"id"`
	Mode         string    `json:"mode"`
	SourceURL    string    `json:"source_url"`
	SourceType   string    `json:"source_type"`
	Status       string    `json:"status"`
	Frames       int       `json:"frames"`
	FrameErrors  int       `json:"frame_errors"`
	Vehicles     int       `json:"vehicles"`
	Persons      int       `json:"persons"`
	Samples      int       `json:"samples"`
	Artifacts    []string  `json:"artifacts"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
	FinishedAt   string    `json:"finished_at,omitempty"`
}

type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Total int           `json:"total"`
}

type RunQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

type TransitionRow struct {
	Entry    string `json:"entry"`
	Exit     string `json:"exit"`
	Vehicles int    `json:"vehicles"`
}

type TransitionsResponse struct {
	RunID       uuid.UUID       `json:"run_id"`
	Zones       []string        `json:"zones"`
	Transitions []TransitionRow `json:"transitions"`
	Total       int             `json:"total"`
}
