package dto

import "github.com/google/uuid"

type EmotionSampleResponse struct {
	Frame    int       `json:"frame"`
	Second   float64   `json:"second"`
	Faces    int       `json:"faces"`
	Joy      float64   `json:"joy"`
	Sadness  float64   `json:"sadness"`
	Anger    float64   `json:"anger"`
	Surprise float64   `json:"surprise"`
	Profile  []float32 `json:"profile"`
}

type EmotionTimelineResponse struct {
	RunID   uuid.UUID               `json:"run_id"`
	Samples []EmotionSampleResponse `json:"samples"`
	Total   int                     `json:"total"`
}

// SimilarEmotionRequest searches stored samples by emotion profile: eight
// percentages in FER+ order (neutral, happiness, surprise, sadness, anger,
// disgust, fear, contempt).
type SimilarEmotionRequest struct {
	Profile []float32  `json:"profile" binding:"required,len=8"`
	RunID   *uuid.UUID `json:"run_id,omitempty"`
	Limit   int        `json:"limit"`
}

type SimilarEmotionResult struct {
	RunID    uuid.UUID `json:"run_id"`
	Frame    int       `json:"frame"`
	Second   float64   `json:"second"`
	Joy      float64   `json:"joy"`
	Sadness  float64   `json:"sadness"`
	Anger    float64   `json:"anger"`
	Surprise float64   `json:"surprise"`
	Distance float32   `json:"distance"`
}

type SimilarEmotionResponse struct {
	Results []SimilarEmotionResult `json:"results"`
	Total   int                    `json:"total"`
}
