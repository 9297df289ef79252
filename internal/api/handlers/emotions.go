package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/pkg/dto"
)

type EmotionHandler struct {
	db EmotionStore
}

func NewEmotionHandler(db EmotionStore) *EmotionHandler {
	return &EmotionHandler{db: db}
}

// Timeline returns the sampled emotion curve of a run, ordered by frame.
func (h *EmotionHandler) Timeline(c *gin.Context) {
	run, ok := loadRun(c, h.db.GetRun)
	if !ok {
		return
	}
	if run.Mode != models.RunModeEmotion {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run is not an emotion run"})
		return
	}

	samples, err := h.db.ListEmotionSamples(c.Request.Context(), run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.EmotionTimelineResponse{RunID: run.ID, Samples: make([]dto.EmotionSampleResponse, 0, len(samples))}
	for _, s := range samples {
		resp.Samples = append(resp.Samples, dto.EmotionSampleResponse{
			Frame:    s.Frame,
			Second:   s.Second,
			Faces:    s.Faces,
			Joy:      s.Joy,
			Sadness:  s.Sadness,
			Anger:    s.Anger,
			Surprise: s.Surprise,
			Profile:  s.Profile,
		})
	}
	resp.Total = len(resp.Samples)
	c.JSON(http.StatusOK, resp)
}

// Similar finds the stored samples closest to a given emotion profile.
func (h *EmotionHandler) Similar(c *gin.Context) {
	var req dto.SimilarEmotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 10
	}

	matches, err := h.db.SimilarSamples(c.Request.Context(), req.Profile, req.RunID, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.SimilarEmotionResponse{Results: make([]dto.SimilarEmotionResult, 0, len(matches))}
	for _, m := range matches {
		resp.Results = append(resp.Results, dto.SimilarEmotionResult{
			RunID:    m.RunID,
			Frame:    m.Frame,
			Second:   m.Second,
			Joy:      m.Joy,
			Sadness:  m.Sadness,
			Anger:    m.Anger,
			Surprise: m.Surprise,
			Distance: m.Distance,
		})
	}
	resp.Total = len(resp.Results)
	c.JSON(http.StatusOK, resp)
}
