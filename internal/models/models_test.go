package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/quadratic"
)

func TestInferSourceType(t *testing.T) {
	assert.Equal(t, SourceTypeYouTube, InferSourceType("https://www.youtube.com/watch?v=abc"))
	assert.Equal(t, SourceTypeYouTube, InferSourceType("https://youtu.be/abc"))
	assert.Equal(t, SourceTypeRTSP, InferSourceType("RTSP://cam.local/stream"))
	assert.Equal(t, SourceTypeHTTP, InferSourceType("https://cdn.example.com/v.mp4"))
	assert.Equal(t, SourceTypeFile, InferSourceType("/data/traffic.mp4"))
}

func TestRunFinished(t *testing.T) {
	assert.False(t, Run{Status: RunStatusPending}.Finished())
	assert.False(t, Run{Status: RunStatusRunning}.Finished())
	assert.True(t, Run{Status: RunStatusStopped}.Finished())
	assert.True(t, Run{Status: RunStatusFailed}.Finished())
}

func TestNewEmotionSample(t *testing.T) {
	runID := uuid.New()
	var profile analysis.EmotionProfile
	profile[1] = 80
	profile[0] = 20

	es := NewEmotionSample(runID, analysis.EmotionSample{Frame: 50, Second: 2, Faces: 1, Joy: 80, Profile: profile})
	assert.Equal(t, runID, es.RunID)
	assert.NotEqual(t, uuid.Nil, es.ID)
	assert.Equal(t, 80.0, es.Joy)
	assert.Equal(t, []float32{20, 80, 0, 0, 0, 0, 0, 0}, es.Profile)
}

func TestNewSolution(t *testing.T) {
	s, err := quadratic.Solve(1, 3, 2)
	assert.NoError(t, err)

	sol := NewSolution(s)
	assert.Equal(t, 1.0, sol.A)
	assert.Equal(t, 1.0, sol.Discriminant)
	assert.Equal(t, []float64{-2, -1}, sol.Roots)
	assert.Equal(t, "two solutions: x1 = -2, x2 = -1", sol.Result)
}
