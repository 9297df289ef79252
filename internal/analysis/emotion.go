package analysis

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/your-org/vca/internal/observability"
)

// EmotionLabels are the classifier outputs, in model order.
var EmotionLabels = [8]string{"neutral", "happiness", "surprise", "sadness", "anger", "disgust", "fear", "contempt"}

const (
	emotionNeutral = iota
	emotionHappiness
	emotionSurprise
	emotionSadness
	emotionAnger
)

// EmotionProfile holds one percentage per entry of EmotionLabels.
type EmotionProfile [8]float64

// Top returns the dominant emotion and its percentage.
func (p EmotionProfile) Top() (string, float64) {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return EmotionLabels[best], p[best]
}

// Add returns the element-wise sum of two profiles.
func (p EmotionProfile) Add(o EmotionProfile) EmotionProfile {
	for i := range p {
		p[i] += o[i]
	}
	return p
}

// Vector returns the profile as float32, the layout stored for similarity search.
func (p EmotionProfile) Vector() []float32 {
	v := make([]float32, len(p))
	for i, x := range p {
		v[i] = float32(x)
	}
	return v
}

// FaceEmotion is one face found in a frame with its emotion percentages.
type FaceEmotion struct {
	Box     image.Rectangle
	Profile EmotionProfile
}

// FaceAnalyzer finds faces in a frame and classifies their emotion.
type FaceAnalyzer interface {
	Analyze(ctx context.Context, img image.Image) ([]FaceEmotion, error)
}

// EmotionSample is the per-second reading of the emotion timeline.
// Each series value is the sum of the percentages over all faces in the frame.
type EmotionSample struct {
	Frame    int            `json:"frame"`
	Second   float64        `json:"second"`
	Faces    int            `json:"faces"`
	Joy      float64        `json:"joy"`
	Sadness  float64        `json:"sadness"`
	Anger    float64        `json:"anger"`
	Surprise float64        `json:"surprise"`
	Profile  EmotionProfile `json:"profile"`
}

// EmotionRun builds an emotion timeline from sampled frames of one video.
type EmotionRun struct {
	Source   FrameSource
	Analyzer FaceAnalyzer
	Renderer Renderer // optional

	// SampleEvery is the frame interval between samples. Zero samples one
	// frame per second of video.
	SampleEvery int

	ProgressEvery int
	Progress      func(Progress)
}

// EmotionResult is the outcome of an emotion run.
type EmotionResult struct {
	Samples     []EmotionSample
	Frames      int
	Stopped     bool
	Duration    time.Duration
	FrameErrors []FrameError
}

// Err joins the per-sample failures of the run.
func (r *EmotionResult) Err() error {
	return joinFrameErrors(r.FrameErrors)
}

// Run samples the source, analyzes the sampled frames and renders every frame.
// A source failure returns the samples taken so far alongside the error.
func (r *EmotionRun) Run(ctx context.Context) (*EmotionResult, error) {
	renderer := r.Renderer
	if renderer == nil {
		renderer = nopRenderer{}
	}
	info := r.Source.Info()
	every := r.SampleEvery
	if every <= 0 {
		every = SampleInterval(info.FPS)
	}
	fps := info.FPS
	if fps <= 0 {
		fps = float64(every)
	}

	result := &EmotionResult{}
	start := time.Now()

	err := r.Source.Frames(ctx, func(frame Frame) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Frames++
		observability.FramesProcessed.WithLabelValues("emotion").Inc()

		var overlay Overlay
		if frame.Index%every == 0 {
			t0 := time.Now()
			faces, err := r.Analyzer.Analyze(ctx, frame.Image)
			observability.InferenceDuration.WithLabelValues("emotion").Observe(time.Since(t0).Seconds())
			if err != nil {
				fe := FrameError{Frame: frame.Index, Stage: "emotion", Err: err}
				result.FrameErrors = append(result.FrameErrors, fe)
				observability.FrameFailures.WithLabelValues(fe.Stage).Inc()
				slog.Warn("analyze frame", "frame", frame.Index, "error", err)
			} else {
				overlay.Faces = faces
				result.Samples = append(result.Samples, Sample(frame.Index, float64(frame.Index)/fps, faces))
			}
		}

		if r.Progress != nil && r.ProgressEvery > 0 && result.Frames%r.ProgressEvery == 0 {
			r.Progress(Progress{Frame: frame.Index, Samples: len(result.Samples)})
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
	result.Duration = time.Since(start)
	if fatal != nil {
		return result, fmt.Errorf("read frames: %w", fatal)
	}
	if stopped {
		slog.Info("emotion run stopped", "frames", result.Frames, "samples", len(result.Samples))
	}
	return result, nil
}

// SampleInterval truncates a frame rate to a whole sampling interval of at least one frame.
func SampleInterval(fps float64) int {
	n := int(math.Floor(fps))
	if n < 1 {
		return 1
	}
	return n
}

// Sample sums the face profiles of one frame into a timeline point.
func Sample(frame int, second float64, faces []FaceEmotion) EmotionSample {
	s := EmotionSample{Frame: frame, Second: second, Faces: len(faces)}
	for _, f := range faces {
		s.Profile = s.Profile.Add(f.Profile)
	}
	s.Joy = s.Profile[emotionHappiness]
	s.Sadness = s.Profile[emotionSadness]
	s.Anger = s.Profile[emotionAnger]
	s.Surprise = s.Profile[emotionSurprise]
	return s
}

// Caption is the text drawn above a face, e.g. "happiness: 87%".
func (f FaceEmotion) Caption() string {
	label, pct := f.Profile.Top()
	return fmt.Sprintf("%s: %d%%", label, int(pct))
}
