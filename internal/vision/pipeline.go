package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/config"
	"github.com/your-org/vca/internal/observability"
)

// Models selects which networks a pipeline loads.
type Models struct {
	Objects  bool
	Emotions bool
}

// Pipeline owns the ONNX sessions: detect → track for counting,
// detect faces → classify emotion for the timeline.
// Sessions are shared, so inference calls are serialized.
type Pipeline struct {
	mu       sync.Mutex
	opts     *ort.SessionOptions
	objects  *ObjectDetector
	faces    *FaceDetector
	emotions *EmotionClassifier
	trackCfg config.TrackingConfig
}

// NewPipeline initialises the requested ONNX models and returns a ready pipeline.
func NewPipeline(cfg config.VisionConfig, trackCfg config.TrackingConfig, models Models) (*Pipeline, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(runtime.NumCPU()); err != nil {
		slog.Warn("set intra-op threads", "error", err)
	}

	p := &Pipeline{opts: opts, trackCfg: trackCfg}

	if models.Objects {
		path := filepath.Join(cfg.ModelsDir, cfg.ObjectModel)
		slog.Info("loading object model", "path", path)
		p.objects, err = NewObjectDetector(path, float32(cfg.DetectionThreshold), float32(cfg.NMSThreshold), opts)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("load object detector: %w", err)
		}
	}

	if models.Emotions {
		path := filepath.Join(cfg.ModelsDir, cfg.FaceModel)
		slog.Info("loading face model", "path", path)
		p.faces, err = NewFaceDetector(path, float32(cfg.FaceThreshold), float32(cfg.NMSThreshold), opts)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("load face detector: %w", err)
		}

		path = filepath.Join(cfg.ModelsDir, cfg.EmotionModel)
		slog.Info("loading emotion model", "path", path)
		p.emotions, err = NewEmotionClassifier(path, opts)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("load emotion classifier: %w", err)
		}
	}

	slog.Info("vision pipeline ready", "objects", models.Objects, "emotions", models.Emotions)
	return p, nil
}

// NewTrackingSession returns an object tracker with fresh identities for one run.
func (p *Pipeline) NewTrackingSession() *TrackingSession {
	return &TrackingSession{
		pipeline: p,
		tracker:  NewTracker(p.trackCfg.MaxAge, p.trackCfg.MinHits, float32(p.trackCfg.IoUThreshold)),
	}
}

// TrackingSession detects and tracks objects across the frames of one run.
type TrackingSession struct {
	pipeline *Pipeline
	tracker  *Tracker
}

// Track detects objects in img and assigns tracker identities. Objects whose
// track is not yet confirmed are returned without an identity.
func (s *TrackingSession) Track(ctx context.Context, img image.Image) ([]analysis.TrackedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.pipeline
	if p.objects == nil {
		return nil, fmt.Errorf("object model not loaded")
	}

	bounds := img.Bounds()
	start := time.Now()
	input := preprocessForObjects(img, p.objects.inputW, p.objects.inputH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	p.mu.Lock()
	detections, err := p.objects.Detect(input, bounds.Dx(), bounds.Dy())
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	return trackedObjects(s.tracker.Update(detections), s.tracker.MinHits(), bounds.Min), nil
}

// trackedObjects converts tracker updates to the counter's input, exposing
// identities of confirmed tracks only. On the confirming update the object
// also carries the box the track was first seen at, so the counter can
// place its entry where the object appeared rather than where it was confirmed.
func trackedObjects(updates []TrackUpdate, minHits int, origin image.Point) []analysis.TrackedObject {
	objects := make([]analysis.TrackedObject, 0, len(updates))
	for _, upd := range updates {
		obj := analysis.TrackedObject{
			Label:      upd.Detection.Label,
			Confidence: upd.Detection.Confidence,
			Box:        toRect(upd.Detection.BBox).Add(origin),
		}
		if upd.Track.Confirmed(minHits) {
			id := upd.Track.ID
			obj.ID = &id
			if minHits > 1 && upd.Track.Hits == minHits {
				obj.Origin = toRect(upd.Track.FirstBBox).Add(origin)
			}
		}
		objects = append(objects, obj)
	}
	return objects
}

// Analyze finds faces in img and classifies the emotion of each one.
// A face whose classification fails is logged and left out.
func (p *Pipeline) Analyze(ctx context.Context, img image.Image) ([]analysis.FaceEmotion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.faces == nil || p.emotions == nil {
		return nil, fmt.Errorf("emotion models not loaded")
	}

	bounds := img.Bounds()
	input := preprocessForFaces(img, p.faces.inputW, p.faces.inputH)

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	faces, err := p.faces.Detect(input, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("faces").Observe(time.Since(start).Seconds())

	results := make([]analysis.FaceEmotion, 0, len(faces))
	for _, face := range faces {
		box := toRect(face.BBox).Add(bounds.Min)
		crop := cropBox(img, [4]float32{float32(box.Min.X), float32(box.Min.Y), float32(box.Max.X), float32(box.Max.Y)})
		if crop == nil {
			continue
		}

		start = time.Now()
		scores, err := p.emotions.Classify(imageToGray(crop, p.emotions.inputW, p.emotions.inputH))
		if err != nil {
			slog.Warn("classify emotion", "error", err, "box", box)
			continue
		}
		observability.InferenceDuration.WithLabelValues("emotion").Observe(time.Since(start).Seconds())

		results = append(results, analysis.FaceEmotion{Box: box, Profile: analysis.EmotionProfile(scores)})
	}
	return results, nil
}

// Close releases all ONNX sessions.
func (p *Pipeline) Close() {
	if p.objects != nil {
		p.objects.Close()
	}
	if p.faces != nil {
		p.faces.Close()
	}
	if p.emotions != nil {
		p.emotions.Close()
	}
	if p.opts != nil {
		p.opts.Destroy()
	}
}
