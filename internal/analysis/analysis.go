// Package analysis drives single-run video analyses: it pulls frames from a
// source, runs the models on them, feeds the traffic accumulators and hands
// annotated frames to a renderer.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/your-org/vca/internal/traffic"
)

// ErrStopped is returned through a frame callback when the renderer asks to stop.
var ErrStopped = errors.New("run stopped")

// Frame is one decoded video frame.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Image     image.Image
}

// SourceInfo describes an opened video.
type SourceInfo struct {
	FPS    float64
	Width  int
	Height int
	Frames int // 0 when the container does not report it
}

// FrameSource yields frames in order until the video ends. A source can be
// consumed once. Errors returned by fn stop the iteration and are returned
// from Frames, wrapped or as is.
type FrameSource interface {
	Info() SourceInfo
	Frames(ctx context.Context, fn func(Frame) error) error
}

// TrackedObject is one detection with an optional tracker identity.
// Origin is set once, when the identity is first exposed, to the box the
// track started from; it is empty otherwise.
type TrackedObject struct {
	ID         *int
	Label      string
	Confidence float32
	Box        image.Rectangle
	Origin     image.Rectangle
}

// ObjectTracker detects and tracks objects in a frame.
type ObjectTracker interface {
	Track(ctx context.Context, img image.Image) ([]TrackedObject, error)
}

// AnnotatedObject is a tracked object as the counter classified it.
type AnnotatedObject struct {
	TrackedObject
	Category traffic.Category
	Code     string
	Zone     string
}

// Overlay is everything a renderer draws on top of a frame.
type Overlay struct {
	Zones    []traffic.Zone
	Objects  []AnnotatedObject
	Vehicles int
	Persons  int
	Faces    []FaceEmotion
}

// Renderer consumes annotated frames. Render returns stop=true when the user
// asked to end the run.
type Renderer interface {
	Render(frame Frame, overlay Overlay) (stop bool, err error)
	Close() error
}

// FrameError records a frame that a processing stage failed on.
type FrameError struct {
	Frame int
	Stage string
	Err   error
}

func (e FrameError) Error() string {
	return fmt.Sprintf("frame %d: %s: %v", e.Frame, e.Stage, e.Err)
}

func (e FrameError) Unwrap() error { return e.Err }

// Progress is reported periodically while a run advances.
type Progress struct {
	Frame    int `json:"frame"`
	Vehicles int `json:"vehicles"`
	Persons  int `json:"persons"`
	Samples  int `json:"samples"`
}

// joinFrameErrors folds per-frame failures into one error, nil when there are none.
func joinFrameErrors(frameErrs []FrameError) error {
	if len(frameErrs) == 0 {
		return nil
	}
	errs := make([]error, len(frameErrs))
	for i := range frameErrs {
		errs[i] = frameErrs[i]
	}
	return errors.Join(errs...)
}

// finish classifies the error a frame source returned. Stops and
// cancellations end the run cleanly with whatever was accumulated.
func finish(ctx context.Context, err error) (stopped bool, fatal error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrStopped):
		return true, nil
	case ctx.Err() != nil:
		return true, nil
	default:
		return false, err
	}
}

type nopRenderer struct{}

func (nopRenderer) Render(Frame, Overlay) (bool, error) { return false, nil }
func (nopRenderer) Close() error                        { return nil }

// Caption is the text drawn above a counted object, e.g. "VL ID:3".
func (o AnnotatedObject) Caption() string {
	if o.ID == nil {
		return o.Code
	}
	return fmt.Sprintf("%s ID:%d", o.Code, *o.ID)
}
