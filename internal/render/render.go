// Package render draws analysis overlays with OpenCV, shows them in a
// preview window and writes the annotated video.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/traffic"
)

var (
	vehicleColor = color.RGBA{G: 255, A: 255}
	personColor  = color.RGBA{R: 255, A: 255}
	zoneColor    = color.RGBA{G: 255, B: 255, A: 255}
	faceColor    = color.RGBA{G: 255, A: 255}
	emotionColor = color.RGBA{R: 255, G: 255, A: 255}
)

// Options configures a Renderer.
type Options struct {
	Window      bool // show a preview window
	WindowTitle string
	QuitKey     string // key that stops the run while the window has focus
	Counters    bool   // draw the unique counters
	OutputVideo string // annotated mp4 path, empty to skip
	FPS         float64
	Width       int
	Height      int
}

// Renderer draws overlays on frames. It implements analysis.Renderer.
type Renderer struct {
	window   *gocv.Window
	writer   *gocv.VideoWriter
	quitKey  int
	counters bool
}

// New opens the preview window and the video writer requested by opts.
func New(opts Options) (*Renderer, error) {
	r := &Renderer{quitKey: -1, counters: opts.Counters}
	if opts.QuitKey != "" {
		r.quitKey = int(opts.QuitKey[0])
	}

	if opts.OutputVideo != "" {
		fps := opts.FPS
		if fps <= 0 {
			fps = 25
		}
		writer, err := gocv.VideoWriterFile(opts.OutputVideo, "mp4v", fps, opts.Width, opts.Height, true)
		if err != nil {
			return nil, fmt.Errorf("open video writer %s: %w", opts.OutputVideo, err)
		}
		r.writer = writer
	}

	if opts.Window {
		r.window = gocv.NewWindow(opts.WindowTitle)
	}
	return r, nil
}

// Render draws the overlay, writes the frame and shows it.
func (r *Renderer) Render(frame analysis.Frame, overlay analysis.Overlay) (bool, error) {
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return false, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	drawZones(&mat, overlay.Zones)
	drawObjects(&mat, overlay.Objects)
	drawFaces(&mat, overlay.Faces)
	if r.counters {
		drawCounters(&mat, overlay.Vehicles, overlay.Persons)
	}

	if r.writer != nil {
		if err := r.writer.Write(mat); err != nil {
			return false, fmt.Errorf("write frame: %w", err)
		}
	}

	if r.window != nil {
		r.window.IMShow(mat)
		key := r.window.WaitKey(1)
		if r.quitKey >= 0 && key&0xFF == r.quitKey {
			return true, nil
		}
	}
	return false, nil
}

// Close releases the window and finalizes the video file.
func (r *Renderer) Close() error {
	var errs []error
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close video writer: %w", err))
		}
	}
	if r.window != nil {
		if err := r.window.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close window: %w", err))
		}
	}
	return errors.Join(errs...)
}

func drawZones(mat *gocv.Mat, zones []traffic.Zone) {
	for _, z := range zones {
		gocv.Rectangle(mat, z.Rect(), zoneColor, 2)
		gocv.PutText(mat, "Zone "+z.Name, image.Pt(z.X1+5, z.Y1+20), gocv.FontHersheySimplex, 0.7, zoneColor, 2)
	}
}

func drawObjects(mat *gocv.Mat, objects []analysis.AnnotatedObject) {
	for _, o := range objects {
		c := vehicleColor
		if o.Category == traffic.CategoryPerson {
			c = personColor
		}
		gocv.Rectangle(mat, o.Box, c, 2)
		gocv.PutText(mat, o.Caption(), image.Pt(o.Box.Min.X, o.Box.Min.Y-10), gocv.FontHersheySimplex, 0.6, c, 2)
	}
}

func drawFaces(mat *gocv.Mat, faces []analysis.FaceEmotion) {
	for _, f := range faces {
		if f.Box.Empty() {
			continue
		}
		gocv.Rectangle(mat, f.Box, faceColor, 2)
		gocv.PutText(mat, f.Caption(), image.Pt(f.Box.Min.X, f.Box.Min.Y-10), gocv.FontHersheySimplex, 0.6, emotionColor, 2)
	}
}

func drawCounters(mat *gocv.Mat, vehicles, persons int) {
	gocv.PutText(mat, fmt.Sprintf("Unique vehicles: %d", vehicles), image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, vehicleColor, 2)
	gocv.PutText(mat, fmt.Sprintf("Unique persons: %d", persons), image.Pt(10, 60), gocv.FontHersheySimplex, 0.8, personColor, 2)
}
