package export

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/traffic"
)

var (
	vehicleColor = color.RGBA{R: 46, G: 160, B: 67, A: 255}
	personColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// WriteCountsChart saves a two-bar chart of the unique counts as PNG.
func WriteCountsChart(path string, vehicles, persons int) error {
	p := plot.New()
	p.Title.Text = "Detected objects"
	p.Y.Label.Text = "Count"
	p.Y.Min = 0

	bars := []struct {
		value int
		color color.Color
	}{
		{vehicles, vehicleColor},
		{persons, personColor},
	}
	labels := plotter.XYLabels{}
	for i, b := range bars {
		bar, err := plotter.NewBarChart(plotter.Values{float64(b.value)}, vg.Points(40))
		if err != nil {
			return fmt.Errorf("build bar: %w", err)
		}
		bar.Color = b.color
		bar.XMin = float64(i)
		p.Add(bar)

		labels.XYs = append(labels.XYs, plotter.XY{X: float64(i), Y: float64(b.value)})
		labels.Labels = append(labels.Labels, strconv.Itoa(b.value))
	}

	l, err := plotter.NewLabels(labels)
	if err != nil {
		return fmt.Errorf("build labels: %w", err)
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = draw.XCenter
	}
	l.Offset = vg.Point{Y: vg.Points(3)}
	p.Add(l)
	p.NominalX("Vehicles", "Persons")

	if err := p.Save(4*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save counts chart: %w", err)
	}
	return nil
}

// transitionGrid exposes a matrix as a square grid: columns are exit zones,
// rows are entry zones, both in Matrix.Zones order.
type transitionGrid struct {
	zones  []string
	matrix traffic.Matrix
}

func (g transitionGrid) Dims() (c, r int) { return len(g.zones), len(g.zones) }

func (g transitionGrid) Z(c, r int) float64 {
	return float64(g.matrix.Count(g.zones[r], g.zones[c]))
}

func (g transitionGrid) X(c int) float64 { return float64(c) }
func (g transitionGrid) Y(r int) float64 { return float64(r) }

func (g transitionGrid) Min() float64 { return 0 }

func (g transitionGrid) Max() float64 {
	peak := 1
	for _, n := range g.matrix {
		if n > peak {
			peak = n
		}
	}
	return float64(peak)
}

// WriteTransitionHeatmap saves the entry/exit matrix as an annotated PNG
// heatmap. Pairs never observed are drawn as zero.
func WriteTransitionHeatmap(path string, matrix traffic.Matrix) error {
	p := plot.New()
	p.Title.Text = "Entry/exit transitions"
	p.X.Label.Text = "Exit"
	p.Y.Label.Text = "Entry"

	grid := transitionGrid{zones: matrix.Zones(), matrix: matrix}
	if len(grid.zones) > 0 {
		pal, err := brewer.GetPalette(brewer.TypeSequential, "YlGnBu", 9)
		if err != nil {
			return fmt.Errorf("load palette: %w", err)
		}
		p.Add(plotter.NewHeatMap(grid, pal))

		var labels plotter.XYLabels
		for r := range grid.zones {
			for c := range grid.zones {
				labels.XYs = append(labels.XYs, plotter.XY{X: float64(c), Y: float64(r)})
				labels.Labels = append(labels.Labels, strconv.Itoa(int(grid.Z(c, r))))
			}
		}
		l, err := plotter.NewLabels(labels)
		if err != nil {
			return fmt.Errorf("build labels: %w", err)
		}
		for i := range l.TextStyle {
			l.TextStyle[i].XAlign = draw.XCenter
			l.TextStyle[i].YAlign = draw.YCenter
		}
		p.Add(l)
		p.NominalX(grid.zones...)
		p.NominalY(grid.zones...)
	}

	if err := p.Save(6*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// EmotionSeries names the timeline curves, keyed as in EmotionConfig.CurveFiles.
var EmotionSeries = map[string]func(analysis.EmotionSample) float64{
	"joy":      func(s analysis.EmotionSample) float64 { return s.Joy },
	"sadness":  func(s analysis.EmotionSample) float64 { return s.Sadness },
	"anger":    func(s analysis.EmotionSample) float64 { return s.Anger },
	"surprise": func(s analysis.EmotionSample) float64 { return s.Surprise },
}

// WriteEmotionCurves saves one line chart per configured emotion into dir
// and returns the written paths. Unknown keys in files are an error.
func WriteEmotionCurves(dir string, files map[string]string, samples []analysis.EmotionSample) ([]string, error) {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var written []string
	for _, name := range keys {
		value, ok := EmotionSeries[name]
		if !ok {
			return written, fmt.Errorf("unknown emotion curve %q", name)
		}
		path := filepath.Join(dir, files[name])
		if err := writeCurve(path, name, samples, value); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeCurve(path, name string, samples []analysis.EmotionSample, value func(analysis.EmotionSample) float64) error {
	p := plot.New()
	p.Title.Text = "Emotion over time: " + name
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Percent"
	p.Y.Min = 0
	p.Y.Max = 100

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = s.Second
		pts[i].Y = value(s)
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build %s curve: %w", name, err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Add(plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s curve: %w", name, err)
	}
	return nil
}
