package export

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/your-org/vca/internal/traffic"
)

func newHeatmapChart(matrix traffic.Matrix) *charts.HeatMap {
	zones := matrix.Zones()
	peak := 1
	data := make([]opts.HeatMapData, 0, len(zones)*len(zones))
	for y, entry := range zones {
		for x, exit := range zones {
			n := matrix.Count(entry, exit)
			if n > peak {
				peak = n
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{x, y, n}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Entry/exit transitions",
			Width:     "700px",
			Height:    "560px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Entry/exit transitions",
			Subtitle: fmt.Sprintf("%d vehicles with a trajectory", matrix.Total()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Exit", Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Entry", Type: "category", Data: zones}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(peak),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#ffffd9", "#7fcdbb", "#225ea8", "#081d58"},
			},
		}),
	)
	hm.SetXAxis(zones).AddSeries("transitions", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}),
	)
	return hm
}

func newCountsChart(vehicles, persons int) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Detected objects",
			Width:     "500px",
			Height:    "400px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Detected objects"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis([]string{"Vehicles", "Persons"}).AddSeries("count", []opts.BarData{
		{Value: vehicles, ItemStyle: &opts.ItemStyle{Color: "#2ea043"}},
		{Value: persons, ItemStyle: &opts.ItemStyle{Color: "#d62728"}},
	}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

// RenderHeatmap writes a standalone HTML page with the transition heatmap.
func RenderHeatmap(w io.Writer, matrix traffic.Matrix) error {
	return newHeatmapChart(matrix).Render(w)
}

// WriteHTMLReport saves an interactive page with the count bars and the
// transition heatmap.
func WriteHTMLReport(path string, vehicles, persons int, matrix traffic.Matrix) error {
	page := components.NewPage()
	page.SetPageTitle("Traffic report")
	page.AddCharts(newCountsChart(vehicles, persons), newHeatmapChart(matrix))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
