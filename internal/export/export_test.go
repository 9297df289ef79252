package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/config"
	"github.com/your-org/vca/internal/traffic"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleMatrix() traffic.Matrix {
	return traffic.Matrix{
		{Entry: "A", Exit: "B"}: 3,
		{Entry: "C", Exit: "A"}: 1,
		{Entry: "A", Exit: "A"}: 2,
	}
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", path)
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteWorkbook(path, 7, 2, sampleMatrix()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetDetection, SheetTraffic}, f.GetSheetList())

	rows, err := f.GetRows(SheetDetection)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Category", "Count"},
		{"Vehicles", "7"},
		{"Persons", "2"},
	}, rows)

	rows, err = f.GetRows(SheetTraffic)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Entry", "Exit", "Vehicles"},
		{"A", "A", "2"},
		{"A", "B", "3"},
		{"C", "A", "1"},
	}, rows)
}

func TestWriteWorkbookEmptyMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteWorkbook(path, 0, 0, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetTraffic)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Entry", "Exit", "Vehicles"}}, rows)
}

func TestSQLiteStoreAppendsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	id, err := store.AppendCounts(ctx, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.AppendCounts(ctx, 9, 3)
	require.NoError(t, err)

	records, err := store.ListCounts(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 4, records[0].Vehicles)
	assert.Equal(t, 1, records[0].Persons)
	assert.Equal(t, int64(2), records[1].ID)
	assert.Equal(t, 9, records[1].Vehicles)
	assert.False(t, records[1].CreatedAt.IsZero())
}

func TestTransitionGrid(t *testing.T) {
	m := sampleMatrix()
	g := transitionGrid{zones: m.Zones(), matrix: m}

	c, r := g.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 3, r)
	// row = entry, column = exit
	assert.Equal(t, 3.0, g.Z(1, 0))
	assert.Equal(t, 1.0, g.Z(0, 2))
	assert.Equal(t, 0.0, g.Z(2, 2))
	assert.Equal(t, 3.0, g.Max())

	empty := transitionGrid{matrix: traffic.Matrix{}}
	assert.Equal(t, 1.0, empty.Max())
}

func TestWriteCharts(t *testing.T) {
	dir := t.TempDir()

	counts := filepath.Join(dir, "counts.png")
	require.NoError(t, WriteCountsChart(counts, 5, 2))
	assertPNG(t, counts)

	heat := filepath.Join(dir, "heat.png")
	require.NoError(t, WriteTransitionHeatmap(heat, sampleMatrix()))
	assertPNG(t, heat)

	emptyHeat := filepath.Join(dir, "empty.png")
	require.NoError(t, WriteTransitionHeatmap(emptyHeat, traffic.Matrix{}))
	assertPNG(t, emptyHeat)
}

func TestWriteEmotionCurves(t *testing.T) {
	dir := t.TempDir()
	samples := []analysis.EmotionSample{
		{Frame: 0, Second: 0, Joy: 10, Sadness: 5},
		{Frame: 25, Second: 1, Joy: 60, Anger: 20},
		{Frame: 50, Second: 2, Joy: 40, Surprise: 30},
	}

	files, err := WriteEmotionCurves(dir, map[string]string{
		"joy":   "joy.png",
		"anger": "anger.png",
	}, samples)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "anger.png"), filepath.Join(dir, "joy.png")}, files)
	for _, f := range files {
		assertPNG(t, f)
	}

	_, err = WriteEmotionCurves(dir, map[string]string{"boredom": "b.png"}, samples)
	assert.ErrorContains(t, err, "boredom")
}

func TestRenderHeatmap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHeatmap(&buf, sampleMatrix()))

	html := buf.String()
	assert.Contains(t, html, "Entry/exit transitions")
	assert.Contains(t, html, "heatmap")
}

func TestWriteHTMLReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, WriteHTMLReport(path, 3, 1, sampleMatrix()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Traffic report")
	assert.Contains(t, string(data), "Detected objects")
}

func testExportConfig(dir string) config.ExportConfig {
	return config.ExportConfig{
		OutputDir:    dir,
		Workbook:     "detection_results.xlsx",
		SQLitePath:   "results.db",
		CountsChart:  "counts.png",
		HeatmapChart: "matrix.png",
		HTMLReport:   "report.html",
	}
}

func TestExporterCountsRun(t *testing.T) {
	dir := t.TempDir()
	ex := NewExporter(testExportConfig(dir), nil)

	summary := traffic.Summary{Vehicles: 6, Persons: 1, Matrix: sampleMatrix()}
	files, err := ex.Export(context.Background(), Report{Counts: &summary})
	require.NoError(t, err)
	assert.Len(t, files, 5)
	for _, f := range files {
		assert.FileExists(t, f)
	}
}

func TestExporterSharedSQLiteOutsideOutputDir(t *testing.T) {
	shared := filepath.Join(t.TempDir(), "db", "results.db")
	for _, vehicles := range []int{2, 5} {
		cfg := config.ExportConfig{OutputDir: t.TempDir(), SQLitePath: shared}
		summary := traffic.Summary{Vehicles: vehicles, Matrix: traffic.Matrix{}}
		files, err := NewExporter(cfg, nil).Export(context.Background(), Report{Counts: &summary})
		require.NoError(t, err)
		assert.Equal(t, []string{shared}, files)
	}

	store, err := OpenSQLite(shared)
	require.NoError(t, err)
	defer store.Close()
	records, err := store.ListCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 5, records[1].Vehicles)
}

func TestExporterContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	cfg := testExportConfig(dir)
	cfg.Workbook = filepath.Join("missing", "dir", "out.xlsx")
	cfg.HTMLReport = ""
	ex := NewExporter(cfg, nil)

	summary := traffic.Summary{Vehicles: 1, Matrix: traffic.Matrix{}}
	files, err := ex.Export(context.Background(), Report{Counts: &summary})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workbook")
	assert.Len(t, files, 3)
	assert.NoFileExists(t, filepath.Join(dir, "report.html"))
}

func TestExporterEmotionRun(t *testing.T) {
	dir := t.TempDir()
	ex := NewExporter(testExportConfig(dir), map[string]string{"joy": "joy.png"})

	files, err := ex.Export(context.Background(), Report{
		Samples: []analysis.EmotionSample{{Second: 0, Joy: 50}, {Second: 1, Joy: 70}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "joy.png")}, files)
	assert.NoFileExists(t, filepath.Join(dir, "results.db"))
}

func TestExporterCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := NewExporter(testExportConfig(t.TempDir()), nil)
	summary := traffic.Summary{}
	files, err := ex.Export(ctx, Report{Counts: &summary})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, files)
}
