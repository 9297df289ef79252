package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/config"
	"github.com/your-org/vca/internal/observability"
	"github.com/your-org/vca/internal/traffic"
)

// Report is the end-of-run material handed to the exporter. Counts is nil
// for emotion runs; Samples is empty for counting runs.
type Report struct {
	Counts  *traffic.Summary
	Samples []analysis.EmotionSample
}

// Exporter writes every configured artefact of a run into one directory.
// An empty file name in the configuration disables that export; an absolute
// one is written where it points.
type Exporter struct {
	cfg    config.ExportConfig
	curves map[string]string
}

func NewExporter(cfg config.ExportConfig, curves map[string]string) *Exporter {
	return &Exporter{cfg: cfg, curves: curves}
}

// Export attempts every export even when some fail. It returns the files
// that were written and the joined errors of the ones that were not.
func (e *Exporter) Export(ctx context.Context, report Report) ([]string, error) {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var (
		written []string
		errs    []error
	)
	run := func(kind, name string, fn func(path string) error) {
		if name == "" {
			return
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			return
		}
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.cfg.OutputDir, name)
		}
		start := time.Now()
		err := fn(path)
		observability.ExportDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			observability.ExportFailures.WithLabelValues(kind).Inc()
			slog.Warn("export failed", "kind", kind, "path", path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			return
		}
		slog.Info("exported", "kind", kind, "path", path)
		written = append(written, path)
	}

	if c := report.Counts; c != nil {
		run("workbook", e.cfg.Workbook, func(path string) error {
			return WriteWorkbook(path, c.Vehicles, c.Persons, c.Matrix)
		})
		run("sqlite", e.cfg.SQLitePath, func(path string) error {
			return appendCounts(ctx, path, c.Vehicles, c.Persons)
		})
		run("counts_chart", e.cfg.CountsChart, func(path string) error {
			return WriteCountsChart(path, c.Vehicles, c.Persons)
		})
		run("heatmap", e.cfg.HeatmapChart, func(path string) error {
			return WriteTransitionHeatmap(path, c.Matrix)
		})
		run("html", e.cfg.HTMLReport, func(path string) error {
			return WriteHTMLReport(path, c.Vehicles, c.Persons, c.Matrix)
		})
	}

	if len(report.Samples) > 0 && len(e.curves) > 0 {
		start := time.Now()
		files, err := WriteEmotionCurves(e.cfg.OutputDir, e.curves, report.Samples)
		observability.ExportDuration.WithLabelValues("emotion_curves").Observe(time.Since(start).Seconds())
		written = append(written, files...)
		if err != nil {
			observability.ExportFailures.WithLabelValues("emotion_curves").Inc()
			slog.Warn("export failed", "kind", "emotion_curves", "error", err)
			errs = append(errs, fmt.Errorf("emotion_curves: %w", err))
		}
	}

	return written, errors.Join(errs...)
}

func appendCounts(ctx context.Context, path string, vehicles, persons int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	store, err := OpenSQLite(path)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.AppendCounts(ctx, vehicles, persons)
	return err
}
