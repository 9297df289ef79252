package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/config"
	"github.com/your-org/vca/internal/export"
	"github.com/your-org/vca/internal/ingest"
	"github.com/your-org/vca/internal/observability"
	"github.com/your-org/vca/internal/render"
	"github.com/your-org/vca/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	video := flag.String("video", "", "video file or URL to analyze")
	display := flag.Bool("display", false, "show the annotated preview window")
	output := flag.String("output", "", "write the annotated video to this path")
	flag.Parse()

	if *video == "" && flag.NArg() > 0 {
		*video = flag.Arg(0)
	}
	if *video == "" {
		fmt.Fprintln(os.Stderr, "usage: counter [-config path] [-display] [-output out.mp4] -video <path>")
		os.Exit(2)
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *display {
		cfg.Display.Enabled = true
	}
	if *output != "" {
		cfg.Display.OutputVideo = *output
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting zone counter", "video", *video, "zones", len(cfg.Zones))

	zones, err := cfg.ZoneSet()
	if err != nil {
		slog.Error("load zones", "error", err)
		os.Exit(1)
	}

	if err := vision.InitRuntime(cfg.Vision.ONNXLibraryPath); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer vision.DestroyRuntime()

	pipeline, err := vision.NewPipeline(cfg.Vision, cfg.Tracking, vision.Models{Objects: true})
	if err != nil {
		slog.Error("init vision pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := ingest.Open(ctx, *video, cfg.Vision.FPS, cfg.Vision.FrameWidth)
	if err != nil {
		slog.Error("open video", "video", *video, "error", err)
		os.Exit(1)
	}
	defer source.Stop()

	run := &analysis.CountRun{
		Source:     source,
		Tracker:    pipeline.NewTrackingSession(),
		Zones:      zones,
		Categories: cfg.Classes.Categories(),
	}

	if cfg.Display.Enabled || cfg.Display.OutputVideo != "" {
		info := source.Info()
		renderer, err := render.New(render.Options{
			Window:      cfg.Display.Enabled,
			WindowTitle: cfg.Display.WindowTitle,
			QuitKey:     cfg.Display.QuitKey,
			Counters:    true,
			OutputVideo: cfg.Display.OutputVideo,
			FPS:         info.FPS,
			Width:       info.Width,
			Height:      info.Height,
		})
		if err != nil {
			slog.Error("open renderer", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := renderer.Close(); err != nil {
				slog.Warn("close renderer", "error", err)
			}
		}()
		run.Renderer = renderer
	}

	// A source failure still returns what was processed; export it before exiting.
	result, runErr := run.Run(ctx)
	if result == nil {
		slog.Error("count run", "error", runErr)
		os.Exit(1)
	}
	if runErr != nil {
		slog.Error("count run", "error", runErr, "frames", result.Frames)
	}
	if err := result.Err(); err != nil {
		slog.Warn("frames skipped", "count", len(result.FrameErrors))
	}

	summary := result.Summary
	slog.Info("count finished",
		"frames", result.Frames,
		"stopped", result.Stopped,
		"duration", result.Duration.String(),
		"vehicles", summary.Vehicles,
		"persons", summary.Persons,
	)
	fmt.Printf("Total vehicles detected: %d\n", summary.Vehicles)
	fmt.Printf("Total persons detected: %d\n", summary.Persons)
	for _, row := range summary.Matrix.Rows() {
		fmt.Printf("  %s -> %s: %d\n", row.Entry, row.Exit, row.Count)
	}

	// Exports run even after an interrupt so partial counts are kept.
	exporter := export.NewExporter(cfg.Export, nil)
	files, err := exporter.Export(context.WithoutCancel(ctx), export.Report{Counts: &summary})
	for _, f := range files {
		fmt.Printf("wrote %s\n", f)
	}
	if err != nil {
		slog.Error("export results", "error", err)
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
