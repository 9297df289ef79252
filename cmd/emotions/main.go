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
		fmt.Fprintln(os.Stderr, "usage: emotions [-config path] [-display] [-output out.mp4] -video <path>")
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
		cfg.Emotion.OutputVideo = *output
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting emotion timeline", "video", *video)

	if err := vision.InitRuntime(cfg.Vision.ONNXLibraryPath); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer vision.DestroyRuntime()

	pipeline, err := vision.NewPipeline(cfg.Vision, cfg.Tracking, vision.Models{Emotions: true})
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

	info := source.Info()
	run := &analysis.EmotionRun{
		Source:      source,
		Analyzer:    pipeline,
		SampleEvery: sampleEvery(cfg.Emotion, info.FPS),
	}

	if cfg.Display.Enabled || cfg.Emotion.OutputVideo != "" {
		renderer, err := render.New(render.Options{
			Window:      cfg.Display.Enabled,
			WindowTitle: cfg.Display.WindowTitle,
			QuitKey:     cfg.Display.QuitKey,
			OutputVideo: cfg.Emotion.OutputVideo,
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
		slog.Error("emotion run", "error", runErr)
		os.Exit(1)
	}
	if runErr != nil {
		slog.Error("emotion run", "error", runErr, "frames", result.Frames)
	}
	if err := result.Err(); err != nil {
		slog.Warn("samples skipped", "count", len(result.FrameErrors))
	}

	slog.Info("emotion timeline finished",
		"frames", result.Frames,
		"samples", len(result.Samples),
		"stopped", result.Stopped,
		"duration", result.Duration.String(),
	)

	exporter := export.NewExporter(cfg.Export, cfg.Emotion.CurveFiles)
	files, err := exporter.Export(context.WithoutCancel(ctx), export.Report{Samples: result.Samples})
	for _, f := range files {
		fmt.Printf("wrote %s\n", f)
	}
	if err != nil {
		slog.Error("export curves", "error", err)
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
}

// sampleEvery converts the configured sample interval to a frame count.
// Zero lets the run fall back to one sample per second of video.
func sampleEvery(cfg config.EmotionConfig, fps float64) int {
	if fps <= 0 {
		return 0
	}
	return analysis.SampleInterval(fps * cfg.SampleInterval.Seconds())
}
