package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/vca/internal/analysis"
	"github.com/your-org/vca/internal/config"
	"github.com/your-org/vca/internal/ingest"
	"github.com/your-org/vca/internal/observability"
	"github.com/your-org/vca/internal/queue"
	"github.com/your-org/vca/internal/storage"
	"github.com/your-org/vca/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting VCA worker", "output_dir", cfg.Export.OutputDir)

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

	pipeline, err := vision.NewPipeline(cfg.Vision, cfg.Tracking, vision.Models{Objects: true, Emotions: true})
	if err != nil {
		slog.Error("init vision pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	runner := &Runner{
		cfg:        cfg,
		zones:      zones,
		open:       openFFmpeg,
		newTracker: func() analysis.ObjectTracker { return pipeline.NewTrackingSession() },
		analyzer:   pipeline,
		events:     producer,
	}

	// MinIO is optional: without it results stay in the output directory.
	if cfg.MinIO.Enabled() && cfg.Export.UploadResults {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(context.Background()); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		runner.artifacts = minioStore
	}

	manager := ingest.NewManager(runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Control commands arrive on a raw subject, not JetStream
	sub, err := producer.SubscribeControl(func(data []byte) {
		cmd, err := ingest.ParseCommand(data)
		if err != nil {
			slog.Error("parse command", "error", err)
			return
		}

		slog.Info("received command", "action", cmd.Action, "run_id", cmd.RunID)
		if err := manager.HandleCommand(ctx, cmd); err != nil {
			slog.Error("handle command", "error", err, "action", cmd.Action, "run_id", cmd.RunID)
		}
	})
	if err != nil {
		slog.Error("subscribe to control", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sub.Unsubscribe() }()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		slog.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report undelivered run events
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pending, err := producer.PendingEvents(ctx)
				if err == nil {
					observability.RunEventsPending.Set(float64(pending))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...", "active_runs", manager.ActiveCount())
	// Stopped runs still export and publish what they accumulated.
	manager.StopAll()
	cancel()
	slog.Info("worker stopped")
}
