package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vca",
		Name:      "frames_processed_total",
		Help:      "Total number of frames processed",
	}, []string{"mode"})

	ObjectsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vca",
		Name:      "objects_detected_total",
		Help:      "Total number of tracked detections by counting category",
	}, []string{"category"})

	FrameFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vca",
		Name:      "frame_failures_total",
		Help:      "Frames skipped because a processing stage failed",
	}, []string{"stage"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vca",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vca",
		Name:      "active_runs",
		Help:      "Number of analysis runs in progress",
	})

	RunEventsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vca",
		Name:      "run_events_pending",
		Help:      "Messages held in the RUNS stream",
	})

	ExportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vca",
		Name:      "export_duration_seconds",
		Help:      "Duration of result exports",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	ExportFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vca",
		Name:      "export_failures_total",
		Help:      "Failed result exports",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vca",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vca",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
