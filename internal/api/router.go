package api

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/vca/internal/api/handlers"
	"github.com/your-org/vca/internal/api/ws"
	"github.com/your-org/vca/internal/auth"
	"github.com/your-org/vca/internal/queue"
	"github.com/your-org/vca/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore // optional
	Producer *queue.Producer
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	checks := map[string]handlers.Check{
		"postgres": cfg.DB.Ping,
		"nats":     func(context.Context) error { return cfg.Producer.Ping() },
	}
	var artifacts handlers.ArtifactStore
	if cfg.MinIO != nil {
		checks["minio"] = cfg.MinIO.Ping
		artifacts = cfg.MinIO
	}

	return newEngine(cfg.APIKey, routes{
		system:    handlers.NewSystemHandler(checks),
		runs:      handlers.NewRunHandler(cfg.DB, cfg.Producer, artifacts),
		emotions:  handlers.NewEmotionHandler(cfg.DB),
		equations: handlers.NewEquationHandler(cfg.DB),
		ws:        cfg.Hub.HandleWS,
	})
}

type routes struct {
	system    *handlers.SystemHandler
	runs      *handlers.RunHandler
	emotions  *handlers.EmotionHandler
	equations *handlers.EquationHandler
	ws        gin.HandlerFunc
}

func newEngine(apiKey string, h routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	r.GET("/healthz", h.system.Healthz)
	r.GET("/readyz", h.system.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(apiKey))

	v1.GET("/ws", h.ws)

	v1.POST("/runs", h.runs.Create)
	v1.GET("/runs", h.runs.List)
	v1.GET("/runs/:id", h.runs.Get)
	v1.POST("/runs/:id/stop", h.runs.Stop)
	v1.GET("/runs/:id/transitions", h.runs.Transitions)
	v1.GET("/runs/:id/heatmap", h.runs.Heatmap)
	v1.GET("/runs/:id/artifacts/:name", h.runs.Artifact)
	v1.GET("/runs/:id/emotions", h.emotions.Timeline)

	v1.POST("/emotions/similar", h.emotions.Similar)

	v1.POST("/equations/solve", h.equations.Solve)
	v1.GET("/equations", h.equations.List)

	return r
}
