package handlers

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/vca/internal/export"
	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/storage"
	"github.com/your-org/vca/internal/traffic"
	"github.com/your-org/vca/pkg/dto"
)

type RunHandler struct {
	db        RunStore
	producer  ControlPublisher
	artifacts ArtifactStore
}

// NewRunHandler builds the run endpoints. artifacts may be nil when object
// storage is not configured.
func NewRunHandler(db RunStore, producer ControlPublisher, artifacts ArtifactStore) *RunHandler {
	return &RunHandler{db: db, producer: producer, artifacts: artifacts}
}

func (h *RunHandler) Create(c *gin.Context) {
	var req dto.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sourceType := models.SourceType(req.SourceType)
	if sourceType == "" {
		sourceType = models.InferSourceType(req.URL)
	}

	run := &models.Run{
		Mode:       models.RunMode(req.Mode),
		SourceURL:  req.URL,
		SourceType: sourceType,
	}
	if err := h.db.CreateRun(c.Request.Context(), run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cmd := models.RunCommand{
		Action:     "start",
		RunID:      run.ID.String(),
		Mode:       run.Mode,
		URL:        run.SourceURL,
		SourceType: run.SourceType,
		FPS:        req.FPS,
	}
	if err := h.producer.PublishControl(cmd); err != nil {
		slog.Error("publish start command", "run_id", run.ID, "error", err)
		_ = h.db.UpdateRunStatus(c.Request.Context(), run.ID, models.RunStatusFailed, "failed to publish start command")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send start command"})
		return
	}

	c.JSON(http.StatusCreated, RunToResponse(run))
}

func (h *RunHandler) Get(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, RunToResponse(run))
}

func (h *RunHandler) List(c *gin.Context) {
	var q dto.RunQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runs, err := h.db.ListRuns(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.RunResponse, 0, len(runs))
	for i := range runs {
		resp = append(resp, RunToResponse(&runs[i]))
	}
	c.JSON(http.StatusOK, dto.RunListResponse{Runs: resp, Total: len(resp)})
}

// Stop asks the worker to stop a run. The final status arrives with the
// run's completion event.
func (h *RunHandler) Stop(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	if run.Finished() {
		c.JSON(http.StatusConflict, gin.H{"error": "run already finished", "status": run.Status})
		return
	}

	if err := h.producer.PublishControl(models.RunCommand{Action: "stop", RunID: run.ID.String()}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send stop command"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping", "run_id": run.ID})
}

func (h *RunHandler) Transitions(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	rows, err := h.db.ListTransitions(c.Request.Context(), run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	matrix := traffic.FromRows(rows)
	resp := dto.TransitionsResponse{
		RunID:       run.ID,
		Zones:       matrix.Zones(),
		Transitions: make([]dto.TransitionRow, 0, len(rows)),
		Total:       matrix.Total(),
	}
	for _, r := range matrix.Rows() {
		resp.Transitions = append(resp.Transitions, dto.TransitionRow{Entry: r.Entry, Exit: r.Exit, Vehicles: r.Count})
	}
	c.JSON(http.StatusOK, resp)
}

// Heatmap renders the run's transition matrix as an interactive HTML page.
func (h *RunHandler) Heatmap(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	rows, err := h.db.ListTransitions(c.Request.Context(), run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := export.RenderHeatmap(c.Writer, traffic.FromRows(rows)); err != nil {
		slog.Error("render heatmap", "run_id", run.ID, "error", err)
	}
}

func (h *RunHandler) Artifact(c *gin.Context) {
	if h.artifacts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "artifact storage not configured"})
		return
	}
	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	name := c.Param("name")
	key := storage.ArtifactKey(run.ID, name)
	if storage.ArtifactName(key) != name || !slices.Contains(run.Artifacts, key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}

	obj, size, err := h.artifacts.OpenObject(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	defer obj.Close()

	c.DataFromReader(http.StatusOK, size, storage.ContentType(name), obj, map[string]string{
		"Content-Disposition": `attachment; filename="` + name + `"`,
	})
}

func (h *RunHandler) loadRun(c *gin.Context) (*models.Run, bool) {
	return loadRun(c, h.db.GetRun)
}

func RunToResponse(r *models.Run) dto.RunResponse {
	names := make([]string, 0, len(r.Artifacts))
	for _, key := range r.Artifacts {
		names = append(names, storage.ArtifactName(key))
	}
	resp := dto.RunResponse{
		ID:           r.ID,
		Mode:         string(r.Mode),
		SourceURL:    r.SourceURL,
		SourceType:   string(r.SourceType),
		Status:       string(r.Status),
		Frames:       r.Frames,
		FrameErrors:  r.FrameErrors,
		Vehicles:     r.Vehicles,
		Persons:      r.Persons,
		Samples:      r.Samples,
		Artifacts:    names,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
