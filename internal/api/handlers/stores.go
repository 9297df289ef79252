package handlers

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/traffic"
)

// RunStore is the subset of the Postgres store the run endpoints use.
type RunStore interface {
	CreateRun(ctx context.Context, r *models.Run) error
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status models.RunStatus, errMsg string) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]models.Run, error)
	ListTransitions(ctx context.Context, runID uuid.UUID) ([]traffic.TransitionCount, error)
}

type EmotionStore interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListEmotionSamples(ctx context.Context, runID uuid.UUID) ([]models.EmotionSample, error)
	SimilarSamples(ctx context.Context, profile []float32, runID *uuid.UUID, limit int) ([]models.SimilarSample, error)
}

type SolutionStore interface {
	ReplaceSolutions(ctx context.Context, solutions []models.Solution) error
	ListSolutions(ctx context.Context) ([]models.Solution, error)
}

// ControlPublisher sends run commands to the workers.
type ControlPublisher interface {
	PublishControl(cmd models.RunCommand) error
}

// ArtifactStore streams stored run outputs.
type ArtifactStore interface {
	OpenObject(ctx context.Context, key string) (io.ReadCloser, int64, error)
}
