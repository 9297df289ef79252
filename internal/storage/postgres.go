package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/vca/internal/config"
	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/traffic"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables and the vector extension when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// --- Runs ---

const runColumns = `id, mode, source_url, source_type, status, frames, frame_errors,
	vehicles, persons, samples, artifacts, error_message, created_at, updated_at, finished_at`

func scanRun(row pgx.Row) (*models.Run, error) {
	r := &models.Run{}
	err := row.Scan(&r.ID, &r.Mode, &r.SourceURL, &r.SourceType, &r.Status, &r.Frames, &r.FrameErrors,
		&r.Vehicles, &r.Persons, &r.Samples, &r.Artifacts, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt, &r.FinishedAt)
	return r, err
}

// CreateRun inserts a pending run and fills its generated fields.
func (s *PostgresStore) CreateRun(ctx context.Context, r *models.Run) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = models.RunStatusPending
	}
	if r.Artifacts == nil {
		r.Artifacts = []string{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO runs (id, mode, source_url, source_type, status, artifacts)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		r.ID, r.Mode, r.SourceURL, r.SourceType, r.Status, r.Artifacts,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRun writes the mutable fields of a run: status, counters,
// artifacts, error message and finish time.
func (s *PostgresStore) UpdateRun(ctx context.Context, r *models.Run) error {
	if r.Artifacts == nil {
		r.Artifacts = []string{}
	}
	if r.Finished() && r.FinishedAt == nil {
		now := time.Now()
		r.FinishedAt = &now
	}
	err := s.pool.QueryRow(ctx,
		`UPDATE runs SET status = $1, frames = $2, frame_errors = $3, vehicles = $4, persons = $5,
		   samples = $6, artifacts = $7, error_message = $8, finished_at = $9, updated_at = now()
		 WHERE id = $10 RETURNING updated_at`,
		r.Status, r.Frames, r.FrameErrors, r.Vehicles, r.Persons,
		r.Samples, r.Artifacts, r.ErrorMessage, r.FinishedAt, r.ID,
	).Scan(&r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("update run %s: not found", r.ID)
		}
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status models.RunStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// GetRun returns nil without error when the run does not exist.
func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit, offset int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// --- Transitions ---

// ReplaceTransitions stores the matrix of a run, dropping any previous rows.
func (s *PostgresStore) ReplaceTransitions(ctx context.Context, runID uuid.UUID, rows []traffic.TransitionCount) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM run_transitions WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear transitions: %w", err)
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO run_transitions (run_id, entry_zone, exit_zone, vehicles) VALUES ($1, $2, $3, $4)`,
			runID, r.Entry, r.Exit, r.Count)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert transitions: %w", err)
	}
	return tx.Commit(ctx)
}

// ListTransitions returns the stored matrix rows sorted by entry then exit.
func (s *PostgresStore) ListTransitions(ctx context.Context, runID uuid.UUID) ([]traffic.TransitionCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entry_zone, exit_zone, vehicles FROM run_transitions
		 WHERE run_id = $1 ORDER BY entry_zone, exit_zone`, runID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []traffic.TransitionCount
	for rows.Next() {
		var tc traffic.TransitionCount
		if err := rows.Scan(&tc.Entry, &tc.Exit, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// --- Emotion samples ---

// ReplaceEmotionSamples stores the timeline of a run, dropping any previous
// samples so a redelivered completion does not duplicate rows.
func (s *PostgresStore) ReplaceEmotionSamples(ctx context.Context, runID uuid.UUID, samples []models.EmotionSample) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM emotion_samples WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear emotion samples: %w", err)
	}
	batch := &pgx.Batch{}
	for _, es := range samples {
		batch.Queue(
			`INSERT INTO emotion_samples (id, run_id, frame, second, faces, joy, sadness, anger, surprise, profile)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			es.ID, runID, es.Frame, es.Second, es.Faces,
			es.Joy, es.Sadness, es.Anger, es.Surprise, pgvector.NewVector(es.Profile))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert emotion samples: %w", err)
	}
	return tx.Commit(ctx)
}

const sampleColumns = `id, run_id, frame, second, faces, joy, sadness, anger, surprise, profile::real[], created_at`

func (s *PostgresStore) ListEmotionSamples(ctx context.Context, runID uuid.UUID) ([]models.EmotionSample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sampleColumns+` FROM emotion_samples WHERE run_id = $1 ORDER BY frame`, runID)
	if err != nil {
		return nil, fmt.Errorf("list emotion samples: %w", err)
	}
	defer rows.Close()

	var out []models.EmotionSample
	for rows.Next() {
		var es models.EmotionSample
		if err := rows.Scan(&es.ID, &es.RunID, &es.Frame, &es.Second, &es.Faces,
			&es.Joy, &es.Sadness, &es.Anger, &es.Surprise, &es.Profile, &es.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan emotion sample: %w", err)
		}
		out = append(out, es)
	}
	return out, rows.Err()
}

// SimilarSamples finds the stored samples whose emotion profile is closest
// (L2) to profile, optionally restricted to one run.
func (s *PostgresStore) SimilarSamples(ctx context.Context, profile []float32, runID *uuid.UUID, limit int) ([]models.SimilarSample, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(profile)

	var (
		query string
		args  []interface{}
	)
	if runID != nil {
		query = `SELECT ` + sampleColumns + `, (profile <-> $1)::real AS distance
			FROM emotion_samples WHERE run_id = $2
			ORDER BY profile <-> $1 LIMIT $3`
		args = []interface{}{vec, *runID, limit}
	} else {
		query = `SELECT ` + sampleColumns + `, (profile <-> $1)::real AS distance
			FROM emotion_samples
			ORDER BY profile <-> $1 LIMIT $2`
		args = []interface{}{vec, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search emotion samples: %w", err)
	}
	defer rows.Close()

	var out []models.SimilarSample
	for rows.Next() {
		var m models.SimilarSample
		if err := rows.Scan(&m.ID, &m.RunID, &m.Frame, &m.Second, &m.Faces,
			&m.Joy, &m.Sadness, &m.Anger, &m.Surprise, &m.Profile, &m.CreatedAt, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan similar sample: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Solutions ---

// ReplaceSolutions swaps the stored equation batch for solutions.
func (s *PostgresStore) ReplaceSolutions(ctx context.Context, solutions []models.Solution) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM solutions`); err != nil {
		return fmt.Errorf("clear solutions: %w", err)
	}
	batch := &pgx.Batch{}
	for i := range solutions {
		sol := &solutions[i]
		if sol.ID == uuid.Nil {
			sol.ID = uuid.New()
		}
		if sol.Roots == nil {
			sol.Roots = []float64{}
		}
		batch.Queue(
			`INSERT INTO solutions (id, a, b, c, discriminant, roots, result)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
			sol.ID, sol.A, sol.B, sol.C, sol.Discriminant, sol.Roots, sol.Result,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&sol.CreatedAt)
		})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert solutions: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListSolutions(ctx context.Context) ([]models.Solution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, a, b, c, discriminant, roots, result, created_at FROM solutions ORDER BY created_at, b`)
	if err != nil {
		return nil, fmt.Errorf("list solutions: %w", err)
	}
	defer rows.Close()

	var out []models.Solution
	for rows.Next() {
		var sol models.Solution
		if err := rows.Scan(&sol.ID, &sol.A, &sol.B, &sol.C, &sol.Discriminant,
			&sol.Roots, &sol.Result, &sol.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		out = append(out, sol)
	}
	return out, rows.Err()
}
