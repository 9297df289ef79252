package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/your-org/vca/internal/config"
	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/observability"
	"github.com/your-org/vca/internal/quadratic"
	"github.com/your-org/vca/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	params := quadratic.DefaultParams()
	solved, err := quadratic.SolveAll(params)
	if err != nil {
		slog.Error("solve equations", "error", err)
		os.Exit(1)
	}

	stored := make([]models.Solution, 0, len(solved))
	for _, s := range solved {
		fmt.Printf("%gx^2 + %gx + %g = 0: %s\n", s.A, s.B, s.C, s)
		stored = append(stored, models.NewSolution(s))
	}

	if !cfg.Database.Enabled() {
		slog.Info("database not configured, results not stored")
		return
	}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	if err := db.ReplaceSolutions(ctx, stored); err != nil {
		slog.Error("store solutions", "error", err)
		os.Exit(1)
	}
	slog.Info("solutions stored", "count", len(stored))
}
