package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/your-org/vca/internal/models"
	"github.com/your-org/vca/internal/observability"
)

// Runner executes one analysis run. It must return once ctx is cancelled,
// after exporting whatever the run accumulated.
type Runner interface {
	Execute(ctx context.Context, cmd models.RunCommand) error
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager manages the lifecycle of analysis runs started by control commands.
type Manager struct {
	runner Runner

	mu   sync.RWMutex
	runs map[string]*activeRun
	wg   sync.WaitGroup
}

func NewManager(runner Runner) *Manager {
	return &Manager{
		runner: runner,
		runs:   make(map[string]*activeRun),
	}
}

// HandleCommand processes a run control command.
func (m *Manager) HandleCommand(ctx context.Context, cmd models.RunCommand) error {
	switch cmd.Action {
	case "start":
		return m.startRun(ctx, cmd)
	case "stop":
		return m.stopRun(cmd.RunID)
	default:
		return fmt.Errorf("unknown action: %s", cmd.Action)
	}
}

func (m *Manager) startRun(ctx context.Context, cmd models.RunCommand) error {
	if cmd.RunID == "" {
		return fmt.Errorf("start run: missing run id")
	}

	m.mu.Lock()
	if _, exists := m.runs[cmd.RunID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("run %s already running", cmd.RunID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}
	m.runs[cmd.RunID] = ar
	m.mu.Unlock()

	if cmd.SourceType == models.SourceTypeYouTube {
		resolved, err := ResolveYouTubeURL(runCtx, cmd.URL)
		if err != nil {
			m.remove(cmd.RunID, ar)
			return fmt.Errorf("resolve youtube url: %w", err)
		}
		cmd.URL = resolved
		slog.Info("resolved youtube url", "run_id", cmd.RunID)
	}

	observability.ActiveRuns.Inc()
	slog.Info("starting run", "run_id", cmd.RunID, "mode", cmd.Mode, "url", cmd.URL)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.remove(cmd.RunID, ar)
			observability.ActiveRuns.Dec()
			slog.Info("run finished", "run_id", cmd.RunID)
		}()

		if err := m.runner.Execute(runCtx, cmd); err != nil {
			slog.Error("run failed", "run_id", cmd.RunID, "error", err)
		}
	}()

	return nil
}

func (m *Manager) remove(runID string, ar *activeRun) {
	ar.cancel()
	m.mu.Lock()
	if m.runs[runID] == ar {
		delete(m.runs, runID)
	}
	m.mu.Unlock()
	close(ar.done)
}

func (m *Manager) stopRun(runID string) error {
	m.mu.RLock()
	ar, exists := m.runs[runID]
	m.mu.RUnlock()

	if !exists {
		return nil // Already stopped
	}

	ar.cancel()
	slog.Info("stop command sent", "run_id", runID)
	return nil
}

// Done returns a channel closed when the run ends, nil if it is not running.
func (m *Manager) Done(runID string) <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ar, ok := m.runs[runID]; ok {
		return ar.done
	}
	return nil
}

// ActiveCount returns the number of currently running runs.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// StopAll stops all running runs and waits for them to finish.
func (m *Manager) StopAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.stopRun(id)
	}
	m.wg.Wait()
}

// ParseCommand parses a NATS message into a RunCommand.
func ParseCommand(data []byte) (models.RunCommand, error) {
	var cmd models.RunCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("parse command: %w", err)
	}
	return cmd, nil
}
