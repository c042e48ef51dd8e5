package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/store"
)

// Rebuilder rebuilds the modules of a stored run.
type Rebuilder interface {
	LatestRun(ctx context.Context) (*store.RunRow, error)
	RebuildModules(ctx context.Context, runID int64, th modules.Thresholds) (*store.ModuleSet, error)
}

// Thresholds tracks the module thresholds of the loaded config and rebuilds
// the latest run when they change.
type Thresholds struct {
	load   func() (modules.Thresholds, error)
	svc    Rebuilder
	logger *slog.Logger

	mu      sync.Mutex
	current modules.Thresholds
}

// NewThresholds creates a tracker starting from current. load reads the
// thresholds from the config file.
func NewThresholds(current modules.Thresholds, load func() (modules.Thresholds, error), svc Rebuilder, logger *slog.Logger) *Thresholds {
	return &Thresholds{load: load, svc: svc, logger: logger, current: current}
}

// Current returns the thresholds last applied.
func (t *Thresholds) Current() modules.Thresholds {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Apply reloads the thresholds and rebuilds the latest run's modules when
// they differ from the current ones. An invalid config keeps the current
// thresholds. Without any stored run the new thresholds are only recorded.
func (t *Thresholds) Apply(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	th, err := t.load()
	if err != nil {
		t.logger.Warn("config reload rejected", slog.String("error", err.Error()))
		return err
	}
	if th == t.current {
		t.logger.Debug("config reloaded, thresholds unchanged")
		return nil
	}

	run, err := t.svc.LatestRun(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		t.current = th
		t.logger.Info("thresholds updated, no run to rebuild")
		return nil
	}
	if err != nil {
		return err
	}

	set, err := t.svc.RebuildModules(ctx, run.ID, th)
	if err != nil {
		// ErrNoModules keeps the previous set; the thresholds still count as
		// applied so the same edit is not retried on every save.
		if errors.Is(err, apperr.ErrNoModules) {
			t.current = th
		}
		t.logger.Warn("module rebuild failed",
			slog.Int64("run_id", run.ID),
			slog.String("error", err.Error()))
		return err
	}
	t.current = th
	t.logger.Info("modules rebuilt after config change",
		slog.Int64("run_id", run.ID),
		slog.Int64("set_id", set.ID),
		slog.Int("modules", len(set.Modules)))
	return nil
}
