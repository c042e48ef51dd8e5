// Package netservice coordinates pipeline runs, the run store and rendered
// artifacts for the CLI, REST and MCP front ends.
package netservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/genome"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/network"
	"github.com/starford/regnet/internal/render"
	"github.com/starford/regnet/internal/storage"
	"github.com/starford/regnet/internal/store"
)

// Notifier receives pipeline progress. Implementations must not block.
type Notifier interface {
	FitProgress(run string, done, total int, gene string)
	ModulesUpdated(runID, setID int64, modules int)
}

type nopNotifier struct{}

func (nopNotifier) FitProgress(string, int, int, string) {}
func (nopNotifier) ModulesUpdated(int64, int64, int)     {}

// Service coordinates the store, the artifact directory and pipeline runs.
type Service struct {
	db        store.RunStore
	artifacts storage.Provider
	notify    Notifier
	logger    *slog.Logger
	seed      uint64
}

// NewService creates a new network service. notify may be nil.
func NewService(db store.RunStore, artifacts storage.Provider, notify Notifier, logger *slog.Logger) *Service {
	if notify == nil {
		notify = nopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, artifacts: artifacts, notify: notify, logger: logger, seed: 1}
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(_ context.Context) error {
	return s.db.Ping()
}

// ListRuns returns runs newest first.
func (s *Service) ListRuns(_ context.Context, limit, offset int) ([]store.RunRow, int, error) {
	runs, total, err := s.db.ListRuns(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return nonNilSlice(runs), total, nil
}

// GetRun returns one run.
func (s *Service) GetRun(_ context.Context, id int64) (*store.RunRow, error) {
	return s.db.GetRun(id)
}

// LatestRun returns the most recent run.
func (s *Service) LatestRun(_ context.Context) (*store.RunRow, error) {
	return s.db.LatestRun()
}

// Modules returns the latest module set of a run.
func (s *Service) Modules(_ context.Context, runID int64) (*store.ModuleSet, error) {
	set, err := s.db.Modules(runID)
	if err != nil {
		return nil, err
	}
	set.Modules = nonNilSlice(set.Modules)
	return set, nil
}

// Module returns the module of one regulator from the latest set.
func (s *Service) Module(ctx context.Context, runID int64, regulator string) (*models.Module, error) {
	set, err := s.Modules(ctx, runID)
	if err != nil {
		return nil, err
	}
	m, ok := modules.Find(set.Modules, regulator)
	if !ok {
		return nil, fmt.Errorf("module %s: %w", regulator, apperr.ErrNotFound)
	}
	return &m, nil
}

// GeneModel returns the fitted model of one gene.
func (s *Service) GeneModel(_ context.Context, runID int64, gene string) (*models.GeneModel, error) {
	m, err := s.db.GetModel(runID, gene)
	if err != nil {
		return nil, err
	}
	m.Terms = nonNilSlice(m.Terms)
	return m, nil
}

// Graph builds the graph of the latest module set, laid out by name.
func (s *Service) Graph(ctx context.Context, runID int64, layout string) (*network.Graph, error) {
	l, err := network.LayoutByName(layout, s.seed)
	if err != nil {
		return nil, err
	}
	set, err := s.Modules(ctx, runID)
	if err != nil {
		return nil, err
	}
	g, err := network.Build(set.Modules)
	if err != nil {
		return nil, err
	}
	return g.WithLayout(l), nil
}

// RebuildModules rebuilds a run's modules from its stored models with new
// thresholds, stores them as a new set and re-renders the run artifacts with
// the run's layout.
func (s *Service) RebuildModules(ctx context.Context, runID int64, th modules.Thresholds) (*store.ModuleSet, error) {
	run, err := s.db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	fitted, err := s.db.Models(runID)
	if err != nil {
		return nil, err
	}
	enr, err := s.db.Enrichment(runID)
	if err != nil {
		return nil, err
	}
	mods, err := modules.Build(fitted, th, enr)
	if err != nil {
		return nil, err
	}
	setID, err := s.db.SaveModules(runID, th, mods)
	if err != nil {
		return nil, err
	}
	s.logger.Info("modules rebuilt",
		slog.Int64("run_id", runID),
		slog.Int64("set_id", setID),
		slog.Int("modules", len(mods)))
	s.notify.ModulesUpdated(runID, setID, len(mods))

	if err := s.writeArtifacts(ctx, runID, run.Layout); err != nil {
		s.logger.Warn("render artifacts failed", slog.Int64("run_id", runID), slog.String("error", err.Error()))
	}
	return s.Modules(ctx, runID)
}

// Artifacts lists rendered artifacts.
func (s *Service) Artifacts(_ context.Context) ([]models.Artifact, error) {
	items, err := s.artifacts.List("")
	if err != nil {
		return nil, err
	}
	return nonNilSlice(items), nil
}

// ArtifactPrefix returns the artifact directory of a run.
func ArtifactPrefix(runID int64) string {
	return fmt.Sprintf("run-%d", runID)
}

func (s *Service) writeArtifacts(ctx context.Context, runID int64, layout string) error {
	g, err := s.Graph(ctx, runID, layout)
	if err != nil {
		return err
	}
	for _, r := range []render.Renderer{render.HTML{Title: fmt.Sprintf("regnet run %d", runID)}, render.JSON{Indent: true}} {
		name := path.Join(ArtifactPrefix(runID), "network."+r.Ext())
		if err := s.artifacts.WriteFunc(name, func(w io.Writer) error { return r.Render(w, g) }); err != nil {
			return err
		}
	}
	return nil
}

func parseRegionID(id string) (models.Region, error) {
	return genome.ParseRegion(id)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
