package netservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/checksum"
	"github.com/starford/regnet/internal/grn"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/network"
	"github.com/starford/regnet/internal/store"
)

// RunSpec is everything needed to execute the pipeline once.
type RunSpec struct {
	Name        string
	Inputs      Inputs
	Association string
	AssocParams assoc.Params
	Regulators  []string
	Genes       []string
	MinRelScore float64
	Workers     int
	AllowSelf   bool
	Thresholds  modules.Thresholds
	Layout      string
}

// RunSummary describes a finished run.
type RunSummary struct {
	Run       *store.RunRow
	Modules   int
	Edges     int
	Artifacts []string
}

// Run loads the inputs, executes every pipeline stage, stores the result
// and renders the network artifacts. A run that yields no modules is still
// stored (its models stay queryable) and ErrNoModules is returned with the
// summary.
func (s *Service) Run(ctx context.Context, spec RunSpec) (*RunSummary, error) {
	started := time.Now()
	strategy, err := assoc.ByName(spec.Association, spec.AssocParams)
	if err != nil {
		return nil, err
	}
	layout, err := network.LayoutByName(spec.Layout, s.seed)
	if err != nil {
		return nil, err
	}
	fingerprint, err := checksum.Files(spec.Inputs.Paths()...)
	if err != nil {
		return nil, fmt.Errorf("fingerprint inputs: %w", err)
	}

	in, err := load(ctx, spec.Inputs)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}
	s.logger.Info("inputs loaded",
		slog.String("run", spec.Name),
		slog.Int("genes", len(in.dataset.Genes)),
		slog.Int("motifs", len(in.catalog)),
		slog.Int("chromosomes", in.genome.Chroms()))

	st, err := grn.Initiate(in.dataset, grn.InitOptions{
		ExpressionKey:    ExpressionKey,
		AccessibilityKey: AccessibilityKey,
		Filter:           in.filter,
		FilterName:       spec.Inputs.FilterName,
		Padding:          spec.Inputs.Padding,
	})
	if err != nil {
		return nil, err
	}
	if st, err = grn.ScanMotifs(ctx, st, grn.ScanOptions{
		Catalog:     in.catalog,
		Mapping:     in.mapping,
		Genome:      in.genome,
		Regulators:  spec.Regulators,
		MinRelScore: spec.MinRelScore,
		Workers:     spec.Workers,
	}); err != nil {
		return nil, err
	}
	if st, err = grn.Infer(ctx, st, grn.InferOptions{
		Association: strategy,
		Genes:       spec.Genes,
		Workers:     spec.Workers,
		AllowSelf:   spec.AllowSelf,
		Progress: func(done, total int, gene string) {
			s.notify.FitProgress(spec.Name, done, total, gene)
		},
	}); err != nil {
		return nil, err
	}
	for _, sk := range st.Skipped {
		s.logger.Warn("gene skipped", slog.String("gene", sk.Gene), slog.String("reason", sk.Reason))
	}

	built, buildErr := grn.BuildModules(st, spec.Thresholds)
	if buildErr != nil && !errors.Is(buildErr, apperr.ErrNoModules) {
		return nil, buildErr
	}
	if buildErr == nil {
		st = built
	}

	run := &store.Run{
		Name:        spec.Name,
		Fingerprint: fingerprint,
		Association: strategy.Name(),
		Layout:      layout.Name(),
		History:     st.History,
		Regions:     st.Regions,
		Links:       st.Links,
		Matches:     st.Matches,
		Models:      st.Models,
		Skipped:     st.Skipped,
		Thresholds:  spec.Thresholds,
		Modules:     st.Modules,
	}
	id, err := s.db.SaveRun(run)
	if err != nil {
		return nil, err
	}
	row, err := s.db.GetRun(id)
	if err != nil {
		return nil, err
	}
	summary := &RunSummary{Run: row}
	if buildErr != nil {
		s.logger.Warn("no modules", slog.Int64("run_id", id), slog.String("error", buildErr.Error()))
		return summary, buildErr
	}

	summary.Modules = len(st.Modules)
	summary.Edges = len(modules.Edges(st.Modules))
	if err := s.writeArtifacts(ctx, id, layout.Name()); err != nil {
		return summary, fmt.Errorf("render artifacts: %w", err)
	}
	summary.Artifacts = []string{ArtifactPrefix(id) + "/network.html", ArtifactPrefix(id) + "/network.json"}
	if set, err := s.db.Modules(id); err == nil {
		s.notify.ModulesUpdated(id, set.ID, len(set.Modules))
	}

	s.logger.Info("run finished",
		slog.Int64("run_id", id),
		slog.Int("models", len(st.Models)),
		slog.Int("skipped", len(st.Skipped)),
		slog.Int("modules", summary.Modules),
		slog.Int("edges", summary.Edges),
		slog.Duration("elapsed", time.Since(started)))
	return summary, nil
}
