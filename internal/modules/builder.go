// Package modules turns fitted gene models into per-regulator modules: the
// set of target genes each regulator is inferred to control.
package modules

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
)

// Less orders candidate edges from strongest to weakest: lower p-value,
// then larger |estimate|, then higher model R², then region ID. It is the
// only ordering used to pick and rank edges.
func Less(a, b models.Edge, useAdjusted bool) bool {
	pa, pb := a.PValue, b.PValue
	if useAdjusted {
		pa, pb = a.PAdj, b.PAdj
	}
	if pa != pb {
		return pa < pb
	}
	if wa, wb := math.Abs(a.Estimate), math.Abs(b.Estimate); wa != wb {
		return wa > wb
	}
	if a.RSquared != b.RSquared {
		return a.RSquared > b.RSquared
	}
	if a.Region != b.Region {
		return a.Region < b.Region
	}
	// Only reachable across different (regulator, target) pairs.
	if a.Target != b.Target {
		return a.Target < b.Target
	}
	return a.Regulator < b.Regulator
}

// Build derives modules from fitted models. The result is sorted by
// regulator and every edge is backed by a term of its target's model.
// enr may be nil, in which case MotifEnrichmentP is left at 1.
func Build(fitted map[string]*models.GeneModel, th Thresholds, enr *Enrichment) ([]models.Module, error) {
	if err := th.Validate(); err != nil {
		return nil, fmt.Errorf("modules: thresholds: %v: %w", err, apperr.ErrInvalidInput)
	}

	type pair struct{ regulator, target string }
	best := map[pair]models.Edge{}
	for gene, m := range fitted {
		// Written so that a NaN statistic never passes a threshold.
		if !(m.RSquared >= th.MinRSquared) || m.NTerms() < th.MinTerms {
			continue
		}
		for _, t := range m.Terms {
			p := t.PValue
			if th.UseAdjusted {
				p = t.PAdj
			}
			if !(p <= th.PValueMax) || math.IsNaN(t.Estimate) || math.IsInf(t.Estimate, 0) {
				continue
			}
			e := models.Edge{
				Regulator: t.Regulator,
				Target:    gene,
				Region:    t.Region,
				Estimate:  t.Estimate,
				PValue:    t.PValue,
				PAdj:      t.PAdj,
				RSquared:  m.RSquared,
			}
			k := pair{t.Regulator, gene}
			if cur, ok := best[k]; !ok || Less(e, cur, th.UseAdjusted) {
				best[k] = e
			}
		}
	}

	byReg := map[string][]models.Edge{}
	for k, e := range best {
		byReg[k.regulator] = append(byReg[k.regulator], e)
	}

	out := make([]models.Module, 0, len(byReg))
	for reg, edges := range byReg {
		sort.Slice(edges, func(i, j int) bool { return Less(edges[i], edges[j], th.UseAdjusted) })
		if th.MaxTargets > 0 && len(edges) > th.MaxTargets {
			edges = edges[:th.MaxTargets]
		}
		if len(edges) == 0 || len(edges) < th.MinGenesPerModule {
			continue
		}
		mod := models.Module{Regulator: reg, Edges: edges}
		for _, e := range edges {
			mod.Targets = append(mod.Targets, e.Target)
		}
		mod.Meta = meta(edges, fitted)
		mod.Meta.MotifEnrichmentP = enr.pValue(reg, mod.Targets)
		out = append(out, mod)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("modules: %w", apperr.ErrNoModules)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Regulator < out[j].Regulator })
	return out, nil
}

func meta(edges []models.Edge, fitted map[string]*models.GeneModel) models.ModuleMeta {
	mt := models.ModuleMeta{NGenes: len(edges)}
	r2 := make([]float64, 0, len(edges))
	for _, e := range edges {
		if e.Sign() > 0 {
			mt.NPositive++
		} else {
			mt.NNegative++
		}
		r2 = append(r2, fitted[e.Target].RSquared)
	}
	mt.MeanRSquared = stat.Mean(r2, nil)
	sort.Float64s(r2)
	if n := len(r2); n%2 == 1 {
		mt.MedianRSquared = r2[n/2]
	} else {
		mt.MedianRSquared = (r2[n/2-1] + r2[n/2]) / 2
	}
	return mt
}

// Find returns the module of regulator.
func Find(mods []models.Module, regulator string) (models.Module, bool) {
	i := sort.Search(len(mods), func(i int) bool { return mods[i].Regulator >= regulator })
	if i < len(mods) && mods[i].Regulator == regulator {
		return mods[i], true
	}
	return models.Module{}, false
}

// Edges flattens the module edges in module order.
func Edges(mods []models.Module) []models.Edge {
	var out []models.Edge
	for _, m := range mods {
		out = append(out, m.Edges...)
	}
	return out
}
