// Package fit fits one regression model per target gene, explaining its
// expression by regulator-expression x region-accessibility interaction
// terms, and runs those fits on a bounded worker pool.
package fit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/matrix"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/motif"
)

// Input is the read-only data shared by every per-gene fit. Expression and
// Accessibility must have identical cell order.
type Input struct {
	Expression    *matrix.Matrix
	Accessibility *matrix.Matrix
	Regions       []models.Region
	Matches       *motif.Matches
	Links         assoc.Links
}

// Options configures Run.
type Options struct {
	Workers   int
	AllowSelf bool
	// Progress, when set, is called once per finished gene.
	Progress func(done, total int, gene string)
}

// Result is the outcome of a batch fit.
type Result struct {
	Models  map[string]*models.GeneModel
	Skipped []models.Skip
}

// candidate is one regulator x region interaction term.
type candidate struct {
	regulator string
	region    string
	values    []float64
}

// candidates returns the interaction terms of gene in deterministic order
// (region position, then regulator name).
func (in Input) candidates(gene string, allowSelf bool) []candidate {
	var out []candidate
	for _, ri := range in.Links[gene] {
		region := in.Regions[ri]
		row, ok := in.Matches.RowOf(region.ID)
		if !ok {
			continue
		}
		access, ok := in.Accessibility.Row(region.ID)
		if !ok {
			continue
		}
		for _, reg := range in.Matches.RegulatorsAt(row) {
			if reg == gene && !allowSelf {
				continue
			}
			expr, ok := in.Expression.Row(reg)
			if !ok {
				continue
			}
			vals := make([]float64, len(expr))
			for c := range expr {
				vals[c] = expr[c] * access[c]
			}
			if constant(vals) {
				continue
			}
			out = append(out, candidate{regulator: reg, region: region.ID, values: vals})
		}
	}
	return out
}

// Gene fits the model of a single gene. Errors wrapping
// apperr.ErrInsufficientData mean the gene should be skipped.
func (in Input) Gene(gene string, allowSelf bool) (*models.GeneModel, error) {
	y, ok := in.Expression.Row(gene)
	if !ok {
		return nil, fmt.Errorf("not in expression assay: %w", apperr.ErrInsufficientData)
	}
	if constant(y) {
		return nil, fmt.Errorf("zero expression variance: %w", apperr.ErrInsufficientData)
	}
	if len(in.Links[gene]) == 0 {
		return nil, fmt.Errorf("no associated regions: %w", apperr.ErrInsufficientData)
	}
	cands := in.candidates(gene, allowSelf)
	if len(cands) == 0 {
		return nil, fmt.Errorf("no candidate terms: %w", apperr.ErrInsufficientData)
	}

	n := len(y)
	x := mat.NewDense(n, len(cands), nil)
	for j, c := range cands {
		x.SetCol(j, c.values)
	}
	res, err := ols(x, y)
	if err != nil {
		return nil, err
	}

	m := &models.GeneModel{
		Gene:        gene,
		Intercept:   res.intercept,
		RSquared:    res.rsq,
		AdjRSquared: res.adjRsq,
		NCells:      n,
		Terms:       make([]models.Term, len(cands)),
	}
	for j, c := range cands {
		m.Terms[j] = models.Term{
			Regulator: c.regulator,
			Region:    c.region,
			Estimate:  res.coef[j],
			StdErr:    res.stdErr[j],
			Statistic: res.tstat[j],
			PValue:    res.pvalue[j],
			PAdj:      res.pvalue[j],
		}
	}
	return m, nil
}

// Run fits every gene independently on up to opts.Workers goroutines. Genes
// with insufficient data are skipped and reported; any other error or a
// cancelled ctx aborts the batch. The result does not depend on the worker
// count. Term PAdj values are Benjamini-Hochberg adjusted across the batch.
func Run(ctx context.Context, in Input, genes []string, opts Options) (*Result, error) {
	if len(genes) == 0 {
		return nil, fmt.Errorf("fit: %w", apperr.ErrNoGenes)
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	res := &Result{Models: make(map[string]*models.GeneModel, len(genes))}
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, gene := range genes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			model, err := in.Gene(gene, opts.AllowSelf)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Models[gene] = model
			case errors.Is(err, apperr.ErrInsufficientData):
				res.Skipped = append(res.Skipped, models.Skip{Gene: gene, Reason: err.Error()})
			default:
				return fmt.Errorf("fit: gene %s: %w", gene, err)
			}
			done++
			if opts.Progress != nil {
				opts.Progress(done, len(genes), gene)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(res.Skipped, func(a, b int) bool { return res.Skipped[a].Gene < res.Skipped[b].Gene })
	adjustModels(res.Models)
	return res, nil
}

// adjustModels fills Term.PAdj across all models in a fixed (gene, term) order.
func adjustModels(ms map[string]*models.GeneModel) {
	names := make([]string, 0, len(ms))
	for name := range ms {
		names = append(names, name)
	}
	sort.Strings(names)
	var ps []float64
	for _, name := range names {
		for _, t := range ms[name].Terms {
			ps = append(ps, t.PValue)
		}
	}
	adj := adjustBH(ps)
	k := 0
	for _, name := range names {
		terms := ms[name].Terms
		for i := range terms {
			terms[i].PAdj = adj[k]
			k++
		}
	}
}

func constant(v []float64) bool {
	if len(v) == 0 {
		return true
	}
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}
