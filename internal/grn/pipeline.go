package grn

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/fit"
	"github.com/starford/regnet/internal/genome"
	"github.com/starford/regnet/internal/matrix"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/motif"
	"github.com/starford/regnet/internal/network"
	"github.com/starford/regnet/internal/regions"
	"github.com/starford/regnet/internal/render"
)

// InitOptions selects the assays and the optional region filter.
type InitOptions struct {
	ExpressionKey    string
	AccessibilityKey string
	// Filter restricts regions to those overlapping it; nil keeps all.
	Filter     []models.Region
	FilterName string
	Padding    int
}

// Initiate aligns both assays on their shared cells and selects the
// working region set from the accessibility features.
func Initiate(ds *Dataset, opts InitOptions) (*State, error) {
	expr, err := ds.Assay(opts.ExpressionKey)
	if err != nil {
		return nil, err
	}
	access, err := ds.Assay(opts.AccessibilityKey)
	if err != nil {
		return nil, err
	}
	cells := matrix.SharedCells(expr, access)
	if len(cells) < 3 {
		return nil, fmt.Errorf("grn: %d shared cells: %w", len(cells), apperr.ErrInsufficientData)
	}
	if expr, err = expr.Reorder(cells); err != nil {
		return nil, fmt.Errorf("grn: align expression: %w", err)
	}
	if access, err = access.Reorder(cells); err != nil {
		return nil, fmt.Errorf("grn: align accessibility: %w", err)
	}

	all := make([]models.Region, 0, len(access.Features()))
	for _, id := range access.Features() {
		r, err := genome.ParseRegion(id)
		if err != nil {
			return nil, fmt.Errorf("grn: accessibility feature: %w", err)
		}
		all = append(all, r)
	}
	var filter *regions.Filter
	if opts.Filter != nil {
		filter = &regions.Filter{Name: opts.FilterName, Intervals: opts.Filter, Padding: opts.Padding}
	}
	selected, err := regions.Select(all, filter)
	if err != nil {
		return nil, err
	}

	st := &State{
		Expression:    expr,
		Accessibility: access,
		Genes:         ds.Genes,
		Regions:       selected,
	}
	return st.next("initiate", "%d cells, %d of %d regions", len(cells), len(selected), len(all)), nil
}

// ScanOptions configures ScanMotifs. A nil Mapping is derived from the
// catalog motif names; a zero MinRelScore means 0.8.
type ScanOptions struct {
	Catalog     []motif.PFM
	Mapping     motif.Mapping
	Genome      motif.Genome
	Regulators  []string
	MinRelScore float64
	Workers     int
}

// ScanMotifs builds the region x motif match matrix of the selected regions.
func ScanMotifs(ctx context.Context, st *State, opts ScanOptions) (*State, error) {
	if err := require(len(st.Regions) > 0, "regions"); err != nil {
		return nil, err
	}
	if err := require(opts.Genome != nil, "genome"); err != nil {
		return nil, err
	}
	mapping := opts.Mapping
	if mapping == nil {
		mapping = motif.FromCatalog(opts.Catalog)
	}
	minScore := opts.MinRelScore
	if minScore == 0 {
		minScore = 0.8
	}
	m, err := motif.Scan(ctx, st.Regions, opts.Genome, opts.Catalog, mapping, motif.ScanOptions{
		Regulators:  opts.Regulators,
		MinRelScore: minScore,
		Workers:     opts.Workers,
	})
	if err != nil {
		return nil, err
	}
	nr, nm := m.Dims()
	out := st.next("scan_motifs", "%d regions x %d motifs, %d hits", nr, nm, m.NNZ())
	out.Matches = m
	return out, nil
}

// InferOptions configures Infer. Empty Genes selects every annotated gene
// with non-zero expression variance.
type InferOptions struct {
	Association assoc.Strategy
	Genes       []string
	Workers     int
	AllowSelf   bool
	Progress    func(done, total int, gene string)
}

// Infer fits one model per target gene.
func Infer(ctx context.Context, st *State, opts InferOptions) (*State, error) {
	if err := require(st.Matches != nil, "motif matches"); err != nil {
		return nil, err
	}
	if err := require(opts.Association != nil, "association strategy"); err != nil {
		return nil, err
	}
	idx, err := genome.NewIndex(st.Regions)
	if err != nil {
		return nil, fmt.Errorf("grn: index regions: %w", err)
	}
	links := opts.Association.Associate(st.Genes, idx)

	genes := opts.Genes
	if len(genes) == 0 {
		genes = DefaultTargets(st)
	}
	res, err := fit.Run(ctx, fit.Input{
		Expression:    st.Expression,
		Accessibility: st.Accessibility,
		Regions:       st.Regions,
		Matches:       st.Matches,
		Links:         links,
	}, genes, fit.Options{Workers: opts.Workers, AllowSelf: opts.AllowSelf, Progress: opts.Progress})
	if err != nil {
		return nil, err
	}
	out := st.next("infer", "%s: %d models, %d skipped", opts.Association.Name(), len(res.Models), len(res.Skipped))
	out.Links = links
	out.Models = res.Models
	out.Skipped = res.Skipped
	out.Modules = nil
	out.Graph = nil
	return out, nil
}

// DefaultTargets returns the sorted annotated genes that are expressed
// with non-zero variance.
func DefaultTargets(st *State) []string {
	var out []string
	seen := map[string]bool{}
	for _, g := range st.Genes {
		if seen[g.Name] || !st.Expression.Has(g.Name) {
			continue
		}
		seen[g.Name] = true
		if st.Expression.Variance(g.Name) > 0 {
			out = append(out, g.Name)
		}
	}
	sort.Strings(out)
	return out
}

// BuildModules groups significant terms into per-regulator modules.
func BuildModules(st *State, th modules.Thresholds) (*State, error) {
	if err := require(st.Models != nil, "gene models"); err != nil {
		return nil, err
	}
	var enr *modules.Enrichment
	if st.Matches != nil && st.Links != nil {
		enr = &modules.Enrichment{Regions: st.Regions, Links: st.Links, Matches: st.Matches}
	}
	mods, err := modules.Build(st.Models, th, enr)
	if err != nil {
		return nil, err
	}
	out := st.next("build_modules", "%d modules, %d edges", len(mods), len(modules.Edges(mods)))
	out.Thresholds = th
	out.Modules = mods
	out.Graph = nil
	return out, nil
}

// BuildGraph assembles the module graph and positions it with layout. A nil
// layout leaves the graph unpositioned.
func BuildGraph(st *State, layout network.Layout) (*State, error) {
	if err := require(st.Modules != nil, "modules"); err != nil {
		return nil, err
	}
	g, err := network.Build(st.Modules)
	if err != nil {
		return nil, err
	}
	g = g.WithLayout(layout)
	name := g.Layout
	if name == "" {
		name = "no"
	}
	out := st.next("build_graph", "%s layout: %d nodes, %d edges", name, len(g.Nodes), len(g.Edges))
	out.Graph = g
	return out, nil
}

// RenderGraph writes the graph of st with r. It does not produce a new State.
func RenderGraph(st *State, r render.Renderer, w io.Writer) error {
	if err := require(st.Graph != nil, "graph"); err != nil {
		return err
	}
	return r.Render(w, st.Graph)
}
