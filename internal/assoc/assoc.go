// Package assoc links regulatory regions to target genes. Strategies are
// interchangeable behind the Strategy interface; ByName is the only place
// where a strategy is chosen from a string.
package assoc

import (
	"fmt"
	"sort"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/genome"
	"github.com/starford/regnet/internal/models"
)

// Links maps a gene name to the positions of its associated regions, ascending.
type Links map[string][]int

// Strategy associates regions with genes.
type Strategy interface {
	Name() string
	Associate(genes []models.Gene, regions *genome.Index) Links
}

// Names of the built-in strategies.
const (
	NameNearest = "nearest"
	NameWindow  = "window"
	NameDomain  = "domain"
)

// Params carries the tunables of every built-in strategy.
type Params struct {
	Upstream    int `yaml:"upstream"`
	Downstream  int `yaml:"downstream"`
	MaxDistance int `yaml:"max_distance"`
	BasalUp     int `yaml:"basal_up"`
	BasalDown   int `yaml:"basal_down"`
	Extension   int `yaml:"extension"`
}

// DefaultParams returns the defaults documented for each strategy.
func DefaultParams() Params {
	return Params{
		Upstream:   100_000,
		Downstream: 100_000,
		BasalUp:    5_000,
		BasalDown:  1_000,
		Extension:  1_000_000,
	}
}

// ByName returns the strategy registered under name.
func ByName(name string, p Params) (Strategy, error) {
	switch name {
	case NameNearest:
		return Nearest{MaxDistance: p.MaxDistance}, nil
	case NameWindow, "":
		return Window{Upstream: p.Upstream, Downstream: p.Downstream}, nil
	case NameDomain:
		return Domain{BasalUp: p.BasalUp, BasalDown: p.BasalDown, Extension: p.Extension}, nil
	}
	return nil, fmt.Errorf("assoc: unknown strategy %q: %w", name, apperr.ErrInvalidInput)
}

// strandWindow returns the half-open interval [TSS-up, TSS+down] in the
// gene's orientation.
func strandWindow(g models.Gene, up, down int) (int, int) {
	tss := g.TSS()
	start, end := tss-up, tss+down+1
	if g.Strand == '-' {
		start, end = tss-down, tss+up+1
	}
	if start < 0 {
		start = 0
	}
	return start, end
}

// Window links every region overlapping a fixed window around the TSS.
type Window struct {
	Upstream   int
	Downstream int
}

func (Window) Name() string { return NameWindow }

func (w Window) Associate(genes []models.Gene, regions *genome.Index) Links {
	out := Links{}
	for _, g := range genes {
		start, end := strandWindow(g, w.Upstream, w.Downstream)
		if hits := regions.Overlapping(g.Chrom, start, end); len(hits) > 0 {
			out[g.Name] = hits
		}
	}
	return out
}

// Nearest assigns each region to the gene with the closest TSS on the same
// chromosome. Ties go to the lexicographically smaller gene name.
// MaxDistance > 0 drops assignments farther than that.
type Nearest struct {
	MaxDistance int
}

func (Nearest) Name() string { return NameNearest }

type tssEntry struct {
	pos  int
	name string
}

func (n Nearest) Associate(genes []models.Gene, regions *genome.Index) Links {
	byChrom := map[string][]tssEntry{}
	for _, g := range genes {
		byChrom[g.Chrom] = append(byChrom[g.Chrom], tssEntry{pos: g.TSS(), name: g.Name})
	}
	for _, list := range byChrom {
		sort.Slice(list, func(a, b int) bool {
			if list[a].pos != list[b].pos {
				return list[a].pos < list[b].pos
			}
			return list[a].name < list[b].name
		})
	}

	out := Links{}
	for i, r := range regions.Regions() {
		list := byChrom[r.Chrom]
		if len(list) == 0 {
			continue
		}
		best, bestDist := nearestTSS(list, r)
		if n.MaxDistance > 0 && bestDist > n.MaxDistance {
			continue
		}
		out[best] = append(out[best], i)
	}
	return out
}

// nearestTSS returns the closest gene of a TSS list sorted by (pos, name).
func nearestTSS(list []tssEntry, r models.Region) (string, int) {
	lo := sort.Search(len(list), func(k int) bool { return list[k].pos >= r.Start })
	hi := sort.Search(len(list), func(k int) bool { return list[k].pos >= r.End })
	if lo < hi {
		best := list[lo].name
		for _, e := range list[lo+1 : hi] {
			best = min(best, e.name)
		}
		return best, 0
	}
	best, bestDist := "", -1
	if lo > 0 {
		left := lo - 1
		for left > 0 && list[left-1].pos == list[left].pos {
			left--
		}
		best, bestDist = list[left].name, distance(r, list[left].pos)
	}
	if lo < len(list) {
		d := distance(r, list[lo].pos)
		if bestDist < 0 || d < bestDist || (d == bestDist && list[lo].name < best) {
			best, bestDist = list[lo].name, d
		}
	}
	return best, bestDist
}

// distance is 0 when pos lies inside r, otherwise the gap to the nearest end.
func distance(r models.Region, pos int) int {
	switch {
	case pos < r.Start:
		return r.Start - pos
	case pos >= r.End:
		return pos - r.End + 1
	}
	return 0
}

// Domain implements basal-plus-extension regulatory domains: every gene owns
// a basal domain around its TSS, extended in both directions up to the basal
// domains of its neighbours, but no more than Extension bp from the TSS.
type Domain struct {
	BasalUp   int
	BasalDown int
	Extension int
}

func (Domain) Name() string { return NameDomain }

type basal struct {
	gene       models.Gene
	tss        int
	start, end int
}

func (d Domain) Associate(genes []models.Gene, regions *genome.Index) Links {
	byChrom := map[string][]basal{}
	for _, g := range genes {
		s, e := strandWindow(g, d.BasalUp, d.BasalDown)
		byChrom[g.Chrom] = append(byChrom[g.Chrom], basal{gene: g, tss: g.TSS(), start: s, end: e})
	}
	out := Links{}
	for chrom, list := range byChrom {
		sort.Slice(list, func(a, b int) bool {
			if list[a].tss != list[b].tss {
				return list[a].tss < list[b].tss
			}
			return list[a].gene.Name < list[b].gene.Name
		})
		for i, b := range list {
			lo := b.tss - d.Extension
			if i > 0 && list[i-1].end > lo {
				lo = list[i-1].end
			}
			hi := b.tss + d.Extension + 1
			if i+1 < len(list) && list[i+1].start < hi {
				hi = list[i+1].start
			}
			lo = min(lo, b.start)
			hi = max(hi, b.end)
			if lo < 0 {
				lo = 0
			}
			if hits := regions.Overlapping(chrom, lo, hi); len(hits) > 0 {
				out[b.gene.Name] = hits
			}
		}
	}
	return out
}
