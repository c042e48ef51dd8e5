// Package models defines the domain types shared by the regnet pipeline stages.
package models

import (
	"fmt"
	"math"
)

// Region is a half-open, 0-based genomic interval (a peak).
type Region struct {
	ID     string `json:"id"`
	Chrom  string `json:"chrom"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Source string `json:"source,omitempty"` // selection criterion that kept the region
}

// Len returns the interval length in base pairs.
func (r Region) Len() int { return r.End - r.Start }

// Overlaps reports whether r and o share at least one base.
func (r Region) Overlaps(o Region) bool {
	return r.Chrom == o.Chrom && r.Start < o.End && o.Start < r.End
}

// Key returns the canonical "chrom:start-end" coordinate string.
func (r Region) Key() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// Gene is an annotated gene. Start/End are 0-based half-open.
type Gene struct {
	Name   string `json:"name"`
	Chrom  string `json:"chrom"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Strand byte   `json:"strand"`
}

// TSS returns the transcription start site, honouring strand.
func (g Gene) TSS() int {
	if g.Strand == '-' {
		return g.End - 1
	}
	return g.Start
}

// Term is one regulator x region interaction coefficient of a gene model.
type Term struct {
	Regulator string  `json:"regulator"`
	Region    string  `json:"region"`
	Estimate  float64 `json:"estimate"`
	StdErr    float64 `json:"std_err"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	PAdj      float64 `json:"p_adj"`
}

// GeneModel is the fitted regression of one target gene.
type GeneModel struct {
	Gene        string  `json:"gene"`
	Intercept   float64 `json:"intercept"`
	Terms       []Term  `json:"terms"`
	RSquared    float64 `json:"r_squared"`
	AdjRSquared float64 `json:"adj_r_squared"`
	NCells      int     `json:"n_cells"`
}

// NTerms returns the number of interaction terms in the model.
func (m *GeneModel) NTerms() int { return len(m.Terms) }

// Edge is a retained regulator -> target relation. Every edge is backed by
// exactly one Term of the target's GeneModel.
type Edge struct {
	Regulator string  `json:"regulator"`
	Target    string  `json:"target"`
	Region    string  `json:"region"`
	Estimate  float64 `json:"estimate"`
	PValue    float64 `json:"p_value"`
	PAdj      float64 `json:"p_adj"`
	RSquared  float64 `json:"r_squared"`
}

// Sign returns +1 for activating and -1 for repressing edges.
func (e Edge) Sign() int {
	if e.Estimate < 0 {
		return -1
	}
	return 1
}

// Weight is the edge weight used for layouts and rendering.
func (e Edge) Weight() float64 {
	return math.Abs(e.Estimate)
}

// ModuleMeta holds aggregate statistics of a module.
type ModuleMeta struct {
	NGenes           int     `json:"n_genes"`
	NPositive        int     `json:"n_positive"`
	NNegative        int     `json:"n_negative"`
	MeanRSquared     float64 `json:"mean_r_squared"`
	MedianRSquared   float64 `json:"median_r_squared"`
	MotifEnrichmentP float64 `json:"motif_enrichment_p"`
}

// Module is the set of target genes attributed to one regulator.
type Module struct {
	Regulator string     `json:"regulator"`
	Targets   []string   `json:"targets"`
	Edges     []Edge     `json:"edges"`
	Meta      ModuleMeta `json:"meta"`
}

// Positive returns the targets of activating edges.
func (m *Module) Positive() []string { return m.bySign(1) }

// Negative returns the targets of repressing edges.
func (m *Module) Negative() []string { return m.bySign(-1) }

func (m *Module) bySign(sign int) []string {
	var out []string
	for _, e := range m.Edges {
		if e.Sign() == sign {
			out = append(out, e.Target)
		}
	}
	return out
}

// Skip records a gene excluded from fitting and why.
type Skip struct {
	Gene   string `json:"gene"`
	Reason string `json:"reason"`
}

// Stage records one applied pipeline operation.
type Stage struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}
