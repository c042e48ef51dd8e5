package netservice

import (
	"context"
	"fmt"

	"github.com/starford/regnet/internal/fasta"
	"github.com/starford/regnet/internal/grn"
	"github.com/starford/regnet/internal/matrix"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/motif"
	"github.com/starford/regnet/internal/parser"
)

// Inputs names the input files of a run. Filter and MotifMap are optional.
type Inputs struct {
	Expression    string `yaml:"expression"`
	Accessibility string `yaml:"accessibility"`
	Genes         string `yaml:"genes"`
	Genome        string `yaml:"genome"`
	Motifs        string `yaml:"motifs"`
	MotifMap      string `yaml:"motif_map"`
	Filter        string `yaml:"filter"`
	FilterName    string `yaml:"filter_name"`
	Padding       int    `yaml:"padding"`
}

// Paths returns every configured input path in a fixed order.
func (in Inputs) Paths() []string {
	return []string{in.Expression, in.Accessibility, in.Genes, in.Genome, in.Motifs, in.MotifMap, in.Filter}
}

// Assay keys under which loaded matrices are stored in the dataset.
const (
	ExpressionKey    = "rna"
	AccessibilityKey = "atac"
)

type loaded struct {
	dataset *grn.Dataset
	genome  *fasta.Genome
	catalog []motif.PFM
	mapping motif.Mapping
	filter  []models.Region
}

func load(ctx context.Context, in Inputs) (*loaded, error) {
	expr, err := parser.ParseAssayFile(in.Expression)
	if err != nil {
		return nil, fmt.Errorf("expression: %w", err)
	}
	access, err := parser.ParseAssayFile(in.Accessibility)
	if err != nil {
		return nil, fmt.Errorf("accessibility: %w", err)
	}
	genes, err := parser.ParseGenesFile(in.Genes)
	if err != nil {
		return nil, fmt.Errorf("genes: %w", err)
	}
	catalog, err := parser.ParseJASPARFile(in.Motifs)
	if err != nil {
		return nil, fmt.Errorf("motifs: %w", err)
	}
	var mapping motif.Mapping
	if in.MotifMap != "" {
		if mapping, err = parser.ParseMotifMapFile(in.MotifMap); err != nil {
			return nil, fmt.Errorf("motif map: %w", err)
		}
	}
	var filter []models.Region
	if in.Filter != "" {
		if filter, err = parser.ParseBEDFile(in.Filter); err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
	}

	// Only chromosomes that carry accessibility regions are kept in memory.
	chroms := map[string]bool{}
	for _, id := range access.Features() {
		if r, err := parseRegionID(id); err == nil {
			chroms[r.Chrom] = true
		}
	}
	genome, err := fasta.Load(ctx, in.Genome, func(id string) bool { return chroms[id] })
	if err != nil {
		return nil, fmt.Errorf("genome: %w", err)
	}

	return &loaded{
		dataset: &grn.Dataset{
			Assays: map[string]*matrix.Matrix{ExpressionKey: expr, AccessibilityKey: access},
			Genes:  genes,
		},
		genome:  genome,
		catalog: catalog,
		mapping: mapping,
		filter:  filter,
	}, nil
}
