// Package grn chains the pipeline stages over an immutable, versioned State.
// Every operation returns a new State; its input is left untouched.
package grn

import (
	"fmt"
	"slices"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/matrix"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/motif"
	"github.com/starford/regnet/internal/network"
)

// Dataset is the paired multi-modal input: named features x cells assays
// and the gene annotation.
type Dataset struct {
	Assays map[string]*matrix.Matrix
	Genes  []models.Gene
}

// Assay returns the assay stored under key.
func (d *Dataset) Assay(key string) (*matrix.Matrix, error) {
	m, ok := d.Assays[key]
	if !ok {
		return nil, fmt.Errorf("grn: assay %q: %w", key, apperr.ErrNotFound)
	}
	return m, nil
}

// State is the pipeline state after some prefix of the stages. Fields are
// read-only; later stages share unchanged data with earlier versions.
type State struct {
	Version int
	History []models.Stage

	Expression    *matrix.Matrix
	Accessibility *matrix.Matrix
	Genes         []models.Gene
	Regions       []models.Region

	Matches *motif.Matches
	Links   assoc.Links

	Models  map[string]*models.GeneModel
	Skipped []models.Skip

	Thresholds modules.Thresholds
	Modules    []models.Module

	Graph *network.Graph
}

func (s *State) next(name, format string, args ...any) *State {
	cp := *s
	cp.Version = s.Version + 1
	cp.History = append(slices.Clone(s.History), models.Stage{Name: name, Detail: fmt.Sprintf(format, args...)})
	return &cp
}

func require(ok bool, what string) error {
	if ok {
		return nil
	}
	return fmt.Errorf("grn: %s not available: %w", what, apperr.ErrInvalidInput)
}
