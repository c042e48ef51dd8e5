package modules

import (
	fet "github.com/glycerine/golang-fisher-exact"

	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/motif"
)

// Enrichment holds what is needed to test whether a module's linked regions
// carry the regulator's motif more often than associated regions overall.
type Enrichment struct {
	Regions []models.Region
	Links   assoc.Links
	Matches *motif.Matches
}

// pValue is the one-sided Fisher exact p-value of the 2x2 table
// (module regions vs other associated regions) x (has motif vs not).
func (e *Enrichment) pValue(regulator string, targets []string) float64 {
	if e == nil || e.Matches == nil {
		return 1
	}
	inModule := map[int]bool{}
	for _, g := range targets {
		for _, ri := range e.Links[g] {
			inModule[ri] = true
		}
	}
	universe := map[int]bool{}
	for _, idx := range e.Links {
		for _, ri := range idx {
			universe[ri] = true
		}
	}

	var n11, n12, n21, n22 int
	for ri := range universe {
		has := e.hasMotif(ri, regulator)
		switch {
		case inModule[ri] && has:
			n11++
		case inModule[ri]:
			n12++
		case has:
			n21++
		default:
			n22++
		}
	}
	if n11+n12 == 0 {
		return 1
	}
	_, _, rightp, _ := fet.FisherExactTest(n11, n12, n21, n22)
	if rightp > 1 {
		return 1
	}
	return rightp
}

func (e *Enrichment) hasMotif(ri int, regulator string) bool {
	row, ok := e.Matches.RowOf(e.Regions[ri].ID)
	if !ok {
		return false
	}
	for _, r := range e.Matches.RegulatorsAt(row) {
		if r == regulator {
			return true
		}
	}
	return false
}
