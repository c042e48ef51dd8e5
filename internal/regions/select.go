// Package regions restricts the accessibility region set to a working subset.
package regions

import (
	"fmt"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/genome"
	"github.com/starford/regnet/internal/models"
)

// Filter is an annotation used to restrict regions, e.g. conserved elements.
type Filter struct {
	Name      string
	Intervals []models.Region
	// Padding widens every filter interval on both sides, in base pairs.
	Padding int
}

// Select returns the regions overlapping filter, preserving input order. A nil
// filter keeps every region. The returned slice is freshly allocated; inputs
// are never modified.
func Select(all []models.Region, filter *Filter) ([]models.Region, error) {
	if len(all) == 0 {
		return nil, fmt.Errorf("regions: empty input: %w", apperr.ErrEmptyRegions)
	}
	if filter == nil {
		out := make([]models.Region, len(all))
		for i, r := range all {
			r.Source = "all"
			out[i] = r
		}
		return out, nil
	}

	padded := make([]models.Region, len(filter.Intervals))
	for i, iv := range filter.Intervals {
		iv.Start -= filter.Padding
		if iv.Start < 0 {
			iv.Start = 0
		}
		iv.End += filter.Padding
		padded[i] = iv
	}
	idx, err := genome.NewIndex(padded)
	if err != nil {
		return nil, fmt.Errorf("regions: index filter: %w", err)
	}

	source := filter.Name
	if source == "" {
		source = "filter"
	}
	var out []models.Region
	for _, r := range all {
		if idx.Any(r.Chrom, r.Start, r.End) {
			r.Source = source
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("regions: filter %q kept 0 of %d regions: %w", source, len(all), apperr.ErrEmptyRegions)
	}
	return out, nil
}
