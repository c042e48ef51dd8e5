// Package genome provides genomic coordinate parsing and interval-tree overlap
// queries over region sets.
package genome

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
)

// ParseRegion parses a peak identifier such as "chr1:100-200", "chr1-100-200"
// or "chr1_100_200" into a Region whose ID is the original string.
func ParseRegion(id string) (models.Region, error) {
	s := strings.TrimSpace(id)
	var chrom, rest string
	if i := strings.LastIndexByte(s, ':'); i > 0 {
		chrom, rest = s[:i], s[i+1:]
	} else {
		sep := byte('-')
		if strings.Count(s, "-") < 2 {
			sep = '_'
		}
		j := strings.LastIndexByte(s, sep)
		if j <= 0 {
			return models.Region{}, fmt.Errorf("genome: region %q: %w", id, apperr.ErrInvalidInput)
		}
		k := strings.LastIndexByte(s[:j], sep)
		if k <= 0 {
			return models.Region{}, fmt.Errorf("genome: region %q: %w", id, apperr.ErrInvalidInput)
		}
		chrom, rest = s[:k], s[k+1:j]+"-"+s[j+1:]
	}
	parts := strings.SplitN(rest, "-", 2)
	if len(parts) != 2 {
		return models.Region{}, fmt.Errorf("genome: region %q: %w", id, apperr.ErrInvalidInput)
	}
	start, err := strconv.Atoi(strings.ReplaceAll(parts[0], ",", ""))
	if err != nil {
		return models.Region{}, fmt.Errorf("genome: region %q start: %w", id, apperr.ErrInvalidInput)
	}
	end, err := strconv.Atoi(strings.ReplaceAll(parts[1], ",", ""))
	if err != nil {
		return models.Region{}, fmt.Errorf("genome: region %q end: %w", id, apperr.ErrInvalidInput)
	}
	if start < 0 || end <= start {
		return models.Region{}, fmt.Errorf("genome: region %q has empty range: %w", id, apperr.ErrInvalidInput)
	}
	return models.Region{ID: s, Chrom: chrom, Start: start, End: end}, nil
}
