package genome

import (
	"fmt"
	"sort"

	"github.com/biogo/store/interval"

	"github.com/starford/regnet/internal/models"
)

// span is the interval stored in the per-chromosome trees. uid is the
// region's position in the index plus one; biogo rejects duplicate IDs.
type span struct {
	start, end int
	uid        uintptr
}

func (s span) Overlap(b interval.IntRange) bool { return s.end > b.Start && s.start < b.End }
func (s span) ID() uintptr                      { return s.uid }
func (s span) Range() interval.IntRange         { return interval.IntRange{Start: s.start, End: s.end} }

// query is a half-open probe interval.
type query struct{ start, end int }

func (q query) Overlap(b interval.IntRange) bool { return q.end > b.Start && q.start < b.End }

// Index answers overlap queries over an immutable region set.
type Index struct {
	regions []models.Region
	trees   map[string]*interval.IntTree
}

// NewIndex builds one interval tree per chromosome.
func NewIndex(regions []models.Region) (*Index, error) {
	idx := &Index{
		regions: regions,
		trees:   make(map[string]*interval.IntTree),
	}
	for i, r := range regions {
		t, ok := idx.trees[r.Chrom]
		if !ok {
			t = &interval.IntTree{}
			idx.trees[r.Chrom] = t
		}
		if err := t.Insert(span{start: r.Start, end: r.End, uid: uintptr(i + 1)}, true); err != nil {
			return nil, fmt.Errorf("genome: index region %s: %w", r.ID, err)
		}
	}
	for _, t := range idx.trees {
		t.AdjustRanges()
	}
	return idx, nil
}

// Regions returns the indexed regions in their original order.
func (idx *Index) Regions() []models.Region { return idx.regions }

// Len returns the number of indexed regions.
func (idx *Index) Len() int { return len(idx.regions) }

// Overlapping returns the positions of regions overlapping [start, end) on
// chrom, in ascending order.
func (idx *Index) Overlapping(chrom string, start, end int) []int {
	t, ok := idx.trees[chrom]
	if !ok || end <= start {
		return nil
	}
	hits := t.Get(query{start: start, end: end})
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, int(h.ID())-1)
	}
	sort.Ints(out)
	return out
}

// Any reports whether at least one indexed region overlaps [start, end) on chrom.
func (idx *Index) Any(chrom string, start, end int) bool {
	t, ok := idx.trees[chrom]
	if !ok || end <= start {
		return false
	}
	found := false
	t.DoMatching(func(interval.IntInterface) bool {
		found = true
		return true
	}, query{start: start, end: end})
	return found
}
