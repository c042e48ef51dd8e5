package motif

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
)

// Genome provides region sequences.
type Genome interface {
	Sequence(chrom string, start, end int) ([]byte, error)
}

// ScanOptions configures Scan.
type ScanOptions struct {
	// Regulators restricts the mapping; empty keeps all regulators.
	Regulators []string
	// MinRelScore is the relative PWM score a hit must reach (0..1).
	MinRelScore float64
	Pseudocount float64
	Workers     int
}

// Hit is one non-zero cell of the match matrix.
type Hit struct {
	Col   int
	Score float64
}

// Matches is a sparse region x motif matrix of best relative scores. It is
// read-only after Scan returns.
type Matches struct {
	regions []string
	motifs  []string
	mapping Mapping
	rows    [][]Hit
	byID    map[string]int
}

// Regions returns the row IDs.
func (m *Matches) Regions() []string { return m.regions }

// Motifs returns the column IDs.
func (m *Matches) Motifs() []string { return m.motifs }

// Mapping returns the restricted motif -> regulator mapping used for the scan.
func (m *Matches) Mapping() Mapping { return m.mapping }

// Regulators returns the regulators of the region x regulator view.
func (m *Matches) Regulators() []string { return m.mapping.Regulators() }

// Dims returns (regions, motifs).
func (m *Matches) Dims() (int, int) { return len(m.regions), len(m.motifs) }

// NNZ returns the number of recorded hits.
func (m *Matches) NNZ() int {
	n := 0
	for _, r := range m.rows {
		n += len(r)
	}
	return n
}

// Row returns the hits of region row i, ordered by column.
func (m *Matches) Row(i int) []Hit { return m.rows[i] }

// RowOf returns the row index of a region ID.
func (m *Matches) RowOf(regionID string) (int, bool) {
	i, ok := m.byID[regionID]
	return i, ok
}

// Score returns the best relative score of motif col in region row.
func (m *Matches) Score(row, col int) (float64, bool) {
	hits := m.rows[row]
	k := sort.Search(len(hits), func(k int) bool { return hits[k].Col >= col })
	if k < len(hits) && hits[k].Col == col {
		return hits[k].Score, true
	}
	return 0, false
}

// RegulatorsAt returns the sorted regulators with at least one motif hit in
// region row.
func (m *Matches) RegulatorsAt(row int) []string {
	seen := map[string]struct{}{}
	for _, h := range m.rows[row] {
		for _, r := range m.mapping[m.motifs[h.Col]] {
			seen[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// NewMatches assembles a match matrix directly, e.g. from precomputed hits.
// rows must have one entry per region.
func NewMatches(regions, motifs []string, mapping Mapping, rows [][]Hit) (*Matches, error) {
	if len(rows) != len(regions) {
		return nil, fmt.Errorf("motif: %d rows for %d regions: %w", len(rows), len(regions), apperr.ErrInvalidInput)
	}
	byID := make(map[string]int, len(regions))
	for i, id := range regions {
		byID[id] = i
	}
	for _, r := range rows {
		sort.Slice(r, func(a, b int) bool { return r[a].Col < r[b].Col })
	}
	return &Matches{regions: regions, motifs: motifs, mapping: mapping, rows: rows, byID: byID}, nil
}

// Scan scores every region against every motif of the restricted mapping.
func Scan(ctx context.Context, regions []models.Region, genome Genome, catalog []PFM, mapping Mapping, opts ScanOptions) (*Matches, error) {
	inCatalog := make(map[string]PFM, len(catalog))
	for _, p := range catalog {
		inCatalog[p.ID] = p
	}
	used := mapping.Restrict(opts.Regulators, func(id string) bool {
		_, ok := inCatalog[id]
		return ok
	})
	if len(used) == 0 {
		return nil, fmt.Errorf("motif: %d motifs, %d requested regulators: %w", len(catalog), len(opts.Regulators), apperr.ErrNoMotifs)
	}

	motifs := used.Motifs()
	pwms := make([]PWM, len(motifs))
	pseudo := opts.Pseudocount
	if pseudo <= 0 {
		pseudo = 0.8
	}
	for j, id := range motifs {
		pwms[j] = inCatalog[id].PWM(pseudo, UniformBackground)
	}

	ids := make([]string, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	rows := make([][]Hit, len(regions))

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var mu sync.Mutex
	for i, reg := range regions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seq, err := genome.Sequence(reg.Chrom, reg.Start, reg.End)
			if err != nil {
				return fmt.Errorf("motif: sequence %s: %w", reg.ID, err)
			}
			var hits []Hit
			for j, w := range pwms {
				if s, ok := w.Best(seq); ok && s >= opts.MinRelScore {
					hits = append(hits, Hit{Col: j, Score: s})
				}
			}
			mu.Lock()
			rows[i] = hits
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewMatches(ids, motifs, used, rows)
}
