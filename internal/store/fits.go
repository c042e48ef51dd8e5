package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/motif"
)

// Models returns every fitted model of a run keyed by gene.
func (db *DB) Models(runID int64) (map[string]*models.GeneModel, error) {
	if _, err := db.GetRun(runID); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`
		SELECT gene, intercept, r_squared, adj_r_squared, n_cells FROM models WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: models: %w", err)
	}
	out := map[string]*models.GeneModel{}
	for rows.Next() {
		m := &models.GeneModel{}
		if err := rows.Scan(&m.Gene, &m.Intercept, &m.RSquared, &m.AdjRSquared, &m.NCells); err != nil {
			rows.Close()
			return nil, err
		}
		out[m.Gene] = m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	trows, err := db.conn.Query(`
		SELECT gene, regulator, region, estimate, std_err, statistic, p_value, p_adj
		FROM terms WHERE run_id = ? ORDER BY gene, pos`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: terms: %w", err)
	}
	defer trows.Close()
	for trows.Next() {
		var (
			gene string
			t    models.Term
		)
		if err := trows.Scan(&gene, &t.Regulator, &t.Region, &t.Estimate, &t.StdErr, &t.Statistic, &t.PValue, &t.PAdj); err != nil {
			return nil, err
		}
		if m, ok := out[gene]; ok {
			m.Terms = append(m.Terms, t)
		}
	}
	return out, trows.Err()
}

// GetModel returns the model of one gene.
func (db *DB) GetModel(runID int64, gene string) (*models.GeneModel, error) {
	m := &models.GeneModel{Gene: gene}
	err := db.conn.QueryRow(`
		SELECT intercept, r_squared, adj_r_squared, n_cells FROM models WHERE run_id = ? AND gene = ?`,
		runID, gene).Scan(&m.Intercept, &m.RSquared, &m.AdjRSquared, &m.NCells)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: model %s in run %d: %w", gene, runID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get model: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT regulator, region, estimate, std_err, statistic, p_value, p_adj
		FROM terms WHERE run_id = ? AND gene = ? ORDER BY pos`, runID, gene)
	if err != nil {
		return nil, fmt.Errorf("store: get terms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t models.Term
		if err := rows.Scan(&t.Regulator, &t.Region, &t.Estimate, &t.StdErr, &t.Statistic, &t.PValue, &t.PAdj); err != nil {
			return nil, err
		}
		m.Terms = append(m.Terms, t)
	}
	return m, rows.Err()
}

// Skips returns the genes skipped during fitting, sorted by gene.
func (db *DB) Skips(runID int64) ([]models.Skip, error) {
	rows, err := db.conn.Query(`SELECT gene, reason FROM skips WHERE run_id = ? ORDER BY gene`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: skips: %w", err)
	}
	defer rows.Close()
	var out []models.Skip
	for rows.Next() {
		var s models.Skip
		if err := rows.Scan(&s.Gene, &s.Reason); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Enrichment rebuilds the motif enrichment context of a run from its stored
// regions, region-gene links and region-regulator hits. Hits are restored as
// one pseudo-motif per regulator.
func (db *DB) Enrichment(runID int64) (*modules.Enrichment, error) {
	rows, err := db.conn.Query(`
		SELECT id, chrom, start_pos, end_pos, source FROM regions WHERE run_id = ? ORDER BY pos`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: regions: %w", err)
	}
	var regions []models.Region
	for rows.Next() {
		var r models.Region
		if err := rows.Scan(&r.ID, &r.Chrom, &r.Start, &r.End, &r.Source); err != nil {
			rows.Close()
			return nil, err
		}
		regions = append(regions, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links := assoc.Links{}
	lrows, err := db.conn.Query(`SELECT gene, pos FROM region_links WHERE run_id = ? ORDER BY gene, pos`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: links: %w", err)
	}
	for lrows.Next() {
		var (
			gene string
			pos  int
		)
		if err := lrows.Scan(&gene, &pos); err != nil {
			lrows.Close()
			return nil, err
		}
		links[gene] = append(links[gene], pos)
	}
	lrows.Close()
	if err := lrows.Err(); err != nil {
		return nil, err
	}

	mapping := motif.Mapping{}
	cols := map[string]int{}
	var motifs []string
	hits := make([][]motif.Hit, len(regions))
	hrows, err := db.conn.Query(`SELECT pos, regulator FROM region_hits WHERE run_id = ? ORDER BY regulator, pos`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: hits: %w", err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var (
			pos int
			reg string
		)
		if err := hrows.Scan(&pos, &reg); err != nil {
			return nil, err
		}
		if pos < 0 || pos >= len(regions) {
			continue
		}
		col, ok := cols[reg]
		if !ok {
			col = len(motifs)
			cols[reg] = col
			motifs = append(motifs, reg)
			mapping.Add(reg, reg)
		}
		hits[pos] = append(hits[pos], motif.Hit{Col: col, Score: 1})
	}
	if err := hrows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	matches, err := motif.NewMatches(ids, motifs, mapping, hits)
	if err != nil {
		return nil, err
	}
	return &modules.Enrichment{Regions: regions, Links: links, Matches: matches}, nil
}
