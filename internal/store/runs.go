package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/assoc"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/modules"
	"github.com/starford/regnet/internal/motif"
)

// Run is everything persisted for one pipeline execution.
type Run struct {
	Name        string
	Fingerprint string
	Association string
	Layout      string
	History     []models.Stage

	Regions []models.Region
	Links   assoc.Links
	Matches *motif.Matches

	Models  map[string]*models.GeneModel
	Skipped []models.Skip

	// Modules, when non-nil, are saved as the run's first module set.
	Thresholds modules.Thresholds
	Modules    []models.Module
}

// RunRow is a row of the runs table.
type RunRow struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Fingerprint string         `json:"fingerprint"`
	Association string         `json:"association"`
	Layout      string         `json:"layout"`
	NRegions    int            `json:"n_regions"`
	NModels     int            `json:"n_models"`
	NSkipped    int            `json:"n_skipped"`
	History     []models.Stage `json:"history"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SaveRun stores a run and its fitted models in one transaction and
// returns the new run ID.
func (db *DB) SaveRun(run *Run) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	history, _ := json.Marshal(run.History)
	res, err := tx.Exec(`
		INSERT INTO runs (name, fingerprint, association, layout, n_regions, n_models, n_skipped, history, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Name, run.Fingerprint, run.Association, run.Layout, len(run.Regions), len(run.Models), len(run.Skipped),
		string(history), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("store: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: run id: %w", err)
	}

	if err := insertModels(tx, id, run.Models); err != nil {
		return 0, err
	}
	if err := insertContext(tx, id, run); err != nil {
		return 0, err
	}
	if run.Modules != nil {
		if _, err := insertModuleSet(tx, id, run.Thresholds, run.Modules); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit run: %w", err)
	}
	return id, nil
}

func insertModels(tx *sql.Tx, runID int64, fitted map[string]*models.GeneModel) error {
	mstmt, err := tx.Prepare(`INSERT INTO models (run_id, gene, intercept, r_squared, adj_r_squared, n_cells) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare model insert: %w", err)
	}
	defer mstmt.Close()
	tstmt, err := tx.Prepare(`
		INSERT INTO terms (run_id, gene, pos, regulator, region, estimate, std_err, statistic, p_value, p_adj)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare term insert: %w", err)
	}
	defer tstmt.Close()

	genes := make([]string, 0, len(fitted))
	for g := range fitted {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	for _, g := range genes {
		m := fitted[g]
		if _, err := mstmt.Exec(runID, g, m.Intercept, m.RSquared, m.AdjRSquared, m.NCells); err != nil {
			return fmt.Errorf("store: insert model %s: %w", g, err)
		}
		for i, t := range m.Terms {
			if _, err := tstmt.Exec(runID, g, i, t.Regulator, t.Region, t.Estimate, t.StdErr, t.Statistic, t.PValue, t.PAdj); err != nil {
				return fmt.Errorf("store: insert term %s/%d: %w", g, i, err)
			}
		}
	}
	return nil
}

func insertContext(tx *sql.Tx, runID int64, run *Run) error {
	for _, s := range run.Skipped {
		if _, err := tx.Exec(`INSERT INTO skips (run_id, gene, reason) VALUES (?, ?, ?)`, runID, s.Gene, s.Reason); err != nil {
			return fmt.Errorf("store: insert skip: %w", err)
		}
	}

	rstmt, err := tx.Prepare(`INSERT INTO regions (run_id, pos, id, chrom, start_pos, end_pos, source) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare region insert: %w", err)
	}
	defer rstmt.Close()
	for i, r := range run.Regions {
		if _, err := rstmt.Exec(runID, i, r.ID, r.Chrom, r.Start, r.End, r.Source); err != nil {
			return fmt.Errorf("store: insert region: %w", err)
		}
	}

	lstmt, err := tx.Prepare(`INSERT OR IGNORE INTO region_links (run_id, gene, pos) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare link insert: %w", err)
	}
	defer lstmt.Close()
	for gene, idx := range run.Links {
		for _, pos := range idx {
			if _, err := lstmt.Exec(runID, gene, pos); err != nil {
				return fmt.Errorf("store: insert link: %w", err)
			}
		}
	}

	if run.Matches == nil {
		return nil
	}
	hstmt, err := tx.Prepare(`INSERT OR IGNORE INTO region_hits (run_id, pos, regulator) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare hit insert: %w", err)
	}
	defer hstmt.Close()
	for i, r := range run.Regions {
		row, ok := run.Matches.RowOf(r.ID)
		if !ok {
			continue
		}
		for _, reg := range run.Matches.RegulatorsAt(row) {
			if _, err := hstmt.Exec(runID, i, reg); err != nil {
				return fmt.Errorf("store: insert hit: %w", err)
			}
		}
	}
	return nil
}

const runColumns = `id, name, fingerprint, association, layout, n_regions, n_models, n_skipped, history, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunRow, error) {
	var (
		r       RunRow
		history string
	)
	if err := s.Scan(&r.ID, &r.Name, &r.Fingerprint, &r.Association, &r.Layout, &r.NRegions, &r.NModels, &r.NSkipped, &history, &r.CreatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(history), &r.History)
	return &r, nil
}

// ListRuns returns runs newest first and the total count.
func (db *DB) ListRuns(limit, offset int) ([]RunRow, int, error) {
	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count runs: %w", err)
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// GetRun returns one run.
func (db *DB) GetRun(id int64) (*RunRow, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: run %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return r, nil
}

// LatestRun returns the most recently saved run.
func (db *DB) LatestRun() (*RunRow, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: no runs: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest run: %w", err)
	}
	return r, nil
}
