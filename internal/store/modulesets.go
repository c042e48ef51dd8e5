package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/regnet/internal/apperr"
	"github.com/starford/regnet/internal/models"
	"github.com/starford/regnet/internal/modules"
)

// ModuleSet is one build of a run's modules. A rebuild with other
// thresholds adds a new set; sets are never updated in place.
type ModuleSet struct {
	ID         int64              `json:"id"`
	RunID      int64              `json:"run_id"`
	Thresholds modules.Thresholds `json:"thresholds"`
	CreatedAt  time.Time          `json:"created_at"`
	Modules    []models.Module    `json:"modules"`
}

// SaveModules stores a new module set for a run and returns its ID.
func (db *DB) SaveModules(runID int64, th modules.Thresholds, mods []models.Module) (int64, error) {
	if _, err := db.GetRun(runID); err != nil {
		return 0, err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := insertModuleSet(tx, runID, th, mods)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit modules: %w", err)
	}
	return id, nil
}

func insertModuleSet(tx *sql.Tx, runID int64, th modules.Thresholds, mods []models.Module) (int64, error) {
	thJSON, _ := json.Marshal(th)
	res, err := tx.Exec(`INSERT INTO module_sets (run_id, thresholds, created_at) VALUES (?, ?, ?)`,
		runID, string(thJSON), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("store: insert module set: %w", err)
	}
	setID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: module set id: %w", err)
	}

	estmt, err := tx.Prepare(`
		INSERT INTO edges (set_id, regulator, pos, target, region, estimate, p_value, p_adj, r_squared)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare edge insert: %w", err)
	}
	defer estmt.Close()
	for _, m := range mods {
		meta, _ := json.Marshal(m.Meta)
		if _, err := tx.Exec(`INSERT INTO modules (set_id, regulator, meta) VALUES (?, ?, ?)`, setID, m.Regulator, string(meta)); err != nil {
			return 0, fmt.Errorf("store: insert module %s: %w", m.Regulator, err)
		}
		for i, e := range m.Edges {
			if _, err := estmt.Exec(setID, m.Regulator, i, e.Target, e.Region, e.Estimate, e.PValue, e.PAdj, e.RSquared); err != nil {
				return 0, fmt.Errorf("store: insert edge: %w", err)
			}
		}
	}
	return setID, nil
}

// Modules returns the latest module set of a run.
func (db *DB) Modules(runID int64) (*ModuleSet, error) {
	set := &ModuleSet{RunID: runID}
	var thJSON string
	err := db.conn.QueryRow(`
		SELECT id, thresholds, created_at FROM module_sets WHERE run_id = ? ORDER BY id DESC LIMIT 1`,
		runID).Scan(&set.ID, &thJSON, &set.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: modules of run %d: %w", runID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: module set: %w", err)
	}
	_ = json.Unmarshal([]byte(thJSON), &set.Thresholds)

	rows, err := db.conn.Query(`SELECT regulator, meta FROM modules WHERE set_id = ? ORDER BY regulator`, set.ID)
	if err != nil {
		return nil, fmt.Errorf("store: modules: %w", err)
	}
	index := map[string]int{}
	for rows.Next() {
		var (
			m    models.Module
			meta string
		)
		if err := rows.Scan(&m.Regulator, &meta); err != nil {
			rows.Close()
			return nil, err
		}
		_ = json.Unmarshal([]byte(meta), &m.Meta)
		index[m.Regulator] = len(set.Modules)
		set.Modules = append(set.Modules, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	erows, err := db.conn.Query(`
		SELECT regulator, target, region, estimate, p_value, p_adj, r_squared
		FROM edges WHERE set_id = ? ORDER BY regulator, pos`, set.ID)
	if err != nil {
		return nil, fmt.Errorf("store: edges: %w", err)
	}
	defer erows.Close()
	for erows.Next() {
		var e models.Edge
		if err := erows.Scan(&e.Regulator, &e.Target, &e.Region, &e.Estimate, &e.PValue, &e.PAdj, &e.RSquared); err != nil {
			return nil, err
		}
		if i, ok := index[e.Regulator]; ok {
			set.Modules[i].Edges = append(set.Modules[i].Edges, e)
			set.Modules[i].Targets = append(set.Modules[i].Targets, e.Target)
		}
	}
	return set, erows.Err()
}
