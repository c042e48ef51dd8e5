// Package store persists pipeline runs, fitted models and module sets in
// SQLite.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL DEFAULT '',
	association TEXT NOT NULL DEFAULT '',
	layout      TEXT NOT NULL DEFAULT '',
	n_regions   INTEGER NOT NULL DEFAULT 0,
	n_models    INTEGER NOT NULL DEFAULT 0,
	n_skipped   INTEGER NOT NULL DEFAULT 0,
	history     TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS models (
	run_id        INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	gene          TEXT NOT NULL,
	intercept     REAL NOT NULL,
	r_squared     REAL NOT NULL,
	adj_r_squared REAL NOT NULL,
	n_cells       INTEGER NOT NULL,
	PRIMARY KEY (run_id, gene)
);

CREATE TABLE IF NOT EXISTS terms (
	run_id    INTEGER NOT NULL,
	gene      TEXT NOT NULL,
	pos       INTEGER NOT NULL,
	regulator TEXT NOT NULL,
	region    TEXT NOT NULL,
	estimate  REAL NOT NULL,
	std_err   REAL NOT NULL,
	statistic REAL NOT NULL,
	p_value   REAL NOT NULL,
	p_adj     REAL NOT NULL,
	PRIMARY KEY (run_id, gene, pos),
	FOREIGN KEY (run_id, gene) REFERENCES models(run_id, gene) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS skips (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	gene   TEXT NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, gene)
);

CREATE TABLE IF NOT EXISTS regions (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	pos    INTEGER NOT NULL,
	id     TEXT NOT NULL,
	chrom  TEXT NOT NULL,
	start_pos INTEGER NOT NULL,
	end_pos   INTEGER NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, pos)
);

CREATE TABLE IF NOT EXISTS region_links (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	gene   TEXT NOT NULL,
	pos    INTEGER NOT NULL,
	UNIQUE(run_id, gene, pos)
);

CREATE TABLE IF NOT EXISTS region_hits (
	run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	pos       INTEGER NOT NULL,
	regulator TEXT NOT NULL,
	UNIQUE(run_id, pos, regulator)
);

CREATE TABLE IF NOT EXISTS module_sets (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	thresholds TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS modules (
	set_id    INTEGER NOT NULL REFERENCES module_sets(id) ON DELETE CASCADE,
	regulator TEXT NOT NULL,
	meta      TEXT NOT NULL,
	PRIMARY KEY (set_id, regulator)
);

CREATE TABLE IF NOT EXISTS edges (
	set_id    INTEGER NOT NULL REFERENCES module_sets(id) ON DELETE CASCADE,
	regulator TEXT NOT NULL,
	pos       INTEGER NOT NULL,
	target    TEXT NOT NULL,
	region    TEXT NOT NULL,
	estimate  REAL NOT NULL,
	p_value   REAL NOT NULL,
	p_adj     REAL NOT NULL,
	r_squared REAL NOT NULL,
	PRIMARY KEY (set_id, regulator, pos)
);

CREATE INDEX IF NOT EXISTS idx_terms_regulator ON terms(run_id, regulator);
CREATE INDEX IF NOT EXISTS idx_module_sets_run ON module_sets(run_id);
`

// DB wraps a sql.DB with run-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks the database connection.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
