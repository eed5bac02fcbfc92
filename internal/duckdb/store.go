// Package duckdb caches merged plugin results in DuckDB so that repeated runs
// over the same variants skip the annotation sources.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for caching plugin results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// queryColumns is the cache key shared by every table.
const queryColumns = `
		chrom VARCHAR,
		pos BIGINT,
		end_pos BIGINT,
		ref VARCHAR,
		allele VARCHAR,
		strand TINYINT,
		transcript_hgvs VARCHAR`

const queryKey = `chrom, pos, end_pos, ref, allele, strand, transcript_hgvs`

// ensureSchema creates tables if they don't exist. plugin_queries records
// every cached query, including those with no result; plugin_results holds
// one row per non-empty output field. The staging tables receive appends
// before they are merged without duplicates. cache_metadata describes the
// source data the results were computed from.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_metadata (
		key VARCHAR PRIMARY KEY,
		value VARCHAR
	)`,
		`CREATE TABLE IF NOT EXISTS plugin_queries (` + queryColumns + `,
		PRIMARY KEY (` + queryKey + `)
	)`,
		`CREATE TABLE IF NOT EXISTS plugin_results (` + queryColumns + `,
		field VARCHAR,
		value VARCHAR,
		PRIMARY KEY (` + queryKey + `, field)
	)`,
		`CREATE TABLE IF NOT EXISTS plugin_queries_staging (` + queryColumns + `)`,
		`CREATE TABLE IF NOT EXISTS plugin_results_staging (` + queryColumns + `,
		field VARCHAR,
		value VARCHAR
	)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
