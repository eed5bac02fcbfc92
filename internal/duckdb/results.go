package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sort"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/stekaz/VEP-plugins/internal/annotate"
)

var _ annotate.ResultCache = (*Store)(nil)

// Get returns the cached result for q. ok is false when q was never stored;
// a stored miss comes back as an empty, non-nil Result.
func (s *Store) Get(q annotate.Query) (annotate.Result, bool, error) {
	args := keyArgs(q)

	var n int
	if err := s.db.QueryRow(`SELECT count(*) FROM plugin_queries WHERE `+keyWhere, args...).Scan(&n); err != nil {
		return nil, false, fmt.Errorf("query cache: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	rows, err := s.db.Query(`SELECT field, value FROM plugin_results WHERE `+keyWhere, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query cached results: %w", err)
	}
	defer rows.Close()

	res := make(annotate.Result)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, false, fmt.Errorf("scan cached result: %w", err)
		}
		res[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate cached results: %w", err)
	}
	return res, true, nil
}

const keyWhere = `chrom=? AND pos=? AND end_pos=? AND ref=? AND allele=? AND strand=? AND transcript_hgvs=?`

func keyArgs(q annotate.Query) []any {
	return []any{q.Chrom, q.Start, q.End, q.Ref, q.Allele, q.Strand, q.TranscriptHGVS}
}

// Put batch-inserts results using the Appender API. Entries whose query is
// already cached are ignored.
func (s *Store) Put(entries []annotate.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	if err := appendStaging(conn, entries); err != nil {
		return err
	}

	// Merge staged rows, skipping queries cached by an earlier batch.
	for _, stmt := range []string{
		`INSERT OR IGNORE INTO plugin_queries SELECT DISTINCT * FROM plugin_queries_staging`,
		`INSERT OR IGNORE INTO plugin_results SELECT DISTINCT ON (` + queryKey + `, field) * FROM plugin_results_staging`,
		`DELETE FROM plugin_queries_staging`,
		`DELETE FROM plugin_results_staging`,
	} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("merge cached results: %w", err)
		}
	}
	return nil
}

// appendStaging writes entries into the staging tables.
func appendStaging(conn *sql.Conn, entries []annotate.CacheEntry) error {
	var queries, results *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		queries, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "plugin_queries_staging")
		if err != nil {
			return err
		}
		results, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "plugin_results_staging")
		if err != nil {
			queries.Close()
		}
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}

	for _, e := range entries {
		q := e.Query
		if err := queries.AppendRow(q.Chrom, q.Start, q.End, q.Ref, q.Allele, q.Strand, q.TranscriptHGVS); err != nil {
			queries.Close()
			results.Close()
			return fmt.Errorf("append query: %w", err)
		}

		fields := make([]string, 0, len(e.Result))
		for f := range e.Result {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			if err := results.AppendRow(q.Chrom, q.Start, q.End, q.Ref, q.Allele, q.Strand, q.TranscriptHGVS, f, e.Result[f]); err != nil {
				queries.Close()
				results.Close()
				return fmt.Errorf("append result: %w", err)
			}
		}
	}

	// Close flushes the appender.
	if err := queries.Close(); err != nil {
		results.Close()
		return fmt.Errorf("flush queries: %w", err)
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("flush results: %w", err)
	}
	return nil
}

// ClearResults removes every cached query and result.
func (s *Store) ClearResults() error {
	for _, table := range []string{"plugin_results", "plugin_queries"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Stats returns the number of cached queries and stored field values.
func (s *Store) Stats() (queries, results int64, err error) {
	if err := s.db.QueryRow(`SELECT count(*) FROM plugin_queries`).Scan(&queries); err != nil {
		return 0, 0, fmt.Errorf("count queries: %w", err)
	}
	if err := s.db.QueryRow(`SELECT count(*) FROM plugin_results`).Scan(&results); err != nil {
		return 0, 0, fmt.Errorf("count results: %w", err)
	}
	return queries, results, nil
}

// FieldValues returns how often each value of an output field occurs across
// cached results, most frequent first.
func (s *Store) FieldValues(field string) ([]ValueCount, error) {
	rows, err := s.db.Query(`SELECT value, count(*) AS n FROM plugin_results
		WHERE field=? GROUP BY value ORDER BY n DESC, value`, field)
	if err != nil {
		return nil, fmt.Errorf("query field values: %w", err)
	}
	defer rows.Close()

	var out []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, fmt.Errorf("scan field value: %w", err)
		}
		out = append(out, vc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field values: %w", err)
	}
	return out, nil
}

// ValueCount is one row of FieldValues.
type ValueCount struct {
	Value string
	Count int64
}
