package duckdb

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// String formats the fingerprint as "<size>@<mtime>".
func (f FileFingerprint) String() string {
	return strconv.FormatInt(f.Size, 10) + "@" + f.ModTime.UTC().Format(time.RFC3339Nano)
}

// Metadata returns the key/value pairs describing the data the cached
// results were computed from.
func (s *Store) Metadata() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM cache_metadata`)
	if err != nil {
		return nil, fmt.Errorf("query cache metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan cache metadata: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache metadata: %w", err)
	}
	return meta, nil
}

// SyncMetadata compares meta with the stored metadata. On any difference the
// cached results are cleared and meta is stored in place of the old values;
// stale reports whether results computed from other data were dropped.
func (s *Store) SyncMetadata(meta map[string]string) (stale bool, err error) {
	stored, err := s.Metadata()
	if err != nil {
		return false, err
	}
	if maps.Equal(stored, meta) {
		return false, nil
	}

	queries, _, err := s.Stats()
	if err != nil {
		return false, err
	}
	if err := s.ClearResults(); err != nil {
		return false, err
	}

	// Statements run in autocommit mode: DuckDB rejects re-inserting a
	// deleted primary key within one transaction.
	if _, err := s.db.Exec(`DELETE FROM cache_metadata`); err != nil {
		return false, fmt.Errorf("clear cache metadata: %w", err)
	}
	for k, v := range meta {
		if _, err := s.db.Exec(`INSERT INTO cache_metadata VALUES (?, ?)`, k, v); err != nil {
			return false, fmt.Errorf("write cache metadata: %w", err)
		}
	}
	return queries > 0, nil
}
