package sitedata

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// SQLiteStore reads a local archive in long format: one row per
// (site, time, variable) observation in the samples table. Times are
// stored as RFC3339 text so lexical order matches chronological order.
type SQLiteStore struct {
	DB     *sql.DB // exported so callers can manage archives directly
	path   string
	logger *zap.SugaredLogger
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS samples (
		site  TEXT NOT NULL,
		time  TEXT NOT NULL,
		name  TEXT NOT NULL,
		value REAL,
		PRIMARY KEY (site, time, name)
	)
`

// NewSQLiteStore opens (and if necessary initializes) an archive file.
func NewSQLiteStore(path string, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite archive: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite archive: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure samples table: %w", err)
	}

	return &SQLiteStore{DB: db, path: path, logger: logger}, nil
}

func (s *SQLiteStore) Sites(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT site FROM samples ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan site name: %w", err)
		}
		sites = append(sites, name)
	}
	return sites, rows.Err()
}

func (s *SQLiteStore) Meta(ctx context.Context, site string) (SiteMeta, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT DISTINCT time FROM samples WHERE site = ? ORDER BY time LIMIT 2`, site)
	if err != nil {
		return SiteMeta{}, fmt.Errorf("failed to query site times: %w", err)
	}
	defer rows.Close()

	var stamps []time.Time
	for rows.Next() {
		var tstr string
		if err := rows.Scan(&tstr); err != nil {
			return SiteMeta{}, fmt.Errorf("failed to scan sample time: %w", err)
		}
		ts, ok := parseTime(tstr)
		if !ok {
			return SiteMeta{}, errs.Data("site %s has an unparseable timestamp %q", site, tstr)
		}
		stamps = append(stamps, ts)
	}
	if err := rows.Err(); err != nil {
		return SiteMeta{}, err
	}
	if len(stamps) == 0 {
		return SiteMeta{}, errs.Data("site %s has no samples", site)
	}

	meta := SiteMeta{Name: site}
	if len(stamps) == 2 {
		meta.Step = stamps[1].Sub(stamps[0])
	}
	return meta, nil
}

func (s *SQLiteStore) Vars(ctx context.Context, site string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT DISTINCT name FROM samples WHERE site = ? ORDER BY name`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to query variables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan variable name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errs.Data("site %s has no samples", site)
	}
	return names, nil
}

func (s *SQLiteStore) Fetch(ctx context.Context, site string, vars []string) (*Table, error) {
	if len(vars) == 0 {
		return nil, errs.Data("no variables requested for site %s", site)
	}

	ph := strings.TrimSuffix(strings.Repeat("?,", len(vars)), ",")
	query := fmt.Sprintf(
		`SELECT time, name, value FROM samples WHERE site = ? AND name IN (%s) ORDER BY time, name`, ph)
	args := make([]any, 0, len(vars)+1)
	args = append(args, site)
	for _, v := range vars {
		args = append(args, v)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool, len(vars))
	var samples []sample
	for rows.Next() {
		var tstr, name string
		var value sql.NullFloat64
		if err := rows.Scan(&tstr, &name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		ts, ok := parseTime(tstr)
		if !ok {
			return nil, errs.Data("site %s has an unparseable timestamp %q", site, tstr)
		}
		v := math.NaN()
		if value.Valid {
			v = value.Float64
		}
		seen[name] = true
		samples = append(samples, sample{t: ts, name: name, value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(samples) == 0 {
		return nil, errs.Data("site %s has no samples", site)
	}
	for _, v := range vars {
		if !seen[v] {
			return nil, errs.Data("site %s has no variable %q", site, v)
		}
	}

	tbl := pivot(site, vars, samples)
	if s.logger != nil {
		s.logger.Debugf("loaded %d rows x %d columns for site %s", tbl.Rows(), len(tbl.Names), site)
	}
	return tbl, nil
}

// Put upserts a table's samples into the archive. The table must carry
// timestamps, which key each row.
func (s *SQLiteStore) Put(ctx context.Context, tbl *Table) error {
	if tbl.Site == "" {
		return errs.Data("table has no site name to archive under")
	}
	if tbl.Times == nil {
		return errs.Data("table for site %s has no timestamps to archive", tbl.Site)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO samples (site, time, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for j, name := range tbl.Names {
		for i, v := range tbl.Cols[j] {
			var value any
			if !math.IsNaN(v) {
				value = v
			}
			stamp := tbl.Times[i].UTC().Format(time.RFC3339)
			if _, err := stmt.Exec(tbl.Site, stamp, name, value); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert sample %s %s: %w", stamp, name, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}
