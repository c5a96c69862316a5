// Package sitedata retrieves site forcing and flux time series from a
// CSV directory, a SQLite archive, or a TimescaleDB instance. Readers
// return the stored samples as-is: gaps stay NaN and nothing is
// resampled or quality-filtered here.
package sitedata

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// SiteMeta describes one site's archive.
type SiteMeta struct {
	Name string
	Step time.Duration // sampling interval between consecutive rows
}

// Table holds aligned columns for one site. Row i of every column
// shares the same timestamp; NaN marks a missing sample.
type Table struct {
	Site  string
	Step  time.Duration
	Times []time.Time // nil when the source carries no time column
	Names []string
	Cols  [][]float64
}

// Rows returns the number of samples per column.
func (t *Table) Rows() int {
	if len(t.Cols) == 0 {
		return 0
	}
	return len(t.Cols[0])
}

// Col returns the column with the given name, or nil.
func (t *Table) Col(name string) []float64 {
	for i, n := range t.Names {
		if n == name {
			return t.Cols[i]
		}
	}
	return nil
}

// Store is a read-only archive of per-site time series.
type Store interface {
	// Sites lists the site names available in the archive.
	Sites(ctx context.Context) ([]string, error)
	// Meta reports per-site metadata such as the sampling step.
	Meta(ctx context.Context, site string) (SiteMeta, error)
	// Vars lists the variables recorded for a site.
	Vars(ctx context.Context, site string) ([]string, error)
	// Fetch returns the requested variables for a site as aligned
	// columns, in the requested order.
	Fetch(ctx context.Context, site string, vars []string) (*Table, error)
	Close() error
}

// Writer is the optional write side of a Store, used when copying
// archives between backends.
type Writer interface {
	Put(ctx context.Context, tbl *Table) error
}

// Open selects a Store implementation from a location spec:
// "csv:<dir>", "sqlite:<file>", or a "postgres://" connection string.
// The step is the fallback sampling interval for sources that do not
// record one.
func Open(spec string, step time.Duration, logger *zap.SugaredLogger) (Store, error) {
	switch {
	case strings.HasPrefix(spec, "csv:"):
		return NewCSVStore(strings.TrimPrefix(spec, "csv:"), step, logger), nil
	case strings.HasPrefix(spec, "sqlite:"):
		return NewSQLiteStore(strings.TrimPrefix(spec, "sqlite:"), logger)
	case strings.HasPrefix(spec, "postgres:"):
		return NewTimescaleStore(spec, logger)
	}
	return nil, errs.Config("unknown site store scheme", spec)
}

// sample is one (time, variable, value) observation used by the SQL
// backends before pivoting into a Table.
type sample struct {
	t     time.Time
	name  string
	value float64
}

// pivot arranges long-format samples into aligned columns, one row per
// distinct timestamp in first-seen order. Samples are expected sorted
// by time; variables absent at a timestamp stay NaN.
func pivot(site string, vars []string, samples []sample) *Table {
	colIdx := make(map[string]int, len(vars))
	for i, v := range vars {
		colIdx[v] = i
	}

	rowIdx := make(map[time.Time]int)
	var times []time.Time
	for _, s := range samples {
		if _, ok := rowIdx[s.t]; !ok {
			rowIdx[s.t] = len(times)
			times = append(times, s.t)
		}
	}

	cols := make([][]float64, len(vars))
	for i := range cols {
		cols[i] = make([]float64, len(times))
		for j := range cols[i] {
			cols[i][j] = math.NaN()
		}
	}
	for _, s := range samples {
		ci, ok := colIdx[s.name]
		if !ok {
			continue
		}
		cols[ci][rowIdx[s.t]] = s.value
	}

	tbl := &Table{Site: site, Times: times, Names: append([]string(nil), vars...), Cols: cols}
	if len(times) >= 2 {
		tbl.Step = times[1].Sub(times[0])
	}
	return tbl
}
