package sitedata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// CSVStore reads one <site>.csv file per site from a directory. The
// header row names the variables; an optional leading time column is
// recognized by name. Missing samples may be written as an empty
// field, NA, NaN, null, or the -9999 flag.
type CSVStore struct {
	dir    string
	step   time.Duration // used when a file has no time column
	logger *zap.SugaredLogger
}

// NewCSVStore returns a store over dir. step is the sampling interval
// assumed for files without a time column.
func NewCSVStore(dir string, step time.Duration, logger *zap.SugaredLogger) *CSVStore {
	return &CSVStore{dir: dir, step: step, logger: logger}
}

func (c *CSVStore) Sites(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read site directory: %w", err)
	}
	var sites []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		sites = append(sites, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(sites)
	return sites, nil
}

func (c *CSVStore) Meta(ctx context.Context, site string) (SiteMeta, error) {
	tbl, err := c.load(site, nil)
	if err != nil {
		return SiteMeta{}, err
	}
	meta := SiteMeta{Name: site, Step: c.step}
	if len(tbl.Times) >= 2 {
		meta.Step = tbl.Times[1].Sub(tbl.Times[0])
	}
	return meta, nil
}

func (c *CSVStore) Vars(ctx context.Context, site string) ([]string, error) {
	tbl, err := c.load(site, nil)
	if err != nil {
		return nil, err
	}
	return tbl.Names, nil
}

func (c *CSVStore) Fetch(ctx context.Context, site string, vars []string) (*Table, error) {
	return c.load(site, vars)
}

// Put writes a table as the site's file, replacing any previous one.
func (c *CSVStore) Put(ctx context.Context, tbl *Table) error {
	if tbl.Site == "" {
		return errs.Data("table has no site name to archive under")
	}
	return WriteCSV(filepath.Join(c.dir, tbl.Site+".csv"), tbl)
}

func (c *CSVStore) Close() error { return nil }

// load reads a site file. With vars == nil every non-time column is
// returned in file order; otherwise columns come back in the requested
// order and a missing variable is an error.
func (c *CSVStore) load(site string, vars []string) (*Table, error) {
	path := filepath.Join(c.dir, site+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open site file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}

	timeIdx := -1
	var names []string
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if timeIdx == -1 && isTimeColumn(h) {
			timeIdx = i
			continue
		}
		idx[h] = i
		names = append(names, h)
	}

	if vars != nil {
		for _, v := range vars {
			if _, ok := idx[v]; !ok {
				return nil, errs.Data("site %s has no variable %q", site, v)
			}
		}
		names = append([]string(nil), vars...)
	}

	tbl := &Table{Site: site, Step: c.step, Names: names, Cols: make([][]float64, len(names))}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if timeIdx >= 0 {
			ts, ok := parseTime(strings.TrimSpace(record[timeIdx]))
			if !ok {
				return nil, errs.Data("site %s has an unparseable timestamp %q", site, record[timeIdx])
			}
			tbl.Times = append(tbl.Times, ts)
		}
		for i, n := range names {
			tbl.Cols[i] = append(tbl.Cols[i], parseValue(record[idx[n]]))
		}
	}

	if tbl.Rows() == 0 {
		return nil, errs.Data("site %s has no samples", site)
	}
	if len(tbl.Times) >= 2 {
		tbl.Step = tbl.Times[1].Sub(tbl.Times[0])
	}
	if c.logger != nil {
		c.logger.Debugf("loaded %d rows x %d columns for site %s", tbl.Rows(), len(tbl.Names), site)
	}
	return tbl, nil
}

// WriteCSV saves a table as one site file, with an RFC3339 time column
// when the table carries timestamps and a plain row index otherwise.
func WriteCSV(path string, tbl *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := make([]string, 0, len(tbl.Names)+1)
	if tbl.Times != nil {
		header = append(header, "time")
	} else {
		header = append(header, "index")
	}
	header = append(header, tbl.Names...)
	if err := w.Write(header); err != nil {
		return err
	}

	for i := 0; i < tbl.Rows(); i++ {
		record := make([]string, 0, len(header))
		if tbl.Times != nil {
			record = append(record, tbl.Times[i].Format(time.RFC3339))
		} else {
			record = append(record, strconv.Itoa(i))
		}
		for _, col := range tbl.Cols {
			record = append(record, formatValue(col[i]))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

var timeFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"200601021504", // FLUXNET TIMESTAMP_START
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeFormats {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func isTimeColumn(name string) bool {
	switch strings.ToLower(name) {
	case "time", "timestamp", "datetime", "date", "timestamp_start":
		return true
	}
	return false
}

// parseValue maps the usual missing-sample spellings to NaN so rows
// keep their place on the sampling grid.
func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NA", "NaN", "nan", "null", "-9999", "-9999.0":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
