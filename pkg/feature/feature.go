// Package feature assembles lagged forcing variables into labeled, row-aligned
// feature sets ready for regression.
//
// Each feature column is a trailing rolling mean of one driver variable over
// one window, computed on the shared sampling grid, so row i of every column
// describes the same instant. The pseudo-window "cur" passes the instantaneous
// value through unchanged.
package feature

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
	"github.com/empiricalmet/fluxlag/pkg/window"
)

// Current is the pseudo-window selecting the instantaneous value of a
// variable instead of a rolling mean.
const Current = "cur"

// Label identifies one feature column by driver variable and window.
type Label struct {
	Variable string
	Window   string
}

// String renders the column name: "SWdown_2h", or just the variable name for
// the instantaneous column.
func (l Label) String() string {
	if l.Window == Current || l.Window == "" {
		return l.Variable
	}
	return l.Variable + "_" + l.Window
}

// Set is an ordered collection of equally long feature columns.
type Set struct {
	labels []Label
	cols   [][]float64
	rows   int
}

// NewSet creates an empty feature set whose columns must all have rows rows.
func NewSet(rows int) *Set {
	return &Set{rows: rows}
}

// Add appends a column. The column length must match the set.
func (s *Set) Add(l Label, col []float64) error {
	if len(col) != s.rows {
		return errs.Data("feature column %s has %d rows, set has %d", l, len(col), s.rows)
	}
	s.labels = append(s.labels, l)
	s.cols = append(s.cols, col)
	return nil
}

// Rows returns the shared column length.
func (s *Set) Rows() int { return s.rows }

// Width returns the number of columns.
func (s *Set) Width() int { return len(s.cols) }

// Labels returns the column labels in order.
func (s *Set) Labels() []Label {
	out := make([]Label, len(s.labels))
	copy(out, s.labels)
	return out
}

// Names returns the rendered column names in order.
func (s *Set) Names() []string {
	out := make([]string, len(s.labels))
	for i, l := range s.labels {
		out[i] = l.String()
	}
	return out
}

// Col returns the i'th column. The slice is not copied.
func (s *Set) Col(i int) []float64 { return s.cols[i] }

// Matrix packs the set into a dense rows x width design matrix.
func (s *Set) Matrix() *mat.Dense {
	if s.rows == 0 || len(s.cols) == 0 {
		return mat.NewDense(max(s.rows, 1), max(len(s.cols), 1), nil)
	}
	m := mat.NewDense(s.rows, len(s.cols), nil)
	for j, col := range s.cols {
		for i, v := range col {
			m.Set(i, j, v)
		}
	}
	return m
}

// Builder derives lagged feature sets on a fixed sampling grid.
type Builder struct {
	// Step is the spacing of the sampling grid, e.g. 30*time.Minute for
	// half-hourly flux tower records.
	Step time.Duration
}

// Lagged builds one column per window label for a single driver variable.
// Window labels are resolved against the builder's sampling step; "cur"
// selects the raw value.
func (b Builder) Lagged(name string, values []float64, windows []string) (*Set, error) {
	return b.LaggedMulti([]string{name}, [][]float64{values}, windows)
}

// LaggedMulti builds the full cross of variables and windows, variable-major:
// all windows of the first variable, then all windows of the second, and so
// on. Every variable column must have the same length.
func (b Builder) LaggedMulti(names []string, cols [][]float64, windows []string) (*Set, error) {
	if len(names) != len(cols) {
		return nil, errs.Data("got %d variable names for %d columns", len(names), len(cols))
	}
	if len(cols) == 0 {
		return nil, errs.Data("no driver variables supplied")
	}
	rows := len(cols[0])
	set := NewSet(rows)
	for vi, name := range names {
		if len(cols[vi]) != rows {
			return nil, errs.Data("driver %s has %d rows, expected %d", name, len(cols[vi]), rows)
		}
		for _, wl := range windows {
			col, err := b.Column(cols[vi], wl)
			if err != nil {
				return nil, err
			}
			if err := set.Add(Label{Variable: name, Window: wl}, col); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

// LaggedTable builds features when each variable carries its own window
// list. Variables without an entry in perVar are rejected rather than
// silently passed through.
func (b Builder) LaggedTable(names []string, cols [][]float64, perVar map[string][]string) (*Set, error) {
	if len(names) != len(cols) {
		return nil, errs.Data("got %d variable names for %d columns", len(names), len(cols))
	}
	if len(cols) == 0 {
		return nil, errs.Data("no driver variables supplied")
	}
	rows := len(cols[0])
	set := NewSet(rows)
	for vi, name := range names {
		windows, ok := perVar[name]
		if !ok {
			return nil, errs.Config("no windows configured for variable", name)
		}
		if len(cols[vi]) != rows {
			return nil, errs.Data("driver %s has %d rows, expected %d", name, len(cols[vi]), rows)
		}
		for _, wl := range windows {
			col, err := b.Column(cols[vi], wl)
			if err != nil {
				return nil, err
			}
			if err := set.Add(Label{Variable: name, Window: wl}, col); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

// Column derives a single feature column for one window label: a copy of the
// raw values for "cur", the trailing rolling mean otherwise.
func (b Builder) Column(values []float64, label string) ([]float64, error) {
	if label == Current {
		out := make([]float64, len(values))
		copy(out, values)
		return out, nil
	}
	spec, err := window.Parse(label)
	if err != nil {
		return nil, err
	}
	w, err := spec.Rows(b.Step)
	if err != nil {
		return nil, err
	}
	return window.RollingMean(values, w), nil
}

// CompleteRows reports which rows of the set are fully finite across all
// columns.
func (s *Set) CompleteRows() []bool {
	ok := make([]bool, s.rows)
	for i := range ok {
		ok[i] = true
	}
	for _, col := range s.cols {
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ok[i] = false
			}
		}
	}
	return ok
}
