package regress

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// StandardScaler centers each column to zero mean and unit variance. A
// constant column is centered but left unscaled.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// Fit learns per-column means and standard deviations.
func (ss *StandardScaler) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errs.Data("empty design matrix (%dx%d)", rows, cols)
	}
	ss.mean = make([]float64, cols)
	ss.scale = make([]float64, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += X.At(i, j)
		}
		m := sum / float64(rows)
		var ssq float64
		for i := 0; i < rows; i++ {
			d := X.At(i, j) - m
			ssq += d * d
		}
		sd := math.Sqrt(ssq / float64(rows))
		if sd == 0 {
			sd = 1
		}
		ss.mean[j] = m
		ss.scale[j] = sd
	}
	return nil
}

// Transform standardizes each column with the fitted parameters.
func (ss *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if ss.mean == nil {
		return nil, errs.Model("standard scaler transform before fit")
	}
	rows, cols := X.Dims()
	if cols != len(ss.mean) {
		return nil, errs.Data("transform with %d columns, scaler fitted with %d", cols, len(ss.mean))
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, (X.At(i, j)-ss.mean[j])/ss.scale[j])
		}
	}
	return out, nil
}

// MinMaxScaler rescales each column onto [0, 1]. A constant column maps
// to zero.
type MinMaxScaler struct {
	min   []float64
	scale []float64
}

// Fit learns per-column minimums and ranges.
func (ms *MinMaxScaler) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errs.Data("empty design matrix (%dx%d)", rows, cols)
	}
	ms.min = make([]float64, cols)
	ms.scale = make([]float64, cols)
	for j := 0; j < cols; j++ {
		lo := math.Inf(1)
		hi := math.Inf(-1)
		for i := 0; i < rows; i++ {
			v := X.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		ms.min[j] = lo
		if hi > lo {
			ms.scale[j] = 1 / (hi - lo)
		} else {
			ms.scale[j] = 1
		}
	}
	return nil
}

// Transform rescales each column with the fitted parameters.
func (ms *MinMaxScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if ms.min == nil {
		return nil, errs.Model("min-max scaler transform before fit")
	}
	rows, cols := X.Dims()
	if cols != len(ms.min) {
		return nil, errs.Data("transform with %d columns, scaler fitted with %d", cols, len(ms.min))
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, (X.At(i, j)-ms.min[j])*ms.scale[j])
		}
	}
	return out, nil
}
