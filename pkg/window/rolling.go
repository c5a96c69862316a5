package window

import "math"

// RollingMean computes the trailing mean of values over a window of w rows.
// The result has the same length as the input. Rows 0..w-2 have no complete
// trailing window and are NaN; row i >= w-1 is the mean of values[i-w+1..i].
// A window containing any non-finite value yields NaN.
//
// The mean is maintained incrementally with a running sum and a count of
// non-finite values inside the window, so the cost is O(n) regardless of w.
func RollingMean(values []float64, w int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if w < 1 {
		w = 1
	}
	var sum float64
	bad := 0
	for i := 0; i < n; i++ {
		if v := values[i]; isFinite(v) {
			sum += v
		} else {
			bad++
		}
		if i >= w {
			if v := values[i-w]; isFinite(v) {
				sum -= v
			} else {
				bad--
			}
		}
		if i < w-1 || bad > 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(w)
		}
	}
	return out
}

// RollingMeanCols applies RollingMean to each column independently.
func RollingMeanCols(cols [][]float64, w int) [][]float64 {
	out := make([][]float64, len(cols))
	for i, c := range cols {
		out[i] = RollingMean(c, w)
	}
	return out
}

// Shift delays a column by k rows: row i of the result is values[i-k], and
// the first k rows are NaN. Shift(values, 0) returns a copy.
func Shift(values []float64, k int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < k {
			out[i] = math.NaN()
		} else {
			out[i] = values[i-k]
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
