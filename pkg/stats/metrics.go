// Package stats scores the dependence between flux and driver series with
// missing-data-safe metrics.
//
// Every metric operates on the complete pairs of its two inputs: rows where
// either side is non-finite are dropped before scoring. An empty overlap
// yields NaN rather than an error, so a sparse site scores NaN for a window
// instead of aborting a whole sweep.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// Metric selects a dependence score.
type Metric int

const (
	// Corr is the Pearson correlation coefficient.
	Corr Metric = iota
	// MutualInfo is mutual information over a binned joint histogram,
	// in nats.
	MutualInfo
)

func (m Metric) String() string {
	switch m {
	case Corr:
		return "corr"
	case MutualInfo:
		return "mutual_info"
	}
	return "?"
}

// ParseMetric resolves a metric name from config. "mi" is accepted as a
// short form of "mutual_info".
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "corr":
		return Corr, nil
	case "mutual_info", "mi", "MI":
		return MutualInfo, nil
	}
	return 0, errs.Config("unknown metric", name)
}

// Pairwise scores the dependence between x and y. The slices must be the
// same length; rows where either value is non-finite are ignored.
func Pairwise(m Metric, x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return math.NaN(), errs.Data("metric inputs have %d and %d rows", len(x), len(y))
	}
	switch m {
	case Corr:
		return Correlation(x, y), nil
	case MutualInfo:
		return MutualInformation(x, y), nil
	}
	return math.NaN(), errs.Config("unknown metric", m.String())
}

// Correlation is the Pearson correlation of the complete pairs of x and y.
// Fewer than two complete pairs, or a constant input, scores NaN.
func Correlation(x, y []float64) float64 {
	xs, ys := completePairs(x, y)
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

// miBins is the number of equal-width bins per axis of the joint histogram.
const miBins = 64

// MutualInformation estimates the mutual information of x and y in nats,
// from a 64x64 equal-width joint histogram of their complete pairs. The
// estimate is clamped at zero; an empty overlap scores NaN.
func MutualInformation(x, y []float64) float64 {
	xs, ys := completePairs(x, y)
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	xi := binIndices(xs, miBins)
	yi := binIndices(ys, miBins)

	joint := make([]float64, miBins*miBins)
	px := make([]float64, miBins)
	py := make([]float64, miBins)
	for k := 0; k < n; k++ {
		joint[xi[k]*miBins+yi[k]]++
		px[xi[k]]++
		py[yi[k]]++
	}

	fn := float64(n)
	var mi float64
	for i := 0; i < miBins; i++ {
		if px[i] == 0 {
			continue
		}
		for j := 0; j < miBins; j++ {
			c := joint[i*miBins+j]
			if c == 0 {
				continue
			}
			mi += (c / fn) * math.Log((c*fn)/(px[i]*py[j]))
		}
	}
	if mi < 0 {
		mi = 0
	}
	return mi
}

// binIndices maps each value onto equal-width bins spanning [min, max]. A
// constant series lands entirely in bin zero.
func binIndices(v []float64, bins int) []int {
	out := make([]int, len(v))
	lo := floats.Min(v)
	hi := floats.Max(v)
	if hi == lo {
		return out
	}
	scale := float64(bins) / (hi - lo)
	for i, x := range v {
		k := int((x - lo) * scale)
		if k >= bins {
			k = bins - 1
		}
		out[i] = k
	}
	return out
}

// completePairs filters x and y down to rows where both are finite.
func completePairs(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if finite(x[i]) && finite(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	return xs, ys
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
