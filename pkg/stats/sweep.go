package stats

import (
	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
	"github.com/empiricalmet/fluxlag/pkg/feature"
)

// SweepPoint is one column's score in a lag sweep.
type SweepPoint struct {
	Label string
	Score float64
}

// SelfLagMatrix scores every pair of columns in a feature set, yielding the
// k x k dependence matrix of a lagged-variable sweep. Both metrics are
// symmetric on the shared finite subset, so each pair is computed once and
// mirrored. Degenerate pairs score NaN and never abort the sweep.
func SelfLagMatrix(m Metric, fs *feature.Set) (*mat.Dense, error) {
	k := fs.Width()
	if k == 0 {
		return nil, errs.Data("empty feature set in self-lag sweep")
	}
	out := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			score, err := Pairwise(m, fs.Col(i), fs.Col(j))
			if err != nil {
				return nil, err
			}
			out.Set(i, j, score)
			out.Set(j, i, score)
		}
	}
	return out, nil
}

// CrossLagSeries scores each column of a feature set against a target
// series, one point per column in set order.
func CrossLagSeries(m Metric, fs *feature.Set, target []float64) ([]SweepPoint, error) {
	if fs.Rows() != len(target) {
		return nil, errs.Data("feature set has %d rows, target has %d", fs.Rows(), len(target))
	}
	labels := fs.Labels()
	out := make([]SweepPoint, fs.Width())
	for i := range out {
		score, err := Pairwise(m, fs.Col(i), target)
		if err != nil {
			return nil, err
		}
		out[i] = SweepPoint{Label: labels[i].String(), Score: score}
	}
	return out, nil
}

// SelfLag scores a variable against its own trailing means, one point per
// window. A window that cannot be scored for the data (too sparse, zero
// variance) scores NaN; only malformed windows abort the sweep.
func SelfLag(b feature.Builder, m Metric, values []float64, windows []string) ([]SweepPoint, error) {
	return CrossLag(b, m, "self", values, values, windows)
}

// CrossLag scores the trailing means of a driver x against the instantaneous
// values of y, one point per window.
func CrossLag(b feature.Builder, m Metric, name string, x, y []float64, windows []string) ([]SweepPoint, error) {
	set, err := b.Lagged(name, x, windows)
	if err != nil {
		return nil, err
	}
	points, err := CrossLagSeries(m, set, y)
	if err != nil {
		return nil, err
	}
	// Report bare window labels for a single-variable sweep.
	for i := range points {
		points[i].Label = windows[i]
	}
	return points, nil
}
