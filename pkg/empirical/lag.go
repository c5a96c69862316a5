package empirical

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
	"github.com/empiricalmet/fluxlag/pkg/feature"
	"github.com/empiricalmet/fluxlag/pkg/regress"
	"github.com/empiricalmet/fluxlag/pkg/window"
)

// LagWrapper widens the raw design matrix with shifted copies of every
// column before delegating: [X, X shifted by s, X shifted by 2s, ...] for
// periods shifts of s rows each. The shifted-in leading rows are NaN and are
// handled by the missing-data wrapper expected inside.
type LagWrapper struct {
	inner   regress.Estimator
	periods int
	shift   int // rows per period
}

// NewLagWrapper wraps an estimator with periods lagged copies of the input,
// each offset by shift rows.
func NewLagWrapper(inner regress.Estimator, periods, shift int) (*LagWrapper, error) {
	if periods < 1 {
		return nil, errs.Config("lag periods must be positive", "periods")
	}
	if shift < 1 {
		return nil, errs.Config("lag shift must be positive", "freq")
	}
	return &LagWrapper{inner: inner, periods: periods, shift: shift}, nil
}

func (lw *LagWrapper) Fit(X mat.Matrix, y []float64) error {
	return lw.inner.Fit(lw.expand(X), y)
}

func (lw *LagWrapper) Predict(X mat.Matrix) ([]float64, error) {
	return lw.inner.Predict(lw.expand(X))
}

// expand builds the lag-augmented design matrix.
func (lw *LagWrapper) expand(X mat.Matrix) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols*(1+lw.periods), nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(i, j))
			for k := 1; k <= lw.periods; k++ {
				src := i - k*lw.shift
				v := math.NaN()
				if src >= 0 {
					v = X.At(src, j)
				}
				out.Set(i, cols*k+j, v)
			}
		}
	}
	return out
}

// MarkovWrapper is a lag expansion that also feeds the model its own recent
// output: at fit time the true lagged target is appended as a feature; at
// predict time rows are walked in order and each row's lagged-target slots
// are filled from the wrapper's earlier predictions. The walk is seeded with
// the tails of the training forcings and target, so Predict assumes the
// prediction window starts where the training window ended. A NaN
// prediction propagates forward through the state like any other gap until
// real values re-enter the history.
type MarkovWrapper struct {
	lag   LagWrapper
	tailY []float64  // last periods*shift training targets, oldest first
	tailX *mat.Dense // matching training forcing rows
}

// NewMarkovWrapper wraps an estimator with lagged inputs plus lagged-output
// state history.
func NewMarkovWrapper(inner regress.Estimator, periods, shift int) (*MarkovWrapper, error) {
	lw, err := NewLagWrapper(inner, periods, shift)
	if err != nil {
		return nil, err
	}
	return &MarkovWrapper{lag: *lw}, nil
}

func (mw *MarkovWrapper) Fit(X mat.Matrix, y []float64) error {
	rows, cols := X.Dims()
	if len(y) != rows {
		return errs.Data("design matrix has %d rows, target has %d", rows, len(y))
	}
	if err := mw.lag.inner.Fit(mw.withHistory(X, y), y); err != nil {
		return err
	}

	depth := mw.lag.periods * mw.lag.shift
	if depth > rows {
		depth = rows
	}
	mw.tailY = append(mw.tailY[:0], y[rows-depth:]...)
	mw.tailX = mat.NewDense(depth, cols, nil)
	for i := 0; i < depth; i++ {
		for j := 0; j < cols; j++ {
			mw.tailX.Set(i, j, X.At(rows-depth+i, j))
		}
	}
	return nil
}

// Predict walks rows oldest to newest so each row can see the predictions
// made for its lagged-target slots. Lag slots reaching back before the first
// prediction row are filled from the stored training tails.
func (mw *MarkovWrapper) Predict(X mat.Matrix) ([]float64, error) {
	rows, _ := X.Dims()
	base := mw.expandSeeded(X)
	_, baseCols := base.Dims()
	width := baseCols + mw.lag.periods

	out := make([]float64, rows)
	rowBuf := mat.NewDense(1, width, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < baseCols; j++ {
			rowBuf.Set(0, j, base.At(i, j))
		}
		for k := 1; k <= mw.lag.periods; k++ {
			rowBuf.Set(0, baseCols+k-1, mw.pastTarget(out, i-k*mw.lag.shift))
		}
		pred, err := mw.lag.inner.Predict(rowBuf)
		if err != nil {
			return nil, err
		}
		out[i] = pred[0]
	}
	return out, nil
}

// pastTarget resolves a lagged-target slot: earlier predictions first, then
// the training tail, then NaN when the history simply is not deep enough.
func (mw *MarkovWrapper) pastTarget(out []float64, idx int) float64 {
	if idx >= 0 {
		return out[idx]
	}
	if t := len(mw.tailY) + idx; t >= 0 {
		return mw.tailY[t]
	}
	return math.NaN()
}

// expandSeeded is the lag expansion with lagged-forcing slots before the
// window start resolved from the training tail instead of NaN.
func (mw *MarkovWrapper) expandSeeded(X mat.Matrix) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols*(1+mw.lag.periods), nil)
	tailRows := 0
	if mw.tailX != nil {
		tailRows, _ = mw.tailX.Dims()
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, X.At(i, j))
			for k := 1; k <= mw.lag.periods; k++ {
				src := i - k*mw.lag.shift
				v := math.NaN()
				switch {
				case src >= 0:
					v = X.At(src, j)
				case tailRows+src >= 0:
					v = mw.tailX.At(tailRows+src, j)
				}
				out.Set(i, cols*k+j, v)
			}
		}
	}
	return out
}

// withHistory appends the true lagged target to the lag-expanded design.
func (mw *MarkovWrapper) withHistory(X mat.Matrix, y []float64) *mat.Dense {
	base := mw.lag.expand(X)
	rows, baseCols := base.Dims()
	out := mat.NewDense(rows, baseCols+mw.lag.periods, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < baseCols; j++ {
			out.Set(i, j, base.At(i, j))
		}
	}
	for k := 1; k <= mw.lag.periods; k++ {
		shifted := window.Shift(y, k*mw.lag.shift)
		for i := 0; i < rows; i++ {
			out.Set(i, baseCols+k-1, shifted[i])
		}
	}
	return out
}

// LagAverageWrapper expands raw forcing columns into rolling-average
// features before delegating, so the inner model trains on each driver's
// recent history at several time scales rather than its instantaneous value.
type LagAverageWrapper struct {
	inner   regress.Estimator
	builder feature.Builder
	names   []string
	perVar  map[string][]string
}

// NewLagAverageWrapper wraps an estimator with a per-variable lag-average
// expansion. names fixes the column order of the raw input and perVar maps
// each name to its window labels ("cur" passes through).
func NewLagAverageWrapper(inner regress.Estimator, b feature.Builder, names []string, perVar map[string][]string) (*LagAverageWrapper, error) {
	if len(names) == 0 {
		return nil, errs.Config("lag-average expansion needs forcing variables", "forcing_vars")
	}
	for name := range perVar {
		found := false
		for _, n := range names {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			return nil, errs.Config("lag-average windows for a variable not in forcing_vars", name)
		}
	}
	for _, n := range names {
		windows, ok := perVar[n]
		if !ok {
			return nil, errs.Config("no windows configured for variable", n)
		}
		for _, wl := range windows {
			if wl == feature.Current {
				continue
			}
			spec, err := window.Parse(wl)
			if err != nil {
				return nil, err
			}
			if _, err := spec.Rows(b.Step); err != nil {
				return nil, err
			}
		}
	}
	return &LagAverageWrapper{inner: inner, builder: b, names: names, perVar: perVar}, nil
}

func (law *LagAverageWrapper) Fit(X mat.Matrix, y []float64) error {
	expanded, err := law.expand(X)
	if err != nil {
		return err
	}
	return law.inner.Fit(expanded, y)
}

func (law *LagAverageWrapper) Predict(X mat.Matrix) ([]float64, error) {
	expanded, err := law.expand(X)
	if err != nil {
		return nil, err
	}
	return law.inner.Predict(expanded)
}

func (law *LagAverageWrapper) expand(X mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != len(law.names) {
		return nil, errs.Data("input has %d columns, wrapper configured for %d forcing variables", cols, len(law.names))
	}
	raw := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		col := make([]float64, rows)
		for i := 0; i < rows; i++ {
			col[i] = X.At(i, j)
		}
		raw[j] = col
	}
	set, err := law.builder.LaggedTable(law.names, raw, law.perVar)
	if err != nil {
		return nil, err
	}
	return set.Matrix(), nil
}
