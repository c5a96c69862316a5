// Package empirical assembles complete flux models from declarative specs.
//
// A model here is a composition: feature transforms feed a base estimator,
// the base estimator may be conditioned on a clustering of driver space, the
// whole stack is wrapped so missing data degrades to missing predictions
// instead of failures, and an optional outer stage expands raw drivers into
// lagged history before anything else runs. Build composes these stages in a
// fixed order from a ModelSpec; GetModel resolves well-known preset names.
//
// Whatever the internal depth, the assembled model exposes only the
// regress.Estimator contract. Callers fit, predict, and never look inside.
package empirical

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/cluster"
	"github.com/empiricalmet/fluxlag/pkg/errs"
	"github.com/empiricalmet/fluxlag/pkg/regress"
)

// ModelByCluster conditions a regression on a partition of driver space: one
// fresh sub-model per cluster, fitted only on that cluster's rows.
//
// Prediction routes each row to its assigned cluster's sub-model. A row whose
// cluster had no training data is a ModelError: there is deliberately no
// fallback model, so training data must cover every regime inference will
// encounter.
type ModelByCluster struct {
	clusterer cluster.Clusterer
	newModel  func() (regress.Estimator, error)
	models    map[int]regress.Estimator
}

// NewModelByCluster builds a cluster-conditioned model around a clusterer
// and a factory producing one fresh estimator per cluster.
func NewModelByCluster(c cluster.Clusterer, factory func() (regress.Estimator, error)) *ModelByCluster {
	return &ModelByCluster{clusterer: c, newModel: factory}
}

// Fit clusters the training rows and fits an independent sub-model on each
// cluster's subset. Refitting discards all previous cluster state.
func (mc *ModelByCluster) Fit(X mat.Matrix, y []float64) error {
	rows, _ := X.Dims()
	if len(y) != rows {
		return errs.Data("design matrix has %d rows, target has %d", rows, len(y))
	}
	if err := mc.clusterer.Fit(X); err != nil {
		return err
	}
	labels, err := mc.clusterer.Assign(X)
	if err != nil {
		return err
	}

	groups := map[int][]int{}
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	order := make([]int, 0, len(groups))
	for l := range groups {
		order = append(order, l)
	}
	sort.Ints(order)

	models := make(map[int]regress.Estimator, len(groups))
	for _, l := range order {
		sub, subY := takeRows(X, y, groups[l])
		m, err := mc.newModel()
		if err != nil {
			return err
		}
		if err := m.Fit(sub, subY); err != nil {
			return err
		}
		models[l] = m
	}
	mc.models = models
	return nil
}

// Predict assigns each row a cluster and delegates to that cluster's fitted
// sub-model. Routing is resolved for every row before any sub-model runs, so
// an unseen cluster fails the whole call up front.
func (mc *ModelByCluster) Predict(X mat.Matrix) ([]float64, error) {
	if mc.models == nil {
		return nil, errs.Model("cluster-conditioned predict before fit")
	}
	labels, err := mc.clusterer.Assign(X)
	if err != nil {
		return nil, err
	}
	groups := map[int][]int{}
	for i, l := range labels {
		if _, ok := mc.models[l]; !ok {
			return nil, errs.Model("row %d assigned to cluster %d, which had no training rows", i, l)
		}
		groups[l] = append(groups[l], i)
	}

	rows, _ := X.Dims()
	out := make([]float64, rows)
	for l, idx := range groups {
		sub, _ := takeRows(X, nil, idx)
		pred, err := mc.models[l].Predict(sub)
		if err != nil {
			return nil, err
		}
		for k, i := range idx {
			out[i] = pred[k]
		}
	}
	return out, nil
}

// MissingDataWrapper makes any estimator tolerate gappy inputs: incomplete
// rows are dropped at fit time and predicted as NaN, in place, at predict
// time. The wrapped estimator only ever sees complete rows.
type MissingDataWrapper struct {
	inner regress.Estimator
}

// NewMissingDataWrapper wraps an estimator with missing-row handling.
func NewMissingDataWrapper(inner regress.Estimator) *MissingDataWrapper {
	return &MissingDataWrapper{inner: inner}
}

// Fit trains the wrapped estimator on the rows where every feature and the
// target are finite. Zero usable rows is a DataError.
func (mw *MissingDataWrapper) Fit(X mat.Matrix, y []float64) error {
	rows, _ := X.Dims()
	if len(y) != rows {
		return errs.Data("design matrix has %d rows, target has %d", rows, len(y))
	}
	keep := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		if rowComplete(X, i) && finite(y[i]) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return errs.Data("no complete rows to fit on (%d rows, all with missing values)", rows)
	}
	sub, subY := takeRows(X, y, keep)
	return mw.inner.Fit(sub, subY)
}

// Predict returns one value per input row: the wrapped estimator's output
// for complete rows, NaN for rows with any missing feature. Row order is
// preserved exactly.
func (mw *MissingDataWrapper) Predict(X mat.Matrix) ([]float64, error) {
	rows, _ := X.Dims()
	keep := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		if rowComplete(X, i) {
			keep = append(keep, i)
		}
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = math.NaN()
	}
	if len(keep) == 0 {
		return out, nil
	}
	sub, _ := takeRows(X, nil, keep)
	pred, err := mw.inner.Predict(sub)
	if err != nil {
		return nil, err
	}
	for k, i := range keep {
		out[i] = pred[k]
	}
	return out, nil
}

// takeRows copies the selected rows of X (and y when non-nil) into fresh
// storage.
func takeRows(X mat.Matrix, y []float64, idx []int) (*mat.Dense, []float64) {
	_, cols := X.Dims()
	sub := mat.NewDense(len(idx), cols, nil)
	for k, i := range idx {
		for j := 0; j < cols; j++ {
			sub.Set(k, j, X.At(i, j))
		}
	}
	var subY []float64
	if y != nil {
		subY = make([]float64, len(idx))
		for k, i := range idx {
			subY[k] = y[i]
		}
	}
	return sub, subY
}

func rowComplete(X mat.Matrix, i int) bool {
	_, cols := X.Dims()
	for j := 0; j < cols; j++ {
		if !finite(X.At(i, j)) {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
