// Package regress provides the regression estimators and feature transforms
// that empirical flux models are assembled from.
//
// Estimators fit a numeric target against a dense design matrix and predict
// one value per row. Transformers reshape the design matrix ahead of the
// estimator: scaling, projection, polynomial expansion. A Chain composes
// transformers and a final estimator into a single Estimator, so wrappers
// higher up the stack never care how many stages sit inside.
//
// All inputs are expected to be complete (no NaN); filtering incomplete rows
// is the job of the missing-data guard wrapping the chain.
package regress

import (
	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// Estimator is a supervised regression model.
type Estimator interface {
	// Fit trains the model on an n x d design matrix and n targets.
	Fit(X mat.Matrix, y []float64) error
	// Predict returns one prediction per row of X.
	Predict(X mat.Matrix) ([]float64, error)
}

// Transformer reshapes a design matrix. Fit learns any data-dependent state
// (column means, projection axes); Transform applies it.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
}

// Chain runs a design matrix through an ordered list of transformers and a
// final estimator. It satisfies Estimator.
type Chain struct {
	Steps []Transformer
	Model Estimator
}

// Fit fits each transformer on the output of the previous one, then fits the
// final estimator on the fully transformed matrix.
func (c *Chain) Fit(X mat.Matrix, y []float64) error {
	if c.Model == nil {
		return errs.Model("chain has no estimator")
	}
	cur := X
	for _, s := range c.Steps {
		if err := s.Fit(cur); err != nil {
			return err
		}
		next, err := s.Transform(cur)
		if err != nil {
			return err
		}
		cur = next
	}
	return c.Model.Fit(cur, y)
}

// Predict applies the fitted transformers in order and predicts with the
// final estimator.
func (c *Chain) Predict(X mat.Matrix) ([]float64, error) {
	if c.Model == nil {
		return nil, errs.Model("chain has no estimator")
	}
	cur := X
	for _, s := range c.Steps {
		next, err := s.Transform(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return c.Model.Predict(cur)
}

// checkXY validates design matrix and target dimensions ahead of a fit.
func checkXY(X mat.Matrix, y []float64) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errs.Data("empty design matrix (%dx%d)", rows, cols)
	}
	if len(y) != rows {
		return 0, 0, errs.Data("design matrix has %d rows, target has %d", rows, len(y))
	}
	return rows, cols, nil
}
