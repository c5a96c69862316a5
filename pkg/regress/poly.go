package regress

import (
	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// PolynomialFeatures expands columns into all monomials up to Degree,
// including cross terms: for two features and degree 2 the output columns
// are x1, x2, x1^2, x1*x2, x2^2. The constant term is omitted; the estimator
// downstream carries the intercept.
type PolynomialFeatures struct {
	Degree int

	nFeatures int
	combos    [][]int
}

// NewPolynomialFeatures returns a degree-2 expansion.
func NewPolynomialFeatures() *PolynomialFeatures {
	return &PolynomialFeatures{Degree: 2}
}

// Fit records the input width and enumerates the monomial terms.
func (pf *PolynomialFeatures) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errs.Data("empty design matrix (%dx%d)", rows, cols)
	}
	if pf.Degree < 1 {
		return errs.Config("polynomial degree must be positive", "degree")
	}
	pf.nFeatures = cols
	pf.combos = pf.combos[:0]
	for deg := 1; deg <= pf.Degree; deg++ {
		combo := make([]int, deg)
		var rec func(pos, start int)
		rec = func(pos, start int) {
			if pos == deg {
				pf.combos = append(pf.combos, append([]int(nil), combo...))
				return
			}
			for j := start; j < cols; j++ {
				combo[pos] = j
				rec(pos+1, j)
			}
		}
		rec(0, 0)
	}
	return nil
}

// Transform evaluates every monomial for every row.
func (pf *PolynomialFeatures) Transform(X mat.Matrix) (*mat.Dense, error) {
	if pf.combos == nil {
		return nil, errs.Model("polynomial features transform before fit")
	}
	rows, cols := X.Dims()
	if cols != pf.nFeatures {
		return nil, errs.Data("transform with %d columns, expansion fitted with %d", cols, pf.nFeatures)
	}
	out := mat.NewDense(rows, len(pf.combos), nil)
	for i := 0; i < rows; i++ {
		for c, combo := range pf.combos {
			v := 1.0
			for _, j := range combo {
				v *= X.At(i, j)
			}
			out.Set(i, c, v)
		}
	}
	return out, nil
}
