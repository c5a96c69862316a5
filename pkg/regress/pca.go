package regress

import (
	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// PCA projects columns onto their leading principal components, computed by
// thin SVD of the centered design matrix.
type PCA struct {
	// Components is the number of axes to keep; zero keeps them all.
	Components int

	mean *mat.VecDense
	proj *mat.Dense // d x k projection matrix
}

// Fit learns the column means and principal axes.
func (p *PCA) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows < 2 || cols == 0 {
		return errs.Data("pca needs at least two rows, got %dx%d", rows, cols)
	}
	k := p.Components
	if limit := min(rows, cols); k <= 0 || k > limit {
		k = limit
	}

	centered := mat.NewDense(rows, cols, nil)
	mean := mat.NewVecDense(cols, nil)
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += X.At(i, j)
		}
		mean.SetVec(j, sum/float64(rows))
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			centered.Set(i, j, X.At(i, j)-mean.AtVec(j))
		}
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThinV) {
		return errs.Model("pca svd failed to converge")
	}
	var v mat.Dense
	svd.VTo(&v)

	proj := mat.NewDense(cols, k, nil)
	for j := 0; j < cols; j++ {
		for c := 0; c < k; c++ {
			proj.Set(j, c, v.At(j, c))
		}
	}
	p.mean = mean
	p.proj = proj
	return nil
}

// Transform centers the input with the fitted means and projects it onto the
// kept axes.
func (p *PCA) Transform(X mat.Matrix) (*mat.Dense, error) {
	if p.proj == nil {
		return nil, errs.Model("pca transform before fit")
	}
	rows, cols := X.Dims()
	d, k := p.proj.Dims()
	if cols != d {
		return nil, errs.Data("transform with %d columns, pca fitted with %d", cols, d)
	}
	centered := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			centered.Set(i, j, X.At(i, j)-p.mean.AtVec(j))
		}
	}
	out := mat.NewDense(rows, k, nil)
	out.Mul(centered, p.proj)
	return out, nil
}
