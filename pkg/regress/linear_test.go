package regress

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

func TestLinearRegressionExactFit(t *testing.T) {
	// y = 2*x1 - 3*x2 + 5, noiseless.
	X := mat.NewDense(5, 2, []float64{
		0, 1,
		1, 0,
		2, 2,
		3, 5,
		4, 1,
	})
	y := make([]float64, 5)
	for i := 0; i < 5; i++ {
		y[i] = 2*X.At(i, 0) - 3*X.At(i, 1) + 5
	}

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	coef, intercept := lr.Coefficients()
	if math.Abs(coef[0]-2) > 1e-9 || math.Abs(coef[1]+3) > 1e-9 || math.Abs(intercept-5) > 1e-9 {
		t.Errorf("coefficients = %v, intercept = %v; expected [2 -3], 5", coef, intercept)
	}

	pred, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	for i := range y {
		if math.Abs(pred[i]-y[i]) > 1e-9 {
			t.Errorf("row %d: predicted %v, expected %v", i, pred[i], y[i])
		}
	}
}

func TestLinearRegressionLeastSquares(t *testing.T) {
	// Overdetermined with a known closed-form solution: slope 0.5,
	// intercept 1/6.
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := []float64{0, 1, 1}

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	coef, intercept := lr.Coefficients()
	if math.Abs(coef[0]-0.5) > 1e-9 {
		t.Errorf("slope = %v, expected 0.5", coef[0])
	}
	if math.Abs(intercept-1.0/6.0) > 1e-9 {
		t.Errorf("intercept = %v, expected 1/6", intercept)
	}
}

func TestLinearRegressionNoIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := []float64{2, 4, 6}

	lr := &LinearRegression{FitIntercept: false}
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	coef, intercept := lr.Coefficients()
	if math.Abs(coef[0]-2) > 1e-9 || intercept != 0 {
		t.Errorf("coef = %v, intercept = %v; expected [2], 0", coef, intercept)
	}
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 1, []float64{1}))
	var me *errs.ModelError
	if !errors.As(err, &me) {
		t.Errorf("predict before fit: error is %T, expected *errs.ModelError", err)
	}

	err = lr.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1})
	var de *errs.DataError
	if !errors.As(err, &de) {
		t.Errorf("mismatched target: error is %T, expected *errs.DataError", err)
	}

	if err := lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), []float64{1, 2, 3}); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	_, err = lr.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	if !errors.As(err, &de) {
		t.Errorf("wrong predict width: error is %T, expected *errs.DataError", err)
	}
}

func TestSGDRegressorConverges(t *testing.T) {
	// y = 3x + 1 over a well-scaled input range.
	n := 200
	data := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := 2 * float64(i) / float64(n-1)
		data[i] = x
		y[i] = 3*x + 1
	}
	X := mat.NewDense(n, 1, data)

	sr := NewSGDRegressor()
	if err := sr.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	pred, err := sr.Predict(X)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	var mae float64
	for i := range y {
		mae += math.Abs(pred[i] - y[i])
	}
	mae /= float64(n)
	if mae > 0.15 {
		t.Errorf("mean absolute error after SGD = %v, expected < 0.15", mae)
	}
}

func TestSGDRegressorDeterministic(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := []float64{1, 3, 5, 7}

	fit := func() []float64 {
		sr := NewSGDRegressor()
		if err := sr.Fit(X, y); err != nil {
			t.Fatalf("Fit returned error: %v", err)
		}
		pred, err := sr.Predict(X)
		if err != nil {
			t.Fatalf("Predict returned error: %v", err)
		}
		return pred
	}
	a := fit()
	b := fit()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different predictions: %v vs %v", a, b)
		}
	}
}
