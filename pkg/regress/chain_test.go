package regress

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

func TestChainScalerThenLinear(t *testing.T) {
	// Scaling is affine, so a scaled linear fit still reproduces a linear
	// target exactly.
	n := 20
	data := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) * 10
		data[i] = x
		y[i] = 2*x + 1
	}
	X := mat.NewDense(n, 1, data)

	c := &Chain{
		Steps: []Transformer{&StandardScaler{}},
		Model: NewLinearRegression(),
	}
	if err := c.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	pred, err := c.Predict(X)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	for i := range y {
		if math.Abs(pred[i]-y[i]) > 1e-6 {
			t.Errorf("row %d: predicted %v, expected %v", i, pred[i], y[i])
		}
	}
}

func TestChainPolynomialThenLinear(t *testing.T) {
	// y = x^2 is exactly representable after a degree-2 expansion.
	n := 10
	data := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i) - 5
		data[i] = x
		y[i] = x * x
	}
	X := mat.NewDense(n, 1, data)

	c := &Chain{
		Steps: []Transformer{NewPolynomialFeatures()},
		Model: NewLinearRegression(),
	}
	if err := c.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	pred, err := c.Predict(X)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	for i := range y {
		if math.Abs(pred[i]-y[i]) > 1e-6 {
			t.Errorf("row %d: predicted %v, expected %v", i, pred[i], y[i])
		}
	}
}

func TestChainWithoutModel(t *testing.T) {
	c := &Chain{}
	X := mat.NewDense(1, 1, []float64{1})
	err := c.Fit(X, []float64{1})
	var me *errs.ModelError
	if !errors.As(err, &me) {
		t.Errorf("Fit error is %T, expected *errs.ModelError", err)
	}
	_, err = c.Predict(X)
	if !errors.As(err, &me) {
		t.Errorf("Predict error is %T, expected *errs.ModelError", err)
	}
}
