package regress

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

func TestKNeighborsSingleNeighbor(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 0,
		10, 10,
		20, 20,
	})
	y := []float64{1, 2, 3}

	kn := &KNeighborsRegressor{K: 1}
	if err := kn.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	q := mat.NewDense(3, 2, []float64{
		1, 1,
		11, 9,
		19, 21,
	})
	pred, err := kn.Predict(q)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	expected := []float64{1, 2, 3}
	for i := range expected {
		if pred[i] != expected[i] {
			t.Errorf("row %d: predicted %v, expected %v", i, pred[i], expected[i])
		}
	}
}

func TestKNeighborsAveragesNeighbors(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 10, 11})
	y := []float64{2, 4, 100, 200}

	kn := &KNeighborsRegressor{K: 2}
	if err := kn.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	pred, err := kn.Predict(mat.NewDense(1, 1, []float64{0.5}))
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if math.Abs(pred[0]-3) > 1e-9 {
		t.Errorf("predicted %v, expected mean of two nearest = 3", pred[0])
	}
}

func TestKNeighborsDefaultK(t *testing.T) {
	kn := NewKNeighborsRegressor()
	if kn.K != 5 {
		t.Errorf("default K = %d, expected 5", kn.K)
	}
}

func TestKNeighborsErrors(t *testing.T) {
	kn := NewKNeighborsRegressor()

	_, err := kn.Predict(mat.NewDense(1, 1, []float64{1}))
	var me *errs.ModelError
	if !errors.As(err, &me) {
		t.Errorf("predict before fit: error is %T, expected *errs.ModelError", err)
	}

	// Fewer training rows than neighbors.
	err = kn.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1, 2})
	var de *errs.DataError
	if !errors.As(err, &de) {
		t.Errorf("too few rows: error is %T, expected *errs.DataError", err)
	}

	kn.K = 2
	if err := kn.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1, 2}); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	_, err = kn.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	if !errors.As(err, &de) {
		t.Errorf("wrong predict width: error is %T, expected *errs.DataError", err)
	}
}
