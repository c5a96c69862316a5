package empirical

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/cluster"
	"github.com/empiricalmet/fluxlag/pkg/errs"
	"github.com/empiricalmet/fluxlag/pkg/regress"
)

// sumModel predicts the row sum of its features and records what it was
// trained on.
type sumModel struct {
	fitRows      int
	fitY         []float64
	predictCalls int
}

func (s *sumModel) Fit(X mat.Matrix, y []float64) error {
	s.fitRows, _ = X.Dims()
	s.fitY = append([]float64(nil), y...)
	return nil
}

func (s *sumModel) Predict(X mat.Matrix) ([]float64, error) {
	s.predictCalls++
	rows, cols := X.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i] += X.At(i, j)
		}
	}
	return out, nil
}

// meanModel predicts the mean of its training targets.
type meanModel struct {
	mean         float64
	predictCalls int
}

func (m *meanModel) Fit(_ mat.Matrix, y []float64) error {
	var sum float64
	for _, v := range y {
		sum += v
	}
	m.mean = sum / float64(len(y))
	return nil
}

func (m *meanModel) Predict(X mat.Matrix) ([]float64, error) {
	m.predictCalls++
	rows, _ := X.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = m.mean
	}
	return out, nil
}

// floorClusterer labels each row with the floor of its first feature, so
// tests can steer rows into chosen clusters.
type floorClusterer struct{}

func (floorClusterer) Fit(mat.Matrix) error { return nil }

func (floorClusterer) Assign(X mat.Matrix) ([]int, error) {
	rows, _ := X.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		out[i] = int(math.Floor(X.At(i, 0)))
	}
	return out, nil
}

func TestMissingDataWrapperFit(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(3, 2, []float64{
		1, 2,
		nan, 2,
		3, 4,
	})
	y := []float64{3, 4, 7}

	inner := &sumModel{}
	mw := NewMissingDataWrapper(inner)
	if err := mw.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if inner.fitRows != 2 {
		t.Errorf("inner model trained on %d rows, expected 2", inner.fitRows)
	}
	if len(inner.fitY) != 2 || inner.fitY[0] != 3 || inner.fitY[1] != 7 {
		t.Errorf("inner model trained on targets %v, expected [3 7]", inner.fitY)
	}
}

func TestMissingDataWrapperPredict(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(3, 2, []float64{
		1, 2,
		nan, 2,
		3, 4,
	})

	mw := NewMissingDataWrapper(&sumModel{})
	if err := mw.Fit(X, []float64{3, 4, 7}); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	pred, err := mw.Predict(X)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if pred[0] != 3 || !math.IsNaN(pred[1]) || pred[2] != 7 {
		t.Errorf("predictions = %v, expected [3 NaN 7]", pred)
	}
}

func TestMissingDataWrapperNoCompleteRows(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(2, 1, []float64{nan, nan})

	mw := NewMissingDataWrapper(&sumModel{})
	err := mw.Fit(X, []float64{1, 2})
	if err == nil {
		t.Fatal("Fit succeeded with zero complete rows")
	}
	var de *errs.DataError
	if !errors.As(err, &de) {
		t.Errorf("error is %T, expected *errs.DataError", err)
	}
}

func TestMissingDataWrapperFiltersTargetGaps(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := []float64{1, math.NaN(), 3}

	inner := &sumModel{}
	mw := NewMissingDataWrapper(inner)
	if err := mw.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if inner.fitRows != 2 {
		t.Errorf("inner model trained on %d rows, expected 2", inner.fitRows)
	}
}

func TestMissingDataWrapperSkipsInnerWhenAllIncomplete(t *testing.T) {
	inner := &sumModel{}
	mw := NewMissingDataWrapper(inner)
	if err := mw.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1, 2}); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	nan := math.NaN()
	pred, err := mw.Predict(mat.NewDense(2, 1, []float64{nan, nan}))
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if !math.IsNaN(pred[0]) || !math.IsNaN(pred[1]) {
		t.Errorf("predictions = %v, expected all NaN", pred)
	}
	if inner.predictCalls != 0 {
		t.Errorf("inner model invoked %d times for all-incomplete input, expected 0", inner.predictCalls)
	}
}

func TestModelByClusterRoutesRows(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0.2, 0.4, 1.2, 1.4})
	y := []float64{1, 1, 5, 5}

	mc := NewModelByCluster(floorClusterer{}, func() (regress.Estimator, error) {
		return &meanModel{}, nil
	})
	if err := mc.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	pred, err := mc.Predict(mat.NewDense(3, 1, []float64{1.9, 0.9, 1.1}))
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	expected := []float64{5, 1, 5}
	for i := range expected {
		if pred[i] != expected[i] {
			t.Errorf("row %d: predicted %v, expected %v", i, pred[i], expected[i])
		}
	}
}

func TestModelByClusterUnseenLabel(t *testing.T) {
	var made []*meanModel
	mc := NewModelByCluster(floorClusterer{}, func() (regress.Estimator, error) {
		m := &meanModel{}
		made = append(made, m)
		return m, nil
	})
	X := mat.NewDense(2, 1, []float64{0.5, 1.5})
	if err := mc.Fit(X, []float64{1, 5}); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	// One routable row and one unseen cluster: the whole call fails before
	// any sub-model prediction runs.
	_, err := mc.Predict(mat.NewDense(2, 1, []float64{0.5, 7.5}))
	if err == nil {
		t.Fatal("Predict succeeded for an unseen cluster")
	}
	var me *errs.ModelError
	if !errors.As(err, &me) {
		t.Errorf("error is %T, expected *errs.ModelError", err)
	}
	for i, m := range made {
		if m.predictCalls != 0 {
			t.Errorf("sub-model %d invoked %d times despite routing failure", i, m.predictCalls)
		}
	}
}

func TestModelByClusterRefitDiscardsState(t *testing.T) {
	mc := NewModelByCluster(floorClusterer{}, func() (regress.Estimator, error) {
		return &meanModel{}, nil
	})
	if err := mc.Fit(mat.NewDense(2, 1, []float64{0.5, 1.5}), []float64{1, 5}); err != nil {
		t.Fatalf("first Fit returned error: %v", err)
	}
	if err := mc.Fit(mat.NewDense(2, 1, []float64{0.1, 0.9}), []float64{2, 2}); err != nil {
		t.Fatalf("refit returned error: %v", err)
	}

	// Cluster 1 existed before the refit only.
	_, err := mc.Predict(mat.NewDense(1, 1, []float64{1.5}))
	var me *errs.ModelError
	if !errors.As(err, &me) {
		t.Errorf("error is %T, expected *errs.ModelError after refit", err)
	}
}

func TestModelByClusterPredictBeforeFit(t *testing.T) {
	mc := NewModelByCluster(floorClusterer{}, func() (regress.Estimator, error) {
		return &meanModel{}, nil
	})
	_, err := mc.Predict(mat.NewDense(1, 1, []float64{0.5}))
	var me *errs.ModelError
	if !errors.As(err, &me) {
		t.Errorf("error is %T, expected *errs.ModelError", err)
	}
}

func TestModelByClusterWithKMeans(t *testing.T) {
	// Two separated regimes, each with its own linear law.
	n := 40
	data := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < 20; i++ {
		x := float64(i) * 0.05 // [0, 1)
		data[i] = x
		y[i] = 2 * x
	}
	for i := 20; i < 40; i++ {
		x := 50 + float64(i-20)*0.05 // [50, 51)
		data[i] = x
		y[i] = -x + 100
	}
	X := mat.NewDense(n, 1, data)

	mc := NewModelByCluster(cluster.NewKMeans(2), func() (regress.Estimator, error) {
		return regress.NewLinearRegression(), nil
	})
	if err := mc.Fit(X, y); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	pred, err := mc.Predict(mat.NewDense(2, 1, []float64{0.5, 50.5}))
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if math.Abs(pred[0]-1) > 1e-6 {
		t.Errorf("regime-one prediction = %v, expected 1", pred[0])
	}
	if math.Abs(pred[1]-49.5) > 1e-6 {
		t.Errorf("regime-two prediction = %v, expected 49.5", pred[1])
	}
}
