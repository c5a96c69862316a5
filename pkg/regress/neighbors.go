package regress

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// KNeighborsRegressor predicts the mean target of the K nearest training
// rows by Euclidean distance. The search is brute force over the stored
// training set.
type KNeighborsRegressor struct {
	K int

	train *mat.Dense
	y     []float64
}

// NewKNeighborsRegressor returns a 5-nearest-neighbors model.
func NewKNeighborsRegressor() *KNeighborsRegressor {
	return &KNeighborsRegressor{K: 5}
}

// Fit stores the training data.
func (kn *KNeighborsRegressor) Fit(X mat.Matrix, y []float64) error {
	rows, _, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if kn.K < 1 {
		return errs.Config("neighbor count must be positive", "k")
	}
	if rows < kn.K {
		return errs.Data("%d training rows for %d neighbors", rows, kn.K)
	}
	kn.train = mat.DenseCopyOf(X)
	kn.y = make([]float64, len(y))
	copy(kn.y, y)
	return nil
}

// Predict averages the targets of the K nearest stored rows for each query.
func (kn *KNeighborsRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if kn.train == nil {
		return nil, errs.Model("k-nearest-neighbors predict before fit")
	}
	nTrain, dTrain := kn.train.Dims()
	rows, cols := X.Dims()
	if cols != dTrain {
		return nil, errs.Data("predict with %d features, model fitted with %d", cols, dTrain)
	}

	out := make([]float64, rows)
	// Track the current K best as parallel distance/target slices; with the
	// small K used in practice a linear replace beats a heap.
	bestDist := make([]float64, kn.K)
	bestY := make([]float64, kn.K)
	for i := 0; i < rows; i++ {
		for k := range bestDist {
			bestDist[k] = math.Inf(1)
		}
		for t := 0; t < nTrain; t++ {
			var d2 float64
			for j := 0; j < cols; j++ {
				diff := X.At(i, j) - kn.train.At(t, j)
				d2 += diff * diff
			}
			worst := 0
			for k := 1; k < kn.K; k++ {
				if bestDist[k] > bestDist[worst] {
					worst = k
				}
			}
			if d2 < bestDist[worst] {
				bestDist[worst] = d2
				bestY[worst] = kn.y[t]
			}
		}
		var sum float64
		for k := 0; k < kn.K; k++ {
			sum += bestY[k]
		}
		out[i] = sum / float64(kn.K)
	}
	return out, nil
}
