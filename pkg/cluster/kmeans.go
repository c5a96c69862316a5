// Package cluster partitions driver-variable space so that regression models
// can be conditioned on climate regime. Cluster labels are plain ints; label
// assignment is deterministic for a fixed seed.
package cluster

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// Clusterer learns a partition of feature space and assigns labels to rows.
type Clusterer interface {
	Fit(X mat.Matrix) error
	// Assign returns the cluster label of each row of X.
	Assign(X mat.Matrix) ([]int, error)
}

// KMeans is Lloyd's algorithm with kmeans++ seeding. Empty clusters are
// reseeded from the point currently worst represented by its center.
type KMeans struct {
	K       int
	MaxIter int
	Tol     float64
	Seed    int64

	centers *mat.Dense
}

// NewKMeans returns a k-cluster model with conventional iteration limits.
func NewKMeans(k int) *KMeans {
	return &KMeans{K: k, MaxIter: 100, Tol: 1e-6, Seed: 1}
}

// Fit learns k centers from the rows of X.
func (km *KMeans) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if km.K < 1 {
		return errs.Config("cluster count must be positive", "k")
	}
	if rows < km.K {
		return errs.Data("%d rows cannot support %d clusters", rows, km.K)
	}
	if km.MaxIter < 1 {
		km.MaxIter = 100
	}

	rng := rand.New(rand.NewSource(km.Seed))
	centers := km.seed(X, rng)

	labels := make([]int, rows)
	counts := make([]int, km.K)
	sums := mat.NewDense(km.K, cols, nil)

	for iter := 0; iter < km.MaxIter; iter++ {
		changed := false
		for i := 0; i < rows; i++ {
			c, _ := nearest(X, i, centers)
			if labels[i] != c || iter == 0 {
				changed = true
			}
			labels[i] = c
		}
		if !changed {
			break
		}

		sums.Zero()
		for c := range counts {
			counts[c] = 0
		}
		for i := 0; i < rows; i++ {
			c := labels[i]
			counts[c]++
			for j := 0; j < cols; j++ {
				sums.Set(c, j, sums.At(c, j)+X.At(i, j))
			}
		}

		var shift float64
		for c := 0; c < km.K; c++ {
			if counts[c] == 0 {
				// Reseed from the point farthest from its center.
				far := farthest(X, labels, centers)
				for j := 0; j < cols; j++ {
					centers.Set(c, j, X.At(far, j))
				}
				labels[far] = c
				continue
			}
			for j := 0; j < cols; j++ {
				next := sums.At(c, j) / float64(counts[c])
				d := next - centers.At(c, j)
				shift += d * d
				centers.Set(c, j, next)
			}
		}
		if shift < km.Tol {
			break
		}
	}

	km.centers = centers
	return nil
}

// Assign labels each row of X with its nearest center.
func (km *KMeans) Assign(X mat.Matrix) ([]int, error) {
	if km.centers == nil {
		return nil, errs.Model("k-means assign before fit")
	}
	rows, cols := X.Dims()
	_, d := km.centers.Dims()
	if cols != d {
		return nil, errs.Data("assign with %d features, model fitted with %d", cols, d)
	}
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		out[i], _ = nearest(X, i, km.centers)
	}
	return out, nil
}

// Centers returns the fitted centers, one row per cluster.
func (km *KMeans) Centers() *mat.Dense {
	if km.centers == nil {
		return nil
	}
	return mat.DenseCopyOf(km.centers)
}

// seed picks initial centers kmeans++ style: each next center is sampled
// with probability proportional to squared distance from the nearest center
// so far.
func (km *KMeans) seed(X mat.Matrix, rng *rand.Rand) *mat.Dense {
	rows, cols := X.Dims()
	centers := mat.NewDense(km.K, cols, nil)

	first := rng.Intn(rows)
	for j := 0; j < cols; j++ {
		centers.Set(0, j, X.At(first, j))
	}

	d2 := make([]float64, rows)
	for c := 1; c < km.K; c++ {
		var total float64
		for i := 0; i < rows; i++ {
			best := math.Inf(1)
			for cc := 0; cc < c; cc++ {
				d := rowDist2(X, i, centers, cc)
				if d < best {
					best = d
				}
			}
			d2[i] = best
			total += best
		}

		pick := rows - 1
		if total > 0 {
			r := rng.Float64() * total
			for i := 0; i < rows; i++ {
				r -= d2[i]
				if r <= 0 {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(rows)
		}
		for j := 0; j < cols; j++ {
			centers.Set(c, j, X.At(pick, j))
		}
	}
	return centers
}

func nearest(X mat.Matrix, i int, centers *mat.Dense) (int, float64) {
	k, _ := centers.Dims()
	best := 0
	bestD := math.Inf(1)
	for c := 0; c < k; c++ {
		if d := rowDist2(X, i, centers, c); d < bestD {
			bestD = d
			best = c
		}
	}
	return best, bestD
}

func farthest(X mat.Matrix, labels []int, centers *mat.Dense) int {
	rows, _ := X.Dims()
	far := 0
	farD := -1.0
	for i := 0; i < rows; i++ {
		if d := rowDist2(X, i, centers, labels[i]); d > farD {
			farD = d
			far = i
		}
	}
	return far
}

func rowDist2(X mat.Matrix, i int, centers *mat.Dense, c int) float64 {
	_, cols := X.Dims()
	var d2 float64
	for j := 0; j < cols; j++ {
		d := X.At(i, j) - centers.At(c, j)
		d2 += d * d
	}
	return d2
}
