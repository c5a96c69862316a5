package regress

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// DecisionTreeRegressor is a CART regression tree grown by greedy variance
// reduction. Splits are midpoints between adjacent sorted feature values.
type DecisionTreeRegressor struct {
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int

	root      *treeNode
	nFeatures int
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
}

func (n *treeNode) isLeaf() bool { return n.left == nil }

// NewDecisionTreeRegressor returns an unlimited-depth tree with conventional
// split minimums.
func NewDecisionTreeRegressor() *DecisionTreeRegressor {
	return &DecisionTreeRegressor{MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

// Fit grows the tree on the training data.
func (dt *DecisionTreeRegressor) Fit(X mat.Matrix, y []float64) error {
	rows, cols, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if dt.MinSamplesSplit < 2 {
		dt.MinSamplesSplit = 2
	}
	if dt.MinSamplesLeaf < 1 {
		dt.MinSamplesLeaf = 1
	}
	dense := mat.DenseCopyOf(X)
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	dt.nFeatures = cols
	dt.root = dt.grow(dense, y, idx, 1)
	return nil
}

func (dt *DecisionTreeRegressor) grow(X *mat.Dense, y []float64, idx []int, depth int) *treeNode {
	n := len(idx)
	var sum, sumSq float64
	for _, i := range idx {
		sum += y[i]
		sumSq += y[i] * y[i]
	}
	mean := sum / float64(n)
	sse := sumSq - sum*sum/float64(n)

	node := &treeNode{value: mean}
	if n < dt.MinSamplesSplit || sse <= 1e-12 {
		return node
	}
	if dt.MaxDepth > 0 && depth > dt.MaxDepth {
		return node
	}

	feature, threshold, ok := dt.bestSplit(X, y, idx, sse)
	if !ok {
		return node
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, i := range idx {
		if X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	node.feature = feature
	node.threshold = threshold
	node.left = dt.grow(X, y, left, depth+1)
	node.right = dt.grow(X, y, right, depth+1)
	return node
}

// bestSplit scans every feature for the split minimizing the summed child
// SSE, using prefix sums over the sorted feature values.
func (dt *DecisionTreeRegressor) bestSplit(X *mat.Dense, y []float64, idx []int, parentSSE float64) (feature int, threshold float64, ok bool) {
	n := len(idx)
	type pair struct{ v, y float64 }
	pairs := make([]pair, n)

	bestScore := parentSSE // a split must strictly reduce the SSE
	for j := 0; j < dt.nFeatures; j++ {
		for k, i := range idx {
			pairs[k] = pair{X.At(i, j), y[i]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		var total, totalSq float64
		for _, p := range pairs {
			total += p.y
			totalSq += p.y * p.y
		}

		var sumL, sumSqL float64
		for p := 1; p < n; p++ {
			sumL += pairs[p-1].y
			sumSqL += pairs[p-1].y * pairs[p-1].y
			if pairs[p-1].v == pairs[p].v {
				continue
			}
			if p < dt.MinSamplesLeaf || n-p < dt.MinSamplesLeaf {
				continue
			}
			nl := float64(p)
			nr := float64(n - p)
			sumR := total - sumL
			sseL := sumSqL - sumL*sumL/nl
			sseR := (totalSq - sumSqL) - sumR*sumR/nr
			if score := sseL + sseR; score < bestScore-1e-12 {
				bestScore = score
				feature = j
				threshold = (pairs[p-1].v + pairs[p].v) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// Predict routes each row down the tree to its leaf mean.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if dt.root == nil {
		return nil, errs.Model("decision tree predict before fit")
	}
	rows, cols := X.Dims()
	if cols != dt.nFeatures {
		return nil, errs.Data("predict with %d features, model fitted with %d", cols, dt.nFeatures)
	}
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		node := dt.root
		for !node.isLeaf() {
			if X.At(i, node.feature) <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		out[i] = node.value
	}
	return out, nil
}
