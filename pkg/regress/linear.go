package regress

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// LinearRegression is ordinary least squares, solved by QR decomposition of
// the (optionally intercept-augmented) design matrix.
type LinearRegression struct {
	FitIntercept bool

	coef      []float64
	intercept float64
	fitted    bool
}

// NewLinearRegression returns an OLS model that fits an intercept.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{FitIntercept: true}
}

// Fit solves the least-squares problem for the given data.
func (lr *LinearRegression) Fit(X mat.Matrix, y []float64) error {
	rows, cols, err := checkXY(X, y)
	if err != nil {
		return err
	}

	width := cols
	if lr.FitIntercept {
		width++
	}
	if rows < width {
		return errs.Data("%d rows cannot determine %d coefficients", rows, width)
	}
	A := mat.NewDense(rows, width, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			A.Set(i, j, X.At(i, j))
		}
		if lr.FitIntercept {
			A.Set(i, cols, 1)
		}
	}
	b := mat.NewVecDense(rows, y)

	var qr mat.QR
	qr.Factorize(A)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, b); err != nil {
		// An ill-conditioned system still yields a usable least-squares
		// solution; anything else is fatal.
		if _, ok := err.(mat.Condition); !ok {
			return errs.Model("least-squares solve failed: %v", err)
		}
	}

	lr.coef = make([]float64, cols)
	for j := 0; j < cols; j++ {
		lr.coef[j] = beta.AtVec(j)
	}
	if lr.FitIntercept {
		lr.intercept = beta.AtVec(cols)
	} else {
		lr.intercept = 0
	}
	lr.fitted = true
	return nil
}

// Predict evaluates the fitted linear model row by row.
func (lr *LinearRegression) Predict(X mat.Matrix) ([]float64, error) {
	if !lr.fitted {
		return nil, errs.Model("linear regression predict before fit")
	}
	return linearPredict(X, lr.coef, lr.intercept)
}

// Coefficients returns the fitted weights and intercept.
func (lr *LinearRegression) Coefficients() (coef []float64, intercept float64) {
	out := make([]float64, len(lr.coef))
	copy(out, lr.coef)
	return out, lr.intercept
}

// SGDRegressor is a linear model trained by stochastic gradient descent on
// squared loss with L2 regularization. The learning rate decays as
// Eta0 / t^PowerT across individual sample updates.
type SGDRegressor struct {
	Alpha  float64 // L2 penalty strength
	Eta0   float64 // initial learning rate
	PowerT float64 // learning-rate decay exponent
	Epochs int     // maximum passes over the data
	Tol    float64 // stop when the epoch loss fails to improve by this much
	Seed   int64   // shuffle seed

	coef      []float64
	intercept float64
	fitted    bool
}

// NewSGDRegressor returns an SGD linear model with conventional defaults.
func NewSGDRegressor() *SGDRegressor {
	return &SGDRegressor{
		Alpha:  1e-4,
		Eta0:   0.01,
		PowerT: 0.25,
		Epochs: 200,
		Tol:    1e-4,
		Seed:   1,
	}
}

// Fit runs shuffled epochs of per-sample gradient updates until the loss
// stalls or the epoch budget is spent.
func (sr *SGDRegressor) Fit(X mat.Matrix, y []float64) error {
	rows, cols, err := checkXY(X, y)
	if err != nil {
		return err
	}

	w := make([]float64, cols)
	var b float64
	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(sr.Seed))

	best := math.Inf(1)
	stalled := 0
	t := 1.0
	for epoch := 0; epoch < sr.Epochs; epoch++ {
		rng.Shuffle(rows, func(i, j int) { order[i], order[j] = order[j], order[i] })

		var loss float64
		for _, i := range order {
			var pred float64
			for j := 0; j < cols; j++ {
				pred += w[j] * X.At(i, j)
			}
			pred += b

			err := pred - y[i]
			loss += err * err

			eta := sr.Eta0 / math.Pow(t, sr.PowerT)
			for j := 0; j < cols; j++ {
				w[j] -= eta * (err*X.At(i, j) + sr.Alpha*w[j])
			}
			b -= eta * err
			t++
		}
		loss /= float64(rows)

		if loss > best-sr.Tol {
			stalled++
			if stalled >= 5 {
				break
			}
		} else {
			stalled = 0
		}
		if loss < best {
			best = loss
		}
	}

	sr.coef = w
	sr.intercept = b
	sr.fitted = true
	return nil
}

// Predict evaluates the fitted linear model row by row.
func (sr *SGDRegressor) Predict(X mat.Matrix) ([]float64, error) {
	if !sr.fitted {
		return nil, errs.Model("sgd regressor predict before fit")
	}
	return linearPredict(X, sr.coef, sr.intercept)
}

func linearPredict(X mat.Matrix, coef []float64, intercept float64) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != len(coef) {
		return nil, errs.Data("predict with %d features, model fitted with %d", cols, len(coef))
	}
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		v := intercept
		for j := 0; j < cols; j++ {
			v += coef[j] * X.At(i, j)
		}
		out[i] = v
	}
	return out, nil
}
