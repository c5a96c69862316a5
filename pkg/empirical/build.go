package empirical

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/empiricalmet/fluxlag/pkg/cluster"
	"github.com/empiricalmet/fluxlag/pkg/errs"
	"github.com/empiricalmet/fluxlag/pkg/feature"
	"github.com/empiricalmet/fluxlag/pkg/regress"
	"github.com/empiricalmet/fluxlag/pkg/window"
)

// Descriptor is the assembled product of a ModelSpec: the composed estimator
// plus the metadata a caller needs to feed and report it. It is immutable
// after Build returns it.
type Descriptor struct {
	est         regress.Estimator
	name        string
	forcingVars []string
}

// Fit trains the assembled model.
func (d *Descriptor) Fit(X mat.Matrix, y []float64) error { return d.est.Fit(X, y) }

// Predict runs the assembled model.
func (d *Descriptor) Predict(X mat.Matrix) ([]float64, error) { return d.est.Predict(X) }

// Name returns the model's display name.
func (d *Descriptor) Name() string { return d.name }

// ForcingVars returns the driver variables the model expects as input
// columns, in order.
func (d *Descriptor) ForcingVars() []string {
	out := make([]string, len(d.forcingVars))
	copy(out, d.forcingVars)
	return out
}

// The registries are the closed set of names a ModelSpec may reference.
// An unknown name anywhere is a ConfigError raised at build time, before
// any fitting.

var modelRegistry = map[string]func(args map[string]any) (regress.Estimator, error){
	"LinearRegression":      newLinearFromArgs,
	"SGDRegressor":          newSGDFromArgs,
	"KNeighborsRegressor":   newKNNFromArgs,
	"DecisionTreeRegressor": newTreeFromArgs,
}

var clusterRegistry = map[string]func(args map[string]any) (cluster.Clusterer, error){
	"KMeans": newKMeansFromArgs,
	// The reference implementation substitutes full KMeans for the
	// mini-batch variant; the alias keeps existing specs loading.
	"MiniBatchKMeans": newKMeansFromArgs,
}

var scalerRegistry = map[string]func() regress.Transformer{
	"standard": func() regress.Transformer { return &regress.StandardScaler{} },
	"minmax":   func() regress.Transformer { return &regress.MinMaxScaler{} },
}

func newLinearFromArgs(args map[string]any) (regress.Estimator, error) {
	if err := checkArgKeys(args, "fit_intercept"); err != nil {
		return nil, err
	}
	intercept, err := boolArg(args, "fit_intercept", true)
	if err != nil {
		return nil, err
	}
	return &regress.LinearRegression{FitIntercept: intercept}, nil
}

func newSGDFromArgs(args map[string]any) (regress.Estimator, error) {
	if err := checkArgKeys(args, "alpha", "eta0", "max_iter", "tol", "seed"); err != nil {
		return nil, err
	}
	sr := regress.NewSGDRegressor()
	var err error
	if sr.Alpha, err = floatArg(args, "alpha", sr.Alpha); err != nil {
		return nil, err
	}
	if sr.Eta0, err = floatArg(args, "eta0", sr.Eta0); err != nil {
		return nil, err
	}
	if sr.Epochs, err = intArg(args, "max_iter", sr.Epochs); err != nil {
		return nil, err
	}
	if sr.Tol, err = floatArg(args, "tol", sr.Tol); err != nil {
		return nil, err
	}
	seed, err := intArg(args, "seed", int(sr.Seed))
	if err != nil {
		return nil, err
	}
	sr.Seed = int64(seed)
	return sr, nil
}

func newKNNFromArgs(args map[string]any) (regress.Estimator, error) {
	if err := checkArgKeys(args, "n_neighbors"); err != nil {
		return nil, err
	}
	kn := regress.NewKNeighborsRegressor()
	k, err := intArg(args, "n_neighbors", kn.K)
	if err != nil {
		return nil, err
	}
	kn.K = k
	return kn, nil
}

func newTreeFromArgs(args map[string]any) (regress.Estimator, error) {
	if err := checkArgKeys(args, "max_depth", "min_samples_split", "min_samples_leaf"); err != nil {
		return nil, err
	}
	dt := regress.NewDecisionTreeRegressor()
	var err error
	if dt.MaxDepth, err = intArg(args, "max_depth", dt.MaxDepth); err != nil {
		return nil, err
	}
	if dt.MinSamplesSplit, err = intArg(args, "min_samples_split", dt.MinSamplesSplit); err != nil {
		return nil, err
	}
	if dt.MinSamplesLeaf, err = intArg(args, "min_samples_leaf", dt.MinSamplesLeaf); err != nil {
		return nil, err
	}
	return dt, nil
}

func newKMeansFromArgs(args map[string]any) (cluster.Clusterer, error) {
	if err := checkArgKeys(args, "n_clusters", "max_iter", "seed"); err != nil {
		return nil, err
	}
	k, err := intArg(args, "n_clusters", 8)
	if err != nil {
		return nil, err
	}
	km := cluster.NewKMeans(k)
	if km.MaxIter, err = intArg(args, "max_iter", km.MaxIter); err != nil {
		return nil, err
	}
	seed, err := intArg(args, "seed", int(km.Seed))
	if err != nil {
		return nil, err
	}
	km.Seed = int64(seed)
	return km, nil
}

// Build assembles a ModelSpec into a ready-to-fit Descriptor. Stages compose
// in a fixed order: transforms, then the base model (cluster-conditioned if
// requested), then the missing-data wrapper around the whole chain, then at
// most one outer expansion stage (lag, markov, or lag_average). The sampling
// step resolves any window or frequency labels in the spec; every
// configuration problem surfaces here, never during fitting.
func Build(spec ModelSpec, step time.Duration) (*Descriptor, error) {
	if spec.Class == "" {
		return nil, errs.Config("model spec missing a class", "class")
	}
	modelCtor, ok := modelRegistry[spec.Class]
	if !ok {
		return nil, errs.Config("unknown model class", spec.Class)
	}
	// Validate the base model arguments once up front; per-cluster copies
	// reuse them afterwards.
	base, err := modelCtor(spec.Args)
	if err != nil {
		return nil, err
	}

	var steps []regress.Transformer
	if t := spec.Transforms; t != nil {
		if t.Scaler != "" {
			scalerCtor, ok := scalerRegistry[t.Scaler]
			if !ok {
				return nil, errs.Config("unknown scaler", t.Scaler)
			}
			steps = append(steps, scalerCtor())
		}
		if t.PCA != nil {
			steps = append(steps, &regress.PCA{Components: t.PCA.Components})
		}
		if t.Poly != nil {
			degree := t.Poly.Degree
			if degree == 0 {
				degree = 2
			}
			steps = append(steps, &regress.PolynomialFeatures{Degree: degree})
		}
	}

	core := base
	if cr := spec.ClusterRegression; cr != nil {
		clusterCtor, ok := clusterRegistry[cr.Class]
		if !ok {
			return nil, errs.Config("unknown clusterer", cr.Class)
		}
		clu, err := clusterCtor(cr.Args)
		if err != nil {
			return nil, err
		}
		core = NewModelByCluster(clu, func() (regress.Estimator, error) {
			return modelCtor(spec.Args)
		})
	}

	var assembled regress.Estimator
	if len(steps) > 0 {
		assembled = &regress.Chain{Steps: steps, Model: core}
	} else {
		assembled = core
	}
	guarded := NewMissingDataWrapper(assembled)

	outers := 0
	for _, present := range []bool{spec.Lag != nil, spec.Markov != nil, spec.LagAverage != nil} {
		if present {
			outers++
		}
	}
	if outers > 1 {
		return nil, errs.Config("lag, markov and lag_average are mutually exclusive", "lag")
	}

	var est regress.Estimator = guarded
	switch {
	case spec.Lag != nil:
		periods, shift, err := resolveLag(spec.Lag, step)
		if err != nil {
			return nil, err
		}
		est, err = NewLagWrapper(guarded, periods, shift)
		if err != nil {
			return nil, err
		}
	case spec.Markov != nil:
		periods, shift, err := resolveLag(spec.Markov, step)
		if err != nil {
			return nil, err
		}
		est, err = NewMarkovWrapper(guarded, periods, shift)
		if err != nil {
			return nil, err
		}
	case spec.LagAverage != nil:
		est, err = NewLagAverageWrapper(guarded, feature.Builder{Step: step}, spec.ForcingVars, spec.LagAverage)
		if err != nil {
			return nil, err
		}
	}

	name := spec.Name
	if name == "" {
		name = spec.Class
	}
	vars := make([]string, len(spec.ForcingVars))
	copy(vars, spec.ForcingVars)
	return &Descriptor{est: est, name: name, forcingVars: vars}, nil
}

// resolveLag turns a LagSpec into whole-period row shifts on the sampling
// grid. Periods defaults to 1; an empty frequency means one sampling step.
func resolveLag(ls *LagSpec, step time.Duration) (periods, shift int, err error) {
	periods = ls.Periods
	if periods == 0 {
		periods = 1
	}
	if periods < 0 {
		return 0, 0, errs.Config("lag periods must be positive", "periods")
	}
	if ls.Freq == "" {
		return periods, 1, nil
	}
	spec, err := window.Parse(ls.Freq)
	if err != nil {
		// A bare unit ("day") is as valid here as a counted one ("2d").
		unit, uerr := window.ParseUnit(ls.Freq)
		if uerr != nil {
			return 0, 0, err
		}
		spec = window.Spec{Magnitude: 1, Unit: unit}
	}
	shift, err = spec.Rows(step)
	if err != nil {
		return 0, 0, err
	}
	return periods, shift, nil
}
