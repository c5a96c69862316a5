package empirical

import (
	"math"

	"gopkg.in/yaml.v2"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// ModelSpec is the declarative description a model is assembled from. It is
// never mutated after construction; Build reads it and returns a Descriptor.
//
// The YAML form matches the model-library files:
//
//	name: 3km27_lag
//	forcing_vars: [SWdown, Tair, RelHum]
//	transforms:
//	  scaler: standard
//	class: LinearRegression
//	clusterregression:
//	  class: KMeans
//	  args: {n_clusters: 27}
//	lag:
//	  periods: 1
//	  freq: day
//
// Decoding is strict: any key outside the recognized set is a ConfigError.
type ModelSpec struct {
	Name              string              `yaml:"name,omitempty"`
	ForcingVars       []string            `yaml:"forcing_vars,omitempty"`
	Transforms        *TransformSpec      `yaml:"transforms,omitempty"`
	Class             string              `yaml:"class"`
	Args              map[string]any      `yaml:"args,omitempty"`
	ClusterRegression *ClusterSpec        `yaml:"clusterregression,omitempty"`
	Lag               *LagSpec            `yaml:"lag,omitempty"`
	Markov            *LagSpec            `yaml:"markov,omitempty"`
	LagAverage        map[string][]string `yaml:"lag_average,omitempty"`
}

// TransformSpec selects the optional feature transforms, applied in the
// fixed order scaler, pca, poly.
type TransformSpec struct {
	Scaler string    `yaml:"scaler,omitempty"`
	PCA    *PCASpec  `yaml:"pca,omitempty"`
	Poly   *PolySpec `yaml:"poly,omitempty"`
}

// PCASpec configures the dimensionality reduction stage. Zero components
// keeps every axis.
type PCASpec struct {
	Components int `yaml:"components,omitempty"`
}

// PolySpec configures the polynomial expansion stage.
type PolySpec struct {
	Degree int `yaml:"degree,omitempty"`
}

// ClusterSpec selects the clusterer conditioning the base model.
type ClusterSpec struct {
	Class string         `yaml:"class"`
	Args  map[string]any `yaml:"args,omitempty"`
}

// LagSpec configures the outer lag or markov wrapper. Periods defaults to 1;
// an empty Freq means one sampling step per period.
type LagSpec struct {
	Periods int    `yaml:"periods,omitempty"`
	Freq    string `yaml:"freq,omitempty"`
}

// ParseModelSpec decodes a YAML model spec, rejecting unknown keys.
func ParseModelSpec(data []byte) (*ModelSpec, error) {
	var spec ModelSpec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return nil, errs.ConfigWrap("invalid model spec", err)
	}
	return &spec, nil
}

// intArg pulls an integer argument out of a decoded args map, tolerating the
// numeric types YAML produces.
func intArg(args map[string]any, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, errs.Config("argument must be an integer", key)
}

// floatArg pulls a float argument out of a decoded args map.
func floatArg(args map[string]any, key string, def float64) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, errs.Config("argument must be a number", key)
}

// boolArg pulls a boolean argument out of a decoded args map.
func boolArg(args map[string]any, key string, def bool) (bool, error) {
	raw, ok := args[key]
	if !ok {
		return def, nil
	}
	if v, ok := raw.(bool); ok {
		return v, nil
	}
	return false, errs.Config("argument must be a boolean", key)
}

// checkArgKeys rejects any argument key outside the allowed set, so a typo
// in a model file fails loudly instead of being ignored.
func checkArgKeys(args map[string]any, allowed ...string) error {
	for key := range args {
		ok := false
		for _, a := range allowed {
			if key == a {
				ok = true
				break
			}
		}
		if !ok {
			return errs.Config("unknown argument", key)
		}
	}
	return nil
}
