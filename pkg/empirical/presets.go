package empirical

import (
	"os"
	"path/filepath"
	"time"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// presetSpec returns the ModelSpec behind a built-in model name. The mapping
// is total and explicit: a name either resolves here or it does not resolve
// at all, with no fall-through between entries.
func presetSpec(name string) (ModelSpec, bool) {
	switch name {
	case "1lin":
		return ModelSpec{
			Name:        "1lin",
			ForcingVars: []string{"SWdown"},
			Class:       "LinearRegression",
		}, true
	case "3km27":
		return km27Spec("3km27", nil), true
	case "3km233":
		return ModelSpec{
			Name:        "3km233",
			ForcingVars: []string{"SWdown", "Tair", "RelHum"},
			Class:       "LinearRegression",
			ClusterRegression: &ClusterSpec{
				Class: "MiniBatchKMeans",
				Args:  map[string]any{"n_clusters": 233},
			},
		}, true
	case "3km27_lag":
		return km27Spec("3km27_lag", &LagSpec{Periods: 1, Freq: "day"}), true
	case "5km27_lag":
		return ModelSpec{
			Name:        "5km27_lag",
			ForcingVars: []string{"SWdown", "Tair", "RelHum", "Wind", "Rainf"},
			Class:       "LinearRegression",
			ClusterRegression: &ClusterSpec{
				Class: "MiniBatchKMeans",
				Args:  map[string]any{"n_clusters": 27},
			},
			LagAverage: map[string][]string{
				"SWdown": {"cur", "2d", "7d"},
				"Tair":   {"cur", "2d", "7d"},
				"RelHum": {"cur", "2d", "7d"},
				"Wind":   {"cur", "2d", "7d"},
				"Rainf":  {"cur", "2d", "7d", "30d", "90d"},
			},
		}, true
	}
	return ModelSpec{}, false
}

func km27Spec(name string, lag *LagSpec) ModelSpec {
	return ModelSpec{
		Name:        name,
		ForcingVars: []string{"SWdown", "Tair", "RelHum"},
		Class:       "LinearRegression",
		ClusterRegression: &ClusterSpec{
			Class: "MiniBatchKMeans",
			Args:  map[string]any{"n_clusters": 27},
		},
		Lag: lag,
	}
}

// PresetNames lists the built-in model names.
func PresetNames() []string {
	return []string{"1lin", "3km27", "3km233", "3km27_lag", "5km27_lag"}
}

// GetModel resolves a model name into an assembled Descriptor: built-in
// presets first, then <libraryDir>/<name>.yaml when a library directory is
// given. An unresolvable name is a ConfigError.
func GetModel(name string, step time.Duration, libraryDir string) (*Descriptor, error) {
	if spec, ok := presetSpec(name); ok {
		return Build(spec, step)
	}
	if libraryDir != "" {
		path := filepath.Join(libraryDir, name+".yaml")
		data, err := os.ReadFile(path)
		if err == nil {
			spec, err := ParseModelSpec(data)
			if err != nil {
				return nil, err
			}
			if spec.Name == "" {
				spec.Name = name
			}
			return Build(*spec, step)
		}
		if !os.IsNotExist(err) {
			return nil, errs.ConfigWrap("reading model library", err)
		}
	}
	return nil, errs.Config("unknown model name", name)
}
