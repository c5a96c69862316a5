// Package errs defines the error types shared across the fluxlag packages.
//
// Three failure classes exist. ConfigError covers everything wrong with a
// model or window description and is always raised before any fitting
// happens. DataError covers training data that cannot be used at all.
// ModelError covers routing failures at prediction time. Anything milder
// (a degenerate metric pair, a single incomplete prediction row) is not an
// error in this codebase — it degrades to a NaN result so that batch sweeps
// run to completion.
package errs

import "fmt"

// ConfigError reports an invalid or unrecognized configuration element:
// a malformed window label, a window that does not divide evenly into the
// sampling step, or an unknown transform, model class, clusterer or spec key.
type ConfigError struct {
	Token string // offending label, key or class name, if known
	Msg   string
	Err   error // underlying cause (e.g. a YAML decode error), may be nil
}

func (e *ConfigError) Error() string {
	s := "config: " + e.Msg
	if e.Token != "" {
		s = fmt.Sprintf("%s %q", s, e.Token)
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config constructs a ConfigError carrying the offending token.
func Config(msg, token string) error {
	return &ConfigError{Msg: msg, Token: token}
}

// ConfigWrap constructs a ConfigError wrapping an underlying cause.
func ConfigWrap(msg string, err error) error {
	return &ConfigError{Msg: msg, Err: err}
}

// DataError reports unusable input data, such as a training set with no
// complete rows left after missing-value filtering.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return "data: " + e.Msg }

// Data constructs a DataError.
func Data(format string, args ...interface{}) error {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

// ModelError reports a prediction-time routing failure, such as a cluster
// label that was never observed during fitting. There is deliberately no
// fallback model: training must cover every cluster inference can produce.
type ModelError struct {
	Msg string
}

func (e *ModelError) Error() string { return "model: " + e.Msg }

// Model constructs a ModelError.
func Model(format string, args ...interface{}) error {
	return &ModelError{Msg: fmt.Sprintf(format, args...)}
}
