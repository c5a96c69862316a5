// Package window converts lag-window labels such as "30min", "2h" or "90d"
// into row counts on a fixed sampling grid, and computes trailing rolling
// statistics over numeric columns.
//
// A window is only valid for a given sampling step if it spans a whole number
// of rows; there is no fractional-window approximation. Site data sampled
// every 30 minutes accepts "3h" (6 rows) but rejects "45min".
package window

import (
	"strconv"
	"strings"
	"time"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

// Unit is the time unit of a window label.
type Unit int

const (
	Minute Unit = iota
	Hour
	Day
)

// Duration returns the length of one unit.
func (u Unit) Duration() time.Duration {
	switch u {
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	}
	return 0
}

func (u Unit) String() string {
	switch u {
	case Minute:
		return "min"
	case Hour:
		return "h"
	case Day:
		return "d"
	}
	return "?"
}

// ParseUnit resolves a unit token. Short tokens follow the window label
// grammar; the long forms appear in model specs (lag: {freq: day}).
func ParseUnit(token string) (Unit, error) {
	switch strings.ToLower(token) {
	case "min", "minute", "minutes":
		return Minute, nil
	case "h", "hour", "hours":
		return Hour, nil
	case "d", "day", "days":
		return Day, nil
	}
	return 0, errs.Config("unknown window unit", token)
}

// Spec is a parsed lag window: a positive magnitude and a unit.
type Spec struct {
	Magnitude int
	Unit      Unit
}

// String formats the spec back into its label form ("30min", "2h", "90d").
func (s Spec) String() string {
	return strconv.Itoa(s.Magnitude) + s.Unit.String()
}

// Duration returns the total time span of the window.
func (s Spec) Duration() time.Duration {
	return time.Duration(s.Magnitude) * s.Unit.Duration()
}

// Rows resolves the window to a row count on a grid sampled every step.
// The window must divide evenly into whole rows, otherwise the spec is
// invalid for that sampling step.
func (s Spec) Rows(step time.Duration) (int, error) {
	if step <= 0 {
		return 0, errs.Config("non-positive sampling step for window", s.String())
	}
	d := s.Duration()
	if d%step != 0 {
		return 0, errs.Config("window does not align with sampling step", s.String())
	}
	return int(d / step), nil
}

// Parse parses a window label of the form <digits><unit>, with unit one of
// "min", "h" or "d".
func Parse(label string) (Spec, error) {
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 || i == len(label) {
		return Spec{}, errs.Config("malformed window label", label)
	}
	n, err := strconv.Atoi(label[:i])
	if err != nil || n < 1 {
		return Spec{}, errs.Config("malformed window label", label)
	}
	unit, err := ParseUnit(label[i:])
	if err != nil {
		return Spec{}, err
	}
	return Spec{Magnitude: n, Unit: unit}, nil
}

// ParseAll parses an ordered list of window labels.
func ParseAll(labels []string) ([]Spec, error) {
	specs := make([]Spec, 0, len(labels))
	for _, l := range labels {
		s, err := Parse(l)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// StandardLags returns the standard sweep of lag windows, from half an hour
// out to a year.
func StandardLags() []string {
	return []string{
		"30min",
		"1h", "2h", "3h", "4h", "5h", "6h", "12h",
		"1d", "2d", "3d", "5d", "7d", "14d",
		"30d", "60d", "90d", "180d", "365d",
	}
}
