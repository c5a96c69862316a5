package window

import (
	"errors"
	"testing"
	"time"

	"github.com/empiricalmet/fluxlag/pkg/errs"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		label     string
		magnitude int
		unit      Unit
	}{
		{"minutes", "30min", 30, Minute},
		{"single hour", "1h", 1, Hour},
		{"multi hour", "12h", 12, Hour},
		{"days", "365d", 365, Day},
		{"long unit form", "2hours", 2, Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.label)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.label, err)
			}
			if s.Magnitude != tt.magnitude || s.Unit != tt.unit {
				t.Errorf("Parse(%q) = %+v, expected {%d %v}", tt.label, s, tt.magnitude, tt.unit)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		label string
	}{
		{"missing magnitude", "min"},
		{"missing unit", "30"},
		{"unknown unit", "3fortnight"},
		{"zero magnitude", "0d"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.label)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, expected error", tt.label)
			}
			var ce *errs.ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("Parse(%q) error is %T, expected *errs.ConfigError", tt.label, err)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, label := range StandardLags() {
		s, err := Parse(label)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", label, err)
		}
		if s.String() != label {
			t.Errorf("Parse(%q).String() = %q", label, s.String())
		}
	}
}

func TestRows(t *testing.T) {
	step := 30 * time.Minute
	tests := []struct {
		name  string
		label string
		rows  int
	}{
		{"one step", "30min", 1},
		{"three hours", "3h", 6},
		{"one day", "1d", 48},
		{"one year", "365d", 17520},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.label)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.label, err)
			}
			rows, err := s.Rows(step)
			if err != nil {
				t.Fatalf("Rows(%v) returned error: %v", step, err)
			}
			if rows != tt.rows {
				t.Errorf("Rows(%v) for %q = %d, expected %d", step, tt.label, rows, tt.rows)
			}
		})
	}
}

func TestRowsNonIntegral(t *testing.T) {
	s, err := Parse("45min")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	_, err = s.Rows(30 * time.Minute)
	if err == nil {
		t.Fatal("Rows accepted a window that does not divide into whole rows")
	}
	var ce *errs.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("Rows error is %T, expected *errs.ConfigError", err)
	}

	// The same window is fine on a finer grid.
	rows, err := s.Rows(15 * time.Minute)
	if err != nil {
		t.Fatalf("Rows(15min) returned error: %v", err)
	}
	if rows != 3 {
		t.Errorf("Rows(15min) = %d, expected 3", rows)
	}
}

func TestRowsBadStep(t *testing.T) {
	s := Spec{Magnitude: 1, Unit: Hour}
	if _, err := s.Rows(0); err == nil {
		t.Error("Rows(0) succeeded, expected error")
	}
}

func TestStandardLags(t *testing.T) {
	lags := StandardLags()
	if len(lags) != 19 {
		t.Fatalf("StandardLags returned %d windows, expected 19", len(lags))
	}
	if lags[0] != "30min" || lags[len(lags)-1] != "365d" {
		t.Errorf("StandardLags range = %q..%q, expected 30min..365d", lags[0], lags[len(lags)-1])
	}
	// Sweep must be ordered shortest to longest.
	step := 30 * time.Minute
	prev := 0
	for _, l := range lags {
		s, err := Parse(l)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", l, err)
		}
		rows, err := s.Rows(step)
		if err != nil {
			t.Fatalf("Rows for %q returned error: %v", l, err)
		}
		if rows <= prev {
			t.Errorf("StandardLags not strictly increasing at %q (%d rows after %d)", l, rows, prev)
		}
		prev = rows
	}
}
