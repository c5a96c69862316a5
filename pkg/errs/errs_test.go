package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"with token", Config("unknown window unit", "fortnight"),
			`config: unknown window unit "fortnight"`},
		{"without token", Config("model spec missing a class", ""),
			"config: model spec missing a class"},
		{"wrapped cause", ConfigWrap("invalid model spec", errors.New("yaml: line 3")),
			"config: invalid model spec: yaml: line 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestConfigWrapUnwraps(t *testing.T) {
	cause := errors.New("no such file")
	err := ConfigWrap("reading model library", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable through errors.Is")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error is %T, expected *ConfigError", err)
	}
	if ce.Err != cause {
		t.Error("ConfigError.Err does not hold the wrapped cause")
	}
}

func TestDataAndModelFormatting(t *testing.T) {
	de := Data("site %s has no variable %q", "US-Ha1", "Qle")
	if de.Error() != `data: site US-Ha1 has no variable "Qle"` {
		t.Errorf("Data message = %q", de.Error())
	}
	me := Model("row %d assigned to cluster %d, which had no training rows", 3, 7)
	if me.Error() != "model: row 3 assigned to cluster 7, which had no training rows" {
		t.Errorf("Model message = %q", me.Error())
	}
}

func TestTypesDistinguishable(t *testing.T) {
	var ce *ConfigError
	var de *DataError
	var me *ModelError

	if errors.As(Data("x"), &ce) || errors.As(Model("x"), &ce) {
		t.Error("non-config errors matched *ConfigError")
	}
	if errors.As(Config("x", ""), &de) || errors.As(Model("x"), &de) {
		t.Error("non-data errors matched *DataError")
	}
	if errors.As(Config("x", ""), &me) || errors.As(Data("x"), &me) {
		t.Error("non-model errors matched *ModelError")
	}
}

func TestWrappedThroughFmt(t *testing.T) {
	inner := Data("no complete rows to fit on")
	outer := fmt.Errorf("fitting site %s: %w", "US-Ha1", inner)
	var de *DataError
	if !errors.As(outer, &de) {
		t.Error("DataError not reachable through a fmt.Errorf %w chain")
	}
}
