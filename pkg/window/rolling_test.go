package window

import (
	"math"
	"math/rand"
	"testing"
)

const tolerance = 1e-9

func nearlyEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= tolerance
}

func TestRollingMean(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		w        int
		expected []float64
	}{
		{
			"window of three",
			[]float64{1, 2, 3, 4, 5},
			3,
			[]float64{math.NaN(), math.NaN(), 2, 3, 4},
		},
		{
			"window of one is identity",
			[]float64{4, 2, 7},
			1,
			[]float64{4, 2, 7},
		},
		{
			"window longer than series",
			[]float64{1, 2, 3},
			5,
			[]float64{math.NaN(), math.NaN(), math.NaN()},
		},
		{
			"constant series",
			[]float64{2.5, 2.5, 2.5, 2.5},
			2,
			[]float64{math.NaN(), 2.5, 2.5, 2.5},
		},
		{
			"empty input",
			nil,
			3,
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RollingMean(tt.input, tt.w)
			if len(got) != len(tt.expected) {
				t.Fatalf("RollingMean returned %d values, expected %d", len(got), len(tt.expected))
			}
			for i := range got {
				if !nearlyEqual(got[i], tt.expected[i]) {
					t.Errorf("row %d: got %v, expected %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestRollingMeanNaNPropagation(t *testing.T) {
	nan := math.NaN()
	input := []float64{1, 2, nan, 4, 5, 6, 7}
	got := RollingMean(input, 3)

	// Every window touching the gap is NaN; windows past it recover.
	expected := []float64{nan, nan, nan, nan, nan, 5, 6}
	for i := range got {
		if !nearlyEqual(got[i], expected[i]) {
			t.Errorf("row %d: got %v, expected %v", i, got[i], expected[i])
		}
	}
}

func TestRollingMeanInfTreatedAsMissing(t *testing.T) {
	input := []float64{1, math.Inf(1), 3, 4, 5}
	got := RollingMean(input, 2)
	expected := []float64{math.NaN(), math.NaN(), math.NaN(), 3.5, 4.5}
	for i := range got {
		if !nearlyEqual(got[i], expected[i]) {
			t.Errorf("row %d: got %v, expected %v", i, got[i], expected[i])
		}
	}
}

// The incremental running sum must agree with a direct per-window mean, and
// must fully shed NaN bookkeeping once a gap leaves the window.
func TestRollingMeanMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 5000
	values := make([]float64, n)
	for i := range values {
		values[i] = rng.NormFloat64() * 10
	}
	// Sprinkle gaps.
	for i := 0; i < n/50; i++ {
		values[rng.Intn(n)] = math.NaN()
	}

	for _, w := range []int{1, 7, 48, 336} {
		got := RollingMean(values, w)
		for i := w - 1; i < n; i += 97 {
			var sum float64
			ok := true
			for j := i - w + 1; j <= i; j++ {
				if math.IsNaN(values[j]) {
					ok = false
					break
				}
				sum += values[j]
			}
			want := math.NaN()
			if ok {
				want = sum / float64(w)
			}
			if math.IsNaN(want) != math.IsNaN(got[i]) {
				t.Fatalf("w=%d row %d: got %v, expected %v", w, i, got[i], want)
			}
			if !math.IsNaN(want) && math.Abs(got[i]-want) > 1e-7 {
				t.Errorf("w=%d row %d: got %v, expected %v", w, i, got[i], want)
			}
		}
	}
}

func TestRollingMeanCols(t *testing.T) {
	cols := [][]float64{
		{1, 2, 3, 4},
		{10, 20, 30, 40},
	}
	got := RollingMeanCols(cols, 2)
	if len(got) != 2 {
		t.Fatalf("RollingMeanCols returned %d columns, expected 2", len(got))
	}
	expected := [][]float64{
		{math.NaN(), 1.5, 2.5, 3.5},
		{math.NaN(), 15, 25, 35},
	}
	for c := range expected {
		for i := range expected[c] {
			if !nearlyEqual(got[c][i], expected[c][i]) {
				t.Errorf("col %d row %d: got %v, expected %v", c, i, got[c][i], expected[c][i])
			}
		}
	}
}

func TestShift(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		k        int
		expected []float64
	}{
		{"shift by two", []float64{1, 2, 3, 4}, 2, []float64{math.NaN(), math.NaN(), 1, 2}},
		{"shift by zero copies", []float64{1, 2, 3}, 0, []float64{1, 2, 3}},
		{"shift past end", []float64{1, 2}, 5, []float64{math.NaN(), math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shift(tt.input, tt.k)
			for i := range tt.expected {
				if !nearlyEqual(got[i], tt.expected[i]) {
					t.Errorf("row %d: got %v, expected %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestShiftDoesNotAliasInput(t *testing.T) {
	input := []float64{1, 2, 3}
	out := Shift(input, 0)
	out[0] = 99
	if input[0] != 1 {
		t.Error("Shift(values, 0) aliases its input")
	}
}
