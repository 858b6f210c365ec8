package executor

import (
	"math"
	"testing"
)

func TestFormula_Evaluates(t *testing.T) {
	vars := map[string]float64{"input": 8.57, "x": 4, "emission_factor": 2.7}

	tests := []struct {
		name string
		src  string
		want float64
	}{
		{"assignment aliases fuel", "co2 = fuel * emission_factor", 23.139},
		{"assignment aliases fuel_amount", "co2 = fuel_amount * emission_factor", 23.139},
		{"plain expression", "x * 2 + 1", 9},
		{"parentheses", "(x + 1) * 2", 10},
		{"unary minus", "-x", -4},
		{"floor division", "7 // 2", 3},
		{"modulo follows divisor sign", "-7 % 3", 2},
		{"scientific literal", "x * 42e6", 168e6},
		{"abs", "abs(-4)", 4},
		{"min", "min(3, x, 5)", 3},
		{"max", "max(1, x, 2)", 4},
		{"round half to even", "round(2.5)", 2},
		{"round digits", "round(1.2345, 2)", 1.23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Formula(tt.src, vars)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFormula_Rejects(t *testing.T) {
	vars := map[string]float64{"x": 1}

	tests := []struct {
		name string
		src  string
	}{
		{"undefined name", "y + 1"},
		{"division by zero", "x / 0"},
		{"modulo by zero", "x % 0"},
		{"disallowed function", "__import__(\"os\")"},
		{"method call", "x.real()"},
		{"attribute access", "x.real"},
		{"keyword argument", "round(x, ndigits=2)"},
		{"list literal", "[1, 2]"},
		{"string literal", "\"abc\""},
		{"conditional", "1 if x else 2"},
		{"comparison", "x < 2"},
		{"equality is not assignment", "x == 1"},
		{"lambda", "lambda: 1"},
		{"syntax error", "x +"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Formula(tt.src, vars); err == nil {
				t.Errorf("Expected error for %q", tt.src)
			}
		})
	}
}

func TestConsultedParams(t *testing.T) {
	params := DefaultParams()
	used := consultedParams("co2 = fuel * emission_factor", params)
	if len(used) != 1 || used[ParamEmissionFactor] != 2.7 {
		t.Errorf("Expected only emission_factor, got %v", used)
	}
}
