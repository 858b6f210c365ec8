package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/typesynth/pkg/executor"
)

func writeParams(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write params file: %v", err)
	}
	return path
}

func TestStarlarkEvaluator_Evaluate(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		expected map[string]float64
		ignored  []string
	}{
		{
			name:     "numeric globals",
			script:   "emission_factor = 3.1\nmultiplier = 2",
			expected: map[string]float64{"emission_factor": 3.1, "multiplier": 2},
		},
		{
			name:     "reads defaults",
			script:   `efficiency = defaults["efficiency"] * 2`,
			expected: map[string]float64{"efficiency": 0.7},
		},
		{
			name:     "params dict",
			script:   `params = {"energy_density": 4.4e7, "efficiency": 1}`,
			expected: map[string]float64{"energy_density": 4.4e7, "efficiency": 1},
		},
		{
			name: "functions and private globals",
			script: `
def scaled(v):
    return v * 10

_base = 2
emission_factor = scaled(_base)
label = "ghg"
`,
			expected: map[string]float64{"emission_factor": 20},
			ignored:  []string{"label", "scaled"},
		},
	}

	evaluator := NewStarlarkEvaluator(time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := evaluator.Evaluate(context.Background(), "params.star", tt.script, executor.DefaultParams())
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if len(res.Params) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, res.Params)
			}
			for k, v := range tt.expected {
				if got := res.Params[k]; got < v-1e-9 || got > v+1e-9 {
					t.Errorf("Expected %s = %v, got %v", k, v, got)
				}
			}
			if strings.Join(res.Ignored, ",") != strings.Join(tt.ignored, ",") {
				t.Errorf("Expected ignored %v, got %v", tt.ignored, res.Ignored)
			}
		})
	}
}

func TestStarlarkEvaluator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"syntax error", "x = ("},
		{"load is not allowed", `load("other.star", "x")`},
		{"defaults are frozen", `defaults["efficiency"] = 1`},
		{"non-numeric params entry", `params = {"efficiency": "high"}`},
		{"runtime error", "x = 1 / 0"},
	}

	evaluator := NewStarlarkEvaluator(time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := evaluator.Evaluate(context.Background(), "params.star", tt.script, executor.DefaultParams()); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestStarlarkEvaluator_Timeout(t *testing.T) {
	evaluator := NewStarlarkEvaluator(100 * time.Millisecond)

	script := `
def spin():
    total = 0
    for i in range(100000000):
        total = total + i
    return total

efficiency = spin()
`
	_, err := evaluator.Evaluate(context.Background(), "params.star", script, nil)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
}

func TestLoadParams(t *testing.T) {
	defaults := executor.DefaultParams()

	yamlPath := writeParams(t, "params.yaml", "emission_factor: 3.1\nefficiency: 0.4\n")
	params, err := LoadParams(context.Background(), yamlPath, defaults, time.Second)
	if err != nil {
		t.Fatalf("Failed to load YAML params: %v", err)
	}
	if params["emission_factor"] != 3.1 || params["efficiency"] != 0.4 {
		t.Errorf("Unexpected params %v", params)
	}

	jsonPath := writeParams(t, "params.json", `{"energy_density": 4.2e7}`)
	params, err = LoadParams(context.Background(), jsonPath, defaults, time.Second)
	if err != nil {
		t.Fatalf("Failed to load JSON params: %v", err)
	}
	if params["energy_density"] != 4.2e7 {
		t.Errorf("Unexpected params %v", params)
	}

	if _, err := LoadParams(context.Background(), writeParams(t, "params.toml", "x = 1"), defaults, time.Second); err == nil {
		t.Error("Expected error for unsupported file type")
	}
	if _, err := LoadParams(context.Background(), writeParams(t, "bad.yaml", "efficiency: high\n"), defaults, time.Second); err == nil {
		t.Error("Expected error for non-numeric value")
	}
}

func TestConfig_Params(t *testing.T) {
	cfg := Default()
	cfg.Execution.ParamsFile = writeParams(t, "params.star", `efficiency = defaults["efficiency"] + 0.05
emission_factor = 3.0`)
	cfg.Execution.Params = map[string]float64{"emission_factor": 2.9}

	opts, err := cfg.ExecutorOptions(context.Background())
	if err != nil {
		t.Fatalf("Failed to build options: %v", err)
	}

	if got := opts.Params["efficiency"]; got < 0.3999 || got > 0.4001 {
		t.Errorf("Expected efficiency from script, got %v", got)
	}
	if opts.Params["emission_factor"] != 2.9 {
		t.Errorf("Expected inline params to win, got %v", opts.Params["emission_factor"])
	}
	if opts.Params["energy_density"] != 42e6 {
		t.Errorf("Expected built-in default, got %v", opts.Params["energy_density"])
	}
}
