package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/typesynth/pkg/engine"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got: %v", err)
	}
	if cfg.Search.MaxCost != engine.DefaultMaxCost || cfg.Search.MaxSteps != engine.DefaultMaxSteps {
		t.Errorf("Expected engine defaults, got %+v", cfg.Search)
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
catalog: ghg.dsl
search:
  max_cost: 5
execution:
  mock_mode: true
  params:
    emission_factor: 3.1
  timeout: 2s
store:
  enabled: true
  path: /tmp/runs.db
`))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	if cfg.Catalog != "ghg.dsl" || cfg.Search.MaxCost != 5 {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.Search.MaxSteps != engine.DefaultMaxSteps {
		t.Errorf("Expected unset max_steps to keep its default, got %d", cfg.Search.MaxSteps)
	}
	if !cfg.Execution.MockMode || cfg.Execution.Timeout != 2*time.Second {
		t.Errorf("Unexpected execution config %+v", cfg.Execution)
	}
	if cfg.Execution.Params["emission_factor"] != 3.1 {
		t.Errorf("Expected inline param, got %v", cfg.Execution.Params)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected default server address, got %s", cfg.Server.Addr)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "serach:\n  max_cost: 1\n"},
		{"negative cost", "search:\n  max_cost: -1\n"},
		{"zero steps", "search:\n  max_steps: 0\n"},
		{"bad endpoint", "execution:\n  endpoint: not a url\n"},
		{"store without path", "store:\n  enabled: true\n  path: \"\"\n"},
		{"bad log level", "telemetry:\n  logging:\n    level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestParse_ValidationCode(t *testing.T) {
	_, err := Parse([]byte("search:\n  max_steps: 0\n"))
	if engine.CodeOf(err) != engine.ErrCodeValidation {
		t.Errorf("Expected VALIDATION_ERROR, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typesynth.yaml")
	if err := os.WriteFile(path, []byte("execution:\n  concurrency: 2\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv(EnvEndpoint, "https://query.example.org/sparql")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Execution.Concurrency != 2 {
		t.Errorf("Expected concurrency 2, got %d", cfg.Execution.Concurrency)
	}
	if cfg.Execution.Endpoint != "https://query.example.org/sparql" {
		t.Errorf("Expected endpoint from environment, got %q", cfg.Execution.Endpoint)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel: "DEBUG",
		EnvStore:    "runs.db",
		EnvCatalog:  "ghg.yaml",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Expected lower-cased log level, got %s", cfg.Telemetry.Logging.Level)
	}
	if !cfg.Store.Enabled || cfg.Store.Path != "runs.db" {
		t.Errorf("Expected store enabled at runs.db, got %+v", cfg.Store)
	}
	if cfg.Catalog != "ghg.yaml" {
		t.Errorf("Expected catalog from environment, got %s", cfg.Catalog)
	}
}

func TestSearchOptions(t *testing.T) {
	cfg := Default()
	cfg.Search.MaxCost = 3
	opts := cfg.SearchOptions()
	if opts.MaxCost != 3 || opts.MaxSteps != engine.DefaultMaxSteps {
		t.Errorf("Unexpected search options %+v", opts)
	}
}
