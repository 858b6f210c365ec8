package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/typesynth/pkg/executor"
)

// LoadParams reads runtime parameter overrides from a file. YAML and JSON
// files hold a flat name: number mapping; .star files are Starlark scripts
// evaluated with the current defaults in scope.
func LoadParams(ctx context.Context, path string, defaults map[string]float64, timeout time.Duration) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".star":
		res, err := NewStarlarkEvaluator(timeout).Evaluate(ctx, path, string(data), defaults)
		if err != nil {
			return nil, err
		}
		return res.Params, nil
	case ".yaml", ".yml", ".json":
		params := make(map[string]float64)
		if err := yaml.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("failed to parse params file %s: %w", path, err)
		}
		return params, nil
	default:
		return nil, fmt.Errorf("unsupported params file type: %s", path)
	}
}

// Params returns the effective runtime parameters: the built-in defaults,
// then the params file, then the inline overrides.
func (c *Config) Params(ctx context.Context) (map[string]float64, error) {
	params := executor.DefaultParams()
	if c.Execution.ParamsFile != "" {
		fromFile, err := LoadParams(ctx, c.Execution.ParamsFile, params, c.Execution.ScriptTimeout)
		if err != nil {
			return nil, err
		}
		params = executor.MergeParams(params, fromFile)
	}
	return executor.MergeParams(params, c.Execution.Params), nil
}

// ExecutorOptions returns the configured execution options.
func (c *Config) ExecutorOptions(ctx context.Context) (executor.Options, error) {
	params, err := c.Params(ctx)
	if err != nil {
		return executor.Options{}, err
	}
	return executor.Options{
		MockMode: c.Execution.MockMode,
		Endpoint: c.Execution.Endpoint,
		Params:   params,
	}, nil
}
