package config

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// maxScriptSteps bounds the work a parameter script may do.
const maxScriptSteps = 10_000_000

// StarlarkEvaluator computes runtime parameters from Starlark scripts.
// Scripts run without load(), print or file access; only the predeclared
// values are visible.
type StarlarkEvaluator struct {
	timeout time.Duration
}

// StarlarkResult is the outcome of evaluating a parameter script.
type StarlarkResult struct {
	// Params are the numeric top-level globals the script defined.
	Params map[string]float64

	// Ignored lists the non-numeric globals that were skipped.
	Ignored []string

	ExecutionTime time.Duration
}

// NewStarlarkEvaluator creates a new Starlark evaluator.
func NewStarlarkEvaluator(timeout time.Duration) *StarlarkEvaluator {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &StarlarkEvaluator{timeout: timeout}
}

// Evaluate runs script with defaults bound as the dict "defaults" and
// returns its numeric globals. Globals starting with "_" are private.
func (se *StarlarkEvaluator) Evaluate(ctx context.Context, filename, script string, defaults map[string]float64) (*StarlarkResult, error) {
	start := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name:  "typesynth-params",
		Print: func(*starlark.Thread, string) {},
		Load: func(*starlark.Thread, string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load is not allowed in parameter scripts")
		},
	}
	thread.SetMaxExecutionSteps(maxScriptSteps)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-evalCtx.Done():
			thread.Cancel(evalCtx.Err().Error())
		case <-done:
		}
	}()

	predeclared := starlark.StringDict{
		"struct":   starlark.NewBuiltin("struct", starlarkstruct.Make),
		"defaults": toStarlarkDict(defaults),
	}

	globals, err := starlark.ExecFile(thread, filename, script, predeclared)
	if err != nil {
		if evalCtx.Err() != nil {
			return nil, fmt.Errorf("parameter script %s timed out after %v: %w", filename, se.timeout, err)
		}
		return nil, fmt.Errorf("parameter script %s failed: %w", filename, err)
	}

	result := &StarlarkResult{Params: make(map[string]float64)}
	for _, name := range sortedGlobals(globals) {
		if v, ok := toFloat(globals[name]); ok {
			result.Params[name] = v
			continue
		}
		if d, ok := globals[name].(*starlark.Dict); ok && name == "params" {
			if err := mergeDict(result.Params, d); err != nil {
				return nil, fmt.Errorf("parameter script %s: %w", filename, err)
			}
			continue
		}
		result.Ignored = append(result.Ignored, name)
	}
	result.ExecutionTime = time.Since(start)

	return result, nil
}

func sortedGlobals(globals starlark.StringDict) []string {
	names := make([]string, 0, len(globals))
	for name := range globals {
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mergeDict copies a params = {...} dict into out.
func mergeDict(out map[string]float64, d *starlark.Dict) error {
	for _, item := range d.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return fmt.Errorf("params key %s is not a string", item[0])
		}
		v, ok := toFloat(item[1])
		if !ok {
			return fmt.Errorf("params[%q] is %s, not a number", string(key), item[1].Type())
		}
		out[string(key)] = v
	}
	return nil
}

func toStarlarkDict(m map[string]float64) *starlark.Dict {
	dict := starlark.NewDict(len(m))
	for k, v := range m {
		_ = dict.SetKey(starlark.String(k), starlark.Float(v))
	}
	dict.Freeze()
	return dict
}

func toFloat(v starlark.Value) (float64, bool) {
	switch val := v.(type) {
	case starlark.Float:
		return float64(val), true
	case starlark.Int:
		return starlark.AsFloat(val)
	}
	return 0, false
}
