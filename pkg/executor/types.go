// Package executor runs a composed path against a concrete value. Each
// function's implementation descriptor is interpreted in order, the result of
// one step feeding the next, and every step is recorded for provenance.
//
// External failures never abort a path: queries, calls and malformed formulas
// fall back to mock values with reduced confidence and an annotation in the
// step metadata. Only catalog inconsistencies, such as a builtin receiving
// the wrong number of inputs, are returned as errors.
package executor

import (
	"context"
	"sort"
	"time"

	"github.com/openfroyo/typesynth/pkg/catalog"
)

// Default runtime parameters.
const (
	ParamEmissionFactor = "emission_factor"
	ParamEnergyDensity  = "energy_density"
	ParamEfficiency     = "efficiency"
)

// DefaultParams returns the parameter set used when a caller supplies none:
// kg CO2 per kg fuel, J per kg fuel and conversion efficiency.
func DefaultParams() map[string]float64 {
	return map[string]float64{
		ParamEmissionFactor: 2.7,
		ParamEnergyDensity:  42e6,
		ParamEfficiency:     0.35,
	}
}

// MergeParams overlays overrides on base without modifying either.
func MergeParams(base, overrides map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Mock confidences and placeholders.
const (
	FormulaMockConfidence = 0.5
	QueryMockConfidence   = 0.7
	CallMockConfidence    = 0.6
	PassthroughConfidence = 0.5
	QueryMockPlaceholder  = 100.0
	FormulaMockMultiplier = 1.5
	CallMockMultiplier    = 1.2
)

// Metadata keys recorded on steps.
const (
	MetaMock         = "mock"
	MetaError        = "error"
	MetaNoResults    = "no_results"
	MetaPassthrough  = "passthrough"
	MetaPolicyDenied = "policy_denied"
	MetaQuery        = "query"
	MetaEndpoint     = "endpoint"
	MetaMethod       = "method"
	MetaURL          = "url"
	MetaFormula      = "formula"
	MetaBuiltin      = "builtin"
	MetaConversion   = "conversion"
)

// Options configures one execution.
type Options struct {
	// MockMode disables every external query and call.
	MockMode bool `json:"mock_mode" yaml:"mock_mode"`

	// Endpoint is the query endpoint. Without one, queries are mocked.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Params are the runtime parameters bound by name in formulas.
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// Step records one function execution. Steps are immutable once returned.
type Step struct {
	ID          string             `json:"id"`
	Index       int                `json:"index"`
	FunctionID  string             `json:"function_id"`
	Signature   string             `json:"signature"`
	ImplKind    string             `json:"impl_kind"`
	ImplDetails map[string]string  `json:"impl_details,omitempty"`
	Cost        float64            `json:"cost"`
	Input       any                `json:"input"`
	Output      any                `json:"output"`
	Confidence  float64            `json:"confidence"`
	Degraded    bool               `json:"degraded"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	Params      map[string]float64 `json:"parameters_used,omitempty"`
	DataSources []string           `json:"data_sources,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	EndedAt     time.Time          `json:"ended_at"`

	// FunctionConfidence is the catalog confidence of the function.
	FunctionConfidence float64 `json:"function_confidence"`
}

// Result is the outcome of executing a path.
type Result struct {
	ExecutionID string        `json:"execution_id"`
	Input       any           `json:"input"`
	Value       any           `json:"value"`
	Steps       []Step        `json:"steps"`
	Confidence  float64       `json:"confidence"`
	Degraded    bool          `json:"degraded"`
	Duration    time.Duration `json:"duration"`
}

// QueryResult is a table of variable bindings in the order the endpoint
// declared its variables.
type QueryResult struct {
	Vars     []string            `json:"vars"`
	Bindings []map[string]string `json:"bindings"`
}

// First returns the first binding's first variable.
func (r *QueryResult) First() (string, bool) {
	if r == nil || len(r.Bindings) == 0 {
		return "", false
	}
	row := r.Bindings[0]
	vars := r.Vars
	if len(vars) == 0 {
		for k := range row {
			vars = append(vars, k)
		}
		sort.Strings(vars)
	}
	for _, v := range vars {
		if val, ok := row[v]; ok {
			return val, true
		}
	}
	return "", false
}

// QueryRunner answers query text against an endpoint.
type QueryRunner interface {
	Query(ctx context.Context, endpoint, query string) (*QueryResult, error)
}

// Caller performs an HTTP-style request and returns the decoded body.
type Caller interface {
	Call(ctx context.Context, method, url string, body any) (any, error)
}

// Request describes an external access about to be made.
type Request struct {
	Function catalog.Function `json:"function"`
	Kind     catalog.ImplKind `json:"kind"`
	Method   string           `json:"method,omitempty"`
	Target   string           `json:"target"`
}

// Guard approves external accesses. A non-nil error denies the access and
// the step falls back to its mock result.
type Guard interface {
	Allow(ctx context.Context, req Request) error
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx context.Context, req Request) error

// Allow implements Guard.
func (f GuardFunc) Allow(ctx context.Context, req Request) error {
	return f(ctx, req)
}
