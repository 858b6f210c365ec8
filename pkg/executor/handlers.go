package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/engine"
	"github.com/openfroyo/typesynth/pkg/units"
)

// outcome is what a kind handler produces for one step.
type outcome struct {
	value      any
	confidence float64
	degraded   bool
	meta       map[string]any
	params     map[string]float64
	sources    []string
	external   string
}

// External call outcomes reported to metrics.
const (
	callOK     = "ok"
	callError  = "error"
	callDenied = "denied"
	callMocked = "mock"
	callEmpty  = "empty"
)

func (e *PathExecutor) runFormula(f catalog.Function, impl catalog.Formula, current any, opts Options) outcome {
	vars := bindFormulaVars(current, opts.Params)
	meta := map[string]any{MetaFormula: impl.Expr}
	used := consultedParams(impl.Expr, opts.Params)

	v, err := Formula(impl.Expr, vars)
	if err != nil {
		meta[MetaError] = err.Error()
		meta[MetaMock] = true
		return outcome{
			value:      formulaMock(current),
			confidence: FormulaMockConfidence,
			degraded:   true,
			meta:       meta,
			params:     used,
		}
	}
	return outcome{value: v, confidence: 1, meta: meta, params: used}
}

// bindFormulaVars binds input, value and x to the current value, or x and
// x1..xN / scope1..scopeN to the components of a tuple. Parameters are
// bound last and take precedence.
func bindFormulaVars(current any, params map[string]float64) map[string]float64 {
	vars := make(map[string]float64, len(params)+3)
	if IsTuple(current) {
		for i, c := range Components(current) {
			if v, ok := ToFloat(c); ok {
				vars[fmt.Sprintf("x%d", i+1)] = v
				vars[fmt.Sprintf("scope%d", i+1)] = v
				if i == 0 {
					vars["x"] = v
				}
			}
		}
	} else if v, ok := ToFloat(current); ok {
		vars["input"] = v
		vars["value"] = v
		vars["x"] = v
	}
	for k, v := range params {
		vars[k] = v
	}
	return vars
}

func formulaMock(current any) any {
	if IsTuple(current) {
		var total float64
		for _, c := range Components(current) {
			if v, ok := ToFloat(c); ok {
				total += v
			}
		}
		return total
	}
	if v, ok := current.(float64); ok {
		return v * FormulaMockMultiplier
	}
	return current
}

var identPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// consultedParams returns the parameters an expression names.
func consultedParams(expr string, params map[string]float64) map[string]float64 {
	used := make(map[string]float64)
	for _, name := range identPattern.FindAllString(expr, -1) {
		if v, ok := params[name]; ok {
			used[name] = v
		}
	}
	return used
}

func (e *PathExecutor) runQuery(ctx context.Context, f catalog.Function, impl catalog.Query, current any, opts Options) outcome {
	text := strings.ReplaceAll(impl.Text, "{input}", FormatValue(current))
	meta := map[string]any{MetaQuery: impl.Text}

	var sources []string
	if opts.Endpoint != "" {
		sources = []string{opts.Endpoint}
	}

	if opts.MockMode || opts.Endpoint == "" || e.queries == nil {
		return queryMock(current, meta, sources, "")
	}

	req := Request{Function: f, Kind: catalog.ImplQuery, Target: opts.Endpoint}
	if err := e.allow(ctx, req); err != nil {
		meta[MetaPolicyDenied] = err.Error()
		out := queryMock(current, meta, sources, err.Error())
		out.external = callDenied
		return out
	}

	res, err := e.queries.Query(ctx, opts.Endpoint, text)
	if err != nil {
		out := queryMock(current, meta, sources, err.Error())
		out.external = callError
		return out
	}

	meta[MetaEndpoint] = opts.Endpoint
	first, ok := res.First()
	if !ok {
		meta[MetaNoResults] = true
		return outcome{value: nil, confidence: 0, degraded: true, meta: meta, sources: sources, external: callEmpty}
	}
	meta["rows"] = len(res.Bindings)
	return outcome{value: Normalize(first), confidence: 1, meta: meta, sources: sources, external: callOK}
}

// queryMock returns the current value, or a placeholder for an empty one.
func queryMock(current any, meta map[string]any, sources []string, errMsg string) outcome {
	meta[MetaMock] = true
	if errMsg != "" {
		meta[MetaError] = errMsg
	}
	v := current
	if isZero(v) {
		v = QueryMockPlaceholder
	}
	return outcome{
		value:      v,
		confidence: QueryMockConfidence,
		degraded:   true,
		meta:       meta,
		sources:    sources,
		external:   callMocked,
	}
}

func (e *PathExecutor) runCall(ctx context.Context, f catalog.Function, impl catalog.Call, current any, opts Options) outcome {
	method := strings.ToUpper(impl.Method)
	if method == "" {
		method = catalog.DefaultCallMethod
	}
	rendered := FormatValue(current)
	url := strings.NewReplacer("{input}", rendered, "{id}", rendered).Replace(impl.URL)
	meta := map[string]any{MetaMethod: method, MetaURL: impl.URL}
	sources := []string{impl.URL}

	if opts.MockMode || e.caller == nil {
		return callMock(current, meta, sources, "")
	}

	req := Request{Function: f, Kind: catalog.ImplCall, Method: method, Target: url}
	if err := e.allow(ctx, req); err != nil {
		meta[MetaPolicyDenied] = err.Error()
		out := callMock(current, meta, sources, err.Error())
		out.external = callDenied
		return out
	}

	var body any
	switch method {
	case "GET":
	case "POST":
		body = map[string]any{"value": current}
	default:
		out := callMock(current, meta, sources, fmt.Sprintf("unsupported HTTP method: %s", method))
		out.external = callError
		return out
	}

	data, err := e.caller.Call(ctx, method, url, body)
	if err != nil {
		out := callMock(current, meta, sources, err.Error())
		out.external = callError
		return out
	}
	meta[MetaURL] = url
	return outcome{value: Normalize(data), confidence: 1, meta: meta, sources: sources, external: callOK}
}

// callMock wraps a placeholder result as a structured value.
func callMock(current any, meta map[string]any, sources []string, errMsg string) outcome {
	meta[MetaMock] = true
	if errMsg != "" {
		meta[MetaError] = errMsg
	}
	result := current
	if v, ok := current.(float64); ok {
		result = v * CallMockMultiplier
	}
	return outcome{
		value:      map[string]any{"result": result},
		confidence: CallMockConfidence,
		degraded:   true,
		meta:       meta,
		sources:    sources,
		external:   callMocked,
	}
}

// runBuiltin applies a builtin to the components of the current value.
// Arity and type errors are returned, not mocked.
func runBuiltin(impl catalog.Builtin, current any) (outcome, error) {
	inputs := Components(current)
	meta := map[string]any{MetaBuiltin: impl.Name}

	switch impl.Name {
	case catalog.BuiltinProduct:
		tuple := append([]any(nil), inputs...)
		meta["components"] = len(tuple)
		return outcome{value: tuple, confidence: 1, meta: meta}, nil

	case catalog.BuiltinSum:
		var total float64
		for i, in := range inputs {
			v, ok := ToFloat(in)
			if !ok {
				return outcome{}, engine.NewPermanentError(
					fmt.Sprintf("sum operand %d is not numeric: %s", i, FormatValue(in)), nil,
				).WithCode(engine.ErrCodeArgument).WithSubject(impl.Name)
			}
			total += v
		}
		meta["operands"] = len(inputs)
		return outcome{value: total, confidence: 1, meta: meta}, nil

	case catalog.BuiltinIdentity:
		if len(inputs) != 1 {
			return outcome{}, engine.NewArgumentError(impl.Name, 1, len(inputs))
		}
		return outcome{value: inputs[0], confidence: 1, meta: meta}, nil

	default:
		return outcome{}, engine.NewPermanentError(fmt.Sprintf("unknown builtin %q", impl.Name), nil).
			WithCode(engine.ErrCodeValidation).
			WithSubject(impl.Name)
	}
}

// runConversion converts a number, or each component of a tuple.
func runConversion(impl catalog.UnitConversion, current any) (outcome, error) {
	meta := map[string]any{MetaConversion: impl.From + "->" + impl.To}

	convert := func(in any) (any, bool, error) {
		v, ok := ToFloat(in)
		if !ok {
			return in, false, nil
		}
		out, err := units.Convert(v, impl.From, impl.To)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}

	if IsTuple(current) {
		comps := Components(current)
		out := make([]any, len(comps))
		for i, c := range comps {
			v, ok, err := convert(c)
			if err != nil {
				return outcome{}, err
			}
			if !ok {
				return conversionPassthrough(current, meta, c), nil
			}
			out[i] = v
		}
		return outcome{value: out, confidence: 1, meta: meta}, nil
	}

	v, ok, err := convert(current)
	if err != nil {
		return outcome{}, err
	}
	if !ok {
		return conversionPassthrough(current, meta, current), nil
	}
	return outcome{value: v, confidence: 1, meta: meta}, nil
}

func conversionPassthrough(current any, meta map[string]any, bad any) outcome {
	meta[MetaError] = fmt.Sprintf("cannot convert non-numeric value %s", FormatValue(bad))
	meta[MetaPassthrough] = true
	return outcome{value: current, confidence: PassthroughConfidence, degraded: true, meta: meta}
}

// passthrough handles descriptor kinds the executor does not interpret.
func passthrough(kind string, current any) outcome {
	return outcome{
		value:      current,
		confidence: PassthroughConfidence,
		degraded:   true,
		meta:       map[string]any{"impl_kind": kind, MetaPassthrough: true},
	}
}
