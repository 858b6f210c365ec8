package catalog

import (
	"fmt"
	"strconv"
)

// ImplKind identifies the variant of an implementation descriptor.
type ImplKind string

const (
	// ImplFormula evaluates an arithmetic expression.
	ImplFormula ImplKind = "formula"

	// ImplQuery runs a query against a configured data source.
	ImplQuery ImplKind = "query"

	// ImplCall invokes an HTTP endpoint.
	ImplCall ImplKind = "call"

	// ImplBuiltin runs a named built-in operation.
	ImplBuiltin ImplKind = "builtin"

	// ImplUnitConversion converts between units of one dimension.
	ImplUnitConversion ImplKind = "unit_conversion"
)

// Names of the built-in operations.
const (
	BuiltinProduct  = "product"
	BuiltinSum      = "sum"
	BuiltinIdentity = "identity"
)

// DefaultCallMethod is used when a call literal carries only a URL.
const DefaultCallMethod = "GET"

// Impl is the closed set of implementation descriptors.
// Only the types in this package implement it.
type Impl interface {
	// Kind returns the variant tag.
	Kind() ImplKind

	// Details returns the descriptor fields as a flat map for recording.
	Details() map[string]string

	isImpl()
}

// Formula is an arithmetic expression over the current value and parameters.
type Formula struct {
	Expr string `validate:"required"`
}

// Query is endpoint-agnostic query text.
type Query struct {
	Text string `validate:"required"`
}

// Call is an HTTP request template. URL may contain {input} and {id}.
type Call struct {
	Method string `validate:"required"`
	URL    string `validate:"required"`
}

// Builtin names one of the built-in operations.
type Builtin struct {
	Name string `validate:"required,oneof=product sum identity"`
}

// UnitConversion converts From to To. Factor is fromSI/toSI, or 0 for affine scales.
type UnitConversion struct {
	From   string `validate:"required"`
	To     string `validate:"required"`
	Factor float64
}

// Generic keeps an implementation kind this package does not know about.
type Generic struct {
	Name  string `validate:"required"`
	Value string
}

func (Formula) Kind() ImplKind        { return ImplFormula }
func (Query) Kind() ImplKind          { return ImplQuery }
func (Call) Kind() ImplKind           { return ImplCall }
func (Builtin) Kind() ImplKind        { return ImplBuiltin }
func (UnitConversion) Kind() ImplKind { return ImplUnitConversion }
func (g Generic) Kind() ImplKind      { return ImplKind(g.Name) }

func (i Formula) Details() map[string]string {
	return map[string]string{"kind": string(ImplFormula), "expr": i.Expr}
}

func (i Query) Details() map[string]string {
	return map[string]string{"kind": string(ImplQuery), "query": i.Text}
}

func (i Call) Details() map[string]string {
	return map[string]string{"kind": string(ImplCall), "method": i.Method, "url": i.URL}
}

func (i Builtin) Details() map[string]string {
	return map[string]string{"kind": string(ImplBuiltin), "name": i.Name}
}

func (i UnitConversion) Details() map[string]string {
	return map[string]string{
		"kind":   string(ImplUnitConversion),
		"from":   i.From,
		"to":     i.To,
		"factor": strconv.FormatFloat(i.Factor, 'g', -1, 64),
	}
}

func (i Generic) Details() map[string]string {
	return map[string]string{"kind": i.Name, "value": i.Value}
}

func (Formula) isImpl()        {}
func (Query) isImpl()          {}
func (Call) isImpl()           {}
func (Builtin) isImpl()        {}
func (UnitConversion) isImpl() {}
func (Generic) isImpl()        {}

// ImplFromDetails rebuilds a descriptor from the map produced by Details.
func ImplFromDetails(d map[string]string) (Impl, error) {
	switch ImplKind(d["kind"]) {
	case ImplFormula:
		return Formula{Expr: d["expr"]}, nil
	case ImplQuery:
		return Query{Text: d["query"]}, nil
	case ImplCall:
		method := d["method"]
		if method == "" {
			method = DefaultCallMethod
		}
		return Call{Method: method, URL: d["url"]}, nil
	case ImplBuiltin:
		return Builtin{Name: d["name"]}, nil
	case ImplUnitConversion:
		var factor float64
		if s := d["factor"]; s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid conversion factor %q: %w", s, err)
			}
			factor = f
		}
		return UnitConversion{From: d["from"], To: d["to"], Factor: factor}, nil
	case "":
		return nil, fmt.Errorf("implementation kind is empty")
	default:
		return Generic{Name: d["kind"], Value: d["value"]}, nil
	}
}
