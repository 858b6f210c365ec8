package executor

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"go.starlark.net/syntax"
)

// Expressions are parsed with the Starlark grammar and evaluated by walking
// only arithmetic nodes. Anything else is rejected before evaluation.

// formulaFuncs is the allow-list of callable names.
var formulaFuncs = map[string]func(args []float64) (float64, error){
	"abs": func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("abs takes 1 argument, got %d", len(args))
		}
		return math.Abs(args[0]), nil
	},
	"min": func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("min needs at least 1 argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			m = math.Min(m, a)
		}
		return m, nil
	},
	"max": func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("max needs at least 1 argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			m = math.Max(m, a)
		}
		return m, nil
	},
	"round": func(args []float64) (float64, error) {
		switch len(args) {
		case 1:
			return math.RoundToEven(args[0]), nil
		case 2:
			scale := math.Pow(10, math.Trunc(args[1]))
			return math.RoundToEven(args[0]*scale) / scale, nil
		default:
			return 0, fmt.Errorf("round takes 1 or 2 arguments, got %d", len(args))
		}
	},
}

// inputAliases are names in assignment-form formulas that refer to the
// current value.
var inputAliases = regexp.MustCompile(`\b(fuel_amount|energy|fuel)\b`)

// Formula evaluates a formula against variable bindings. The form
// "name = expr" evaluates expr only, with fuel_amount, energy and fuel
// standing for the current value.
func Formula(src string, vars map[string]float64) (float64, error) {
	expr := src
	if lhs, rhs, ok := strings.Cut(src, "="); ok && !strings.ContainsAny(lhs, "<>!") && !strings.HasPrefix(rhs, "=") {
		expr = inputAliases.ReplaceAllString(strings.TrimSpace(rhs), "input")
	}
	return EvalExpr(expr, vars)
}

// EvalExpr evaluates an arithmetic expression over +, -, *, /, //, %,
// parentheses, numeric literals, bound names and abs/min/max/round.
func EvalExpr(src string, vars map[string]float64) (float64, error) {
	node, err := syntax.ParseExpr("formula", src, 0)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", src, err)
	}
	return eval(node, vars)
}

func eval(node syntax.Expr, vars map[string]float64) (float64, error) {
	switch n := node.(type) {
	case *syntax.Literal:
		switch v := n.Value.(type) {
		case int64:
			return float64(v), nil
		case *big.Int:
			f, _ := new(big.Float).SetInt(v).Float64()
			return f, nil
		case float64:
			return v, nil
		default:
			return 0, fmt.Errorf("unsupported literal %s", n.Raw)
		}

	case *syntax.Ident:
		v, ok := vars[n.Name]
		if !ok {
			return 0, fmt.Errorf("undefined name %q", n.Name)
		}
		return v, nil

	case *syntax.ParenExpr:
		return eval(n.X, vars)

	case *syntax.UnaryExpr:
		x, err := eval(n.X, vars)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case syntax.MINUS:
			return -x, nil
		case syntax.PLUS:
			return x, nil
		default:
			return 0, fmt.Errorf("unsupported operator %s", n.Op)
		}

	case *syntax.BinaryExpr:
		x, err := eval(n.X, vars)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y, vars)
		if err != nil {
			return 0, err
		}
		return binary(n.Op, x, y)

	case *syntax.CallExpr:
		ident, ok := n.Fn.(*syntax.Ident)
		if !ok {
			return 0, fmt.Errorf("only named functions may be called")
		}
		fn, ok := formulaFuncs[ident.Name]
		if !ok {
			return 0, fmt.Errorf("function %q is not allowed", ident.Name)
		}
		args := make([]float64, 0, len(n.Args))
		for _, a := range n.Args {
			if kw, ok := a.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
				return 0, fmt.Errorf("keyword arguments are not supported")
			}
			v, err := eval(a, vars)
			if err != nil {
				return 0, err
			}
			args = append(args, v)
		}
		return fn(args)

	default:
		return 0, fmt.Errorf("unsupported expression %T", node)
	}
}

func binary(op syntax.Token, x, y float64) (float64, error) {
	switch op {
	case syntax.PLUS:
		return x + y, nil
	case syntax.MINUS:
		return x - y, nil
	case syntax.STAR:
		return x * y, nil
	case syntax.SLASH:
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return x / y, nil
	case syntax.SLASHSLASH:
		if y == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return math.Floor(x / y), nil
	case syntax.PERCENT:
		if y == 0 {
			return 0, fmt.Errorf("modulo by zero")
		}
		return x - y*math.Floor(x/y), nil
	default:
		return 0, fmt.Errorf("unsupported operator %s", op)
	}
}
