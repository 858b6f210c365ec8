package executor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Values threaded through a path are float64, []any tuples, map[string]any
// structured results, strings or nil.

// Components returns the elements of a tuple, or a one-element slice for
// any other value.
func Components(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out
	default:
		return []any{v}
	}
}

// IsTuple reports whether v is a tuple value.
func IsTuple(v any) bool {
	switch v.(type) {
	case []any, []float64:
		return true
	default:
		return false
	}
}

// ToFloat coerces a value to a number. Numeric strings parse, and a
// structured value yields its "result" or "value" field.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case map[string]any:
		for _, key := range []string{"result", "value"} {
			if inner, ok := t[key]; ok {
				return ToFloat(inner)
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

// Normalize maps a decoded external value onto the value model: numeric
// strings become numbers and JSON numbers become float64.
func Normalize(v any) any {
	switch t := v.(type) {
	case string:
		if f, ok := ToFloat(t); ok {
			return f
		}
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}

// isZero reports values a mock query replaces with its placeholder.
func isZero(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return t == 0
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// FormatValue renders a value for logs, URLs and provenance literals.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, c := range t {
			parts[i] = FormatValue(c)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
