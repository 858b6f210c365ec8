package dsl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/openfroyo/typesynth/pkg/catalog"
)

// Format renders a catalog as grammar text that Parse reads back into an
// equivalent catalog.
func Format(cat *catalog.Catalog) string {
	var sb strings.Builder

	for _, t := range cat.Types() {
		sb.WriteString("type ")
		sb.WriteString(t.Name)

		entries := make([]string, 0, len(t.Attrs)+1)
		keys := make([]string, 0, len(t.Attrs))
		for k := range t.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			entries = append(entries, k+"="+quoteIfNeeded(t.Attrs[k], ",]#"))
		}
		if t.IsProduct() {
			entries = append(entries, catalog.AttrProduct+"="+strings.Join(t.Product, "|"))
		}
		if len(entries) > 0 {
			sb.WriteString(" [")
			sb.WriteString(strings.Join(entries, ", "))
			sb.WriteString("]")
		}
		sb.WriteString("\n")
	}

	for _, f := range cat.Functions() {
		sb.WriteString("\nfn ")
		sb.WriteString(f.ID)
		sb.WriteString(" {\n")
		fmt.Fprintf(&sb, "  %s: %s\n", fieldSig, f.Signature())
		if f.Impl != nil {
			fmt.Fprintf(&sb, "  %s: %s\n", fieldImpl, formatImpl(f.Impl))
		}
		fmt.Fprintf(&sb, "  %s: %s\n", fieldCost, formatFloat(f.Cost))
		fmt.Fprintf(&sb, "  %s: %s\n", fieldConfidence, formatFloat(f.Confidence))
		if f.InverseOf != "" {
			fmt.Fprintf(&sb, "  %s: %s\n", fieldInverseOf, f.InverseOf)
		}
		if f.Arity != 0 {
			fmt.Fprintf(&sb, "  %s: %d\n", fieldArity, f.Arity)
		}
		sb.WriteString("}\n")
	}

	return sb.String()
}

func formatImpl(impl catalog.Impl) string {
	switch i := impl.(type) {
	case catalog.Formula:
		return "formula(" + quoteLiteral(i.Expr) + ")"
	case catalog.Query:
		return "query(" + quoteLiteral(i.Text) + ")"
	case catalog.Call:
		return "call(" + quoteLiteral(i.Method+", "+i.URL) + ")"
	case catalog.Builtin:
		return "builtin(" + quoteLiteral(i.Name) + ")"
	case catalog.UnitConversion:
		return "convert(" + quoteLiteral(i.From+","+i.To+","+formatFloat(i.Factor)) + ")"
	case catalog.Generic:
		return i.Name + "(" + quoteLiteral(i.Value) + ")"
	default:
		return string(impl.Kind()) + "(\"\")"
	}
}

// quoteLiteral picks the quote character not used by s.
func quoteLiteral(s string) string {
	if strings.Contains(s, `"`) {
		return "'" + s + "'"
	}
	return `"` + s + `"`
}

func quoteIfNeeded(s, special string) string {
	if strings.ContainsAny(s, special) {
		return quoteLiteral(s)
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
