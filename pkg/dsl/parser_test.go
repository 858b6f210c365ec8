package dsl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/engine"
)

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestParse_Basic(t *testing.T) {
	src := `
# test catalog
type A
type B [unit=kg]
type C [unit=m, range=>0]

fn f1 {
  sig: A -> B
  impl: formula("b = a * 2")
  cost: 1
  confidence: 0.9
}

fn f2 {
  sig: B -> C
  impl: sparql("SELECT ?b ?c WHERE { ?b :prop ?c }")
  cost: 2
  confidence: 0.95
}
`
	cat, err := Parse(src)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	types := cat.Types()
	if len(types) != 3 {
		t.Fatalf("Expected 3 types, got %d", len(types))
	}
	if unit, _ := cat.Unit("B"); unit != "kg" {
		t.Errorf("Expected unit kg, got %q", unit)
	}
	c, _ := cat.Type("C")
	if c.Attrs["range"] != ">0" {
		t.Errorf("Expected range >0, got %q", c.Attrs["range"])
	}

	f1, ok := cat.Function("f1")
	if !ok {
		t.Fatal("Expected function f1")
	}
	if f1.Signature() != "A -> B" || f1.Cost != 1 || f1.Confidence != 0.9 {
		t.Errorf("Unexpected f1: %+v", f1)
	}
	if f1.Impl != (catalog.Formula{Expr: "b = a * 2"}) {
		t.Errorf("Unexpected f1 impl: %#v", f1.Impl)
	}

	f2, _ := cat.Function("f2")
	if f2.Impl != (catalog.Query{Text: "SELECT ?b ?c WHERE { ?b :prop ?c }"}) {
		t.Errorf("Expected braces inside the literal to be kept verbatim, got %#v", f2.Impl)
	}
}

func TestParse_Testdata(t *testing.T) {
	cat, err := Parse(readTestdata(t, "ghg.dsl"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(cat.Types()) != 10 {
		t.Errorf("Expected 10 types, got %d", len(cat.Types()))
	}
	if len(cat.Functions()) != 5 {
		t.Errorf("Expected 5 functions, got %d", len(cat.Functions()))
	}

	fuel, _ := cat.Type("Fuel")
	if fuel.Attrs["doc"] != "diesel equivalent" {
		t.Errorf("Expected quoted attribute value to be unquoted, got %q", fuel.Attrs["doc"])
	}

	if !cat.IsProductType("AllScopes") {
		t.Error("Expected AllScopes to be a product type")
	}
	if comps := cat.ProductComponents("AllScopes"); strings.Join(comps, ",") != "Scope1,Scope2,Scope3" {
		t.Errorf("Unexpected components: %v", comps)
	}

	co2, _ := cat.Function("fuelToCO2")
	if co2.Cost != 1 || co2.Confidence != 0.98 {
		t.Errorf("Expected semicolon-separated fields to parse, got %+v", co2)
	}

	sum, _ := cat.Function("scopeTotal")
	if sum.Arity != 3 || sum.Cost != catalog.DefaultCost || sum.Confidence != catalog.DefaultConfidence {
		t.Errorf("Unexpected scopeTotal: %+v", sum)
	}

	reg, _ := cat.Function("co2Registry")
	call, ok := reg.Impl.(catalog.Call)
	if !ok {
		t.Fatalf("Expected Call impl, got %T", reg.Impl)
	}
	if call.Method != "POST" || call.URL != "https://registry.example.org/co2/{id}?value={input}" {
		t.Errorf("Unexpected call: %+v", call)
	}
	if reg.InverseOf != "totalToCO2" {
		t.Errorf("Expected inverse_of totalToCO2, got %q", reg.InverseOf)
	}
}

func TestParse_ImplKinds(t *testing.T) {
	tests := []struct {
		name string
		impl string
		want catalog.Impl
	}{
		{"formula", `formula("x * 2")`, catalog.Formula{Expr: "x * 2"}},
		{"single quotes", `formula('x * "2"')`, catalog.Formula{Expr: `x * "2"`}},
		{"query", `query("ASK {}")`, catalog.Query{Text: "ASK {}"}},
		{"rest with method", `rest("POST, https://api/x")`, catalog.Call{Method: "POST", URL: "https://api/x"}},
		{"rest two literals", `call("get", "https://api/x")`, catalog.Call{Method: "GET", URL: "https://api/x"}},
		{"http url only", `http("https://api/x")`, catalog.Call{Method: catalog.DefaultCallMethod, URL: "https://api/x"}},
		{"builtin", `builtin("sum")`, catalog.Builtin{Name: "sum"}},
		{"convert", `convert("kWh,J,3.6e6")`, catalog.UnitConversion{From: "kWh", To: "J", Factor: 3.6e6}},
		{"generic", `lookup("emission_factors.csv")`, catalog.Generic{Name: "lookup", Value: "emission_factors.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := Parse("fn f { sig: A -> B; impl: " + tt.impl + " }")
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			f, ok := cat.Function("f")
			if !ok {
				t.Fatal("Expected function f")
			}
			if f.Impl != tt.want {
				t.Errorf("Expected %#v, got %#v", tt.want, f.Impl)
			}
		})
	}
}

func TestParse_MissingSigDropsFunction(t *testing.T) {
	cat, err := Parse(`
fn keep { sig: A -> B }
fn drop { impl: formula("x"); cost: 2 }
`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(cat.Functions()) != 1 {
		t.Fatalf("Expected 1 function, got %d", len(cat.Functions()))
	}
	if _, ok := cat.Function("drop"); ok {
		t.Error("Expected function without sig to be dropped")
	}
}

func TestParse_UnknownFieldsIgnored(t *testing.T) {
	cat, err := Parse(`fn f {
  sig: A -> B
  owner: emissions-team
  cost: 2
}`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	f, _ := cat.Function("f")
	if f.Cost != 2 {
		t.Errorf("Expected cost 2, got %v", f.Cost)
	}
}

func TestParse_CommentsOutsideStrings(t *testing.T) {
	cat, err := Parse(`
type A # trailing comment
fn f {
  sig: A -> B # another
  impl: query("SELECT ?x WHERE { ?s <http://x.org/#p> ?x }")
}
`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	f, _ := cat.Function("f")
	q, ok := f.Impl.(catalog.Query)
	if !ok || !strings.Contains(q.Text, "#p>") {
		t.Errorf("Expected '#' inside a literal to survive, got %#v", f.Impl)
	}
}

func TestParse_MultiLineLiteral(t *testing.T) {
	cat, err := Parse("type A\ntype B\nfn f {\n  sig: A -> B\n" +
		"  impl: sparql(\"SELECT ?e\n    WHERE { ?p <http://www.w3.org/ns/prov#used> ?e }\")\n" +
		"  cost: 2\n}\n")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	f, ok := cat.Function("f")
	if !ok {
		t.Fatal("Expected function f")
	}
	q, ok := f.Impl.(catalog.Query)
	if !ok || !strings.Contains(q.Text, "prov#used> ?e }") {
		t.Errorf("Expected '#' on a continuation line to stay in the literal, got %#v", f.Impl)
	}
	if f.Cost != 2 {
		t.Errorf("Expected cost 2, got %v", f.Cost)
	}
}

func TestParse_EscapedQuote(t *testing.T) {
	cat, err := Parse(`fn f { sig: A -> B; impl: formula("x \" } y") }`)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	f, _ := cat.Function("f")
	if f.Impl != (catalog.Formula{Expr: `x \" } y`}) {
		t.Errorf("Unexpected impl: %#v", f.Impl)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		subject string
	}{
		{"bad cost", `fn costly { sig: A -> B; cost: cheap }`, "fn costly"},
		{"bad confidence", `fn unsure { sig: A -> B; confidence: high }`, "fn unsure"},
		{"bad arity", `fn agg { sig: A -> B; arity: three }`, "fn agg"},
		{"bad sig", `fn nosig { sig: A B }`, "fn nosig"},
		{"bad impl", `fn broken { sig: A -> B; impl: formula }`, "fn broken"},
		{"bad convert", `fn conv { sig: A -> B; impl: convert("kWh,J") }`, "fn conv"},
		{"unknown builtin", `fn b { sig: A -> B; impl: builtin("bogus") }`, "fn b"},
		{"empty formula", `fn e { sig: A -> B; impl: formula("") }`, "fn e"},
		{"empty query", `fn q { sig: A -> B; impl: sparql('') }`, "fn q"},
		{"unterminated body", "fn open {\n sig: A -> B\n", "fn open"},
		{"unterminated attrs", "type T [unit=kg", "type T"},
		{"unknown declaration", "struct S", "struct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, engine.ErrParse) {
				t.Errorf("Expected parse error, got: %v", err)
			}
			var perr *engine.Error
			if errors.As(err, &perr) && perr.Subject != tt.subject {
				t.Errorf("Expected subject %q, got %q", tt.subject, perr.Subject)
			}
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	orig, err := Parse(readTestdata(t, "ghg.dsl"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	again, err := Parse(Format(orig))
	if err != nil {
		t.Fatalf("Failed to re-parse formatted catalog: %v", err)
	}
	assertEquivalent(t, orig, again)
}
