package catalog

import (
	"math"
	"strings"
	"testing"
)

func ghgCatalog() *Catalog {
	uses := NewFunction("usesEnergy", "Product", "Energy", Query{Text: "SELECT ?e WHERE { ?p :usesEnergy ?e }"})
	uses.Confidence = 0.9
	toFuel := NewFunction("energyToFuelEstimate", "Energy", "Fuel", Formula{Expr: "fuel = energy / energy_density / efficiency"})
	toFuel.Cost = 3
	toFuel.Confidence = 0.8
	toCO2 := NewFunction("fuelToCO2", "Fuel", "CO2", Formula{Expr: "co2 = fuel * emission_factor"})
	toCO2.Confidence = 0.98

	return New(
		[]Type{
			{Name: "Product"},
			{Name: "Energy", Attrs: map[string]string{"unit": "J", "range": ">=0"}},
			{Name: "Fuel", Attrs: map[string]string{"unit": "kg"}},
			{Name: "CO2", Attrs: map[string]string{"unit": "kg"}},
		},
		[]Function{uses, toFuel, toCO2},
	)
}

func TestCatalog_Indices(t *testing.T) {
	cat := ghgCatalog()

	if got := cat.ByCodomain("Fuel"); len(got) != 1 || got[0].ID != "energyToFuelEstimate" {
		t.Errorf("Expected energyToFuelEstimate producing Fuel, got %v", got)
	}
	if got := cat.ByDomain("Energy"); len(got) != 1 || got[0].ID != "energyToFuelEstimate" {
		t.Errorf("Expected energyToFuelEstimate consuming Energy, got %v", got)
	}
	if got := cat.ByCodomain("Product"); len(got) != 0 {
		t.Errorf("Expected nothing producing Product, got %v", got)
	}
}

func TestCatalog_DeclarationOrder(t *testing.T) {
	cat := ghgCatalog()

	var names []string
	for _, typ := range cat.Types() {
		names = append(names, typ.Name)
	}
	if strings.Join(names, ",") != "Product,Energy,Fuel,CO2" {
		t.Errorf("Unexpected type order: %v", names)
	}

	funcs := cat.Functions()
	if funcs[0].ID != "usesEnergy" || funcs[2].ID != "fuelToCO2" {
		t.Errorf("Unexpected function order: %v", funcs)
	}
}

func TestCatalog_UnitLookup(t *testing.T) {
	cat := ghgCatalog()

	if u, ok := cat.Unit("Energy"); !ok || u != "J" {
		t.Errorf("Expected unit J, got %q (%v)", u, ok)
	}
	if _, ok := cat.Unit("Product"); ok {
		t.Error("Expected no unit for Product")
	}
	if _, ok := cat.Unit("Undeclared"); ok {
		t.Error("Expected no unit for undeclared type")
	}
}

func TestCatalog_IsImmutable(t *testing.T) {
	attrs := map[string]string{"unit": "J"}
	cat := New([]Type{{Name: "Energy", Attrs: attrs}}, nil)

	attrs["unit"] = "kWh"
	if u, _ := cat.Unit("Energy"); u != "J" {
		t.Errorf("Catalog must not share caller maps, got unit %q", u)
	}

	typ, _ := cat.Type("Energy")
	typ.Attrs["unit"] = "MJ"
	if u, _ := cat.Unit("Energy"); u != "J" {
		t.Errorf("Catalog must not expose internal maps, got unit %q", u)
	}
}

func TestCatalog_ProductTypes(t *testing.T) {
	cat := New(
		[]Type{
			{Name: "Scope1"},
			{Name: "Scope2"},
			{Name: "Scope3"},
			{Name: "AllScopes", Product: []string{"Scope1", "Scope2", "Scope3"}},
			{Name: "Total"},
		},
		[]Function{
			{ID: "sumScopes", Dom: "AllScopes", Cod: "Total", Cost: 1, Confidence: 1, Impl: Builtin{Name: BuiltinSum}, Arity: 3},
			{ID: "badArity", Dom: "AllScopes", Cod: "Total", Cost: 1, Confidence: 1, Impl: Builtin{Name: BuiltinSum}, Arity: 2},
		},
	)

	if !cat.IsProductType("AllScopes") {
		t.Fatal("Expected AllScopes to be a product type")
	}
	if cat.IsProductType("Scope1") {
		t.Error("Scope1 is not a product type")
	}
	if comps := cat.ProductComponents("AllScopes"); len(comps) != 3 || comps[2] != "Scope3" {
		t.Errorf("Unexpected components: %v", comps)
	}

	good, _ := cat.Function("sumScopes")
	bad, _ := cat.Function("badArity")
	if cat.ArityMismatch(good) {
		t.Error("sumScopes arity should match")
	}
	if !cat.ArityMismatch(bad) {
		t.Error("badArity arity should mismatch")
	}
}

func TestCatalog_Validate(t *testing.T) {
	cat := New(
		[]Type{{Name: "A"}, {Name: "B"}},
		[]Function{
			{ID: "ok", Dom: "A", Cod: "B", Cost: 1, Confidence: 1, Impl: Formula{Expr: "x"}},
			{ID: "dup", Dom: "A", Cod: "B", Cost: 1, Confidence: 1, Impl: Formula{Expr: "x"}},
			{ID: "dup", Dom: "A", Cod: "B", Cost: 1, Confidence: 1, Impl: Formula{Expr: "x"}},
			{ID: "negative", Dom: "A", Cod: "B", Cost: -1, Confidence: 1, Impl: Formula{Expr: "x"}},
			{ID: "overconfident", Dom: "A", Cod: "B", Cost: 1, Confidence: 1.5, Impl: Formula{Expr: "x"}},
			{ID: "dangling", Dom: "A", Cod: "Ghost", Cost: 1, Confidence: 1, Impl: Formula{Expr: "x"}},
			{ID: "noimpl", Dom: "A", Cod: "B", Cost: 1, Confidence: 1},
		},
	)

	issues := cat.Validate()
	bySubject := make(map[string][]Issue)
	for _, issue := range issues {
		bySubject[issue.Subject] = append(bySubject[issue.Subject], issue)
	}

	if len(bySubject["ok"]) != 0 {
		t.Errorf("Expected no issues for ok, got %v", bySubject["ok"])
	}
	for _, id := range []string{"dup", "negative", "overconfident", "noimpl"} {
		found := false
		for _, issue := range bySubject[id] {
			if issue.Fatal {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected fatal issue for %s, got %v", id, bySubject[id])
		}
	}
	if len(bySubject["dangling"]) != 1 || bySubject["dangling"][0].Fatal {
		t.Errorf("Expected one non-fatal issue for dangling, got %v", bySubject["dangling"])
	}
}

func TestPath_Metrics(t *testing.T) {
	cat := ghgCatalog()
	var path Path
	for _, id := range []string{"usesEnergy", "energyToFuelEstimate", "fuelToCO2"} {
		f, ok := cat.Function(id)
		if !ok {
			t.Fatalf("Missing function %s", id)
		}
		path = append(path, f)
	}

	if path.Cost() != 5.0 {
		t.Errorf("Expected cost 5.0, got %v", path.Cost())
	}
	if math.Abs(path.Confidence()-0.7056) > 1e-9 {
		t.Errorf("Expected confidence 0.7056, got %v", path.Confidence())
	}
	if !path.Connected() {
		t.Error("Expected connected path")
	}
	if path.Source() != "Product" || path.Goal() != "CO2" {
		t.Errorf("Unexpected endpoints %s -> %s", path.Source(), path.Goal())
	}
	if path.String() != "usesEnergy ∘ energyToFuelEstimate ∘ fuelToCO2" {
		t.Errorf("Unexpected rendering %q", path.String())
	}
}

func TestPath_Empty(t *testing.T) {
	var p Path
	if p.Cost() != 0 || p.Confidence() != 1 {
		t.Errorf("Expected zero cost and unit confidence, got %v %v", p.Cost(), p.Confidence())
	}
}

func TestImplFromDetails_RoundTrip(t *testing.T) {
	impls := []Impl{
		Formula{Expr: "x * 2"},
		Query{Text: "SELECT ?x WHERE { ?s ?p ?x }"},
		Call{Method: "POST", URL: "https://api.example.org/{id}"},
		Builtin{Name: BuiltinSum},
		UnitConversion{From: "kWh", To: "J", Factor: 3.6e6},
		Generic{Name: "python", Value: "lambda x: x"},
	}

	for _, impl := range impls {
		got, err := ImplFromDetails(impl.Details())
		if err != nil {
			t.Fatalf("Expected no error for %T, got: %v", impl, err)
		}
		if got != impl {
			t.Errorf("Round trip of %#v returned %#v", impl, got)
		}
	}
}

func TestValidateImpl(t *testing.T) {
	tests := []struct {
		name    string
		impl    Impl
		wantErr bool
	}{
		{"known builtin", Builtin{Name: BuiltinProduct}, false},
		{"unknown builtin", Builtin{Name: "bogus"}, true},
		{"empty formula", Formula{}, true},
		{"call without url", Call{Method: "GET"}, true},
		{"conversion", UnitConversion{From: "kWh", To: "J", Factor: 3.6e6}, false},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImpl(tt.impl)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseSignature(t *testing.T) {
	dom, cod, err := ParseSignature("  Energy ->Fuel ")
	if err != nil || dom != "Energy" || cod != "Fuel" {
		t.Errorf("Unexpected result %q %q %v", dom, cod, err)
	}
	if _, _, err := ParseSignature("Energy"); err == nil {
		t.Error("Expected error for signature without arrow")
	}
	if _, _, err := ParseSignature("-> Fuel"); err == nil {
		t.Error("Expected error for empty domain")
	}
}
