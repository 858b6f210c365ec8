package units

import (
	"errors"
	"math"
	"testing"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/engine"
)

const tolerance = 1e-9

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestConvert_KilowattHoursToJoules(t *testing.T) {
	got, err := Convert(1, "kWh", "J")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != 3.6e6 {
		t.Errorf("Expected 3.6e6, got %v", got)
	}
}

func TestConvert_DimensionMismatch(t *testing.T) {
	_, err := Convert(1, "kg", "J")
	if err == nil {
		t.Fatal("Expected dimension mismatch error, got nil")
	}
	if !errors.Is(err, engine.ErrDimensionMismatch) {
		t.Errorf("Expected DIMENSION_MISMATCH, got: %v", err)
	}
	if !engine.IsPermanent(err) {
		t.Errorf("Expected permanent error class")
	}
}

func TestConvert_UnknownUnit(t *testing.T) {
	_, err := Convert(1, "parsec", "m")
	if engine.CodeOf(err) != engine.ErrCodeUnknownUnit {
		t.Errorf("Expected UNKNOWN_UNIT, got: %v", err)
	}
}

func TestConvert_Composition(t *testing.T) {
	byDim := make(map[Dimension][]string)
	for _, info := range Units() {
		byDim[info.Dimension] = append(byDim[info.Dimension], info.Symbol)
	}

	for dim, symbols := range byDim {
		for _, a := range symbols {
			for _, b := range symbols {
				for _, c := range symbols {
					ab, err := Convert(12.5, a, b)
					if err != nil {
						t.Fatalf("%s: %s->%s: %v", dim, a, b, err)
					}
					abc, err := Convert(ab, b, c)
					if err != nil {
						t.Fatalf("%s: %s->%s: %v", dim, b, c, err)
					}
					ac, err := Convert(12.5, a, c)
					if err != nil {
						t.Fatalf("%s: %s->%s: %v", dim, a, c, err)
					}
					if !approxEqual(abc, ac) {
						t.Errorf("%s->%s->%s = %v, direct %s->%s = %v", a, b, c, abc, a, c, ac)
					}
				}
			}
		}
	}
}

func TestConvert_CrossDimensionAlwaysFails(t *testing.T) {
	infos := Units()
	for _, a := range infos {
		for _, b := range infos {
			if a.Dimension == b.Dimension {
				continue
			}
			if _, err := Convert(1, a.Symbol, b.Symbol); err == nil {
				t.Errorf("Expected %s->%s to fail", a.Symbol, b.Symbol)
			}
		}
	}
}

func TestConvert_TemperatureRoundTrip(t *testing.T) {
	for _, c := range []float64{-40, 0, 21.5, 100, 1000} {
		k, err := Convert(c, "C", "K")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		back, err := Convert(k, "K", "C")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if math.Abs(back-c) > 1e-9 {
			t.Errorf("C->K->C of %v returned %v", c, back)
		}
	}
}

func TestConvert_TemperatureFixedPoints(t *testing.T) {
	tests := []struct {
		value    float64
		from, to string
		want     float64
	}{
		{0, "C", "K", 273.15},
		{32, "F", "C", 0},
		{100, "C", "F", 212},
		{-40, "C", "F", -40},
	}

	for _, tt := range tests {
		got, err := Convert(tt.value, tt.from, tt.to)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Convert(%v, %s, %s) = %v, want %v", tt.value, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFactor_AffineUnitsHaveNoFactor(t *testing.T) {
	if _, ok := Factor("C", "K"); ok {
		t.Error("Expected no factor for temperature")
	}
	f, ok := Factor("kWh", "MJ")
	if !ok || !approxEqual(f, 3.6) {
		t.Errorf("Expected factor 3.6, got %v (%v)", f, ok)
	}
}

func unitCatalog() *catalog.Catalog {
	return catalog.New(
		[]catalog.Type{
			{Name: "ElectricityUse", Attrs: map[string]string{"unit": "kWh"}},
			{Name: "Energy", Attrs: map[string]string{"unit": "J"}},
			{Name: "EnergyMJ", Attrs: map[string]string{"unit": "MJ"}},
			{Name: "Mass", Attrs: map[string]string{"unit": "kg"}},
			{Name: "Fuel"},
		},
		[]catalog.Function{
			catalog.NewFunction("energyToFuel", "Energy", "Fuel", catalog.Formula{Expr: "x / 42e6"}),
		},
	)
}

func TestAugment_InsertsConversionAtSource(t *testing.T) {
	cat := unitCatalog()
	f, _ := cat.Function("energyToFuel")

	got, err := Augment(cat, catalog.Path{f}, "ElectricityUse", "Fuel")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 functions, got %d", len(got))
	}

	conv := got[0]
	if conv.ID != "convert_kWh_to_J" {
		t.Errorf("Expected convert_kWh_to_J, got %s", conv.ID)
	}
	if conv.Cost != ConversionCost || conv.Confidence != 1.0 {
		t.Errorf("Unexpected metrics: cost=%v confidence=%v", conv.Cost, conv.Confidence)
	}
	uc, ok := conv.Impl.(catalog.UnitConversion)
	if !ok {
		t.Fatalf("Expected UnitConversion impl, got %T", conv.Impl)
	}
	if uc.Factor != 3.6e6 {
		t.Errorf("Expected factor 3.6e6, got %v", uc.Factor)
	}
	if _, exists := cat.Function(conv.ID); exists {
		t.Error("Conversion function must not be added to the catalog")
	}
}

func TestAugment_InsertsConversionAtGoal(t *testing.T) {
	cat := catalog.New(
		[]catalog.Type{
			{Name: "Fuel"},
			{Name: "Energy", Attrs: map[string]string{"unit": "J"}},
			{Name: "EnergyMJ", Attrs: map[string]string{"unit": "MJ"}},
		},
		[]catalog.Function{
			catalog.NewFunction("fuelToEnergy", "Fuel", "Energy", catalog.Formula{Expr: "x * energy_density"}),
		},
	)
	f, _ := cat.Function("fuelToEnergy")

	got, err := Augment(cat, catalog.Path{f}, "Fuel", "EnergyMJ")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 2 || got[1].ID != "convert_J_to_MJ" {
		t.Fatalf("Expected trailing convert_J_to_MJ, got %v", got.IDs())
	}
}

func TestAugment_NoUnitsNoChange(t *testing.T) {
	cat := unitCatalog()
	f, _ := cat.Function("energyToFuel")

	got, err := Augment(cat, catalog.Path{f}, "Energy", "Fuel")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 1 || got[0].ID != "energyToFuel" {
		t.Errorf("Expected unchanged path, got %v", got.IDs())
	}
}

func TestAugment_DimensionMismatch(t *testing.T) {
	cat := unitCatalog()
	f, _ := cat.Function("energyToFuel")

	_, err := Augment(cat, catalog.Path{f}, "Mass", "Fuel")
	if !errors.Is(err, engine.ErrDimensionMismatch) {
		t.Errorf("Expected dimension mismatch, got: %v", err)
	}
}

func TestAugment_EmptyPath(t *testing.T) {
	got, err := Augment(unitCatalog(), catalog.Path{}, "Energy", "Energy")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty path, got %v", got.IDs())
	}
}

func TestAugment_EmptyPathConvertsEndpoints(t *testing.T) {
	got, err := Augment(unitCatalog(), catalog.Path{}, "ElectricityUse", "Energy")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 function, got %d", len(got))
	}
	if got[0].ID != "convert_kWh_to_J" {
		t.Errorf("Expected convert_kWh_to_J, got %s", got[0].ID)
	}
	if got[0].Dom != "ElectricityUse" || got[0].Cod != "Energy" {
		t.Errorf("Expected ElectricityUse -> Energy, got %s", got[0].Signature())
	}
}

func TestAugment_EmptyPathDimensionMismatch(t *testing.T) {
	_, err := Augment(unitCatalog(), catalog.Path{}, "Mass", "Energy")
	if !errors.Is(err, engine.ErrDimensionMismatch) {
		t.Errorf("Expected dimension mismatch, got: %v", err)
	}
}
