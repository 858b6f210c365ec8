package units

import (
	"fmt"

	"github.com/openfroyo/typesynth/pkg/catalog"
)

// ConversionCost is the cost of a synthesized conversion function.
const ConversionCost = 0.1

// UnitSource resolves the unit declared on a type. *catalog.Catalog
// satisfies it.
type UnitSource interface {
	Unit(typeName string) (string, bool)
}

// ConversionID names the synthetic function converting between two units.
func ConversionID(from, to string) string {
	return fmt.Sprintf("convert_%s_to_%s", from, to)
}

// NewConversionFunction builds a synthetic function converting fromType to
// toType through their declared units. It is never added to a catalog.
func NewConversionFunction(src UnitSource, fromType, toType string) (catalog.Function, error) {
	fromUnit, okFrom := src.Unit(fromType)
	toUnit, okTo := src.Unit(toType)
	if !okFrom || !okTo {
		return catalog.Function{}, fmt.Errorf("cannot convert %s to %s: missing unit", fromType, toType)
	}
	if _, err := Convert(1, fromUnit, toUnit); err != nil {
		return catalog.Function{}, err
	}

	factor, _ := Factor(fromUnit, toUnit)
	return catalog.Function{
		ID:         ConversionID(fromUnit, toUnit),
		Dom:        fromType,
		Cod:        toType,
		Cost:       ConversionCost,
		Confidence: 1.0,
		Impl: catalog.UnitConversion{
			From:   fromUnit,
			To:     toUnit,
			Factor: factor,
		},
	}, nil
}

// needsConversion reports whether two types declare different units.
// Types without a unit, or with a unit outside the table, never need one.
// Two known units of different dimensions are an error.
func needsConversion(src UnitSource, fromType, toType string) (bool, error) {
	fromUnit, okFrom := src.Unit(fromType)
	toUnit, okTo := src.Unit(toType)
	if !okFrom || !okTo || fromUnit == toUnit {
		return false, nil
	}
	a, okA := Lookup(fromUnit)
	b, okB := Lookup(toUnit)
	if !okA || !okB {
		return false, nil
	}
	if a.Dimension != b.Dimension {
		return false, NewDimensionMismatchError(fromUnit, toUnit, a.Dimension, b.Dimension)
	}
	return true, nil
}

// Augment returns a copy of path with conversion functions inserted at each
// boundary whose declared units differ: from srcType into the first
// function, between functions, and from the last function into goalType.
// An empty path still gets the srcType to goalType boundary. The input path
// and the catalog are left unchanged.
func Augment(src UnitSource, path catalog.Path, srcType, goalType string) (catalog.Path, error) {
	out := make(catalog.Path, 0, len(path)+2)
	current := srcType

	for _, f := range path {
		insert, err := needsConversion(src, current, f.Dom)
		if err != nil {
			return nil, fmt.Errorf("boundary %s -> %s: %w", current, f.ID, err)
		}
		if insert {
			conv, err := NewConversionFunction(src, current, f.Dom)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		out = append(out, f)
		current = f.Cod
	}

	insert, err := needsConversion(src, current, goalType)
	if err != nil {
		return nil, fmt.Errorf("boundary %s -> goal %s: %w", current, goalType, err)
	}
	if insert {
		conv, err := NewConversionFunction(src, current, goalType)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}

	return out, nil
}
