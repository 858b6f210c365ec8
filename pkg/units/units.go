// Package units converts values between units of the same physical
// dimension and inserts conversion functions into composed paths where
// adjacent types declare different units.
package units

import (
	"fmt"
	"sort"

	"github.com/openfroyo/typesynth/pkg/engine"
)

// Dimension is a physical dimension.
type Dimension string

// Supported dimensions.
const (
	Energy      Dimension = "energy"
	Mass        Dimension = "mass"
	Length      Dimension = "length"
	Volume      Dimension = "volume"
	Time        Dimension = "time"
	Temperature Dimension = "temperature"
)

// Info describes one unit: its dimension and its factor to the SI base.
// Temperature units carry factor 1 and are converted affinely.
type Info struct {
	Symbol    string    `json:"symbol"`
	Dimension Dimension `json:"dimension"`
	SIFactor  float64   `json:"si_factor"`
}

var table = map[string]Info{
	// Energy, base J.
	"J":    {"J", Energy, 1},
	"kJ":   {"kJ", Energy, 1e3},
	"MJ":   {"MJ", Energy, 1e6},
	"GJ":   {"GJ", Energy, 1e9},
	"Wh":   {"Wh", Energy, 3600},
	"kWh":  {"kWh", Energy, 3.6e6},
	"MWh":  {"MWh", Energy, 3.6e9},
	"cal":  {"cal", Energy, 4.184},
	"kcal": {"kcal", Energy, 4184},

	// Mass, base kg.
	"g":  {"g", Mass, 0.001},
	"kg": {"kg", Mass, 1},
	"t":  {"t", Mass, 1000},
	"lb": {"lb", Mass, 0.453592},
	"oz": {"oz", Mass, 0.0283495},

	// Length, base m.
	"m":  {"m", Length, 1},
	"km": {"km", Length, 1000},
	"cm": {"cm", Length, 0.01},
	"mm": {"mm", Length, 0.001},
	"ft": {"ft", Length, 0.3048},
	"in": {"in", Length, 0.0254},

	// Volume, base m3.
	"L":   {"L", Volume, 0.001},
	"mL":  {"mL", Volume, 1e-6},
	"m3":  {"m3", Volume, 1},
	"gal": {"gal", Volume, 0.00378541},

	// Time, base s.
	"s":   {"s", Time, 1},
	"min": {"min", Time, 60},
	"h":   {"h", Time, 3600},
	"day": {"day", Time, 86400},

	// Temperature, affine via K.
	"K": {"K", Temperature, 1},
	"C": {"C", Temperature, 1},
	"F": {"F", Temperature, 1},
}

// Lookup returns the table entry for a unit symbol.
func Lookup(unit string) (Info, bool) {
	info, ok := table[unit]
	return info, ok
}

// DimensionOf returns the dimension of a unit symbol.
func DimensionOf(unit string) (Dimension, bool) {
	info, ok := table[unit]
	return info.Dimension, ok
}

// Units lists every known unit, sorted by dimension then symbol.
func Units() []Info {
	out := make([]Info, 0, len(table))
	for _, info := range table {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dimension != out[j].Dimension {
			return out[i].Dimension < out[j].Dimension
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Convertible reports whether both units are known and share a dimension.
func Convertible(from, to string) bool {
	a, okA := table[from]
	b, okB := table[to]
	return okA && okB && a.Dimension == b.Dimension
}

// Convert converts value from one unit to another.
// Units of different dimensions fail with a DIMENSION_MISMATCH error and
// unknown units with UNKNOWN_UNIT.
func Convert(value float64, from, to string) (float64, error) {
	a, ok := table[from]
	if !ok {
		return 0, unknownUnit(from)
	}
	b, ok := table[to]
	if !ok {
		return 0, unknownUnit(to)
	}
	if a.Dimension != b.Dimension {
		return 0, NewDimensionMismatchError(from, to, a.Dimension, b.Dimension)
	}
	if from == to {
		return value, nil
	}
	if a.Dimension == Temperature {
		return fromKelvin(toKelvin(value, from), to), nil
	}
	return value * a.SIFactor / b.SIFactor, nil
}

// Factor returns the multiplicative factor from one unit to another, and
// false when the conversion is affine or impossible.
func Factor(from, to string) (float64, bool) {
	if !Convertible(from, to) || table[from].Dimension == Temperature {
		return 0, false
	}
	return table[from].SIFactor / table[to].SIFactor, true
}

func toKelvin(v float64, unit string) float64 {
	switch unit {
	case "C":
		return v + 273.15
	case "F":
		return (v-32)*5.0/9.0 + 273.15
	default:
		return v
	}
}

func fromKelvin(k float64, unit string) float64 {
	switch unit {
	case "C":
		return k - 273.15
	case "F":
		return (k-273.15)*9.0/5.0 + 32
	default:
		return k
	}
}

// NewDimensionMismatchError reports a conversion across dimensions.
func NewDimensionMismatchError(from, to string, a, b Dimension) *engine.Error {
	return engine.NewPermanentError(
		fmt.Sprintf("cannot convert %s (%s) to %s (%s)", from, a, to, b), nil,
	).WithCode(engine.ErrCodeDimensionMismatch).
		WithSubject(from + "->" + to).
		WithDetail("from_dimension", string(a)).
		WithDetail("to_dimension", string(b))
}

func unknownUnit(unit string) *engine.Error {
	return engine.NewPermanentError(fmt.Sprintf("unknown unit %q", unit), nil).
		WithCode(engine.ErrCodeUnknownUnit).
		WithSubject(unit)
}
