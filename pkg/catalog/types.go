// Package catalog holds the in-memory model of typed conversion functions:
// named types with attribute metadata, the functions ("arrows") between them,
// and the read-only catalog that indexes both for search.
package catalog

import (
	"fmt"
	"strings"
)

// Default metric values applied when a declaration omits them.
const (
	DefaultCost       = 1.0
	DefaultConfidence = 1.0
)

// Well-known type attribute keys.
const (
	AttrUnit    = "unit"
	AttrRange   = "range"
	AttrDoc     = "doc"
	AttrProduct = "product"
)

// Type is a named classification carrying free-form string attributes.
type Type struct {
	// Name uniquely identifies the type within a catalog.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Attrs holds attribute metadata such as unit or range.
	Attrs map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`

	// Product lists the component types when this type bundles several values.
	Product []string `json:"product,omitempty" yaml:"product,omitempty" validate:"omitempty,min=2,dive,required"`
}

// Unit returns the unit attribute of the type, if any.
func (t Type) Unit() (string, bool) {
	u, ok := t.Attrs[AttrUnit]
	if !ok || u == "" {
		return "", false
	}
	return u, true
}

// IsProduct reports whether the type is a product of component types.
func (t Type) IsProduct() bool {
	return len(t.Product) > 0
}

// Function is a typed, costed conversion from one type to another.
type Function struct {
	// ID uniquely identifies the function within a catalog.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Dom is the domain type name.
	Dom string `json:"dom" yaml:"dom" validate:"required"`

	// Cod is the codomain type name.
	Cod string `json:"cod" yaml:"cod" validate:"required"`

	// Cost is accumulated additively along a path. Lower is better.
	Cost float64 `json:"cost" yaml:"cost" validate:"gte=0"`

	// Confidence is the probability that the conversion is correct.
	Confidence float64 `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`

	// Impl describes how the function is executed.
	Impl Impl `json:"-" yaml:"-" validate:"-"`

	// InverseOf names the function this one reverses. Informational only.
	InverseOf string `json:"inverse_of,omitempty" yaml:"inverse_of,omitempty"`

	// Arity is the number of input components consumed, 0 when unspecified.
	Arity int `json:"arity,omitempty" yaml:"arity,omitempty" validate:"gte=0"`
}

// NewFunction creates a function with default cost and confidence.
func NewFunction(id, dom, cod string, impl Impl) Function {
	return Function{
		ID:         id,
		Dom:        dom,
		Cod:        cod,
		Cost:       DefaultCost,
		Confidence: DefaultConfidence,
		Impl:       impl,
	}
}

// Signature renders the function type as "Dom -> Cod".
func (f Function) Signature() string {
	return f.Dom + " -> " + f.Cod
}

// String implements fmt.Stringer.
func (f Function) String() string {
	return fmt.Sprintf("%s: %s", f.ID, f.Signature())
}

// ParseSignature splits "A -> B" into its domain and codomain.
func ParseSignature(sig string) (dom, cod string, err error) {
	parts := strings.SplitN(sig, "->", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("signature %q has no '->'", sig)
	}
	dom = strings.TrimSpace(parts[0])
	cod = strings.TrimSpace(parts[1])
	if dom == "" || cod == "" {
		return "", "", fmt.Errorf("signature %q has an empty side", sig)
	}
	return dom, cod, nil
}
