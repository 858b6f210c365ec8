package catalog

import "strings"

// Path is a chain of functions in data-flow order.
type Path []Function

// Cost returns the sum of function costs.
func (p Path) Cost() float64 {
	var total float64
	for _, f := range p {
		total += f.Cost
	}
	return total
}

// Confidence returns the product of function confidences. An empty path has confidence 1.
func (p Path) Confidence() float64 {
	total := 1.0
	for _, f := range p {
		total *= f.Confidence
	}
	return total
}

// IDs returns the function identifiers in order.
func (p Path) IDs() []string {
	ids := make([]string, len(p))
	for i, f := range p {
		ids[i] = f.ID
	}
	return ids
}

// Source returns the domain of the first function, or "" for an empty path.
func (p Path) Source() string {
	if len(p) == 0 {
		return ""
	}
	return p[0].Dom
}

// Goal returns the codomain of the last function, or "" for an empty path.
func (p Path) Goal() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1].Cod
}

// Connected reports whether every codomain feeds the next function's domain.
func (p Path) Connected() bool {
	for i := 1; i < len(p); i++ {
		if p[i-1].Cod != p[i].Dom {
			return false
		}
	}
	return true
}

// String renders the path as a composition "f ∘ g" in data-flow order.
func (p Path) String() string {
	return strings.Join(p.IDs(), " ∘ ")
}
