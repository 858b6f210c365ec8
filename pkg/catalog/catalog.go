package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Catalog is a read-only collection of types and functions indexed by
// codomain and domain. It is safe for concurrent use once constructed.
type Catalog struct {
	types     map[string]Type
	typeOrder []string
	funcs     []Function
	byID      map[string]int
	byCod     map[string][]int
	byDom     map[string][]int
}

// New builds a catalog from types and functions in declaration order.
// A later type declaration with the same name replaces the earlier attributes.
// Functions may reference undeclared types.
func New(types []Type, funcs []Function) *Catalog {
	c := &Catalog{
		types:     make(map[string]Type, len(types)),
		typeOrder: make([]string, 0, len(types)),
		funcs:     make([]Function, 0, len(funcs)),
		byID:      make(map[string]int, len(funcs)),
		byCod:     make(map[string][]int),
		byDom:     make(map[string][]int),
	}

	for _, t := range types {
		if _, exists := c.types[t.Name]; !exists {
			c.typeOrder = append(c.typeOrder, t.Name)
		}
		c.types[t.Name] = copyType(t)
	}

	for _, f := range funcs {
		idx := len(c.funcs)
		c.funcs = append(c.funcs, f)
		if _, exists := c.byID[f.ID]; !exists {
			c.byID[f.ID] = idx
		}
		c.byCod[f.Cod] = append(c.byCod[f.Cod], idx)
		c.byDom[f.Dom] = append(c.byDom[f.Dom], idx)
	}

	return c
}

func copyType(t Type) Type {
	out := Type{Name: t.Name}
	if len(t.Attrs) > 0 {
		out.Attrs = make(map[string]string, len(t.Attrs))
		for k, v := range t.Attrs {
			out.Attrs[k] = v
		}
	}
	if len(t.Product) > 0 {
		out.Product = append([]string(nil), t.Product...)
	}
	return out
}

// Types returns the declared types in declaration order.
func (c *Catalog) Types() []Type {
	out := make([]Type, 0, len(c.typeOrder))
	for _, name := range c.typeOrder {
		out = append(out, copyType(c.types[name]))
	}
	return out
}

// Type looks up a declared type by name.
func (c *Catalog) Type(name string) (Type, bool) {
	t, ok := c.types[name]
	if !ok {
		return Type{}, false
	}
	return copyType(t), true
}

// Functions returns all functions in declaration order.
func (c *Catalog) Functions() []Function {
	return append([]Function(nil), c.funcs...)
}

// Function looks up a function by ID. With duplicate IDs the first wins.
func (c *Catalog) Function(id string) (Function, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Function{}, false
	}
	return c.funcs[idx], true
}

// ByCodomain returns the functions producing the named type.
func (c *Catalog) ByCodomain(name string) []Function {
	return c.collect(c.byCod[name])
}

// ByDomain returns the functions consuming the named type.
func (c *Catalog) ByDomain(name string) []Function {
	return c.collect(c.byDom[name])
}

func (c *Catalog) collect(idx []int) []Function {
	if len(idx) == 0 {
		return nil
	}
	out := make([]Function, len(idx))
	for i, j := range idx {
		out[i] = c.funcs[j]
	}
	return out
}

// Unit returns the unit declared on a type. Undeclared types and types
// without a unit attribute report false.
func (c *Catalog) Unit(typeName string) (string, bool) {
	t, ok := c.types[typeName]
	if !ok {
		return "", false
	}
	return t.Unit()
}

// IsProductType reports whether the named type is a declared product type.
func (c *Catalog) IsProductType(name string) bool {
	t, ok := c.types[name]
	return ok && t.IsProduct()
}

// ProductComponents returns the component types of a product type.
func (c *Catalog) ProductComponents(name string) []string {
	t, ok := c.types[name]
	if !ok {
		return nil
	}
	return append([]string(nil), t.Product...)
}

// ArityMismatch reports whether f declares an arity that disagrees with the
// component count of its product-typed domain.
func (c *Catalog) ArityMismatch(f Function) bool {
	if f.Arity == 0 {
		return false
	}
	t, ok := c.types[f.Dom]
	if !ok || !t.IsProduct() {
		return false
	}
	return f.Arity != len(t.Product)
}

// TypeNames returns every type name mentioned by the catalog, declared or
// referenced by a function, sorted.
func (c *Catalog) TypeNames() []string {
	seen := make(map[string]struct{}, len(c.types))
	for name := range c.types {
		seen[name] = struct{}{}
	}
	for _, f := range c.funcs {
		seen[f.Dom] = struct{}{}
		seen[f.Cod] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Issue is a single validation finding.
type Issue struct {
	// Subject is the type name or function ID the issue concerns.
	Subject string `json:"subject"`

	// Message describes the problem.
	Message string `json:"message"`

	// Fatal marks issues that make the catalog unusable for execution.
	Fatal bool `json:"fatal"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Subject, i.Message)
}

var validate = validator.New()

// Validate checks struct constraints, duplicate IDs, undeclared type
// references, product component references and arity declarations.
// Undeclared types are reported as non-fatal.
func (c *Catalog) Validate() []Issue {
	var issues []Issue

	for _, name := range c.typeOrder {
		t := c.types[name]
		if err := validate.Struct(t); err != nil {
			issues = append(issues, Issue{Subject: name, Message: formatValidation(err), Fatal: true})
		}
		for _, comp := range t.Product {
			if _, ok := c.types[comp]; !ok {
				issues = append(issues, Issue{
					Subject: name,
					Message: fmt.Sprintf("product component %s is not declared", comp),
				})
			}
		}
	}

	seen := make(map[string]bool, len(c.funcs))
	for _, f := range c.funcs {
		if seen[f.ID] {
			issues = append(issues, Issue{Subject: f.ID, Message: "duplicate function id", Fatal: true})
		}
		seen[f.ID] = true

		if err := validate.Struct(f); err != nil {
			issues = append(issues, Issue{Subject: f.ID, Message: formatValidation(err), Fatal: true})
		}
		if f.Impl == nil {
			issues = append(issues, Issue{Subject: f.ID, Message: "missing implementation", Fatal: true})
		} else if err := validate.Struct(f.Impl); err != nil {
			issues = append(issues, Issue{Subject: f.ID, Message: formatValidation(err), Fatal: true})
		}

		for _, ref := range []string{f.Dom, f.Cod} {
			if _, ok := c.types[ref]; !ok {
				issues = append(issues, Issue{
					Subject: f.ID,
					Message: fmt.Sprintf("references undeclared type %s", ref),
				})
			}
		}
		if c.ArityMismatch(f) {
			issues = append(issues, Issue{
				Subject: f.ID,
				Message: fmt.Sprintf("arity %d does not match domain %s", f.Arity, f.Dom),
				Fatal:   true,
			})
		}
		if f.InverseOf != "" {
			if _, ok := c.byID[f.InverseOf]; !ok {
				issues = append(issues, Issue{
					Subject: f.ID,
					Message: fmt.Sprintf("inverse_of references unknown function %s", f.InverseOf),
				})
			}
		}
	}

	return issues
}

// ValidateImpl checks the descriptor's field constraints, such as a known
// builtin name or a non-empty formula.
func ValidateImpl(impl Impl) error {
	if impl == nil {
		return errors.New("missing implementation")
	}
	if err := validate.Struct(impl); err != nil {
		return errors.New(formatValidation(err))
	}
	return nil
}

func formatValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
