package dsl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/engine"
)

// Document is the structured interchange form of a catalog.
type Document struct {
	Types     []TypeDoc     `json:"types" yaml:"types"`
	Functions []FunctionDoc `json:"functions" yaml:"functions"`
}

// TypeDoc is one type record. Attributes are written under attrs but may
// also be read flat on the record, e.g. `{name: Energy, unit: kWh}`.
type TypeDoc struct {
	Name    string            `json:"name" yaml:"name"`
	Attrs   map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Product []string          `json:"product,omitempty" yaml:"product,omitempty"`
}

const (
	typeKeyName    = "name"
	typeKeyAttrs   = "attrs"
	typeKeyProduct = "product"
)

// UnmarshalYAML accepts both the nested and the flat attribute form.
// Nested attrs win over a flat key of the same name.
func (t *TypeDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: type record must be a mapping", node.Line)
	}

	var doc TypeDoc
	flat := make(map[string]string)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		var err error
		switch key {
		case typeKeyName:
			err = val.Decode(&doc.Name)
		case typeKeyAttrs:
			err = val.Decode(&doc.Attrs)
		case typeKeyProduct:
			err = val.Decode(&doc.Product)
		default:
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: attribute %s must be a scalar", val.Line, key)
			}
			if val.Tag != "!!null" {
				flat[key] = val.Value
			}
		}
		if err != nil {
			return err
		}
	}

	doc.Attrs = mergeAttrs(flat, doc.Attrs)
	*t = doc
	return nil
}

// UnmarshalJSON accepts both the nested and the flat attribute form.
func (t *TypeDoc) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var doc TypeDoc
	flat := make(map[string]string)
	for key, val := range raw {
		var err error
		switch key {
		case typeKeyName:
			err = json.Unmarshal(val, &doc.Name)
		case typeKeyAttrs:
			err = json.Unmarshal(val, &doc.Attrs)
		case typeKeyProduct:
			err = json.Unmarshal(val, &doc.Product)
		default:
			v, ok, serr := jsonScalar(val)
			if serr != nil {
				return fmt.Errorf("attribute %s: %w", key, serr)
			}
			if ok {
				flat[key] = v
			}
		}
		if err != nil {
			return err
		}
	}

	doc.Attrs = mergeAttrs(flat, doc.Attrs)
	*t = doc
	return nil
}

// jsonScalar renders a JSON string, number or bool as attribute text.
// Null is skipped.
func jsonScalar(val json.RawMessage) (string, bool, error) {
	trimmed := bytes.TrimSpace(val)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false, nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	case '{', '[':
		return "", false, errors.New("must be a scalar")
	default:
		return string(trimmed), true, nil
	}
}

func mergeAttrs(flat, nested map[string]string) map[string]string {
	if len(flat) == 0 {
		return nested
	}
	for k, v := range nested {
		flat[k] = v
	}
	return flat
}

// FunctionDoc is one function record. Impl holds the descriptor fields as
// strings, keyed as in catalog.Impl.Details. Cost and Confidence default to
// 1 when absent.
type FunctionDoc struct {
	ID         string            `json:"id" yaml:"id"`
	Sig        string            `json:"sig" yaml:"sig"`
	Impl       map[string]string `json:"impl,omitempty" yaml:"impl,omitempty"`
	Cost       *float64          `json:"cost,omitempty" yaml:"cost,omitempty"`
	Confidence *float64          `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	InverseOf  string            `json:"inverse_of,omitempty" yaml:"inverse_of,omitempty"`
	Arity      int               `json:"arity,omitempty" yaml:"arity,omitempty"`
}

// implKindAliases maps grammar keywords to descriptor kinds so documents may
// use either spelling.
var implKindAliases = map[string]string{
	"sparql":  string(catalog.ImplQuery),
	"rest":    string(catalog.ImplCall),
	"http":    string(catalog.ImplCall),
	"convert": string(catalog.ImplUnitConversion),
}

// FromCatalog converts a catalog to its document form.
func FromCatalog(cat *catalog.Catalog) *Document {
	doc := &Document{
		Types:     make([]TypeDoc, 0),
		Functions: make([]FunctionDoc, 0),
	}

	for _, t := range cat.Types() {
		doc.Types = append(doc.Types, TypeDoc{Name: t.Name, Attrs: t.Attrs, Product: t.Product})
	}

	for _, f := range cat.Functions() {
		cost, confidence := f.Cost, f.Confidence
		fd := FunctionDoc{
			ID:         f.ID,
			Sig:        f.Signature(),
			Cost:       &cost,
			Confidence: &confidence,
			InverseOf:  f.InverseOf,
			Arity:      f.Arity,
		}
		if f.Impl != nil {
			fd.Impl = f.Impl.Details()
		}
		doc.Functions = append(doc.Functions, fd)
	}

	return doc
}

// Catalog converts the document to a catalog. Unlike grammar text, a
// function record without a signature is an error.
func (d *Document) Catalog() (*catalog.Catalog, error) {
	types := make([]catalog.Type, 0, len(d.Types))
	for _, td := range d.Types {
		if td.Name == "" {
			return nil, engine.NewParseError("type", "missing type name", nil)
		}
		types = append(types, catalog.Type{Name: td.Name, Attrs: td.Attrs, Product: td.Product})
	}

	funcs := make([]catalog.Function, 0, len(d.Functions))
	for _, fd := range d.Functions {
		decl := "fn " + fd.ID
		dom, cod, err := catalog.ParseSignature(fd.Sig)
		if err != nil {
			return nil, engine.NewParseError(decl, "invalid sig", err)
		}

		var impl catalog.Impl
		if len(fd.Impl) > 0 {
			details := make(map[string]string, len(fd.Impl))
			for k, v := range fd.Impl {
				details[k] = v
			}
			if alias, ok := implKindAliases[strings.ToLower(details["kind"])]; ok {
				details["kind"] = alias
			}
			impl, err = catalog.ImplFromDetails(details)
			if err == nil {
				err = catalog.ValidateImpl(impl)
			}
			if err != nil {
				return nil, engine.NewParseError(decl, "invalid impl", err)
			}
		}

		f := catalog.NewFunction(fd.ID, dom, cod, impl)
		if fd.Cost != nil {
			f.Cost = *fd.Cost
		}
		if fd.Confidence != nil {
			f.Confidence = *fd.Confidence
		}
		f.InverseOf = fd.InverseOf
		f.Arity = fd.Arity
		funcs = append(funcs, f)
	}

	return catalog.New(types, funcs), nil
}

// ReadYAML decodes a YAML document.
func ReadYAML(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, engine.NewParseError("document", "invalid YAML catalog", err)
	}
	return &doc, nil
}

// ReadJSON decodes a JSON document.
func ReadJSON(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, engine.NewParseError("document", "invalid JSON catalog", err)
	}
	return &doc, nil
}

// YAML encodes the document as YAML.
func (d *Document) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON encodes the document as indented JSON.
func (d *Document) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	return data, nil
}
