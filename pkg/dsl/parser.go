// Package dsl reads and writes catalogs of typed functions. A catalog can be
// authored in the declarative grammar, as a structured YAML or JSON document,
// or as CUE validated against the #Catalog schema. All forms produce the same
// catalog.Catalog.
//
// Grammar:
//
//	# comment
//	type Product
//	type Energy [unit=J, range=>=0]
//	type AllScopes [product=Scope1|Scope2|Scope3]
//
//	fn usesEnergy {
//	  sig: Product -> Energy
//	  impl: sparql("SELECT ?e WHERE { ?p :usesEnergy ?e }")
//	  cost: 1; confidence: 0.9
//	}
package dsl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/engine"
)

// Function body field names.
const (
	fieldSig        = "sig"
	fieldImpl       = "impl"
	fieldCost       = "cost"
	fieldConfidence = "confidence"
	fieldInverseOf  = "inverse_of"
	fieldArity      = "arity"
)

var implPattern = regexp.MustCompile(`(?s)^(\w+)\s*\((.*)\)$`)

// Parse builds a catalog from grammar text.
func Parse(src string) (*catalog.Catalog, error) {
	types, funcs, err := ParseDecls(src)
	if err != nil {
		return nil, err
	}
	return catalog.New(types, funcs), nil
}

// ParseDecls returns the type and function declarations of grammar text in
// source order. A function without a sig field is dropped without error;
// callers that need every declaration must compare counts themselves.
func ParseDecls(src string) ([]catalog.Type, []catalog.Function, error) {
	p := &parser{src: stripComments(src)}
	if err := p.run(); err != nil {
		return nil, nil, err
	}
	return p.types, p.funcs, nil
}

type parser struct {
	src   string
	pos   int
	types []catalog.Type
	funcs []catalog.Function
}

func (p *parser) run() error {
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil
		}

		word := p.ident()
		switch word {
		case "type":
			if err := p.typeDecl(); err != nil {
				return err
			}
		case "fn":
			if err := p.fnDecl(); err != nil {
				return err
			}
		case "":
			return engine.NewParseError(p.lineContext(), fmt.Sprintf("unexpected character %q", p.src[p.pos]), nil)
		default:
			return engine.NewParseError(word, fmt.Sprintf("unknown declaration %q", word), nil)
		}
	}
}

func (p *parser) typeDecl() error {
	p.skipInline()
	name := p.ident()
	if name == "" {
		return engine.NewParseError("type", "missing type name", nil)
	}
	decl := "type " + name
	t := catalog.Type{Name: name}

	p.skipInline()
	if p.pos < len(p.src) && p.src[p.pos] == '[' {
		end := scanClosing(p.src, p.pos+1, '[', ']')
		if end < 0 {
			return engine.NewParseError(decl, "unterminated attribute block", nil)
		}
		attrs := p.src[p.pos+1 : end]
		p.pos = end + 1

		for _, entry := range splitOutsideQuotes(attrs, func(r byte) bool { return r == ',' }) {
			key, value, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = unquote(strings.TrimSpace(value))
			if key == catalog.AttrProduct {
				for _, comp := range strings.Split(value, "|") {
					if comp = strings.TrimSpace(comp); comp != "" {
						t.Product = append(t.Product, comp)
					}
				}
				continue
			}
			if t.Attrs == nil {
				t.Attrs = make(map[string]string)
			}
			t.Attrs[key] = value
		}
	}

	p.types = append(p.types, t)
	return nil
}

func (p *parser) fnDecl() error {
	p.skipSpace()
	id := p.ident()
	if id == "" {
		return engine.NewParseError("fn", "missing function id", nil)
	}
	decl := "fn " + id

	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '{' {
		return engine.NewParseError(decl, "expected '{'", nil)
	}
	end := scanClosing(p.src, p.pos+1, '{', '}')
	if end < 0 {
		return engine.NewParseError(decl, "unterminated function body", nil)
	}
	body := p.src[p.pos+1 : end]
	p.pos = end + 1

	f, ok, err := parseBody(id, body)
	if err != nil {
		return err
	}
	if ok {
		p.funcs = append(p.funcs, f)
	}
	return nil
}

// parseBody reads the fields of a function body. It reports false when the
// body has no sig field.
func parseBody(id, body string) (catalog.Function, bool, error) {
	decl := "fn " + id
	f := catalog.NewFunction(id, "", "", nil)
	hasSig := false

	fields := splitOutsideQuotes(body, func(r byte) bool { return r == '\n' || r == ';' })
	for _, field := range fields {
		name, value, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)

		switch name {
		case fieldSig:
			dom, cod, err := catalog.ParseSignature(value)
			if err != nil {
				return f, false, engine.NewParseError(decl, "invalid sig", err)
			}
			f.Dom, f.Cod = dom, cod
			hasSig = true
		case fieldImpl:
			impl, err := parseImpl(value)
			if err != nil {
				return f, false, engine.NewParseError(decl, "invalid impl", err)
			}
			f.Impl = impl
		case fieldCost:
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return f, false, engine.NewParseError(decl, fmt.Sprintf("invalid cost %q", value), err)
			}
			f.Cost = v
		case fieldConfidence:
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return f, false, engine.NewParseError(decl, fmt.Sprintf("invalid confidence %q", value), err)
			}
			f.Confidence = v
		case fieldInverseOf:
			f.InverseOf = value
		case fieldArity:
			v, err := strconv.Atoi(value)
			if err != nil {
				return f, false, engine.NewParseError(decl, fmt.Sprintf("invalid arity %q", value), err)
			}
			f.Arity = v
		}
	}

	return f, hasSig, nil
}

// parseImpl reads kind("literal") or kind('literal').
func parseImpl(s string) (catalog.Impl, error) {
	m := implPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, fmt.Errorf("expected kind(\"literal\"), got %q", s)
	}
	impl, err := ImplFromKeyword(m[1], unquote(strings.TrimSpace(m[2])))
	if err != nil {
		return nil, err
	}
	if err := catalog.ValidateImpl(impl); err != nil {
		return nil, err
	}
	return impl, nil
}

// ImplFromKeyword maps an implementation keyword and its literal to a
// descriptor. Unknown keywords are kept as catalog.Generic.
func ImplFromKeyword(keyword, literal string) (catalog.Impl, error) {
	switch strings.ToLower(keyword) {
	case "formula":
		return catalog.Formula{Expr: literal}, nil
	case "sparql", "query":
		return catalog.Query{Text: literal}, nil
	case "rest", "call", "http":
		parts := splitCallLiteral(literal)
		if len(parts) >= 2 {
			return catalog.Call{Method: strings.ToUpper(parts[0]), URL: parts[1]}, nil
		}
		return catalog.Call{Method: catalog.DefaultCallMethod, URL: literal}, nil
	case "builtin":
		return catalog.Builtin{Name: literal}, nil
	case "convert":
		parts := splitCallLiteral(literal)
		if len(parts) != 3 {
			return nil, fmt.Errorf("convert literal must be from,to,factor, got %q", literal)
		}
		factor, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid conversion factor %q: %w", parts[2], err)
		}
		return catalog.UnitConversion{From: parts[0], To: parts[1], Factor: factor}, nil
	default:
		return catalog.Generic{Name: keyword, Value: literal}, nil
	}
}

func splitCallLiteral(literal string) []string {
	raw := strings.Split(literal, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// stripComments removes '#' comments that start outside string literals.
// String literals may span lines, so quote state carries across newlines.
func stripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))

	var quote byte
	inComment := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if c == '\n' {
			inComment = false
			sb.WriteByte(c)
			continue
		}
		if inComment {
			continue
		}
		if isQuote(c) && !escaped(src, i) {
			switch quote {
			case 0:
				quote = c
			case c:
				quote = 0
			}
		}
		if c == '#' && quote == 0 {
			inComment = true
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// scanClosing returns the index of the close delimiter matching an open
// delimiter just before start, or -1. Delimiters inside string literals are
// not counted.
func scanClosing(src string, start int, open, close byte) int {
	depth := 0
	var quote byte
	for i := start; i < len(src); i++ {
		c := src[i]
		if isQuote(c) && !escaped(src, i) {
			switch quote {
			case 0:
				quote = c
			case c:
				quote = 0
			}
			continue
		}
		if quote != 0 {
			continue
		}
		switch c {
		case open:
			depth++
		case close:
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// splitOutsideQuotes splits s at separator bytes found outside string
// literals and parentheses. Empty parts are dropped.
func splitOutsideQuotes(s string, sep func(byte) bool) []string {
	var parts []string
	var quote byte
	depth := 0
	last := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isQuote(c) && !escaped(s, i) {
			switch quote {
			case 0:
				quote = c
			case c:
				quote = 0
			}
			continue
		}
		if quote != 0 {
			continue
		}
		switch {
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case depth == 0 && sep(c):
			if part := strings.TrimSpace(s[last:i]); part != "" {
				parts = append(parts, part)
			}
			last = i + 1
		}
	}
	if part := strings.TrimSpace(s[last:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}

func isQuote(c byte) bool {
	return c == '"' || c == '\''
}

func escaped(s string, i int) bool {
	return i > 0 && s[i-1] == '\\'
}

// unquote strips one pair of matching surrounding quotes.
func unquote(s string) string {
	if len(s) >= 2 && isQuote(s[0]) && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

// skipInline skips spaces and tabs but stops at a newline.
func (p *parser) skipInline() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func (p *parser) lineContext() string {
	line := 1 + strings.Count(p.src[:p.pos], "\n")
	return fmt.Sprintf("line %d", line)
}
