package dsl

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/openfroyo/typesynth/pkg/engine"
)

// CatalogSchema constrains CUE catalog documents.
const CatalogSchema = `
#Impl: {
	// kind selects the descriptor; the remaining fields are its literals
	kind: string & !=""
	[string]: string
}

#Type: {
	name: string & =~"^\\w+$"
	attrs?: {[string]: string}
	product?: [string, string, ...string]
}

#Function: {
	id:          string & =~"^\\w+$"
	sig:         string & =~"^\\s*\\w+\\s*->\\s*\\w+\\s*$"
	impl?:       #Impl
	cost?:       number & >=0
	confidence?: number & >=0 & <=1
	inverse_of?: string
	arity?:      int & >=0
}

#Catalog: {
	types: [...#Type]
	functions: [...#Function]
}
`

// CUELoader reads catalog documents authored in CUE.
type CUELoader struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewCUELoader compiles the catalog schema.
func NewCUELoader() (*CUELoader, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(CatalogSchema, cue.Filename("catalog_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile catalog schema: %w", err)
	}
	return &CUELoader{
		ctx:    ctx,
		schema: schema.LookupPath(cue.ParsePath("#Catalog")),
	}, nil
}

// LoadFile reads and validates a CUE catalog file.
func (l *CUELoader) LoadFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return l.LoadString(string(content), path)
}

// LoadString compiles src, unifies it with #Catalog and decodes the result.
func (l *CUELoader) LoadString(src, filename string) (*Document, error) {
	val := l.ctx.CompileString(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, l.schemaError(filename, err)
	}

	unified := l.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, l.schemaError(filename, err)
	}

	var doc Document
	if err := unified.Decode(&doc); err != nil {
		return nil, engine.NewParseError(filename, "failed to decode catalog", err)
	}
	return &doc, nil
}

// Validate checks a document built in Go against the schema.
func (l *CUELoader) Validate(doc *Document) error {
	val := l.ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	unified := l.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return l.schemaError("document", err)
	}
	return nil
}

// schemaError flattens CUE errors into a parse error listing each position.
func (l *CUELoader) schemaError(subject string, err error) error {
	var msgs []string
	for _, e := range errors.Errors(err) {
		msg := errors.Details(e, nil)
		if pos := errors.Positions(e); len(pos) > 0 {
			msg = fmt.Sprintf("%s:%d:%d: %s", pos[0].Filename(), pos[0].Line(), pos[0].Column(), strings.TrimSpace(msg))
		}
		msgs = append(msgs, strings.TrimSpace(msg))
	}
	return engine.NewParseError(subject, strings.Join(msgs, "; "), err).WithOperation("cue")
}
