package provenance

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/openfroyo/typesynth/pkg/executor"
)

// Format is a provenance serialization.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"

	// FormatJSON produces the JSON graph document.
	FormatJSON Format = "json"
)

// FormatInfo describes a serialization.
type FormatInfo struct {
	Name      Format
	MIMEType  string
	Extension string
}

// Formats lists the supported serializations.
var Formats = map[Format]FormatInfo{
	FormatTurtle:   {FormatTurtle, "text/turtle", ".ttl"},
	FormatNTriples: {FormatNTriples, "application/n-triples", ".nt"},
	FormatJSON:     {FormatJSON, "application/json", ".json"},
}

// Encode writes g to w in the given format.
func Encode(w io.Writer, g *Graph, format Format) error {
	switch format {
	case FormatTurtle:
		return WriteTurtle(w, g)
	case FormatNTriples:
		return WriteNTriples(w, g)
	case FormatJSON:
		data, err := g.MarshalIndented()
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	default:
		return fmt.Errorf("unsupported provenance format: %s", format)
	}
}

// triple is one predicate-object pair of a subject block. Objects are
// already rendered as Turtle terms.
type triple struct {
	predicate string
	object    string
}

// WriteTurtle writes g as Turtle: sorted prefixes, then one block per
// entity, activity and agent.
func WriteTurtle(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)

	prefixes := make([]string, 0, len(g.Namespaces))
	for p := range g.Namespaces {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		fmt.Fprintf(bw, "@prefix %s: <%s> .\n", p, g.Namespaces[p])
	}
	bw.WriteString("\n")

	for _, block := range blocks(g) {
		bw.WriteString(block.subject + "\n")
		for i, t := range block.triples {
			end := " ;"
			if i == len(block.triples)-1 {
				end = " ."
			}
			fmt.Fprintf(bw, "    %s %s%s\n", t.predicate, t.object, end)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// WriteNTriples writes g with every prefixed name expanded to a full IRI.
func WriteNTriples(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	ns := make(map[string]string, len(g.Namespaces)+1)
	for k, v := range g.Namespaces {
		ns[k] = v
	}
	ns["rdf"] = NamespaceRDF

	for _, block := range blocks(g) {
		subject := expandTerm(block.subject, ns)
		for _, t := range block.triples {
			fmt.Fprintf(bw, "%s %s %s .\n", subject, expandTerm(t.predicate, ns), expandTerm(t.object, ns))
		}
	}
	return bw.Flush()
}

type subjectBlock struct {
	subject string
	triples []triple
}

func blocks(g *Graph) []subjectBlock {
	out := make([]subjectBlock, 0, len(g.Entities)+len(g.Activities)+len(g.Agents))

	for _, e := range g.Entities {
		ts := typeTriples("prov:Entity", e.Type)
		ts = appendLabel(ts, e.Label)
		if e.Value != nil {
			ts = append(ts, triple{"prov:value", valueLiteral(e.Value)})
		}
		ts = appendAttributes(ts, e.Attributes)
		if e.GeneratedBy != "" {
			ts = append(ts, triple{"prov:wasGeneratedBy", e.GeneratedBy})
		}
		if e.DerivedFrom != "" {
			ts = append(ts, triple{"prov:wasDerivedFrom", e.DerivedFrom})
		}
		out = append(out, subjectBlock{e.URI, ts})
	}

	for _, a := range g.Activities {
		ts := typeTriples("prov:Activity", a.Type)
		ts = appendLabel(ts, a.Label)
		ts = append(ts,
			triple{"prov:startedAtTime", typedLiteral(formatTime(a.StartedAt), "xsd:dateTime")},
			triple{"prov:endedAtTime", typedLiteral(formatTime(a.EndedAt), "xsd:dateTime")},
		)
		for _, u := range a.Used {
			ts = append(ts, triple{"prov:used", u})
		}
		if a.AssociatedWith != "" {
			ts = append(ts, triple{"prov:wasAssociatedWith", a.AssociatedWith})
		}
		if a.HadPlan != "" {
			ts = append(ts, triple{"prov:hadPlan", a.HadPlan})
		}
		ts = appendAttributes(ts, a.Attributes)
		out = append(out, subjectBlock{a.URI, ts})
	}

	for _, ag := range g.Agents {
		ts := typeTriples("prov:Agent", ag.Type)
		ts = appendLabel(ts, ag.Label)
		ts = appendAttributes(ts, ag.Attributes)
		out = append(out, subjectBlock{ag.URI, ts})
	}
	return out
}

func typeTriples(base, extra string) []triple {
	ts := []triple{{"a", base}}
	if extra != "" && extra != base {
		ts = append(ts, triple{"a", extra})
	}
	return ts
}

func appendLabel(ts []triple, label string) []triple {
	if label == "" {
		return ts
	}
	return append(ts, triple{"rdfs:label", quote(label)})
}

func appendAttributes(ts []triple, attrs map[string]string) []triple {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ts = append(ts, triple{"ex:" + k, quote(attrs[k])})
	}
	return ts
}

func valueLiteral(v any) string {
	if f, ok := v.(float64); ok {
		return typedLiteral(formatFloat(f), "xsd:double")
	}
	return quote(executor.FormatValue(v))
}

func typedLiteral(lexical, datatype string) string {
	return quote(lexical) + "^^" + datatype
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func quote(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}

// expandTerm rewrites a Turtle term for N-Triples: "a" becomes rdf:type,
// prefixed names become IRIs and typed literals get an expanded datatype.
func expandTerm(term string, ns map[string]string) string {
	if term == "a" {
		return "<" + NamespaceRDF + "type>"
	}
	if strings.HasPrefix(term, `"`) {
		if i := strings.LastIndex(term, `"^^`); i >= 0 {
			return term[:i+3] + expandTerm(term[i+3:], ns)
		}
		return term
	}
	if prefix, local, ok := strings.Cut(term, ":"); ok {
		if iri, ok := ns[prefix]; ok {
			return "<" + iri + local + ">"
		}
	}
	return term
}
