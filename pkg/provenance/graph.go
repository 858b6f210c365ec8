// Package provenance records how an executed composition derived its output
// as a PROV-O shaped graph of entities, activities and agents, and serializes
// that graph as Turtle, N-Triples or JSON.
package provenance

import (
	"encoding/json"
	"fmt"
	"time"
)

// Namespace IRIs used in provenance graphs.
const (
	NamespacePROV = "http://www.w3.org/ns/prov#"
	NamespaceXSD  = "http://www.w3.org/2001/XMLSchema#"
	NamespaceRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	NamespaceRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	// DefaultBaseURI is bound to the ex: prefix.
	DefaultBaseURI = "http://example.org/"
)

// Type names assigned to graph nodes.
const (
	TypeInputData          = "ex:InputData"
	TypeIntermediateResult = "ex:IntermediateResult"
	TypeFinalResult        = "ex:FinalResult"
	TypePlan               = "prov:Plan"
	TypeFunctionExecution  = "ex:FunctionExecution"
	TypeSoftwareAgent      = "prov:SoftwareAgent"
	TypeSynthesisGoal      = "ex:SynthesisGoal"
	TypeTypeSynthesis      = "ex:TypeSynthesis"
)

// Entity is a value or plan that took part in an execution.
type Entity struct {
	URI         string            `json:"uri"`
	Type        string            `json:"type,omitempty"`
	Label       string            `json:"label,omitempty"`
	Value       any               `json:"value,omitempty"`
	GeneratedBy string            `json:"generated_by,omitempty"`
	DerivedFrom string            `json:"derived_from,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Activity is one function application, or the synthesis as a whole.
type Activity struct {
	URI            string            `json:"uri"`
	Type           string            `json:"type,omitempty"`
	Label          string            `json:"label,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	EndedAt        time.Time         `json:"ended_at"`
	Used           []string          `json:"used,omitempty"`
	AssociatedWith string            `json:"associated_with,omitempty"`
	HadPlan        string            `json:"had_plan,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// Agent is the software that carried out the activities.
type Agent struct {
	URI        string            `json:"uri"`
	Type       string            `json:"type,omitempty"`
	Label      string            `json:"label,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Graph is the provenance of one execution. It is built once and not
// modified afterwards.
type Graph struct {
	ID         string            `json:"id"`
	Namespaces map[string]string `json:"namespaces"`
	Entities   []Entity          `json:"entities"`
	Activities []Activity        `json:"activities"`
	Agents     []Agent           `json:"agents"`
}

// Entity returns the entity with the given URI.
func (g *Graph) Entity(uri string) (Entity, bool) {
	for _, e := range g.Entities {
		if e.URI == uri {
			return e, true
		}
	}
	return Entity{}, false
}

// Activity returns the activity with the given URI.
func (g *Graph) Activity(uri string) (Activity, bool) {
	for _, a := range g.Activities {
		if a.URI == uri {
			return a, true
		}
	}
	return Activity{}, false
}

// MarshalIndented renders the graph as indented JSON. Attribute maps are
// emitted with sorted keys.
func (g *Graph) MarshalIndented() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// ParseJSON decodes a graph produced by MarshalIndented or json.Marshal.
func ParseJSON(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse provenance JSON: %w", err)
	}
	if g.ID == "" {
		return nil, fmt.Errorf("provenance JSON has no id")
	}
	return &g, nil
}
