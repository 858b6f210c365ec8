package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openfroyo/typesynth/pkg/catalog"
)

// GraphNode is a type in the function graph.
type GraphNode struct {
	// Name is the type name.
	Name string `json:"name"`

	// Declared is false for types only referenced by functions.
	Declared bool `json:"declared"`

	// Unit is the declared unit, if any.
	Unit string `json:"unit,omitempty"`

	// Product is true for product types.
	Product bool `json:"product,omitempty"`

	// Producers lists the IDs of functions whose codomain is this type.
	Producers []string `json:"producers"`

	// Consumers lists the IDs of functions whose domain is this type.
	Consumers []string `json:"consumers"`
}

// GraphEdge is a function viewed as an edge between types.
type GraphEdge struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Function   string  `json:"function"`
	Cost       float64 `json:"cost"`
	Confidence float64 `json:"confidence"`
}

// Graph is the analysed function graph of a catalog.
type Graph struct {
	Nodes map[string]*GraphNode `json:"nodes"`
	Edges []GraphEdge           `json:"edges"`

	// Cycles lists type cycles, each closed by repeating its first type.
	Cycles [][]string `json:"cycles,omitempty"`

	// Sources are types no function produces.
	Sources []string `json:"sources"`

	// Sinks are types no function consumes.
	Sinks []string `json:"sinks"`
}

// GraphBuilder analyses the function graph of a catalog.
type GraphBuilder struct {
	adjacency map[string][]string
	nodes     map[string]*GraphNode
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		adjacency: make(map[string][]string),
		nodes:     make(map[string]*GraphNode),
	}
}

// Build indexes the catalog, detects cycles and classifies sources and sinks.
// Cycles are reported, not rejected: search tolerates them.
func (b *GraphBuilder) Build(cat *catalog.Catalog) *Graph {
	b.adjacency = make(map[string][]string)
	b.nodes = make(map[string]*GraphNode)

	graph := &Graph{
		Nodes:   b.nodes,
		Edges:   make([]GraphEdge, 0),
		Sources: make([]string, 0),
		Sinks:   make([]string, 0),
	}

	for _, name := range cat.TypeNames() {
		node := &GraphNode{Name: name, Producers: []string{}, Consumers: []string{}}
		if t, ok := cat.Type(name); ok {
			node.Declared = true
			node.Unit, _ = t.Unit()
			node.Product = t.IsProduct()
		}
		b.nodes[name] = node
	}

	for _, f := range cat.Functions() {
		b.nodes[f.Dom].Consumers = append(b.nodes[f.Dom].Consumers, f.ID)
		b.nodes[f.Cod].Producers = append(b.nodes[f.Cod].Producers, f.ID)
		b.adjacency[f.Dom] = append(b.adjacency[f.Dom], f.Cod)
		graph.Edges = append(graph.Edges, GraphEdge{
			From:       f.Dom,
			To:         f.Cod,
			Function:   f.ID,
			Cost:       f.Cost,
			Confidence: f.Confidence,
		})
	}

	for _, name := range cat.TypeNames() {
		node := b.nodes[name]
		if len(node.Producers) == 0 {
			graph.Sources = append(graph.Sources, name)
		}
		if len(node.Consumers) == 0 {
			graph.Sinks = append(graph.Sinks, name)
		}
	}

	graph.Cycles = b.detectCycles(cat.TypeNames())
	return graph
}

// detectCycles runs a depth-first search from every type and records each
// back edge as a cycle.
func (b *GraphBuilder) detectCycles(order []string) [][]string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var cycles [][]string

	var visit func(node string, path []string)
	visit = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range b.adjacency[node] {
			if !visited[next] {
				visit(next, path)
				continue
			}
			if onStack[next] {
				for i, id := range path {
					if id == next {
						cycle := append([]string(nil), path[i:]...)
						cycles = append(cycles, append(cycle, next))
						break
					}
				}
			}
		}

		onStack[node] = false
	}

	for _, name := range order {
		if !visited[name] {
			visit(name, nil)
		}
	}
	return cycles
}

// Reachable returns the types reachable forward from start, sorted.
func (g *Graph) Reachable(start string) []string {
	next := make(map[string][]string)
	for _, e := range g.Edges {
		next[e.From] = append(next[e.From], e.To)
	}

	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next[cur] {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ToDOT renders the graph in Graphviz DOT format. Edges of highlight are
// drawn bold.
func (g *Graph) ToDOT(highlight catalog.Path) string {
	marked := make(map[string]bool, len(highlight))
	for _, f := range highlight {
		marked[f.ID] = true
	}

	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("digraph Catalog {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, name := range names {
		node := g.Nodes[name]
		label := name
		if node.Unit != "" {
			label = fmt.Sprintf("%s\\n[%s]", name, node.Unit)
		}
		sb.WriteString(fmt.Sprintf("  %q [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
			name, label, nodeColor(node)))
	}
	sb.WriteString("\n")

	for _, e := range g.Edges {
		style := "style=solid, color=black"
		if marked[e.Function] {
			style = "style=bold, color=red, penwidth=2"
		}
		sb.WriteString(fmt.Sprintf("  %q -> %q [label=\"%s (%.2g, %.2g)\", %s];\n",
			e.From, e.To, e.Function, e.Cost, e.Confidence, style))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func nodeColor(n *GraphNode) string {
	switch {
	case !n.Declared:
		return "lightcoral"
	case n.Product:
		return "lightgoldenrod"
	case n.Unit != "":
		return "lightblue"
	default:
		return "white"
	}
}

// FormatCycle renders a cycle as "A -> B -> A".
func FormatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}
