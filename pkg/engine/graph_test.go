package engine

import (
	"strings"
	"testing"

	"github.com/openfroyo/typesynth/pkg/catalog"
)

func TestGraphBuilder_Build_GHG(t *testing.T) {
	graph := NewGraphBuilder().Build(ghgCatalog())

	if len(graph.Nodes) != 4 {
		t.Errorf("Expected 4 nodes, got %d", len(graph.Nodes))
	}
	if len(graph.Edges) != 3 {
		t.Errorf("Expected 3 edges, got %d", len(graph.Edges))
	}
	if len(graph.Cycles) != 0 {
		t.Errorf("Expected no cycles, got %v", graph.Cycles)
	}
	if len(graph.Sources) != 1 || graph.Sources[0] != "Product" {
		t.Errorf("Expected source Product, got %v", graph.Sources)
	}
	if len(graph.Sinks) != 1 || graph.Sinks[0] != "CO2" {
		t.Errorf("Expected sink CO2, got %v", graph.Sinks)
	}

	energy := graph.Nodes["Energy"]
	if len(energy.Producers) != 1 || energy.Producers[0] != "usesEnergy" {
		t.Errorf("Expected Energy produced by usesEnergy, got %v", energy.Producers)
	}
	if len(energy.Consumers) != 1 || energy.Consumers[0] != "energyToFuelEstimate" {
		t.Errorf("Expected Energy consumed by energyToFuelEstimate, got %v", energy.Consumers)
	}
}

func TestGraphBuilder_Build_Cycles(t *testing.T) {
	cat := catalog.New(nil, []catalog.Function{
		fn("ab", "A", "B", 1, 1),
		fn("ba", "B", "A", 1, 1),
	})

	graph := NewGraphBuilder().Build(cat)
	if len(graph.Cycles) != 1 {
		t.Fatalf("Expected 1 cycle, got %d", len(graph.Cycles))
	}
	if got := FormatCycle(graph.Cycles[0]); got != "A -> B -> A" {
		t.Errorf("Expected A -> B -> A, got %s", got)
	}
	if graph.Nodes["A"].Declared {
		t.Error("Expected A to be undeclared")
	}
}

func TestGraph_Reachable(t *testing.T) {
	graph := NewGraphBuilder().Build(ghgCatalog())

	got := graph.Reachable("Energy")
	want := []string{"CO2", "Energy", "Fuel"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestGraph_ToDOT(t *testing.T) {
	cat := ghgCatalog()
	graph := NewGraphBuilder().Build(cat)
	results := Search(cat, "Energy", "CO2", DefaultSearchOptions())
	if len(results) == 0 {
		t.Fatal("Expected a path")
	}

	dot := graph.ToDOT(results[0].Path)
	if !strings.HasPrefix(dot, "digraph Catalog {") {
		t.Errorf("Expected digraph header, got %q", dot[:20])
	}
	if !strings.Contains(dot, `"Energy" -> "Fuel"`) {
		t.Error("Expected Energy -> Fuel edge")
	}

	highlighted := 0
	for _, line := range strings.Split(dot, "\n") {
		if strings.Contains(line, "color=red") {
			highlighted++
		}
	}
	if highlighted != 2 {
		t.Errorf("Expected 2 highlighted edges, got %d", highlighted)
	}
}
