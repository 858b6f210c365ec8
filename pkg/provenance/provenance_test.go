package provenance

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/typesynth/pkg/executor"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedRecorder() *Recorder {
	return NewRecorder(WithClock(func() time.Time { return t0.Add(time.Minute) }))
}

func ghgSteps() []executor.Step {
	return []executor.Step{
		{
			FunctionID:         "usesEnergy",
			Signature:          "Product -> Energy",
			ImplKind:           "query",
			Cost:               1,
			Input:              1.0,
			Output:             360000.0,
			Confidence:         0.7,
			FunctionConfidence: 0.9,
			Degraded:           true,
			DataSources:        []string{"http://example.org/sparql"},
			StartedAt:          t0,
			EndedAt:            t0.Add(time.Second),
		},
		{
			FunctionID:         "energyToFuelEstimate",
			Signature:          "Energy -> Fuel",
			ImplKind:           "formula",
			Cost:               3,
			Input:              360000.0,
			Output:             8.57,
			Confidence:         1,
			FunctionConfidence: 0.8,
			Params:             map[string]float64{"efficiency": 0.35},
			StartedAt:          t0.Add(time.Second),
			EndedAt:            t0.Add(2 * time.Second),
		},
		{
			FunctionID:         "fuelToCO2",
			Signature:          "Fuel -> CO2",
			ImplKind:           "formula",
			Cost:               1,
			Input:              8.57,
			Output:             23.139,
			Confidence:         1,
			FunctionConfidence: 0.98,
			Params:             map[string]float64{"emission_factor": 2.7},
			StartedAt:          t0.Add(2 * time.Second),
			EndedAt:            t0.Add(3 * time.Second),
		},
	}
}

func TestRecord_Structure(t *testing.T) {
	g := fixedRecorder().Record("run1", 1.0, 23.139, ghgSteps())

	if len(g.Agents) != 1 || g.Agents[0].URI != SystemAgentURI {
		t.Errorf("Expected the system agent, got %+v", g.Agents)
	}
	// input + 3 results + output + plan
	if len(g.Entities) != 6 {
		t.Fatalf("Expected 6 entities, got %d", len(g.Entities))
	}
	if len(g.Activities) != 3 {
		t.Fatalf("Expected 3 activities, got %d", len(g.Activities))
	}

	prev := "ex:input_run1"
	for i, a := range g.Activities {
		if len(a.Used) != 1 || a.Used[0] != prev {
			t.Errorf("Activity %d: expected to use %s, got %v", i, prev, a.Used)
		}
		if a.AssociatedWith != SystemAgentURI || a.HadPlan != "ex:plan_run1" {
			t.Errorf("Activity %d: missing agent or plan: %+v", i, a)
		}
		result, ok := g.Entity(strings.Replace(a.URI, "ex:step_", "ex:result_", 1))
		if !ok {
			t.Fatalf("Activity %d: no result entity", i)
		}
		if result.GeneratedBy != a.URI || result.DerivedFrom != prev {
			t.Errorf("Activity %d: result not chained: %+v", i, result)
		}
		prev = result.URI
	}

	out, ok := g.Entity("ex:output_run1")
	if !ok || out.DerivedFrom != prev || out.Value != 23.139 {
		t.Errorf("Expected final output derived from the last result, got %+v", out)
	}

	plan, ok := g.Entity("ex:plan_run1")
	if !ok {
		t.Fatal("Expected a plan entity")
	}
	if plan.Attributes["functions"] != "usesEnergy ∘ energyToFuelEstimate ∘ fuelToCO2" {
		t.Errorf("Unexpected plan functions %q", plan.Attributes["functions"])
	}
	if plan.Attributes["total_steps"] != "3" {
		t.Errorf("Expected total_steps 3, got %q", plan.Attributes["total_steps"])
	}
}

func TestRecord_ActivityAttributes(t *testing.T) {
	g := fixedRecorder().Record("run1", 1.0, 23.139, ghgSteps())

	first, _ := g.Activity("ex:step_run1_1")
	if first.Attributes["cost"] != "1" || first.Attributes["confidence"] != "0.9" {
		t.Errorf("Expected real cost and confidence, got %v", first.Attributes)
	}
	if first.Attributes["step_confidence"] != "0.7" || first.Attributes["degraded"] != "true" {
		t.Errorf("Expected step confidence and degradation, got %v", first.Attributes)
	}
	if first.Attributes["data_sources"] != "http://example.org/sparql" {
		t.Errorf("Expected data source, got %v", first.Attributes)
	}
	if !first.StartedAt.Equal(t0) || !first.EndedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("Expected step timestamps, got %v - %v", first.StartedAt, first.EndedAt)
	}

	last, _ := g.Activity("ex:step_run1_3")
	if last.Attributes["param_emission_factor"] != "2.7" {
		t.Errorf("Expected consulted parameter, got %v", last.Attributes)
	}
}

func TestRecord_NoSteps(t *testing.T) {
	g := fixedRecorder().Record("empty", 5.0, 5.0, nil)

	if len(g.Activities) != 0 {
		t.Errorf("Expected no activities, got %d", len(g.Activities))
	}
	out, _ := g.Entity("ex:output_empty")
	if out.DerivedFrom != "ex:input_empty" {
		t.Errorf("Expected output derived from input, got %q", out.DerivedFrom)
	}
}

func TestRecordSynthesis(t *testing.T) {
	g := fixedRecorder().RecordSynthesis("s1", "Product -> CO2", 1.0, 23.139, ghgSteps())

	goal, ok := g.Entity("ex:goal_s1")
	if !ok || goal.Type != TypeSynthesisGoal || goal.Attributes["goal_signature"] != "Product -> CO2" {
		t.Errorf("Expected goal entity, got %+v", goal)
	}

	synth, ok := g.Activity("ex:synthesis_s1")
	if !ok {
		t.Fatal("Expected synthesis activity")
	}
	if synth.Attributes["total_cost"] != "5" || synth.Attributes["path_length"] != "3" {
		t.Errorf("Unexpected synthesis attributes %v", synth.Attributes)
	}
	if !synth.StartedAt.Equal(t0) || !synth.EndedAt.Equal(t0.Add(3*time.Second)) {
		t.Errorf("Expected synthesis to span all steps, got %v - %v", synth.StartedAt, synth.EndedAt)
	}
}

func TestWriteTurtle(t *testing.T) {
	g := fixedRecorder().Record("run1", 1.0, "done \"ok\"", ghgSteps())

	var buf bytes.Buffer
	if err := WriteTurtle(&buf, g); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"@prefix ex: <http://example.org/> .",
		"@prefix prov: <http://www.w3.org/ns/prov#> .",
		"ex:input_run1\n    a prov:Entity ;\n    a ex:InputData ;\n    prov:value \"1\"^^xsd:double ;",
		"prov:wasGeneratedBy ex:step_run1_1 ;",
		"prov:used ex:input_run1 ;",
		"prov:hadPlan ex:plan_run1 ;",
		`prov:value "done \"ok\""`,
		`prov:startedAtTime "2024-05-01T12:00:00Z"^^xsd:dateTime ;`,
		"ex:synthesis_system\n    a prov:Agent ;\n    a prov:SoftwareAgent ;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected Turtle to contain %q", want)
		}
	}

	for _, block := range strings.Split(strings.TrimSpace(out), "\n\n")[1:] {
		if !strings.HasSuffix(block, " .") {
			t.Errorf("Block not terminated: %q", block)
		}
	}
}

func TestWriteNTriples(t *testing.T) {
	g := fixedRecorder().Record("run1", 1.0, 23.139, ghgSteps()[:1])

	var buf bytes.Buffer
	if err := WriteNTriples(&buf, g); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := buf.String()

	want := "<http://example.org/input_run1> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/ns/prov#Entity> ."
	if !strings.Contains(out, want) {
		t.Errorf("Expected expanded type triple, got:\n%s", out)
	}
	if !strings.Contains(out, `"1"^^<http://www.w3.org/2001/XMLSchema#double>`) {
		t.Errorf("Expected expanded datatype, got:\n%s", out)
	}
	if strings.Contains(out, " ex:") || strings.Contains(out, " prov:") {
		t.Errorf("Expected no prefixed names, got:\n%s", out)
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	g := fixedRecorder().RecordSynthesis("s1", "Product -> CO2", []any{1.0, 2.0}, map[string]any{"result": 3.0}, ghgSteps())

	data, err := g.MarshalIndented()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	parsed, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	again, err := parsed.MarshalIndented()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("Expected identical JSON after round trip")
	}

	var a, b bytes.Buffer
	if err := WriteTurtle(&a, g); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := WriteTurtle(&b, parsed); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if a.String() != b.String() {
		t.Errorf("Expected parsed graph to serialize to the same Turtle")
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	if _, err := ParseJSON([]byte(`{"entities": []}`)); err == nil {
		t.Error("Expected error for graph without id")
	}
	if _, err := ParseJSON([]byte(`not json`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestEncode_Formats(t *testing.T) {
	g := fixedRecorder().Record("run1", 1.0, 2.0, nil)
	for format := range Formats {
		var buf bytes.Buffer
		if err := Encode(&buf, g, format); err != nil {
			t.Errorf("%s: expected no error, got: %v", format, err)
		}
		if buf.Len() == 0 {
			t.Errorf("%s: expected output", format)
		}
	}
	if err := Encode(&bytes.Buffer{}, g, "rdfxml"); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestFromResult(t *testing.T) {
	res := &executor.Result{ExecutionID: "x1", Input: 2.0, Value: 4.0, Steps: ghgSteps()[:1]}
	g := NewRecorder().FromResult(res)
	if g.ID != "x1" || len(g.Activities) != 1 {
		t.Errorf("Expected graph of the result, got %+v", g)
	}
}
