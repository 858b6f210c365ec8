package provenance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openfroyo/typesynth/pkg/executor"
)

// SystemAgentURI identifies the software agent in every graph.
const SystemAgentURI = "ex:synthesis_system"

// Recorder turns execution traces into provenance graphs.
type Recorder struct {
	baseURI string
	version string
	now     func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBaseURI binds the ex: prefix to uri.
func WithBaseURI(uri string) Option {
	return func(r *Recorder) { r.baseURI = uri }
}

// WithVersion sets the version reported by the system agent.
func WithVersion(v string) Option {
	return func(r *Recorder) { r.version = v }
}

// WithClock overrides the timestamp source for input and output entities.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		baseURI: DefaultBaseURI,
		version: "1.0.0",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) namespaces() map[string]string {
	return map[string]string{
		"prov": NamespacePROV,
		"ex":   r.baseURI,
		"xsd":  NamespaceXSD,
		"rdfs": NamespaceRDFS,
	}
}

// FromResult records an executor result.
func (r *Recorder) FromResult(res *executor.Result) *Graph {
	return r.Record(res.ExecutionID, res.Input, res.Value, res.Steps)
}

// Record builds the graph of one execution: the system agent, an input
// entity, an activity and a result entity per step, the final output and
// the plan every activity refers to.
func (r *Recorder) Record(executionID string, input, output any, steps []executor.Step) *Graph {
	now := r.now().UTC()
	g := &Graph{
		ID:         executionID,
		Namespaces: r.namespaces(),
		Agents: []Agent{{
			URI:        SystemAgentURI,
			Type:       TypeSoftwareAgent,
			Label:      "Type Synthesis System",
			Attributes: map[string]string{"version": r.version},
		}},
	}

	inputTime := now
	if len(steps) > 0 && !steps[0].StartedAt.IsZero() {
		inputTime = steps[0].StartedAt.UTC()
	}
	inputURI := "ex:input_" + executionID
	g.Entities = append(g.Entities, Entity{
		URI:        inputURI,
		Type:       TypeInputData,
		Value:      input,
		Attributes: map[string]string{"timestamp": formatTime(inputTime)},
	})

	planURI := "ex:plan_" + executionID
	prev := inputURI
	ids := make([]string, 0, len(steps))

	for i, step := range steps {
		n := i + 1
		activityURI := fmt.Sprintf("ex:step_%s_%d", executionID, n)
		resultURI := fmt.Sprintf("ex:result_%s_%d", executionID, n)
		ids = append(ids, step.FunctionID)

		g.Activities = append(g.Activities, Activity{
			URI:            activityURI,
			Type:           TypeFunctionExecution,
			Label:          "Execute " + step.FunctionID,
			StartedAt:      step.StartedAt.UTC(),
			EndedAt:        step.EndedAt.UTC(),
			Used:           []string{prev},
			AssociatedWith: SystemAgentURI,
			HadPlan:        planURI,
			Attributes:     stepAttributes(step),
		})
		g.Entities = append(g.Entities, Entity{
			URI:         resultURI,
			Type:        TypeIntermediateResult,
			Value:       step.Output,
			GeneratedBy: activityURI,
			DerivedFrom: prev,
			Attributes:  map[string]string{"timestamp": formatTime(step.EndedAt.UTC())},
		})
		prev = resultURI
	}

	g.Entities = append(g.Entities,
		Entity{
			URI:         "ex:output_" + executionID,
			Type:        TypeFinalResult,
			Value:       output,
			DerivedFrom: prev,
			Attributes: map[string]string{
				"timestamp":    formatTime(now),
				"execution_id": executionID,
			},
		},
		Entity{
			URI:   planURI,
			Type:  TypePlan,
			Label: "Synthesis Plan",
			Attributes: map[string]string{
				"functions":   strings.Join(ids, " ∘ "),
				"total_steps": strconv.Itoa(len(steps)),
			},
		},
	)
	return g
}

func stepAttributes(step executor.Step) map[string]string {
	attrs := map[string]string{
		"function_id":         step.FunctionID,
		"function_signature":  step.Signature,
		"implementation_kind": step.ImplKind,
		"cost":                formatFloat(step.Cost),
		"confidence":          formatFloat(step.FunctionConfidence),
		"step_confidence":     formatFloat(step.Confidence),
	}
	if step.Degraded {
		attrs["degraded"] = "true"
	}
	for k, v := range step.Params {
		attrs["param_"+k] = formatFloat(v)
	}
	if len(step.DataSources) > 0 {
		attrs["data_sources"] = strings.Join(step.DataSources, ", ")
	}
	return attrs
}

// RecordSynthesis records an execution together with the goal it was
// synthesized for: a goal entity and a synthesis activity spanning all steps.
func (r *Recorder) RecordSynthesis(id, goal string, input, output any, steps []executor.Step) *Graph {
	g := r.Record(id, input, output, steps)

	g.Entities = append(g.Entities, Entity{
		URI:  "ex:goal_" + id,
		Type: TypeSynthesisGoal,
		Attributes: map[string]string{
			"goal_signature": goal,
			"specification":  "Find path from source to target type",
		},
	})

	started, ended := r.now().UTC(), r.now().UTC()
	if len(steps) > 0 {
		started = steps[0].StartedAt.UTC()
		ended = steps[len(steps)-1].EndedAt.UTC()
	}
	var total float64
	for _, s := range steps {
		total += s.Cost
	}

	g.Activities = append(g.Activities, Activity{
		URI:            "ex:synthesis_" + id,
		Type:           TypeTypeSynthesis,
		Label:          "Type Synthesis: " + goal,
		StartedAt:      started,
		EndedAt:        ended,
		AssociatedWith: SystemAgentURI,
		Attributes: map[string]string{
			"goal":        goal,
			"total_cost":  formatFloat(total),
			"path_length": strconv.Itoa(len(steps)),
		},
	})
	return g
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
