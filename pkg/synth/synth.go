// Package synth turns search results into executable plans: each found
// composition is augmented with the unit conversions its type boundaries
// require.
package synth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/engine"
	"github.com/openfroyo/typesynth/pkg/telemetry"
	"github.com/openfroyo/typesynth/pkg/units"
)

// Plan is an augmented composition ready for execution.
type Plan struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Goal   string `json:"goal"`

	// Functions is the augmented path, conversions included.
	Functions   catalog.Path `json:"-"`
	FunctionIDs []string     `json:"functions"`

	// Cost and Confidence are computed over Functions.
	Cost       float64 `json:"cost"`
	Confidence float64 `json:"confidence"`

	// SearchCost is the cost reported by the search, before augmentation.
	SearchCost float64 `json:"search_cost"`

	// Augmented lists the IDs of inserted conversion functions.
	Augmented []string `json:"augmented,omitempty"`
}

// Composition renders the plan as "f ∘ g".
func (p Plan) Composition() string {
	return p.Functions.String()
}

// Synthesizer plans compositions over one catalog.
type Synthesizer struct {
	catalog  *catalog.Catalog
	searcher *engine.Searcher
}

// New creates a synthesizer over cat.
func New(cat *catalog.Catalog) *Synthesizer {
	return &Synthesizer{catalog: cat, searcher: engine.NewSearcher(cat)}
}

// Catalog returns the catalog being planned over.
func (s *Synthesizer) Catalog() *catalog.Catalog {
	return s.catalog
}

// Plan searches for compositions from source to goal and augments each with
// unit conversions. Paths that would bridge incompatible unit dimensions are
// dropped and logged. Plans keep the search order. An empty slice means no
// composition was found; the error is only set when every found path was
// dropped, and then wraps the first dimension mismatch.
func (s *Synthesizer) Plan(ctx context.Context, source, goal string, opts engine.SearchOptions) ([]Plan, error) {
	return s.PlanWithUnits(ctx, Endpoints{Source: source, Goal: goal}, opts)
}

// Endpoints names the types a plan connects. InputType and OutputType
// declare the units the caller supplies and expects when they differ from
// Source and Goal; empty means the same type.
type Endpoints struct {
	InputType  string `json:"input_type,omitempty"`
	Source     string `json:"source" validate:"required"`
	Goal       string `json:"goal" validate:"required"`
	OutputType string `json:"output_type,omitempty"`
}

// PlanWithUnits searches from Source to Goal and augments each path as if
// the value entered as InputType and must leave as OutputType.
func (s *Synthesizer) PlanWithUnits(ctx context.Context, ep Endpoints, opts engine.SearchOptions) ([]Plan, error) {
	inType, outType := ep.InputType, ep.OutputType
	if inType == "" {
		inType = ep.Source
	}
	if outType == "" {
		outType = ep.Goal
	}

	results := s.searcher.Search(ctx, ep.Source, ep.Goal, opts)
	logger := telemetry.FromContext(ctx).NewComponentLogger("synth").WithEndpoints(ep.Source, ep.Goal)

	plans := make([]Plan, 0, len(results))
	var firstErr error
	for _, r := range results {
		augmented, err := units.Augment(s.catalog, r.Path, inType, outType)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logger.WithError(err).WithField("path", r.Path.String()).Warn("Dropping path with incompatible units")
			continue
		}
		plans = append(plans, newPlan(inType, outType, r, augmented))
	}

	if len(plans) == 0 && firstErr != nil {
		return plans, firstErr
	}
	return plans, nil
}

// Best returns the cheapest plan.
func (s *Synthesizer) Best(ctx context.Context, source, goal string, opts engine.SearchOptions) (Plan, error) {
	plans, err := s.Plan(ctx, source, goal, opts)
	if err != nil {
		return Plan{}, err
	}
	if len(plans) == 0 {
		return Plan{}, ErrNoPlan
	}
	return plans[0], nil
}

// ErrNoPlan is returned by Best when the goal is unreachable.
var ErrNoPlan = errors.New("no composition reaches the goal")

func newPlan(source, goal string, r engine.Result, path catalog.Path) Plan {
	var added []string
	for _, f := range path {
		if _, ok := f.Impl.(catalog.UnitConversion); ok && isSynthetic(r.Path, f.ID) {
			added = append(added, f.ID)
		}
	}
	return Plan{
		ID:          uuid.New().String(),
		Source:      source,
		Goal:        goal,
		Functions:   path,
		FunctionIDs: path.IDs(),
		Cost:        path.Cost(),
		Confidence:  path.Confidence(),
		SearchCost:  r.Cost,
		Augmented:   added,
	}
}

func isSynthetic(orig catalog.Path, id string) bool {
	for _, f := range orig {
		if f.ID == id {
			return false
		}
	}
	return true
}
