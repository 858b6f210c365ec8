// Package api composes planning, execution, provenance and persistence into
// one Service, and exposes it over HTTP.
package api

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/engine"
	"github.com/openfroyo/typesynth/pkg/executor"
	"github.com/openfroyo/typesynth/pkg/provenance"
	"github.com/openfroyo/typesynth/pkg/stores"
	"github.com/openfroyo/typesynth/pkg/synth"
	"github.com/openfroyo/typesynth/pkg/telemetry"
)

// RunStore persists executions. *stores.SQLiteStore implements it.
type RunStore interface {
	SaveExecution(ctx context.Context, run *stores.Run, steps []*stores.Step, docs ...*stores.ProvenanceDocument) error
	GetRun(ctx context.Context, id string) (*stores.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*stores.Run, error)
	ListSteps(ctx context.Context, runID string) ([]*stores.Step, error)
	GetProvenance(ctx context.Context, runID, format string) (*stores.ProvenanceDocument, error)
}

// storedFormats are the provenance serializations saved with each run.
var storedFormats = []provenance.Format{provenance.FormatTurtle, provenance.FormatJSON}

// Service plans and executes compositions over a replaceable catalog.
type Service struct {
	mu    sync.RWMutex
	synth *synth.Synthesizer

	exec        *executor.PathExecutor
	store       RunStore
	recorder    *provenance.Recorder
	searchOpts  engine.SearchOptions
	execOpts    executor.Options
	concurrency int
	planLimit   int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithStore persists every execution.
func WithStore(s RunStore) ServiceOption {
	return func(svc *Service) { svc.store = s }
}

// WithRecorder sets the provenance recorder.
func WithRecorder(r *provenance.Recorder) ServiceOption {
	return func(svc *Service) { svc.recorder = r }
}

// WithSearchOptions sets the default search budget.
func WithSearchOptions(opts engine.SearchOptions) ServiceOption {
	return func(svc *Service) { svc.searchOpts = opts }
}

// WithExecutionOptions sets the default execution options.
func WithExecutionOptions(opts executor.Options) ServiceOption {
	return func(svc *Service) { svc.execOpts = opts }
}

// WithConcurrency bounds how many plans execute at once.
func WithConcurrency(n int) ServiceOption {
	return func(svc *Service) { svc.concurrency = n }
}

// WithPlanLimit caps the number of plans returned by Search; 0 is no cap.
func WithPlanLimit(n int) ServiceOption {
	return func(svc *Service) { svc.planLimit = n }
}

// NewService creates a service over cat.
func NewService(cat *catalog.Catalog, exec *executor.PathExecutor, opts ...ServiceOption) *Service {
	svc := &Service{
		synth:       synth.New(cat),
		exec:        exec,
		recorder:    provenance.NewRecorder(),
		searchOpts:  engine.DefaultSearchOptions(),
		execOpts:    executor.Options{Params: executor.DefaultParams()},
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Catalog returns the current catalog.
func (s *Service) Catalog() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synth.Catalog()
}

// SetCatalog replaces the catalog. Searches already running keep the old one.
func (s *Service) SetCatalog(cat *catalog.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth = synth.New(cat)
}

func (s *Service) synthesizer() *synth.Synthesizer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synth
}

// SearchRequest asks for compositions between two types.
type SearchRequest struct {
	synth.Endpoints

	// MaxCost and MaxSteps override the default budget when positive.
	MaxCost  float64 `json:"max_cost,omitempty"`
	MaxSteps int     `json:"max_steps,omitempty"`
}

func (s *Service) searchOptions(req SearchRequest) engine.SearchOptions {
	opts := s.searchOpts
	if req.MaxCost > 0 {
		opts.MaxCost = req.MaxCost
	}
	if req.MaxSteps > 0 {
		opts.MaxSteps = req.MaxSteps
	}
	return opts
}

// Search returns the augmented plans from source to goal, cheapest first.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]synth.Plan, error) {
	if req.Source == "" || req.Goal == "" {
		return nil, engine.NewPermanentError("source and goal are required", nil).
			WithCode(engine.ErrCodeValidation)
	}

	plans, err := s.synthesizer().PlanWithUnits(ctx, req.Endpoints, s.searchOptions(req))
	if err != nil {
		return nil, err
	}
	if s.planLimit > 0 && len(plans) > s.planLimit {
		plans = plans[:s.planLimit]
	}
	return plans, nil
}

// ExecuteRequest asks for a composition to be found and run.
type ExecuteRequest struct {
	SearchRequest

	// Input is the source value: a number, a list for product types, or a
	// string.
	Input any `json:"input"`

	// Params override the default runtime parameters.
	Params map[string]float64 `json:"params,omitempty"`

	// MockMode overrides the default when set.
	MockMode *bool `json:"mock_mode,omitempty"`

	// All runs every plan instead of only the cheapest.
	All bool `json:"all,omitempty"`
}

// Execution is the outcome of running one plan.
type Execution struct {
	Plan       synth.Plan        `json:"plan"`
	Result     *executor.Result  `json:"result,omitempty"`
	Provenance *provenance.Graph `json:"provenance,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Execute plans req and runs the cheapest plan, or every plan when req.All
// is set. Failed plans are reported in their Execution, not as an error.
// When no plan reaches the goal the error has code NOT_FOUND.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) ([]Execution, error) {
	plans, err := s.Search(ctx, req.SearchRequest)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, engine.NewNotFoundError("composition", req.Source+" -> "+req.Goal)
	}
	if !req.All {
		plans = plans[:1]
	}

	opts := s.execOpts
	opts.Params = executor.MergeParams(opts.Params, req.Params)
	if req.MockMode != nil {
		opts.MockMode = *req.MockMode
	}

	paths := make([]catalog.Path, len(plans))
	for i, p := range plans {
		paths[i] = p.Functions
	}
	outcomes, err := s.exec.ExecuteAll(ctx, paths, req.Input, opts, s.concurrency)
	if err != nil {
		return nil, err
	}

	logger := telemetry.FromContext(ctx).NewComponentLogger("api")
	executions := make([]Execution, len(plans))
	for i, out := range outcomes {
		ex := Execution{Plan: plans[i], Result: out.Result}
		if out.Err != nil {
			ex.Error = out.Err.Error()
		} else {
			ex.Provenance = s.recorder.RecordSynthesis(out.Result.ExecutionID, plans[i].Goal, req.Input, out.Result.Value, out.Result.Steps)
		}
		if err := s.save(ctx, ex, req.Input, out.Err); err != nil {
			logger.WithError(err).WithField("plan", plans[i].ID).Warn("Failed to store execution")
		}
		executions[i] = ex
	}
	return executions, nil
}

// save stores an execution. Failed executions are stored under the plan ID.
func (s *Service) save(ctx context.Context, ex Execution, input any, execErr error) error {
	if s.store == nil {
		return nil
	}

	if execErr != nil {
		run, err := stores.NewFailedRun(ex.Plan.ID, ex.Plan.Functions, input, execErr)
		if err != nil {
			return err
		}
		return s.store.SaveExecution(ctx, run, nil)
	}

	run, steps, err := stores.NewRun(ex.Result, ex.Plan.Functions)
	if err != nil {
		return err
	}
	docs := make([]*stores.ProvenanceDocument, 0, len(storedFormats))
	for _, format := range storedFormats {
		var buf bytes.Buffer
		if err := provenance.Encode(&buf, ex.Provenance, format); err != nil {
			return fmt.Errorf("failed to encode provenance as %s: %w", format, err)
		}
		docs = append(docs, &stores.ProvenanceDocument{RunID: run.ID, Format: string(format), Document: buf.String()})
	}
	return s.store.SaveExecution(ctx, run, steps, docs...)
}

// Store returns the run store, or nil when runs are not persisted.
func (s *Service) Store() RunStore {
	return s.store
}
