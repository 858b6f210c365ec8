package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunStatus represents the outcome of an execution run
type RunStatus string

const (
	RunStatusSuccess  RunStatus = "success"
	RunStatusDegraded RunStatus = "degraded"
	RunStatusFailed   RunStatus = "failed"
)

// Run represents one executed path
type Run struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Goal        string     `json:"goal"`
	Functions   []string   `json:"functions"`
	Cost        float64    `json:"cost"`
	Confidence  float64    `json:"confidence"`
	Input       string     `json:"input"`  // JSON blob
	Output      string     `json:"output"` // JSON blob
	Status      RunStatus  `json:"status"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Step represents one function execution within a run
type Step struct {
	RunID      string    `json:"run_id"`
	Seq        int       `json:"seq"`
	StepID     string    `json:"step_id"`
	FunctionID string    `json:"function_id"`
	Signature  string    `json:"signature"`
	ImplKind   string    `json:"impl_kind"`
	Input      string    `json:"input"`  // JSON blob
	Output     string    `json:"output"` // JSON blob
	Confidence float64   `json:"confidence"`
	Degraded   bool      `json:"degraded"`
	Metadata   string    `json:"metadata"` // JSON blob
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// ProvenanceDocument is a serialized provenance graph for a run
type ProvenanceDocument struct {
	RunID     string    `json:"run_id"`
	Format    string    `json:"format"`
	Document  string    `json:"document"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Run operations
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Step operations
	SaveSteps(ctx context.Context, steps []*Step) error
	ListSteps(ctx context.Context, runID string) ([]*Step, error)

	// Provenance operations
	SaveProvenance(ctx context.Context, doc *ProvenanceDocument) error
	GetProvenance(ctx context.Context, runID, format string) (*ProvenanceDocument, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
