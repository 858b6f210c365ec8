package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is reported but does not block the access.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the access.
	SeverityError Severity = "error"

	// SeverityCritical blocks the access.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity deny an access.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description.
	Description string `json:"description" yaml:"description"`

	// Rego contains the Rego policy code. Violations are collected from
	// the package's deny set.
	Rego string `json:"rego" yaml:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity" yaml:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty" yaml:"-"`

	// LoadedAt is when the policy was loaded.
	LoadedAt time.Time `json:"loaded_at" yaml:"-"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Function is the function whose access violated the policy.
	Function string `json:"function,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the result of evaluating all enabled policies.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists non-blocking violations.
	Warnings []Violation `json:"warnings,omitempty"`

	// Errors lists policies that failed to evaluate.
	Errors []string `json:"errors,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policies were evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document policies are evaluated against.
type Input struct {
	// Function is the function about to access an external source.
	Function FunctionInput `json:"function"`

	// Impl is the implementation descriptor of the function.
	Impl map[string]string `json:"impl"`

	// Kind is the implementation kind, "query" or "call".
	Kind string `json:"kind"`

	// Method is the HTTP method of a call.
	Method string `json:"method,omitempty"`

	// URL is the resolved call URL.
	URL string `json:"url,omitempty"`

	// Endpoint is the query endpoint.
	Endpoint string `json:"endpoint,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}

// FunctionInput is the catalog view of a function exposed to policies.
type FunctionInput struct {
	ID         string  `json:"id"`
	Signature  string  `json:"signature"`
	Cost       float64 `json:"cost"`
	Confidence float64 `json:"confidence"`
}
