package stores

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/executor"
)

// NewRun builds the run record and step records of an executed path.
func NewRun(res *executor.Result, path catalog.Path) (*Run, []*Step, error) {
	input, err := encodeJSON(res.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode run input: %w", err)
	}
	output, err := encodeJSON(res.Value)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode run output: %w", err)
	}

	status := RunStatusSuccess
	if res.Degraded {
		status = RunStatusDegraded
	}

	started, completed := runSpan(res)
	run := &Run{
		ID:          res.ExecutionID,
		Source:      path.Source(),
		Goal:        path.Goal(),
		Functions:   path.IDs(),
		Cost:        path.Cost(),
		Confidence:  res.Confidence,
		Input:       input,
		Output:      output,
		Status:      status,
		StartedAt:   started,
		CompletedAt: &completed,
	}

	steps := make([]*Step, 0, len(res.Steps))
	for _, s := range res.Steps {
		step, err := newStep(res.ExecutionID, s)
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, step)
	}

	return run, steps, nil
}

// NewFailedRun builds the run record of an execution that stopped on an
// error before producing a result.
func NewFailedRun(id string, path catalog.Path, input any, execErr error) (*Run, error) {
	encoded, err := encodeJSON(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run input: %w", err)
	}

	now := time.Now().UTC()
	msg := execErr.Error()
	return &Run{
		ID:          id,
		Source:      path.Source(),
		Goal:        path.Goal(),
		Functions:   path.IDs(),
		Cost:        path.Cost(),
		Input:       encoded,
		Output:      "null",
		Status:      RunStatusFailed,
		Error:       &msg,
		StartedAt:   now,
		CompletedAt: &now,
	}, nil
}

func newStep(runID string, s executor.Step) (*Step, error) {
	input, err := encodeJSON(s.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input of step %d: %w", s.Index, err)
	}
	output, err := encodeJSON(s.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output of step %d: %w", s.Index, err)
	}
	metadata, err := encodeJSON(stepMetadata(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata of step %d: %w", s.Index, err)
	}

	return &Step{
		RunID:      runID,
		Seq:        s.Index,
		StepID:     s.ID,
		FunctionID: s.FunctionID,
		Signature:  s.Signature,
		ImplKind:   s.ImplKind,
		Input:      input,
		Output:     output,
		Confidence: s.Confidence,
		Degraded:   s.Degraded,
		Metadata:   metadata,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
	}, nil
}

// stepMetadata folds the step's parameters and data sources into its
// metadata so the stored row keeps them.
func stepMetadata(s executor.Step) map[string]any {
	meta := make(map[string]any, len(s.Metadata)+2)
	for k, v := range s.Metadata {
		meta[k] = v
	}
	if len(s.Params) > 0 {
		meta["parameters_used"] = s.Params
	}
	if len(s.DataSources) > 0 {
		meta["data_sources"] = s.DataSources
	}
	return meta
}

func runSpan(res *executor.Result) (time.Time, time.Time) {
	if len(res.Steps) == 0 {
		now := time.Now().UTC()
		return now, now
	}
	return res.Steps[0].StartedAt, res.Steps[len(res.Steps)-1].EndedAt
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
