package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/typesynth/pkg/catalog"
)

// Outcome pairs a path with the result or error of executing it.
type Outcome struct {
	Path   catalog.Path `json:"-"`
	Result *Result      `json:"result,omitempty"`
	Err    error        `json:"-"`
}

// ExecuteAll runs every path against the same input with at most
// concurrency executions in flight. Outcomes are returned in path order.
// A failing path does not cancel the others; only cancellation of ctx does.
func (e *PathExecutor) ExecuteAll(ctx context.Context, paths []catalog.Path, input any, opts Options, concurrency int) ([]Outcome, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	outcomes := make([]Outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, path := range paths {
		outcomes[i].Path = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.Execute(gctx, path, input, opts)
			outcomes[i].Result = res
			outcomes[i].Err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}
