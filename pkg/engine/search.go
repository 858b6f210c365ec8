package engine

import (
	"container/heap"
	"context"
	"sort"
	"time"

	"github.com/openfroyo/typesynth/pkg/catalog"
	"github.com/openfroyo/typesynth/pkg/telemetry"
)

// Search budget defaults.
const (
	DefaultMaxCost  = 50.0
	DefaultMaxSteps = 10000
)

// SearchOptions bounds a search.
type SearchOptions struct {
	// MaxCost is the inclusive ceiling on accumulated path cost.
	MaxCost float64 `json:"max_cost" yaml:"max_cost" validate:"gte=0"`

	// MaxSteps caps the number of queue pops.
	MaxSteps int `json:"max_steps" yaml:"max_steps" validate:"gte=1"`
}

// DefaultSearchOptions returns the default search budget.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{MaxCost: DefaultMaxCost, MaxSteps: DefaultMaxSteps}
}

// Result is one composition found by a search.
type Result struct {
	// Cost is the accumulated cost of Path.
	Cost float64 `json:"cost"`

	// Path lists the functions in data-flow order.
	Path catalog.Path `json:"-"`
}

// Confidence returns the product of the path's confidences.
func (r Result) Confidence() float64 {
	return r.Path.Confidence()
}

// SearchStats describes the work done by a search.
type SearchStats struct {
	Steps     int           `json:"steps"`
	Pruned    int           `json:"pruned"`
	Exhausted bool          `json:"exhausted"`
	Duration  time.Duration `json:"duration"`
}

// frontier is a pending queue entry.
type frontier struct {
	cost float64
	seq  uint64
	node string
	path catalog.Path
}

// frontierQueue orders entries by cost, then insertion sequence.
type frontierQueue []*frontier

func (q frontierQueue) Len() int { return len(q) }

func (q frontierQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].seq < q[j].seq
}

func (q frontierQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *frontierQueue) Push(x any) { *q = append(*q, x.(*frontier)) }

func (q *frontierQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Searcher runs backward weighted searches over a catalog.
type Searcher struct {
	catalog *catalog.Catalog
}

// NewSearcher creates a searcher over cat.
func NewSearcher(cat *catalog.Catalog) *Searcher {
	return &Searcher{catalog: cat}
}

// Catalog returns the catalog the searcher was built with.
func (s *Searcher) Catalog() *catalog.Catalog {
	return s.catalog
}

// Search finds compositions from source to goal ordered by ascending cost.
// An empty result means no composition exists within the budget.
// Telemetry attached to ctx receives a span, metrics and an event.
func (s *Searcher) Search(ctx context.Context, source, goal string, opts SearchOptions) []Result {
	op := telemetry.StartOperation(ctx, "search",
		telemetry.AttrSourceType.String(source),
		telemetry.AttrGoalType.String(goal),
	)
	results, stats := SearchWithStats(s.catalog, source, goal, opts)
	op.Span.SetAttributes(
		telemetry.AttrSearchSteps.Int(stats.Steps),
		telemetry.AttrPathCount.Int(len(results)),
	)
	op.End(nil)

	op.Metrics().RecordSearch(len(results), stats.Exhausted, stats.Duration)
	_ = op.Events().PublishSearchCompleted(source, goal, len(results), stats.Steps)
	op.Logger.WithEndpoints(source, goal).WithFields(map[string]interface{}{
		"paths":     len(results),
		"steps":     stats.Steps,
		"pruned":    stats.Pruned,
		"exhausted": stats.Exhausted,
	}).Debug("Search completed")

	return results
}

// Search is the stateless form of Searcher.Search.
func Search(cat *catalog.Catalog, source, goal string, opts SearchOptions) []Result {
	results, _ := SearchWithStats(cat, source, goal, opts)
	return results
}

// SearchWithStats runs the backward search and reports its statistics.
//
// The queue is seeded at goal. A popped entry whose node equals source is a
// complete answer; the queue keeps draining so costlier alternatives are
// also returned. Re-expansion of a node already reached at least as cheaply
// is pruned on dequeue.
func SearchWithStats(cat *catalog.Catalog, source, goal string, opts SearchOptions) ([]Result, SearchStats) {
	start := time.Now()
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}

	var stats SearchStats
	if source == goal {
		stats.Duration = time.Since(start)
		return []Result{{Cost: 0, Path: catalog.Path{}}}, stats
	}

	var seq uint64
	q := &frontierQueue{{cost: 0, seq: seq, node: goal}}
	best := make(map[string]float64)
	results := make([]Result, 0)

	for q.Len() > 0 {
		if stats.Steps >= opts.MaxSteps {
			stats.Exhausted = true
			break
		}
		cur := heap.Pop(q).(*frontier)
		stats.Steps++

		if cur.node == source {
			results = append(results, Result{Cost: cur.cost, Path: cur.path})
			continue
		}

		if prev, seen := best[cur.node]; seen && cur.cost >= prev {
			stats.Pruned++
			continue
		}
		best[cur.node] = cur.cost

		for _, f := range cat.ByCodomain(cur.node) {
			if cat.ArityMismatch(f) {
				continue
			}
			next := cur.cost + f.Cost
			if next > opts.MaxCost {
				continue
			}
			path := make(catalog.Path, 0, len(cur.path)+1)
			path = append(path, f)
			path = append(path, cur.path...)
			seq++
			heap.Push(q, &frontier{cost: next, seq: seq, node: f.Dom, path: path})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Cost < results[j].Cost
	})
	stats.Duration = time.Since(start)
	return results, stats
}

// RankByConfidence reorders results so that, among entries of equal cost,
// higher confidence comes first. Cost ordering is preserved.
func RankByConfidence(results []Result) []Result {
	out := append([]Result(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		return out[i].Confidence() > out[j].Confidence()
	})
	return out
}
