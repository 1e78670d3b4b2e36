// Package scheduler implements the dependency scheduler (C7): layers test
// cases by prerequisite using an iterative Kahn's-algorithm topological
// sort, then drives a bounded worker pool per layer that gates and
// dispatches each test to the single-test runner (C6).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/ormasoftchile/apiforge/internal/model"
	"github.com/ormasoftchile/apiforge/internal/substitute"
)

// Layers holds the result of BuildLayers: an ordered list of test-ID layers
// to run sequentially, plus the IDs that never reach in-degree zero
// (cycle participants and every test downstream of a cycle). Unknown
// prerequisites are dropped before layering and never block a test.
type Layers struct {
	ByLayer [][]string
	Blocked []string
}

// BuildLayers runs Kahn's algorithm iteratively (no recursion, so an
// arbitrarily deep or cyclic graph cannot overflow the call stack). Edges
// to unknown IDs and self-edges are dropped with a warning before layering
// begins. Within each layer, and within Blocked, IDs are ordered by their
// first position in cases (input declaration order).
func BuildLayers(cases []model.TestCase, logger *slog.Logger) Layers {
	if logger == nil {
		logger = slog.Default()
	}

	ids := make(map[string]bool, len(cases))
	pos := make(map[string]int, len(cases))
	for i, tc := range cases {
		ids[tc.TestCaseId] = true
		if _, seen := pos[tc.TestCaseId]; !seen {
			pos[tc.TestCaseId] = i
		}
	}
	byInputOrder := func(s []string) {
		sort.Slice(s, func(i, j int) bool { return pos[s[i]] < pos[s[j]] })
	}

	adjacency := make(map[string][]string, len(cases))
	inDegree := make(map[string]int, len(cases))
	for _, tc := range cases {
		inDegree[tc.TestCaseId] = 0
	}
	for _, tc := range cases {
		for _, prereq := range tc.Prerequisites {
			if prereq == tc.TestCaseId {
				logger.Warn("scheduler: dropping self-prerequisite", "testCaseId", tc.TestCaseId)
				continue
			}
			if !ids[prereq] {
				logger.Warn("scheduler: dropping unknown prerequisite", "testCaseId", tc.TestCaseId, "prerequisite", prereq)
				continue
			}
			adjacency[prereq] = append(adjacency[prereq], tc.TestCaseId)
			inDegree[tc.TestCaseId]++
		}
	}

	remaining := make(map[string]int, len(inDegree))
	for id, deg := range inDegree {
		remaining[id] = deg
	}

	var layers [][]string
	for len(remaining) > 0 {
		var layer []string
		for id, deg := range remaining {
			if deg == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			break // nothing left can reach in-degree zero: a cycle remains
		}
		byInputOrder(layer)
		for _, id := range layer {
			delete(remaining, id)
		}
		for _, id := range layer {
			for _, dependent := range adjacency[id] {
				if _, ok := remaining[dependent]; ok {
					remaining[dependent]--
				}
			}
		}
		layers = append(layers, layer)
	}

	var blocked []string
	for id := range remaining {
		blocked = append(blocked, id)
	}
	byInputOrder(blocked)

	return Layers{ByLayer: layers, Blocked: blocked}
}

// Dispatch runs one gated test case under the given effective variable
// context and returns its result. The coordinator supplies this, already
// bound to the shared HTTP client and runner configuration.
type Dispatch func(ctx context.Context, tc model.TestCase, vars substitute.Context) model.TestCaseResult

// RunOptions carries the shared, run-wide settings the scheduler needs
// beyond per-test dispatch.
type RunOptions struct {
	GlobalVariables        substitute.Context
	MaxDegreeOfParallelism int
	Logger                 *slog.Logger
}

// Execute runs every case in cases through its dependency layers,
// returning results in layer-ascending order (blocked-cycle results last).
// Within a layer, at most MaxDegreeOfParallelism tests run concurrently;
// the scheduler advances to the next layer only once every test in the
// current one has produced a result — this guarantees prerequisite
// variables are visible when dependents assemble their contexts. A panic
// inside a worker is recovered and reported as an Error result carrying
// the stack trace.
func Execute(ctx context.Context, cases []model.TestCase, opts RunOptions, dispatch Dispatch) []model.TestCaseResult {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	byID := make(map[string]model.TestCase, len(cases))
	for _, tc := range cases {
		byID[tc.TestCaseId] = tc
	}

	layers := BuildLayers(cases, logger)

	var results []model.TestCaseResult
	resultByID := make(map[string]model.TestCaseResult, len(cases))

	workers := opts.MaxDegreeOfParallelism
	if workers < 1 {
		workers = 1
	}

	for _, layer := range layers.ByLayer {
		layerResults := make([]model.TestCaseResult, len(layer))
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup

		for i, id := range layer {
			tc := byID[id]
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, tc model.TestCase) {
				defer wg.Done()
				defer func() { <-sem }()
				defer func() {
					if p := recover(); p != nil {
						layerResults[i] = model.TestCaseResult{
							TestCaseId:   tc.TestCaseId,
							Name:         tc.Name,
							Status:       model.StatusError,
							ErrorMessage: fmt.Sprintf("internal error: %v", p),
							Stack:        string(debug.Stack()),
						}
					}
				}()
				layerResults[i] = runGated(ctx, tc, resultByID, opts.GlobalVariables, dispatch)
			}(i, tc)
		}
		wg.Wait()

		for _, r := range layerResults {
			results = append(results, r)
			resultByID[r.TestCaseId] = r
		}
	}

	for _, id := range layers.Blocked {
		tc := byID[id]
		r := model.TestCaseResult{
			TestCaseId:   tc.TestCaseId,
			Name:         tc.Name,
			Status:       model.StatusBlocked,
			ErrorMessage: "circular dependency or missing prerequisite",
		}
		results = append(results, r)
		resultByID[r.TestCaseId] = r
	}

	return results
}

// runGated applies the per-test gating rules (Skip, failed prerequisite)
// before handing off to dispatch, and assembles the effective variable
// context per the spec's overlay precedence: global, then each
// prerequisite's extracted variables in declaration order (later
// prerequisites override earlier ones on conflict), then the test's own
// Variables.
func runGated(
	ctx context.Context,
	tc model.TestCase,
	resultByID map[string]model.TestCaseResult,
	global substitute.Context,
	dispatch Dispatch,
) model.TestCaseResult {
	if tc.Skip {
		return model.TestCaseResult{
			TestCaseId:   tc.TestCaseId,
			Name:         tc.Name,
			Status:       model.StatusSkipped,
			ErrorMessage: "skipped",
		}
	}

	layers := []substitute.Context{global}
	for _, prereqID := range tc.Prerequisites {
		prereqResult, ok := resultByID[prereqID]
		if !ok {
			continue
		}
		if prereqResult.Status != model.StatusPassed {
			return model.TestCaseResult{
				TestCaseId:   tc.TestCaseId,
				Name:         tc.Name,
				Status:       model.StatusBlocked,
				ErrorMessage: "circular dependency or missing prerequisite",
			}
		}
		layers = append(layers, substitute.Context(prereqResult.ExtractedVariables))
	}
	layers = append(layers, substitute.Context(tc.Variables))

	vars := substitute.Merge(layers...)
	return dispatch(ctx, tc, vars)
}
