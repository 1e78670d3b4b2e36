package scheduler

import (
	"context"
	"testing"

	"github.com/ormasoftchile/apiforge/internal/model"
	"github.com/ormasoftchile/apiforge/internal/substitute"
)

func TestBuildLayersSimpleChain(t *testing.T) {
	cases := []model.TestCase{
		{TestCaseId: "a"},
		{TestCaseId: "b", Prerequisites: []string{"a"}},
		{TestCaseId: "c", Prerequisites: []string{"b"}},
	}
	layers := BuildLayers(cases, nil)
	if len(layers.ByLayer) != 3 {
		t.Fatalf("expected 3 layers, got %d: %+v", len(layers.ByLayer), layers.ByLayer)
	}
	if layers.ByLayer[0][0] != "a" || layers.ByLayer[1][0] != "b" || layers.ByLayer[2][0] != "c" {
		t.Fatalf("got %+v", layers.ByLayer)
	}
}

func TestBuildLayersParallelWithinLayer(t *testing.T) {
	cases := []model.TestCase{
		{TestCaseId: "a"},
		{TestCaseId: "b"},
		{TestCaseId: "c", Prerequisites: []string{"a", "b"}},
	}
	layers := BuildLayers(cases, nil)
	if len(layers.ByLayer) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(layers.ByLayer))
	}
	if len(layers.ByLayer[0]) != 2 {
		t.Fatalf("expected a,b in same layer, got %+v", layers.ByLayer[0])
	}
}

func TestBuildLayersCycleGoesToBlocked(t *testing.T) {
	cases := []model.TestCase{
		{TestCaseId: "a", Prerequisites: []string{"b"}},
		{TestCaseId: "b", Prerequisites: []string{"a"}},
	}
	layers := BuildLayers(cases, nil)
	if len(layers.ByLayer) != 0 {
		t.Fatalf("expected no progress, got %+v", layers.ByLayer)
	}
	if len(layers.Blocked) != 2 {
		t.Fatalf("expected both nodes blocked, got %+v", layers.Blocked)
	}
}

func TestBuildLayersSelfPrerequisiteDropped(t *testing.T) {
	cases := []model.TestCase{
		{TestCaseId: "a", Prerequisites: []string{"a"}},
	}
	layers := BuildLayers(cases, nil)
	if len(layers.ByLayer) != 1 || layers.ByLayer[0][0] != "a" {
		t.Fatalf("expected self-prereq dropped and node still runs: %+v", layers)
	}
	if len(layers.Blocked) != 0 {
		t.Fatalf("expected not blocked, got %+v", layers.Blocked)
	}
}

func TestBuildLayersUnknownPrerequisiteDropped(t *testing.T) {
	cases := []model.TestCase{
		{TestCaseId: "a", Prerequisites: []string{"ghost"}},
	}
	layers := BuildLayers(cases, nil)
	if len(layers.ByLayer) != 1 || layers.ByLayer[0][0] != "a" {
		t.Fatalf("expected node to still run: %+v", layers)
	}
}

func TestExecuteEmptyInput(t *testing.T) {
	results := Execute(context.Background(), nil, RunOptions{}, func(ctx context.Context, tc model.TestCase, vars substitute.Context) model.TestCaseResult {
		t.Fatalf("dispatch should not be called")
		return model.TestCaseResult{}
	})
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestExecuteSkipProducesSkippedWithoutDispatch(t *testing.T) {
	cases := []model.TestCase{{TestCaseId: "a", Skip: true}}
	called := false
	results := Execute(context.Background(), cases, RunOptions{MaxDegreeOfParallelism: 1}, func(ctx context.Context, tc model.TestCase, vars substitute.Context) model.TestCaseResult {
		called = true
		return model.TestCaseResult{TestCaseId: tc.TestCaseId, Status: model.StatusPassed}
	})
	if called {
		t.Fatalf("dispatch must not be called for Skip=true")
	}
	if len(results) != 1 || results[0].Status != model.StatusSkipped {
		t.Fatalf("got %+v", results)
	}
}

func TestExecuteFailedPrerequisiteBlocksDependent(t *testing.T) {
	cases := []model.TestCase{
		{TestCaseId: "a"},
		{TestCaseId: "b", Prerequisites: []string{"a"}},
	}
	results := Execute(context.Background(), cases, RunOptions{MaxDegreeOfParallelism: 1}, func(ctx context.Context, tc model.TestCase, vars substitute.Context) model.TestCaseResult {
		return model.TestCaseResult{TestCaseId: tc.TestCaseId, Status: model.StatusFailed}
	})
	var bResult *model.TestCaseResult
	for i := range results {
		if results[i].TestCaseId == "b" {
			bResult = &results[i]
		}
	}
	if bResult == nil || bResult.Status != model.StatusBlocked {
		t.Fatalf("expected b blocked, got %+v", bResult)
	}
}

func TestExecuteVariableOverlayPrecedence(t *testing.T) {
	cases := []model.TestCase{
		{TestCaseId: "a"},
		{TestCaseId: "b", Prerequisites: []string{"a"}, Variables: map[string]string{"x": "test-scoped"}},
	}
	var capturedVars substitute.Context
	results := Execute(context.Background(), cases, RunOptions{
		GlobalVariables:        substitute.Context{"x": "global"},
		MaxDegreeOfParallelism: 1,
	}, func(ctx context.Context, tc model.TestCase, vars substitute.Context) model.TestCaseResult {
		if tc.TestCaseId == "a" {
			return model.TestCaseResult{TestCaseId: "a", Status: model.StatusPassed, ExtractedVariables: map[string]string{"x": "from-a"}}
		}
		capturedVars = vars
		return model.TestCaseResult{TestCaseId: "b", Status: model.StatusPassed}
	})
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if capturedVars["x"] != "test-scoped" {
		t.Fatalf("expected test-scoped variable to win, got %q", capturedVars["x"])
	}
}
