package server

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/apiforge/internal/model"
)

// StaticGenerator returns one deterministic placeholder test case per
// selected endpoint, asserting only that the response is a successful
// status code. A real deployment swaps this for an LLM-backed generator
// that renders a prompt from the uploaded spec, sends it to an LLM, and
// feeds the model's text through internal/extractor to get []model.TestCase.
type StaticGenerator struct{}

func (StaticGenerator) Generate(swaggerFilePath string, selectedEndpoints []string) ([]model.TestCase, error) {
	cases := make([]model.TestCase, 0, len(selectedEndpoints))
	for i, ep := range selectedEndpoints {
		method, path, ok := strings.Cut(ep, " ")
		if !ok {
			return nil, fmt.Errorf("malformed endpoint descriptor %q, want \"<METHOD> <path>\"", ep)
		}
		cases = append(cases, model.TestCase{
			TestCaseId: fmt.Sprintf("generated-%d", i+1),
			Name:       fmt.Sprintf("%s %s returns a successful status", method, path),
			Request: model.Request{
				Method: model.Method(strings.ToUpper(method)),
				Path:   path,
			},
			Assertions: []model.Assertion{
				{
					Type:          model.AssertStatusCode,
					Condition:     model.ConditionGreaterThanOrEqual,
					ExpectedValue: 200,
				},
				{
					Type:          model.AssertStatusCode,
					Condition:     model.ConditionLessThan,
					ExpectedValue: 300,
				},
			},
		})
	}
	return cases, nil
}
