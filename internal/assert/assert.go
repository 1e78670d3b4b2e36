// Package assert implements the assertion evaluator (C3): applies a
// (type, target, condition, expectedValue) tuple to an HTTP response and
// produces an AssertionResult. Evaluation never panics outward — any
// failure to resolve a value yields passed=false with an explanatory
// message, never a thrown error.
package assert

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ormasoftchile/apiforge/internal/jsonpath"
	"github.com/ormasoftchile/apiforge/internal/model"
	"github.com/ormasoftchile/apiforge/internal/substitute"
)

// Response is the subset of an HTTP response the evaluator needs. Headers
// are case-insensitive and multi-valued (as net/http.Header already is).
type Response struct {
	StatusCode  int
	Headers     map[string][]string
	Body        string
	DurationMs  int64
}

// Evaluate applies one Assertion against resp, under variable context ctx,
// and returns its result. ExpectedValue, when a string, is expanded
// through the substitutor before comparison.
func Evaluate(a model.Assertion, resp Response, ctx substitute.Context, logger *slog.Logger) model.AssertionResult {
	if logger == nil {
		logger = slog.Default()
	}
	expected := expandExpected(a.ExpectedValue, ctx, logger)

	result := model.AssertionResult{
		Type:      a.Type,
		Target:    a.Target,
		Condition: a.Condition,
		Expected:  expected,
	}

	switch a.Type {
	case model.AssertStatusCode:
		passed, actual := evalNumeric(float64(resp.StatusCode), expected, a.Condition)
		return finish(result, passed, actual)
	case model.AssertResponseTime:
		passed, actual := evalNumeric(float64(resp.DurationMs), expected, a.Condition)
		return finish(result, passed, actual)
	case model.AssertHeaderExists:
		_, ok := findHeader(resp.Headers, a.Target)
		passed, actual := evalBoolCondition(ok, a.Condition)
		return finish(result, passed, actual)
	case model.AssertHeaderValue:
		v, _ := findHeader(resp.Headers, a.Target)
		passed, actual := evalValue(v, expected, a.Condition)
		return finish(result, passed, actual)
	case model.AssertBodyContainsString, model.AssertBodyEqualsString, model.AssertBodyMatchesRegex:
		passed, actual := evalValue(resp.Body, expected, a.Condition)
		return finish(result, passed, actual)
	case model.AssertJsonPathValue:
		return evalJSONPathValue(result, resp.Body, a.Target, expected, a.Condition)
	case model.AssertJsonPathExists:
		return evalJSONPathExists(result, resp.Body, a.Target, true)
	case model.AssertJsonPathNotExists:
		return evalJSONPathExists(result, resp.Body, a.Target, false)
	case model.AssertArrayLength:
		return evalArrayLength(result, resp.Body, a.Target, expected, a.Condition)
	case model.AssertArrayContains:
		return evalArrayContains(result, resp.Body, a.Target, expected)
	case model.AssertJsonSchemaValidation:
		return evalJSONSchema(result, resp.Body, expected)
	case model.AssertXmlPathValue, model.AssertXmlSchemaValidation:
		result.Passed = false
		result.Message = fmt.Sprintf("Assertion failed. Expected: %v (%s), Actual: XML assertions are not supported", expected, a.Condition)
		return result
	default:
		result.Passed = false
		result.Message = fmt.Sprintf("Assertion failed. Expected: %v (%s), Actual: unknown assertion type %q", expected, a.Condition, a.Type)
		return result
	}
}

func expandExpected(v any, ctx substitute.Context, logger *slog.Logger) any {
	if s, ok := v.(string); ok {
		return substitute.Expand(s, ctx, logger)
	}
	return v
}

func finish(r model.AssertionResult, passed bool, actual string) model.AssertionResult {
	r.ActualValue = truncate(actual, 500)
	r.Passed = passed
	if !passed {
		r.Message = fmt.Sprintf("Assertion failed. Expected: %v (%s), Actual: %s", r.Expected, r.Condition, r.ActualValue)
	}
	return r
}

func findHeader(headers map[string][]string, target string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, target) {
			return strings.Join(v, ","), true
		}
	}
	return "", false
}

func toFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func valueToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// evalNumeric handles Equals/NotEquals/ordering conditions for a numeric
// observed value against a (possibly string) expected value.
func evalNumeric(observed float64, expected any, cond model.Condition) (bool, string) {
	actual := strconv.FormatFloat(observed, 'f', -1, 64)
	expF, ok := toFloat(valueToString(expected))
	if !ok {
		return false, actual
	}
	switch cond {
	case model.ConditionEquals:
		return observed == expF, actual
	case model.ConditionNotEquals:
		return observed != expF, actual
	case model.ConditionGreaterThan:
		return observed > expF, actual
	case model.ConditionGreaterThanOrEqual:
		return observed >= expF, actual
	case model.ConditionLessThan:
		return observed < expF, actual
	case model.ConditionLessThanOrEqual:
		return observed <= expF, actual
	default:
		return false, actual
	}
}

// evalBoolCondition handles Exists/NotExists over a boolean "presence"
// fact; any other condition fails.
func evalBoolCondition(present bool, cond model.Condition) (bool, string) {
	actual := strconv.FormatBool(present)
	switch cond {
	case model.ConditionExists:
		return present, actual
	case model.ConditionNotExists:
		return !present, actual
	default:
		return false, actual
	}
}

// evalValue handles the ordinal/case-sensitive string comparators, numeric
// ordering when both sides parse as numbers, containment, regex, and
// emptiness/nullness conditions over a single observed string.
func evalValue(observed string, expected any, cond model.Condition) (bool, string) {
	expStr := valueToString(expected)
	switch cond {
	case model.ConditionEquals:
		if of, oOk := toFloat(observed); oOk {
			if ef, eOk := toFloat(expStr); eOk {
				return of == ef, observed
			}
		}
		return observed == expStr, observed
	case model.ConditionNotEquals:
		if of, oOk := toFloat(observed); oOk {
			if ef, eOk := toFloat(expStr); eOk {
				return of != ef, observed
			}
		}
		return observed != expStr, observed
	case model.ConditionGreaterThan, model.ConditionGreaterThanOrEqual, model.ConditionLessThan, model.ConditionLessThanOrEqual:
		of, oOk := toFloat(observed)
		ef, eOk := toFloat(expStr)
		if !oOk || !eOk {
			return false, observed
		}
		return evalNumeric(of, ef, cond)
	case model.ConditionContains:
		return strings.Contains(observed, expStr), observed
	case model.ConditionMatchesRegex:
		re, err := regexp.Compile(expStr)
		if err != nil {
			return false, observed
		}
		return re.MatchString(observed), observed
	case model.ConditionNotMatchesRegex:
		re, err := regexp.Compile(expStr)
		if err != nil {
			return false, observed
		}
		return !re.MatchString(observed), observed
	case model.ConditionIsEmpty:
		return observed == "", observed
	case model.ConditionIsNotEmpty:
		return observed != "", observed
	case model.ConditionIsNull:
		return observed == "", observed
	case model.ConditionIsNotNull:
		return observed != "", observed
	default:
		return false, observed
	}
}

func evalJSONPathValue(result model.AssertionResult, body, target string, expected any, cond model.Condition) model.AssertionResult {
	root, err := jsonpath.ParseJSON(body)
	if err != nil {
		result.Passed = false
		result.Message = "response body is not valid JSON"
		return result
	}
	node, ok := jsonpath.Select(root, target)
	if !ok {
		result.Passed = false
		result.Message = "JSON Path not found"
		return result
	}
	actual := jsonpath.NodeValue(node)
	passed, _ := evalValue(actual, expected, cond)
	return finish(result, passed, actual)
}

func evalJSONPathExists(result model.AssertionResult, body, target string, wantExists bool) model.AssertionResult {
	root, err := jsonpath.ParseJSON(body)
	if err != nil {
		if wantExists {
			result.Passed = false
			result.Message = "response body is not valid JSON"
			return result
		}
		return finish(result, true, "false")
	}
	_, ok := jsonpath.Select(root, target)
	passed := ok == wantExists
	return finish(result, passed, strconv.FormatBool(ok))
}

func evalArrayLength(result model.AssertionResult, body, target string, expected any, cond model.Condition) model.AssertionResult {
	root, err := jsonpath.ParseJSON(body)
	if err != nil {
		result.Passed = false
		result.Message = "response body is not valid JSON"
		return result
	}
	node := root
	if target != "" && target != "$" {
		n, ok := jsonpath.Select(root, target)
		if !ok {
			result.Passed = false
			result.Message = "JSON Path not found"
			return result
		}
		node = n
	}
	arr, ok := node.([]any)
	if !ok {
		result.Passed = false
		result.Message = "selected node is not an array"
		return result
	}
	passed, actual := evalNumeric(float64(len(arr)), expected, cond)
	return finish(result, passed, actual)
}

func evalArrayContains(result model.AssertionResult, body, target string, expected any) model.AssertionResult {
	root, err := jsonpath.ParseJSON(body)
	if err != nil {
		result.Passed = false
		result.Message = "response body is not valid JSON"
		return result
	}
	node, ok := jsonpath.Select(root, target)
	if !ok {
		result.Passed = false
		result.Message = "JSON Path not found"
		return result
	}
	arr, ok := node.([]any)
	if !ok {
		result.Passed = false
		result.Message = "selected node is not an array"
		return result
	}
	expStr := valueToString(expected)
	for _, el := range arr {
		if jsonpath.NodeValue(el) == expStr {
			return finish(result, true, "found")
		}
	}
	return finish(result, false, "not found")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
