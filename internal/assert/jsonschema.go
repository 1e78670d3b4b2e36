package assert

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/apiforge/internal/model"
)

// evalJSONSchema implements the declared-but-optional JsonSchemaValidation
// assertion type. expected is the schema document (a JSON object, either
// already decoded to map[string]any or given as a JSON string).
func evalJSONSchema(result model.AssertionResult, body string, expected any) model.AssertionResult {
	var schemaDoc any
	switch v := expected.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &schemaDoc); err != nil {
			result.Passed = false
			result.Message = fmt.Sprintf("Assertion failed. Expected: valid JSON schema, Actual: %v", err)
			return result
		}
	default:
		schemaDoc = v
	}

	var instance any
	if err := json.Unmarshal([]byte(body), &instance); err != nil {
		result.Passed = false
		result.Message = "response body is not valid JSON"
		return result
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("response.json", schemaDoc); err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("Assertion failed. Expected: valid JSON schema, Actual: %v", err)
		return result
	}
	sch, err := c.Compile("response.json")
	if err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("Assertion failed. Expected: valid JSON schema, Actual: %v", err)
		return result
	}

	if err := sch.Validate(instance); err != nil {
		var causes []string
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, leaf := range flattenSchemaErrors(ve) {
				causes = append(causes, strings.Join(leaf.InstanceLocation, "/")+": "+fmt.Sprint(leaf.ErrorKind))
			}
		} else {
			causes = append(causes, err.Error())
		}
		return finish(result, false, strings.Join(causes, "; "))
	}
	return finish(result, true, "valid")
}

func flattenSchemaErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenSchemaErrors(cause)...)
	}
	return flat
}
