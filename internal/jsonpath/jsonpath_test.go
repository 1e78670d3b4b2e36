package jsonpath

import "testing"

func parseBody(t *testing.T, body string) any {
	t.Helper()
	v, err := ParseJSON(body)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	return v
}

func TestSelectDottedPath(t *testing.T) {
	root := parseBody(t, `{"a":{"b":"c"}}`)
	v, ok := Select(root, "a.b")
	if !ok || v != "c" {
		t.Fatalf("got %v ok=%v", v, ok)
	}
}

func TestSelectWithDollarPrefix(t *testing.T) {
	root := parseBody(t, `{"a":1}`)
	v, ok := Select(root, "$.a")
	if !ok || v != float64(1) {
		t.Fatalf("got %v ok=%v", v, ok)
	}
}

func TestSelectRootAlone(t *testing.T) {
	root := parseBody(t, `{"a":1}`)
	v, ok := Select(root, "$")
	if !ok {
		t.Fatalf("expected root select to succeed")
	}
	if _, isMap := v.(map[string]any); !isMap {
		t.Fatalf("expected root map, got %T", v)
	}
}

func TestSelectBracketIndex(t *testing.T) {
	root := parseBody(t, `{"items":[10,20,30]}`)
	v, ok := Select(root, "items[1]")
	if !ok || v != float64(20) {
		t.Fatalf("got %v ok=%v", v, ok)
	}
}

func TestSelectRepeatedBracketIndex(t *testing.T) {
	root := parseBody(t, `{"rows":[[1,2],[3,4]]}`)
	v, ok := Select(root, "rows[1][0]")
	if !ok || v != float64(3) {
		t.Fatalf("got %v ok=%v", v, ok)
	}
}

func TestSelectMissingPropertyIsAbsent(t *testing.T) {
	root := parseBody(t, `{"a":1}`)
	_, ok := Select(root, "b")
	if ok {
		t.Fatalf("expected absent")
	}
}

func TestSelectIndexOutOfRangeIsAbsent(t *testing.T) {
	root := parseBody(t, `{"items":[1]}`)
	_, ok := Select(root, "items[5]")
	if ok {
		t.Fatalf("expected absent")
	}
}

func TestSelectIndexingScalarIsAbsent(t *testing.T) {
	root := parseBody(t, `{"a":1}`)
	_, ok := Select(root, "a[0]")
	if ok {
		t.Fatalf("expected absent when indexing a scalar")
	}
}

func TestNodeValuePrimitives(t *testing.T) {
	if NodeValue("x") != "x" {
		t.Fatalf("string")
	}
	if NodeValue(float64(3)) != "3" {
		t.Fatalf("number: got %q", NodeValue(float64(3)))
	}
	if NodeValue(true) != "true" {
		t.Fatalf("bool")
	}
	if NodeValue(nil) != "" {
		t.Fatalf("nil")
	}
}

func TestNodeValueComposite(t *testing.T) {
	root := parseBody(t, `{"a":{"b":1}}`)
	v, _ := Select(root, "a")
	if NodeValue(v) != `{"b":1}` {
		t.Fatalf("got %q", NodeValue(v))
	}
}

func TestParseJSONRejectsScalarTopLevel(t *testing.T) {
	if _, err := ParseJSON("42"); err == nil {
		t.Fatalf("expected error for scalar top-level body")
	}
}

func TestParseJSONRejectsGarbage(t *testing.T) {
	if _, err := ParseJSON("not json"); err == nil {
		t.Fatalf("expected error")
	}
}
