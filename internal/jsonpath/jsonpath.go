// Package jsonpath implements the JSON selector (C2): a small, strict subset
// of JSONPath — dotted property names and bracket indices only. It is
// deliberately narrower than a general JSONPath engine; the spec treats this
// subset as normative, not a floor.
package jsonpath

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// token is one parsed path segment: a property name, optionally followed by
// one or more bracket indices.
type token struct {
	name    string
	indices []int
}

// parse turns a path string into a token slice. Accepts an optional leading
// "$" or "$.". Returns an error only for malformed bracket syntax.
func parse(path string) ([]token, error) {
	p := strings.TrimSpace(path)
	if p == "" || p == "$" {
		return nil, nil
	}
	p = strings.TrimPrefix(p, "$")
	p = strings.TrimPrefix(p, ".")
	if p == "" {
		return nil, nil
	}

	var tokens []token
	for _, seg := range strings.Split(p, ".") {
		if seg == "" {
			continue
		}
		name := seg
		var indices []int
		if i := strings.IndexByte(seg, '['); i != -1 {
			name = seg[:i]
			rest := seg[i:]
			for len(rest) > 0 {
				if rest[0] != '[' {
					return nil, errors.New("jsonpath: malformed bracket segment: " + seg)
				}
				close := strings.IndexByte(rest, ']')
				if close == -1 {
					return nil, errors.New("jsonpath: unterminated bracket in: " + seg)
				}
				idxStr := rest[1:close]
				idx, err := strconv.Atoi(idxStr)
				if err != nil {
					return nil, errors.New("jsonpath: non-integer index: " + idxStr)
				}
				indices = append(indices, idx)
				rest = rest[close+1:]
			}
		}
		tokens = append(tokens, token{name: name, indices: indices})
	}
	return tokens, nil
}

// Select navigates root (the result of json.Unmarshal into any) along path.
// It returns (node, true) on success or (nil, false) if the path misses: a
// property absent on an object, an index out of range or negative on an
// array, or a segment applied to the wrong kind of node. A malformed path
// (bad bracket syntax) also resolves to absent.
func Select(root any, path string) (any, bool) {
	tokens, err := parse(path)
	if err != nil {
		return nil, false
	}
	cur := root
	for _, tok := range tokens {
		if tok.name != "" {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := obj[tok.name]
			if !ok {
				return nil, false
			}
			cur = v
		}
		for _, idx := range tok.indices {
			arr, ok := cur.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}
			cur = arr[idx]
		}
	}
	return cur, true
}

// NodeValue returns the string form of a primitive (string as is, float64
// in shortest form, bool as "true"/"false", nil as the empty string), or the
// canonical JSON-text serialization of a composite (object/array) node.
func NodeValue(node any) string {
	switch v := node.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ParseJSON unmarshals body into a generic any tree (map[string]any /
// []any / primitives), suitable for Select. Returns an error if body is
// not a JSON object or array at the top level — scalars alone are not
// accepted as a JSON document by the evaluator's contract.
func ParseJSON(body string) (any, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, errors.New("response body is not valid JSON")
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, errors.New("response body is not valid JSON")
	}
	return v, nil
}
