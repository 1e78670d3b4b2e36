package server

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// OpenAPIPathsParser reads only the top-level "paths" object of an OpenAPI
// 3 JSON document and lists "<METHOD> <path>" for every HTTP-verb key it
// finds. It deliberately does not resolve $ref, parameters, or any other
// part of the document: the full Swagger/OpenAPI parser is out of scope,
// and this exists only so /upload is exercisable end-to-end.
type OpenAPIPathsParser struct{}

var httpVerbs = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

func (OpenAPIPathsParser) Parse(data []byte) ([]string, error) {
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode OpenAPI document: %w", err)
	}

	var endpoints []string
	for path, ops := range doc.Paths {
		for verb := range ops {
			if !httpVerbs[strings.ToLower(verb)] {
				continue
			}
			endpoints = append(endpoints, fmt.Sprintf("%s %s", strings.ToUpper(verb), path))
		}
	}
	sort.Strings(endpoints)
	return endpoints, nil
}
