// Package extractor implements the LLM-text test case extractor (C9): it
// turns noisy, possibly malformed text produced by an LLM into a validated
// []model.TestCase. It never panics or returns an error for bad input —
// an empty list is a legitimate, expected output.
package extractor

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ormasoftchile/apiforge/internal/model"
)

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Extract runs the full pipeline: strip code fences, trim to the first
// balanced top-level JSON value, parse leniently as an array, and on
// failure fall back to regex-scanning for an array then for individual
// objects. Invalid entries (missing TestCaseId/TestCaseName, nil or
// path-less Request) are discarded with a warning, never fatally.
func Extract(text string, logger *slog.Logger) []model.TestCase {
	if logger == nil {
		logger = slog.Default()
	}

	cleaned := stripCodeFences(text)
	candidate := firstBalancedJSONValue(cleaned)

	if candidate != "" {
		if cases, ok := tryParseArray(candidate, logger); ok {
			return cases
		}
		if cases, ok := tryParseSingleObject(candidate, logger); ok {
			return cases
		}
	}

	if cases, ok := tryParseArray(cleaned, logger); ok {
		return cases
	}

	if arr := scanForArray(cleaned); arr != "" {
		if cases, ok := tryParseArray(arr, logger); ok {
			return cases
		}
	}

	return scanForObjects(cleaned, logger)
}

func stripCodeFences(text string) string {
	if m := codeFence.FindStringSubmatch(text); len(m) == 2 {
		return m[1]
	}
	return text
}

// firstBalancedJSONValue scans s for the first top-level JSON object or
// array and returns its exact text span by bracket counting (strings and
// escapes are respected so braces inside string literals do not confuse
// the count).
func firstBalancedJSONValue(s string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// cleanLenient strips "//" line comments and trailing commas before
// parse — a relaxation no library in the ecosystem offers for
// encoding/json, so this step is hand-rolled.
func cleanLenient(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if idx := findUnquotedSlashSlash(line); idx != -1 {
			line = line[:idx]
		}
		lines = append(lines, line)
	}
	joined := strings.Join(lines, "\n")
	return stripTrailingCommas(joined)
}

func findUnquotedSlashSlash(line string) int {
	inString := false
	escaped := false
	for i := 0; i < len(line)-1; i++ {
		c := line[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		if c == '/' && line[i+1] == '/' {
			return i
		}
	}
	return -1
}

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

func stripTrailingCommas(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}

// rawTestCase is an alias of model.TestCase, so it accepts exactly the same
// JSON field names; the only tolerance for spelling variation is
// encoding/json's case-insensitive key matching. Callers decode either a
// single rawTestCase or a []rawTestCase depending on the top-level input.
type rawTestCase = model.TestCase

func tryParseArray(s string, logger *slog.Logger) ([]model.TestCase, bool) {
	var raw []rawTestCase
	if err := json.Unmarshal([]byte(cleanLenient(s)), &raw); err != nil {
		return nil, false
	}
	return filterValid(raw, logger), true
}

func tryParseSingleObject(s string, logger *slog.Logger) ([]model.TestCase, bool) {
	var raw rawTestCase
	if err := json.Unmarshal([]byte(cleanLenient(s)), &raw); err != nil {
		return nil, false
	}
	return filterValid([]rawTestCase{raw}, logger), true
}

var arrayOfObjects = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)

func scanForArray(s string) string {
	return arrayOfObjects.FindString(s)
}

var singleObject = regexp.MustCompile(`(?s)\{[^{}]*\}`)

func scanForObjects(s string, logger *slog.Logger) []model.TestCase {
	matches := singleObject.FindAllString(s, -1)
	var out []model.TestCase
	for _, m := range matches {
		var raw rawTestCase
		if err := json.Unmarshal([]byte(cleanLenient(m)), &raw); err != nil {
			continue
		}
		out = append(out, filterValid([]rawTestCase{raw}, logger)...)
	}
	return out
}

func filterValid(raw []rawTestCase, logger *slog.Logger) []model.TestCase {
	out := make([]model.TestCase, 0, len(raw))
	for _, tc := range raw {
		if !isValid(tc) {
			logger.Warn("extractor: discarding invalid test case", "testCaseId", tc.TestCaseId)
			continue
		}
		out = append(out, tc)
	}
	return out
}

func isValid(tc model.TestCase) bool {
	return tc.TestCaseId != "" && tc.Name != "" && tc.Request.Path != ""
}
