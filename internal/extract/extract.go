// Package extract implements the variable extractor (C4): reads values out
// of a response per an ordered list of VariableExtractionRule and produces
// a name->value map for a TestCaseResult's ExtractedVariables.
package extract

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ormasoftchile/apiforge/internal/jsonpath"
	"github.com/ormasoftchile/apiforge/internal/model"
)

// Response is the subset of an HTTP response extraction needs.
type Response struct {
	StatusCode int
	Headers    map[string][]string
	Body       string
}

// Apply runs each rule in order against resp and returns the resulting
// name->value map. A rule whose source cannot be resolved or whose regex
// fails to match still produces an entry (empty string) and a warning —
// extraction never aborts partway through the rule list.
func Apply(rules []model.VariableExtractionRule, resp Response, logger *slog.Logger) map[string]string {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(map[string]string, len(rules))
	for _, rule := range rules {
		raw, ok := resolveSource(rule, resp)
		if !ok {
			logger.Warn("extract: rule source unresolved", "name", rule.Name, "source", rule.Source)
			out[rule.Name] = ""
			continue
		}
		if rule.Regex != "" {
			re, err := regexp.Compile(rule.Regex)
			if err != nil {
				logger.Warn("extract: invalid regex", "name", rule.Name, "regex", rule.Regex, "error", err)
				out[rule.Name] = ""
				continue
			}
			match := re.FindStringSubmatch(raw)
			switch {
			case len(match) > 1:
				out[rule.Name] = match[1]
			case len(match) == 1:
				out[rule.Name] = match[0]
			default:
				logger.Warn("extract: regex did not match", "name", rule.Name, "regex", rule.Regex)
				out[rule.Name] = ""
			}
			continue
		}
		out[rule.Name] = raw
	}
	return out
}

func resolveSource(rule model.VariableExtractionRule, resp Response) (string, bool) {
	switch rule.Source {
	case model.SourceResponseBody:
		root, err := jsonpath.ParseJSON(resp.Body)
		if err != nil {
			return resp.Body, true
		}
		node, ok := jsonpath.Select(root, rule.Path)
		if !ok {
			return "", false
		}
		return jsonpath.NodeValue(node), true
	case model.SourceResponseHeader:
		for k, v := range resp.Headers {
			if strings.EqualFold(k, rule.Path) {
				return strings.Join(v, ","), true
			}
		}
		return "", false
	case model.SourceResponseStatusCode:
		return strconv.Itoa(resp.StatusCode), true
	default:
		return "", false
	}
}
