// Package substitute implements the variable substitutor (C1): a single,
// non-recursive expansion of "{{name}}" tokens against a flat variable
// context. It is deliberately not text/template — the spec calls for
// non-evaluating, non-recursive expansion with silent-empty-on-miss
// semantics, none of which text/template gives for free.
package substitute

import (
	"log/slog"
	"strings"
)

// Context is the flat variable lookup used during expansion.
type Context map[string]string

// Expand replaces every "{{key}}" token in template with ctx[key] (the
// content between the braces is trimmed of whitespace before lookup).
// Unknown keys expand to the empty string and are logged at warn level.
// Tokens do not overlap and are matched non-greedily; a substituted value
// that itself contains "{{" is left as literal text, never re-scanned.
func Expand(template string, ctx Context, logger *slog.Logger) string {
	if template == "" {
		return ""
	}
	if !strings.Contains(template, "{{") {
		return template
	}
	if logger == nil {
		logger = slog.Default()
	}

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end == -1 {
			// Unterminated token: the rest is left literal.
			b.WriteString(rest)
			break
		}
		end += start + 2

		b.WriteString(rest[:start])
		key := strings.TrimSpace(rest[start+2 : end])
		if val, ok := ctx[key]; ok {
			b.WriteString(val)
		} else {
			logger.Warn("substitute: unknown variable", "key", key)
		}
		rest = rest[end+2:]
	}
	return b.String()
}

// Merge layers variable contexts left-to-right; later maps override earlier
// ones. Used to assemble global ⊕ prerequisite-extraction ⊕ test-scoped
// contexts without mutating any of the inputs.
func Merge(layers ...Context) Context {
	out := make(Context)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
