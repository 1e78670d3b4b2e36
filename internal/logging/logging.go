// Package logging builds the root structured logger shared across the
// orchestrator. A single root logger is threaded via constructor injection
// (never a package-level global reassigned at runtime), matching the
// teacher's ingress-server logging convention.
package logging

import (
	"io"
	"log/slog"
)

// New builds a JSON-handler slog.Logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
