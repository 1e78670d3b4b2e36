// Package coordinator implements the run coordinator (C8): owns a run's
// identity and global state, drives the dependency scheduler (C7), and
// aggregates per-test results into a single TestRunResult.
package coordinator

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/apiforge/internal/model"
	"github.com/ormasoftchile/apiforge/internal/runner"
	"github.com/ormasoftchile/apiforge/internal/scheduler"
	"github.com/ormasoftchile/apiforge/internal/substitute"
)

// Coordinator owns one run's shared, read-only state: the HTTP client, the
// configured timeouts/retries, and a logger. It is safe to reuse across
// multiple calls to Execute.
type Coordinator struct {
	Client *http.Client
	Config model.RunnerConfig
	Logger *slog.Logger
}

// New builds a Coordinator. A nil client falls back to http.DefaultClient;
// a nil logger falls back to slog.Default().
func New(client *http.Client, cfg model.RunnerConfig, logger *slog.Logger) *Coordinator {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{Client: client, Config: cfg, Logger: logger}
}

// Execute runs cases against baseURL and returns a TestRunResult. It never
// returns an error to the caller: a fatal setup problem (an empty base
// URL) surfaces instead as an Error result for every input test case.
func (c *Coordinator) Execute(
	ctx context.Context,
	cases []model.TestCase,
	baseURL string,
	globalHeaders map[string]string,
	globalVariables map[string]string,
) model.TestRunResult {
	runID := uuid.NewString()
	start := time.Now()

	normalizedBase := normalizeBaseURL(baseURL)

	run := model.TestRunResult{
		RunId:           runID,
		StartTime:       start,
		BaseUrl:         normalizedBase,
		GlobalVariables: globalVariables,
	}

	if normalizedBase == "" {
		results := make([]model.TestCaseResult, len(cases))
		for i, tc := range cases {
			results[i] = model.TestCaseResult{
				TestCaseId:   tc.TestCaseId,
				Name:         tc.Name,
				Status:       model.StatusError,
				ErrorMessage: "base URL is empty",
				StartTime:    start,
				EndTime:      time.Now(),
			}
		}
		run.Results = results
		run.Summary = model.ComputeSummary(results)
		run.EndTime = time.Now()
		return run
	}

	dispatch := func(ctx context.Context, tc model.TestCase, vars substitute.Context) model.TestCaseResult {
		return runner.Run(ctx, tc, runner.Options{
			BaseURL:        normalizedBase,
			GlobalHeaders:  globalHeaders,
			Variables:      vars,
			Client:         c.Client,
			RequestTimeout: c.Config.RequestTimeout,
			MaxRetries:     c.Config.MaxRetries,
			RetryDelay:     time.Duration(c.Config.RetryDelayMilliseconds) * time.Millisecond,
			Logger:         c.Logger,
		})
	}

	results := scheduler.Execute(ctx, cases, scheduler.RunOptions{
		GlobalVariables:        substitute.Context(globalVariables),
		MaxDegreeOfParallelism: c.Config.MaxDegreeOfParallelism,
		Logger:                 c.Logger,
	}, dispatch)

	run.Results = results
	run.Summary = model.ComputeSummary(results)
	run.EndTime = time.Now()
	return run
}

// normalizeBaseURL ensures the base URL ends with exactly one trailing
// slash; an empty input stays empty (handled by the caller as a fatal
// configuration error).
func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}
