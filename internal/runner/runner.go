// Package runner implements the single-test runner (C6): executes one
// TestCase with a bounded retry loop, timeouts, and cancellation, producing
// a TestCaseResult.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ormasoftchile/apiforge/internal/assert"
	"github.com/ormasoftchile/apiforge/internal/extract"
	"github.com/ormasoftchile/apiforge/internal/httpclient"
	"github.com/ormasoftchile/apiforge/internal/model"
	"github.com/ormasoftchile/apiforge/internal/reqbuild"
	"github.com/ormasoftchile/apiforge/internal/substitute"
)

// Options configures a Run invocation.
type Options struct {
	BaseURL       string
	GlobalHeaders map[string]string
	Variables     substitute.Context
	Client        *http.Client
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Logger         *slog.Logger
}

// Run executes tc per the spec's retry loop: at most MaxRetries+1 attempts,
// sleeping RetryDelay between them (interruptible by ctx cancellation).
// Retries trigger only on a transient transport error or a non-Passed
// outcome while budget remains. RetryAttempts on the result counts
// attempts minus one.
func Run(ctx context.Context, tc model.TestCase, opts Options) model.TestCaseResult {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := model.TestCaseResult{
		TestCaseId: tc.TestCaseId,
		Name:       tc.Name,
		StartTime:  now(),
	}

	if tc.Skip {
		result.Status = model.StatusSkipped
		result.ErrorMessage = "skipped"
		result.EndTime = now()
		return result
	}

	maxAttempts := opts.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var attemptResult internalResult
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			result.Status = model.StatusSkipped
			result.ErrorMessage = "cancelled"
			result.EndTime = now()
			result.RetryAttempts = attempt
			return result
		default:
		}

		if attempt > 0 {
			if !sleepInterruptible(ctx, opts.RetryDelay) {
				result.Status = model.StatusSkipped
				result.ErrorMessage = "cancelled"
				result.EndTime = now()
				result.RetryAttempts = attempt
				return result
			}
		}

		attemptResult = runAttempt(ctx, tc, opts, logger)
		attemptResult.RetryAttempts = attempt

		if attemptResult.Status == model.StatusPassed ||
			attemptResult.Status == model.StatusSkipped ||
			attemptResult.isConfigurationError {
			break
		}
		if attempt == maxAttempts-1 {
			break
		}
	}

	attemptResult.StartTime = result.StartTime
	attemptResult.TestCaseId = tc.TestCaseId
	attemptResult.Name = tc.Name
	return attemptResult.TestCaseResult
}

// internalResult wraps model.TestCaseResult with a configuration-error
// marker that must not survive into the reported result.
type internalResult struct {
	model.TestCaseResult
	isConfigurationError bool
}

func runAttempt(ctx context.Context, tc model.TestCase, opts Options, logger *slog.Logger) internalResult {
	start := now()
	r := internalResult{TestCaseResult: model.TestCaseResult{StartTime: start}}

	built, err := reqbuild.Build(tc, opts.BaseURL, opts.GlobalHeaders, opts.Variables, logger)
	if err != nil {
		r.Status = model.StatusError
		r.ErrorMessage = err.Error()
		r.isConfigurationError = true
		r.EndTime = now()
		r.DurationMs = r.EndTime.Sub(start).Milliseconds()
		return r
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if opts.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
		defer cancel()
	}
	built.Request = built.Request.WithContext(reqCtx)

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	reqStart := now()
	httpResp, err := client.Do(built.Request)
	if err != nil {
		if ctx.Err() != nil {
			r.Status = model.StatusSkipped
			r.ErrorMessage = "cancelled"
			r.EndTime = now()
			return r
		}
		r.Status = model.StatusError
		r.ErrorMessage = err.Error()
		r.Request = &built.Echo
		r.EndTime = now()
		r.DurationMs = r.EndTime.Sub(reqStart).Milliseconds()
		return r
	}
	bodyBytes, truncated, err := httpclient.ReadBody(httpResp.Body)
	durationMs := now().Sub(reqStart).Milliseconds()
	if err != nil {
		r.Status = model.StatusError
		r.ErrorMessage = fmt.Sprintf("reading response body: %v", err)
		r.Request = &built.Echo
		r.EndTime = now()
		r.DurationMs = durationMs
		return r
	}
	body := string(bodyBytes)
	if truncated {
		logger.Warn("runner: response body truncated", "testCaseId", tc.TestCaseId)
	}

	headers := map[string][]string(httpResp.Header)
	r.Request = &built.Echo
	r.Response = &model.ResponseEcho{
		StatusCode: httpResp.StatusCode,
		Headers:    flattenHeaders(headers),
		Body:       body,
	}
	r.DurationMs = durationMs

	assertions := tc.Assertions
	if len(assertions) == 0 && tc.ExpectedResponse != nil && tc.ExpectedResponse.StatusCode != nil {
		assertions = []model.Assertion{{
			Type:          model.AssertStatusCode,
			Condition:     model.ConditionEquals,
			ExpectedValue: *tc.ExpectedResponse.StatusCode,
		}}
	}

	assertResp := assert.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    headers,
		Body:       body,
		DurationMs: durationMs,
	}

	allPassed := true
	results := make([]model.AssertionResult, 0, len(assertions))
	for _, a := range assertions {
		ar := assert.Evaluate(a, assertResp, opts.Variables, logger)
		results = append(results, ar)
		if !ar.Passed {
			allPassed = false
		}
	}
	r.Assertions = results

	if allPassed {
		r.Status = model.StatusPassed
		r.ExtractedVariables = extract.Apply(tc.ExtractVariables, extract.Response{
			StatusCode: httpResp.StatusCode,
			Headers:    headers,
			Body:       body,
		}, logger)
	} else {
		r.Status = model.StatusFailed
	}
	r.EndTime = now()
	return r
}

func flattenHeaders(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = joinComma(v)
	}
	return out
}

func joinComma(vals []string) string {
	switch len(vals) {
	case 0:
		return ""
	case 1:
		return vals[0]
	default:
		out := vals[0]
		for _, v := range vals[1:] {
			out += "," + v
		}
		return out
	}
}

func sleepInterruptible(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func now() time.Time { return time.Now() }
