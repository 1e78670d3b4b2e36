// Package httpclient provides the shared, pooled HTTP client (C10): one
// *http.Client reused across every test in a run, with a configurable
// per-request timeout, optional TLS certificate-validation bypass, and a
// capped, truncation-aware body reader.
package httpclient

import (
	"crypto/tls"
	"io"
	"net/http"
	"time"
)

// MaxBodyBytes is the upper bound ReadBody will read before truncating.
const MaxBodyBytes = 64 * 1024 * 1024 // 64 MiB

// Options configures the shared client.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// New builds a pooled *http.Client. Connection pooling comes from reusing
// one http.Transport (and thus one client) across every request in a run —
// callers must not construct a new client per test.
func New(opts Options) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// ReadBody reads resp.Body up to MaxBodyBytes, closing it, and reports
// whether the body was truncated.
func ReadBody(body io.ReadCloser) (data []byte, truncated bool, err error) {
	defer body.Close()
	limited := io.LimitReader(body, MaxBodyBytes+1)
	data, err = io.ReadAll(limited)
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > MaxBodyBytes {
		return data[:MaxBodyBytes], true, nil
	}
	return data, false, nil
}
