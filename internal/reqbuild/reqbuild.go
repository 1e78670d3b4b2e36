// Package reqbuild implements the HTTP request builder (C5): composes an
// *http.Request from a TestCase.Request, the effective variable context,
// authentication, and global headers, following the spec's fixed ordering
// rules (auth before per-test headers, globals before per-test overrides).
package reqbuild

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/ormasoftchile/apiforge/internal/model"
	"github.com/ormasoftchile/apiforge/internal/substitute"
)

// Built is the result of assembling a request: the ready *http.Request plus
// an echo of what was sent, for reporting.
type Built struct {
	Request *http.Request
	Echo    model.RequestEcho
}

// Build composes the outgoing HTTP request. baseURL must already be
// normalized to end with "/". globalHeaders are merged before per-test
// headers so the test can override them on a case-insensitive name match.
func Build(tc model.TestCase, baseURL string, globalHeaders map[string]string, ctx substitute.Context, logger *slog.Logger) (*Built, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path := substitute.Expand(tc.Request.Path, ctx, logger)
	path = applyPathParameters(path, tc.Request.PathParameters, ctx, logger)
	path = strings.TrimPrefix(path, "/")

	fullURL := baseURL + path
	fullURL = appendQuery(fullURL, tc.Request.QueryParameters, ctx, logger)

	contentType := effectiveContentType(tc.Request)

	var bodyReader *bytes.Reader
	var bodyPreview string
	if method := tc.Request.Method; method == model.MethodPost || method == model.MethodPut || method == model.MethodPatch {
		raw, ct, err := buildBody(tc.Request, contentType, ctx, logger)
		if err != nil {
			return nil, err
		}
		if ct != "" {
			contentType = ct
		}
		bodyReader = bytes.NewReader(raw)
		bodyPreview = truncate(string(raw), 500)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(string(tc.Request.Method), fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("reqbuild: %w", err)
	}

	queryAmend, err := applyAuth(req, tc.Authentication, ctx, logger)
	if err != nil {
		return nil, err
	}
	if queryAmend != nil {
		q := req.URL.Query()
		for k, v := range queryAmend {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	headers := mergeHeaders(globalHeaders, tc.Request.Headers, ctx, logger)
	echoHeaders := make(map[string]string, len(headers))
	for name, val := range headers {
		if strings.EqualFold(name, "Content-Type") {
			continue
		}
		req.Header.Set(name, val)
		echoHeaders[name] = val
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
		echoHeaders["Content-Type"] = contentType
	}

	return &Built{
		Request: req,
		Echo: model.RequestEcho{
			URL:         fullURL,
			Method:      string(tc.Request.Method),
			Headers:     echoHeaders,
			BodyPreview: bodyPreview,
		},
	}, nil
}

func applyPathParameters(path string, params map[string]string, ctx substitute.Context, logger *slog.Logger) string {
	if len(params) == 0 {
		return path
	}
	for name, tmpl := range params {
		val := substitute.Expand(tmpl, ctx, logger)
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(val))
	}
	return path
}

func appendQuery(fullURL string, params map[string]string, ctx substitute.Context, logger *slog.Logger) string {
	if len(params) == 0 {
		return fullURL
	}
	names := sortedKeys(params)
	var b strings.Builder
	b.WriteString(fullURL)
	sep := "?"
	if strings.Contains(fullURL, "?") {
		sep = "&"
	}
	for _, name := range names {
		val := substitute.Expand(params[name], ctx, logger)
		b.WriteString(sep)
		b.WriteString(url.QueryEscape(name))
		b.WriteString("=")
		b.WriteString(url.QueryEscape(val))
		sep = "&"
	}
	return b.String()
}

// applyAuth sets the auth header/credentials on req, returning a non-nil
// map of query parameters to amend onto the URL for ApiKey{Location:Query}.
func applyAuth(req *http.Request, auth *model.Authentication, ctx substitute.Context, logger *slog.Logger) (map[string]string, error) {
	if auth == nil || auth.Type == "" || auth.Type == "None" {
		return nil, nil
	}
	switch auth.Type {
	case "Basic":
		user := substitute.Expand(auth.Username, ctx, logger)
		pass := substitute.Expand(auth.Password, ctx, logger)
		req.SetBasicAuth(user, pass)
	case "Bearer":
		token := substitute.Expand(auth.Token, ctx, logger)
		req.Header.Set("Authorization", "Bearer "+token)
	case "ApiKey":
		val := substitute.Expand(auth.Value, ctx, logger)
		headerName := auth.HeaderName
		if headerName == "" {
			headerName = "X-API-Key"
		}
		if auth.Location == model.AuthLocationQuery {
			return map[string]string{headerName: val}, nil
		}
		req.Header.Set(headerName, val)
	default:
		return nil, fmt.Errorf("reqbuild: unknown authentication type %q", auth.Type)
	}
	return nil, nil
}

// mergeHeaders applies globals first, then per-test overrides on the same
// case-insensitive name. Content-Type is never set here — it is always
// derived separately and applied to the content.
func mergeHeaders(global, perTest map[string]string, ctx substitute.Context, logger *slog.Logger) map[string]string {
	canonical := make(map[string]string) // lowercased name -> original-case name
	out := make(map[string]string)

	apply := func(src map[string]string) {
		for name, tmpl := range src {
			if strings.EqualFold(name, "Content-Type") {
				continue
			}
			val := substitute.Expand(tmpl, ctx, logger)
			lower := strings.ToLower(name)
			if existing, ok := canonical[lower]; ok {
				delete(out, existing)
			}
			canonical[lower] = name
			out[name] = val
		}
	}
	apply(global)
	apply(perTest)
	return out
}

func effectiveContentType(r model.Request) string {
	if r.ContentType != "" {
		return r.ContentType
	}
	if len(r.FileParameters) > 0 {
		return "multipart/form-data"
	}
	if len(r.FormParameters) > 0 {
		return "application/x-www-form-urlencoded"
	}
	return "application/json"
}

// buildBody returns the encoded request body and (for multipart, where the
// boundary is only known after encoding) the final Content-Type to use.
func buildBody(r model.Request, contentType string, ctx substitute.Context, logger *slog.Logger) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data") && len(r.FileParameters) > 0:
		return buildMultipart(r, ctx, logger)
	case contentType == "application/x-www-form-urlencoded" && len(r.FormParameters) > 0:
		return buildForm(r.FormParameters, ctx, logger), "", nil
	case r.Body == nil:
		return nil, "", nil
	}

	switch b := r.Body.(type) {
	case string:
		return []byte(substitute.Expand(b, ctx, logger)), "", nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("reqbuild: serialize body: %w", err)
		}
		expanded := substitute.Expand(string(raw), ctx, logger)
		return []byte(expanded), "", nil
	}
}

func buildForm(fields map[string]string, ctx substitute.Context, logger *slog.Logger) []byte {
	vals := url.Values{}
	for _, name := range sortedKeys(fields) {
		vals.Set(name, substitute.Expand(fields[name], ctx, logger))
	}
	return []byte(vals.Encode())
}

func buildMultipart(r model.Request, ctx substitute.Context, logger *slog.Logger) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range sortedKeys(r.FormParameters) {
		if err := w.WriteField(name, substitute.Expand(r.FormParameters[name], ctx, logger)); err != nil {
			return nil, "", fmt.Errorf("reqbuild: write form field: %w", err)
		}
	}

	for _, fp := range r.FileParameters {
		var content []byte
		var err error
		if fp.FileContentBase64 != "" {
			content, err = base64.StdEncoding.DecodeString(fp.FileContentBase64)
			if err != nil {
				return nil, "", fmt.Errorf("reqbuild: decode file %q: %w", fp.FieldName, err)
			}
		} else if fp.FilePath != "" {
			path := substitute.Expand(fp.FilePath, ctx, logger)
			content, err = os.ReadFile(path)
			if err != nil {
				return nil, "", fmt.Errorf("reqbuild: read file %q: %w", path, err)
			}
		} else {
			return nil, "", fmt.Errorf("reqbuild: file parameter %q has neither content nor path", fp.FieldName)
		}

		part, err := w.CreateFormFile(fp.FieldName, fp.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("reqbuild: create form file: %w", err)
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", fmt.Errorf("reqbuild: write form file: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("reqbuild: close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
