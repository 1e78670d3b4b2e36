package reqbuild

import (
	"io"
	"strings"
	"testing"

	"github.com/ormasoftchile/apiforge/internal/model"
	"github.com/ormasoftchile/apiforge/internal/substitute"
)

func TestBuildSimpleGet(t *testing.T) {
	tc := model.TestCase{
		Request: model.Request{Method: model.MethodGet, Path: "/users/{id}", PathParameters: map[string]string{"id": "{{userId}}"}},
	}
	ctx := substitute.Context{"userId": "42"}
	built, err := Build(tc, "https://api.example.com/", nil, ctx, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Echo.URL != "https://api.example.com/users/42" {
		t.Fatalf("got %q", built.Echo.URL)
	}
}

func TestBuildQueryParameters(t *testing.T) {
	tc := model.TestCase{
		Request: model.Request{Method: model.MethodGet, Path: "/search", QueryParameters: map[string]string{"q": "{{term}}"}},
	}
	ctx := substitute.Context{"term": "hello world"}
	built, err := Build(tc, "https://api.example.com/", nil, ctx, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(built.Echo.URL, "q=hello+world") {
		t.Fatalf("got %q", built.Echo.URL)
	}
}

func TestBuildJSONBody(t *testing.T) {
	tc := model.TestCase{
		Request: model.Request{
			Method: model.MethodPost, Path: "/items",
			Body: map[string]any{"name": "{{n}}"},
		},
	}
	ctx := substitute.Context{"n": "widget"}
	built, err := Build(tc, "https://api.example.com/", nil, ctx, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Request.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected inferred json content type, got %q", built.Request.Header.Get("Content-Type"))
	}
	body, _ := io.ReadAll(built.Request.Body)
	if !strings.Contains(string(body), "widget") {
		t.Fatalf("expected expanded body, got %q", body)
	}
}

func TestBuildFormParameters(t *testing.T) {
	tc := model.TestCase{
		Request: model.Request{
			Method: model.MethodPost, Path: "/login",
			FormParameters: map[string]string{"user": "{{u}}"},
		},
	}
	ctx := substitute.Context{"u": "alice"}
	built, err := Build(tc, "https://api.example.com/", nil, ctx, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Request.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
		t.Fatalf("got %q", built.Request.Header.Get("Content-Type"))
	}
	body, _ := io.ReadAll(built.Request.Body)
	if !strings.Contains(string(body), "user=alice") {
		t.Fatalf("got %q", body)
	}
}

func TestBuildAuthBearer(t *testing.T) {
	tc := model.TestCase{
		Authentication: &model.Authentication{Type: "Bearer", Token: "{{tok}}"},
		Request:        model.Request{Method: model.MethodGet, Path: "/me"},
	}
	ctx := substitute.Context{"tok": "xyz"}
	built, err := Build(tc, "https://api.example.com/", nil, ctx, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Request.Header.Get("Authorization") != "Bearer xyz" {
		t.Fatalf("got %q", built.Request.Header.Get("Authorization"))
	}
}

func TestBuildAuthApiKeyQueryAmendsURL(t *testing.T) {
	tc := model.TestCase{
		Authentication: &model.Authentication{Type: "ApiKey", HeaderName: "api_key", Value: "secret", Location: model.AuthLocationQuery},
		Request:        model.Request{Method: model.MethodGet, Path: "/data"},
	}
	built, err := Build(tc, "https://api.example.com/", nil, substitute.Context{}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(built.Request.URL.String(), "api_key=secret") {
		t.Fatalf("got %q", built.Request.URL.String())
	}
}

func TestBuildHeaderOverridePerTestWinsOverGlobal(t *testing.T) {
	tc := model.TestCase{
		Request: model.Request{Method: model.MethodGet, Path: "/x", Headers: map[string]string{"X-Custom": "test-value"}},
	}
	global := map[string]string{"X-Custom": "global-value", "X-Other": "g"}
	built, err := Build(tc, "https://api.example.com/", global, substitute.Context{}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Request.Header.Get("X-Custom") != "test-value" {
		t.Fatalf("got %q", built.Request.Header.Get("X-Custom"))
	}
	if built.Request.Header.Get("X-Other") != "g" {
		t.Fatalf("got %q", built.Request.Header.Get("X-Other"))
	}
}

func TestBuildContentTypeNeverSetAsPlainHeader(t *testing.T) {
	tc := model.TestCase{
		Request: model.Request{
			Method: model.MethodGet, Path: "/x",
			Headers: map[string]string{"Content-Type": "text/plain"},
		},
	}
	built, err := Build(tc, "https://api.example.com/", nil, substitute.Context{}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := built.Request.Header.Values("Content-Type"); len(got) > 1 {
		t.Fatalf("expected a single Content-Type header, got %v", got)
	}
}

func TestBuildGetHasNoBody(t *testing.T) {
	tc := model.TestCase{
		Request: model.Request{Method: model.MethodGet, Path: "/x", Body: map[string]any{"ignored": true}},
	}
	built, err := Build(tc, "https://api.example.com/", nil, substitute.Context{}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	body, _ := io.ReadAll(built.Request.Body)
	if len(body) != 0 {
		t.Fatalf("expected empty body for GET, got %q", body)
	}
}
