// Package server implements the ingress HTTP API: upload an OpenAPI
// document, generate test cases from it, and execute a test-case document
// against a live base URL. It is the shared implementation behind both the
// "apiforge serve" subcommand and the standalone apiforge-server binary,
// since Go main packages cannot import one another.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ormasoftchile/apiforge/internal/coordinator"
	"github.com/ormasoftchile/apiforge/internal/httpclient"
	"github.com/ormasoftchile/apiforge/internal/model"
)

// SpecParser extracts endpoint descriptors ("<METHOD> <path>") from an
// uploaded OpenAPI document. The real Swagger/OpenAPI parser is out of
// scope; OpenAPIPathsParser below is a placeholder that reads only the
// document's top-level "paths" object.
type SpecParser interface {
	Parse(data []byte) ([]string, error)
}

// Generator produces test cases for a set of endpoints. The real
// implementation calls out to an LLM and feeds its text through
// internal/extractor; StaticGenerator below is a deterministic stub so the
// route is wired and testable without a live LLM.
type Generator interface {
	Generate(swaggerFilePath string, selectedEndpoints []string) ([]model.TestCase, error)
}

// Server holds the ingress API's dependencies and exposes a chi.Mux.
type Server struct {
	Config    model.RunnerConfig
	Logger    *slog.Logger
	Parser    SpecParser
	Generator Generator
	Client    *http.Client

	router chi.Router
}

// New builds a Server with its routes mounted. It always installs the
// placeholder OpenAPIPathsParser and StaticGenerator and a pooled client
// built from cfg; callers may replace the exported fields afterwards.
func New(cfg model.RunnerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Parser:    OpenAPIPathsParser{},
		Generator: StaticGenerator{},
		Client:    httpclient.New(httpclient.Options{Timeout: cfg.RequestTimeout, InsecureSkipVerify: cfg.AllowUntrustedSSL}),
	}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)

	r.Post("/upload", s.handleUpload)
	r.Post("/generate-tests", s.handleGenerateTests)
	r.Post("/execute-tests", s.handleExecuteTests)

	return r
}

// ServeHTTP lets a Server be used directly by httptest or a caller that
// wants its own http.Server wiring.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.Logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"requestId", chimw.GetReqID(r.Context()),
			"durationMs", time.Since(start).Milliseconds(),
		)
	})
}

// Run starts an http.Server on the given port and blocks until it shuts
// down, either from a server error or SIGINT/SIGTERM.
func (s *Server) Run(port int) error {
	addr := fmt.Sprintf(":%d", port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		s.Logger.Info("starting apiforge server", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-done:
	}

	s.Logger.Info("shutting down apiforge server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// --- handlers ---

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		Error(w, http.StatusBadRequest, "missing multipart field \"file\": "+err.Error())
		return
	}
	defer file.Close()

	data, _, err := httpclient.ReadBody(file)
	if err != nil {
		Error(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	if err := os.MkdirAll(s.Config.UploadDir, 0o755); err != nil {
		Error(w, http.StatusInternalServerError, "create upload dir: "+err.Error())
		return
	}

	id := uuid.NewString()
	storedPath := filepath.Join(s.Config.UploadDir, id+".json")
	if err := os.WriteFile(storedPath, data, 0o644); err != nil {
		Error(w, http.StatusInternalServerError, "save upload: "+err.Error())
		return
	}

	endpoints, err := s.Parser.Parse(data)
	if err != nil {
		s.Logger.Warn("spec parse failed", "file", header.Filename, "err", err)
		endpoints = nil
	}

	spec := model.UploadedSpec{
		ID:           id,
		OriginalName: header.Filename,
		StoredPath:   storedPath,
		Endpoints:    endpoints,
		UploadedAt:   time.Now(),
	}
	JSON(w, http.StatusOK, spec)
}

type generateTestsRequest struct {
	SwaggerFilePath   string   `json:"swaggerFilePath"`
	SelectedEndpoints []string `json:"selectedEndpoints,omitempty"`
}

func (s *Server) handleGenerateTests(w http.ResponseWriter, r *http.Request) {
	var req generateTestsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	if req.SwaggerFilePath == "" {
		Error(w, http.StatusBadRequest, "swaggerFilePath is required")
		return
	}

	cases, err := s.Generator.Generate(req.SwaggerFilePath, req.SelectedEndpoints)
	if err != nil {
		Error(w, http.StatusUnprocessableEntity, "generate tests: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, cases)
}

type executeTestsRequest struct {
	TestCases       []model.TestCase  `json:"testCases"`
	BaseURL         string            `json:"baseUrl"`
	GlobalHeaders   map[string]string `json:"globalHeaders,omitempty"`
	GlobalVariables map[string]string `json:"globalVariables,omitempty"`
}

func (s *Server) handleExecuteTests(w http.ResponseWriter, r *http.Request) {
	var req executeTestsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}

	coord := coordinator.New(s.Client, s.Config, s.Logger)
	result := coord.Execute(r.Context(), req.TestCases, req.BaseURL, req.GlobalHeaders, req.GlobalVariables)
	JSON(w, http.StatusOK, result)
}

// --- response helpers ---

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}
