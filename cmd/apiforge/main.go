// Command apiforge is the CLI surface for the API test orchestrator:
// run a test-case document against a live base URL, validate one without
// executing it, or start the HTTP ingress server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/apiforge/internal/config"
	"github.com/ormasoftchile/apiforge/internal/coordinator"
	"github.com/ormasoftchile/apiforge/internal/httpclient"
	"github.com/ormasoftchile/apiforge/internal/logging"
	"github.com/ormasoftchile/apiforge/internal/model"
	"github.com/ormasoftchile/apiforge/internal/server"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "apiforge",
	Short: "API test orchestrator",
	Long:  "apiforge — a dependency-aware runner for OpenAPI test suites: variable substitution, assertions, and retries, layered over a DAG scheduler.",
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "apiforge.yaml", "path to an optional apiforge.yaml config file")
	rootCmd.AddCommand(runCmd, validateCmd, serveCmd, versionCmd)
}

// --- run ---

var (
	runBaseURL     string
	runJSONOutput  bool
	runMaxRetries  int
	runParallelism int
)

var runCmd = &cobra.Command{
	Use:   "run [test-file.yaml|json]",
	Short: "Execute a test-case document against a base URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "base URL of the service under test (required)")
	runCmd.Flags().BoolVar(&runJSONOutput, "json", false, "print the full TestRunResult as JSON instead of a summary")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", -1, "override MaxRetries from config")
	runCmd.Flags().IntVar(&runParallelism, "parallelism", -1, "override MaxDegreeOfParallelism from config")
	_ = runCmd.MarkFlagRequired("base-url")
}

func runRun(cmd *cobra.Command, args []string) error {
	cases, err := loadTestCases(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runMaxRetries >= 0 {
		cfg.MaxRetries = runMaxRetries
	}
	if runParallelism > 0 {
		cfg.MaxDegreeOfParallelism = runParallelism
	}

	logger := logging.New(os.Stderr, slog.LevelInfo)
	client := httpclient.New(httpclient.Options{Timeout: cfg.RequestTimeout, InsecureSkipVerify: cfg.AllowUntrustedSSL})
	coord := coordinator.New(client, cfg, logger)

	result := coord.Execute(context.Background(), cases, runBaseURL, nil, nil)

	if runJSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("run %s: %d total, %d passed, %d failed, %d skipped, %d blocked, %d error\n",
		result.RunId, result.Summary.Total, result.Summary.Passed, result.Summary.Failed,
		result.Summary.Skipped, result.Summary.Blocked, result.Summary.Error)
	if result.Summary.Failed > 0 || result.Summary.Error > 0 {
		return fmt.Errorf("%d test(s) failed or errored", result.Summary.Failed+result.Summary.Error)
	}
	return nil
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [test-file.yaml|json]",
	Short: "Validate a test-case document without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cases, err := loadTestCases(args[0])
	if err != nil {
		return err
	}

	errs := model.ValidateSuite(cases)
	var hardErrors int
	for _, e := range errs {
		marker := "⚠"
		if e.Severity == model.SeverityError {
			marker = "✗"
			hardErrors++
		}
		fmt.Fprintf(os.Stderr, "  %s %s\n", marker, e.Error())
	}
	if hardErrors > 0 {
		return fmt.Errorf("validation failed with %d error(s)", hardErrors)
	}
	fmt.Printf("✓ %s is valid (%d test cases)\n", args[0], len(cases))
	return nil
}

// --- serve ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingress HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(os.Stderr, slog.LevelInfo)
	return server.New(cfg, logger).Run(servePort)
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("apiforge %s (%s)\n", version, commit)
	},
}

// --- shared helpers ---

func loadTestCases(path string) ([]model.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cases []model.TestCase
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cases)
	default:
		err = json.Unmarshal(data, &cases)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cases, nil
}
