// Package config loads RunnerConfig from environment variables and an
// optional YAML file, in the precedence order the CLI layer completes with
// explicit flags: flags > environment > file > built-in defaults.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/apiforge/internal/model"
)

const envPrefix = "APIFORGE_"

// Load reads defaults, overlays an optional YAML file at yamlPath (ignored
// if empty or missing), then overlays environment variables. CLI flags are
// applied by the caller afterward (see cmd/apiforge), since cobra owns
// flag parsing and this package has no dependency on it.
func Load(yamlPath string) (model.RunnerConfig, error) {
	cfg := model.DefaultRunnerConfig()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	return cfg, nil
}

func applyEnv(cfg *model.RunnerConfig) {
	if v := os.Getenv(envPrefix + "REQUEST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeoutSeconds = n
		}
	}
	if v := os.Getenv(envPrefix + "MAX_DEGREE_OF_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDegreeOfParallelism = n
		}
	}
	if v := os.Getenv(envPrefix + "MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv(envPrefix + "RETRY_DELAY_MILLISECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryDelayMilliseconds = n
		}
	}
	if v := os.Getenv(envPrefix + "ALLOW_UNTRUSTED_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowUntrustedSSL = b
		}
	}
	if v := os.Getenv(envPrefix + "LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv(envPrefix + "UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
}
