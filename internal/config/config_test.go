package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDegreeOfParallelism != 4 || cfg.MaxRetries != 0 {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("got %v", cfg.RequestTimeout)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("APIFORGE_MAX_RETRIES", "3")
	t.Setenv("APIFORGE_REQUEST_TIMEOUT_SECONDS", "10")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("got %d", cfg.MaxRetries)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("got %v", cfg.RequestTimeout)
	}
}

func TestLoadYAMLFileOverridesDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "apiforge-*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.WriteString("maxDegreeOfParallelism: 8\n")
	f.Close()

	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDegreeOfParallelism != 8 {
		t.Fatalf("got %d", cfg.MaxDegreeOfParallelism)
	}
}

func TestLoadMissingYAMLFileIsNotFatal(t *testing.T) {
	cfg, err := Load("/nonexistent/apiforge.yaml")
	if err != nil {
		t.Fatalf("Load should tolerate a missing file: %v", err)
	}
	if cfg.MaxDegreeOfParallelism != 4 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadEnvOverridesYAMLFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "apiforge-*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.WriteString("maxRetries: 1\n")
	f.Close()

	t.Setenv("APIFORGE_MAX_RETRIES", "5")
	cfg, err := Load(f.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("expected env (5) to win over yaml (1), got %d", cfg.MaxRetries)
	}
}
