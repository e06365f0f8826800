package config

import (
	"os"
	"path/filepath"
	"testing"
)

// setenv sets an env var for the duration of a test, restoring the original on cleanup.
func setenv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	os.Setenv(key, value) //nolint:errcheck
	t.Cleanup(func() {
		if had {
			os.Setenv(key, original) //nolint:errcheck
		} else {
			os.Unsetenv(key) //nolint:errcheck
		}
	})
}

var envKeys = []string{
	"TGI_WORKER_HOST",
	"TGI_WORKER_PORT",
	"TGI_WORKER_VERBOSE",
	"TGI_WORKER_DEBUG",
	"TGI_WORKER_PUBLIC_URL",
	"TGI_WORKER_BACKEND_URL",
	"TGI_WORKER_BACKEND_TOKEN",
	"TGI_WORKER_BACKEND_TIMEOUT",
	"TGI_WORKER_SCHEMA_VERSION",
	"TGI_WORKER_SCHEMA_FILE",
	"TGI_WORKER_BENCHMARK_RUNS",
	"TGI_WORKER_BENCHMARK_WORDS",
	"MODEL_LOG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		setenv(t, key, "")
		os.Unsetenv(key) //nolint:errcheck
	}
}

// TestDefaultFromEnvDefaults checks that DefaultFromEnv returns expected defaults
// when no environment variables are set.
func TestDefaultFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg := DefaultFromEnv()

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host: got %q, want %q", cfg.Host, "127.0.0.1")
	}
	if cfg.Port != 3000 {
		t.Errorf("Port: got %d, want 3000", cfg.Port)
	}
	if cfg.Verbose || cfg.Debug {
		t.Error("Verbose and Debug should be false by default")
	}
	if cfg.BackendURL != BackendURLDefault {
		t.Errorf("BackendURL: got %q, want %q", cfg.BackendURL, BackendURLDefault)
	}
	if cfg.SchemaVersion != "chat" {
		t.Errorf("SchemaVersion: got %q, want %q", cfg.SchemaVersion, "chat")
	}
	if cfg.BenchmarkRuns != 3 || cfg.BenchmarkWords != 256 {
		t.Errorf("benchmark: got runs=%d words=%d, want 3/256", cfg.BenchmarkRuns, cfg.BenchmarkWords)
	}
	if cfg.ModelLog != "" {
		t.Errorf("ModelLog: got %q, want empty", cfg.ModelLog)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// TestDefaultFromEnvOverrides verifies that environment variables override defaults.
func TestDefaultFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	setenv(t, "TGI_WORKER_PORT", "8080")
	setenv(t, "TGI_WORKER_VERBOSE", "yes")
	setenv(t, "TGI_WORKER_BACKEND_URL", "http://backend:9000/")
	setenv(t, "TGI_WORKER_BACKEND_TOKEN", " secret ")
	setenv(t, "TGI_WORKER_SCHEMA_VERSION", "TGI-NESTED")
	setenv(t, "TGI_WORKER_BENCHMARK_RUNS", "5")
	setenv(t, "MODEL_LOG", "/var/log/model.log")

	cfg := DefaultFromEnv()

	if cfg.Port != 8080 {
		t.Errorf("Port: got %d, want 8080", cfg.Port)
	}
	if !cfg.Verbose {
		t.Error("Verbose should be true when env is 'yes'")
	}
	if cfg.BackendChatURL() != "http://backend:9000/v1/chat/completions" {
		t.Errorf("BackendChatURL: got %q", cfg.BackendChatURL())
	}
	if cfg.BackendToken != "secret" {
		t.Errorf("BackendToken: got %q, want %q", cfg.BackendToken, "secret")
	}
	if cfg.SchemaVersion != "tgi-nested" {
		t.Errorf("SchemaVersion: got %q, want %q", cfg.SchemaVersion, "tgi-nested")
	}
	if cfg.BenchmarkRuns != 5 {
		t.Errorf("BenchmarkRuns: got %d, want 5", cfg.BenchmarkRuns)
	}
	if cfg.ModelLog != "/var/log/model.log" {
		t.Errorf("ModelLog: got %q", cfg.ModelLog)
	}
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	clearEnv(t)
	setenv(t, "TGI_WORKER_PORT", "eighty")
	if got := DefaultFromEnv().Port; got != 3000 {
		t.Errorf("Port: got %d, want default 3000", got)
	}
}

// TestEnvBoolVariants checks all accepted truthy values for boolean env vars.
func TestEnvBoolVariants(t *testing.T) {
	for _, val := range []string{"1", "true", "yes", "on", "TRUE", "YES", "ON"} {
		t.Run(val, func(t *testing.T) {
			setenv(t, "TGI_WORKER_VERBOSE", val)
			if !DefaultFromEnv().Verbose {
				t.Errorf("expected Verbose=true for env value %q", val)
			}
		})
	}
	for _, val := range []string{"0", "false", "no", "off", ""} {
		t.Run("false_"+val, func(t *testing.T) {
			setenv(t, "TGI_WORKER_VERBOSE", val)
			if DefaultFromEnv().Verbose {
				t.Errorf("expected Verbose=false for env value %q", val)
			}
		})
	}
}

func TestLoadFileOverlaysValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "worker.yaml")
	data := []byte(`
port: 4000
backend_url: http://10.0.0.2:5001/
schema_version: chat-strict
log_actions:
  - action: model_loaded
    match: "Ready"
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultFromEnv()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("Port: got %d, want 4000", cfg.Port)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host should keep its default, got %q", cfg.Host)
	}
	if cfg.BackendURL != "http://10.0.0.2:5001" {
		t.Errorf("BackendURL: got %q", cfg.BackendURL)
	}
	if cfg.SchemaVersion != "chat-strict" {
		t.Errorf("SchemaVersion: got %q", cfg.SchemaVersion)
	}
	if len(cfg.LogActions) != 1 || cfg.LogActions[0].Action != "model_loaded" {
		t.Errorf("LogActions: got %+v", cfg.LogActions)
	}

	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"port zero", func(c *ServerConfig) { c.Port = 0 }},
		{"port too large", func(c *ServerConfig) { c.Port = 70000 }},
		{"no backend", func(c *ServerConfig) { c.BackendURL = "" }},
		{"no schema", func(c *ServerConfig) { c.SchemaVersion = "" }},
		{"negative runs", func(c *ServerConfig) { c.BenchmarkRuns = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFromEnv()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestReportedURL(t *testing.T) {
	cfg := &ServerConfig{Host: "0.0.0.0", Port: 3000}
	if got := cfg.ReportedURL(); got != "http://0.0.0.0:3000" {
		t.Errorf("ReportedURL: got %q", got)
	}
	cfg.PublicURL = "https://worker.example:443"
	if got := cfg.ReportedURL(); got != "https://worker.example:443" {
		t.Errorf("ReportedURL: got %q", got)
	}
}
