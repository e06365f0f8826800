package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/n0madic/go-tgi-worker/internal/schema"
)

const (
	BackendURLDefault     = "http://0.0.0.0:5001"
	BackendEndpoint       = "/v1/chat/completions"
	BenchmarkRunsDefault  = 3
	BenchmarkWordsDefault = 256
	BackendTimeoutDefault = 300
	configFileEnv         = "TGI_WORKER_CONFIG"
	modelLogEnv           = "MODEL_LOG"
)

// ServerConfig holds all worker configuration.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Verbose bool   `yaml:"verbose"`
	Debug   bool   `yaml:"debug"`

	// PublicURL is how the autoscaler reaches this worker; reported by /ping.
	PublicURL string `yaml:"public_url"`

	BackendURL     string `yaml:"backend_url"`
	BackendToken   string `yaml:"backend_token"`
	BackendTimeout int    `yaml:"backend_timeout_seconds"`

	SchemaVersion string `yaml:"schema_version"`
	SchemaFile    string `yaml:"schema_file"`

	ModelLog       string    `yaml:"model_log"`
	LogActions     []LogRule `yaml:"log_actions"`
	BenchmarkRuns  int       `yaml:"benchmark_runs"`
	BenchmarkWords int       `yaml:"benchmark_words"`
}

// LogRule is a configured model-log pattern, see logwatch.Rule.
type LogRule struct {
	Action string `yaml:"action"`
	Match  string `yaml:"match"`
}

// DefaultFromEnv creates a ServerConfig with defaults from environment variables.
func DefaultFromEnv() *ServerConfig {
	return &ServerConfig{
		Host:           envOrDefault("TGI_WORKER_HOST", "127.0.0.1"),
		Port:           envInt("TGI_WORKER_PORT", 3000),
		Verbose:        envBool("TGI_WORKER_VERBOSE"),
		Debug:          envBool("TGI_WORKER_DEBUG"),
		PublicURL:      strings.TrimSpace(os.Getenv("TGI_WORKER_PUBLIC_URL")),
		BackendURL:     strings.TrimRight(envOrDefault("TGI_WORKER_BACKEND_URL", BackendURLDefault), "/"),
		BackendToken:   strings.TrimSpace(os.Getenv("TGI_WORKER_BACKEND_TOKEN")),
		BackendTimeout: envInt("TGI_WORKER_BACKEND_TIMEOUT", BackendTimeoutDefault),
		SchemaVersion:  strings.ToLower(envOrDefault("TGI_WORKER_SCHEMA_VERSION", schema.DefaultVersion)),
		SchemaFile:     strings.TrimSpace(os.Getenv("TGI_WORKER_SCHEMA_FILE")),
		ModelLog:       strings.TrimSpace(os.Getenv(modelLogEnv)),
		BenchmarkRuns:  envInt("TGI_WORKER_BENCHMARK_RUNS", BenchmarkRunsDefault),
		BenchmarkWords: envInt("TGI_WORKER_BENCHMARK_WORDS", BenchmarkWordsDefault),
	}
}

// ConfigFile returns the config file path from the environment, if any.
func ConfigFile() string {
	return strings.TrimSpace(os.Getenv(configFileEnv))
}

// LoadFile overlays settings from a YAML file onto c. Keys missing from the
// file keep their current values.
func (c *ServerConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	return nil
}

// Validate checks settings that would otherwise fail late.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.BackendURL == "" {
		return fmt.Errorf("backend url is empty")
	}
	if c.SchemaVersion == "" {
		return fmt.Errorf("schema version is empty")
	}
	if c.BenchmarkRuns < 0 {
		return fmt.Errorf("benchmark runs must not be negative")
	}
	return nil
}

// BackendChatURL is the model server endpoint requests are forwarded to.
func (c *ServerConfig) BackendChatURL() string {
	return c.BackendURL + BackendEndpoint
}

// Addr is the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ReportedURL is the URL advertised to the autoscaler.
func (c *ServerConfig) ReportedURL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return "http://" + c.Addr()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
