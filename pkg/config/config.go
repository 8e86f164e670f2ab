// Package config provides configuration structures and loading logic for the
// compliance service.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration for the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Guard     GuardConfig     `yaml:"guard"`
	Notify    NotifyConfig    `yaml:"notify"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Storage   StorageConfig   `yaml:"storage"`
	Sentinel  SentinelConfig  `yaml:"sentinel"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the metrics/admin HTTP listener.
type ServerConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
}

// LLMConfig holds configuration for the completion and embedding endpoint.
type LLMConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	EmbedModel string `yaml:"embed_model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// GuardConfig holds configuration for the prompt guard policy.
type GuardConfig struct {
	// ModulePath points to a rego module replacing the built-in policy.
	// Empty selects the built-in module.
	ModulePath string `yaml:"module_path"`
	// Watch reloads the module on file change.
	Watch            bool `yaml:"watch"`
	DisableRedaction bool `yaml:"disable_redaction"`
}

// CorpusConfig holds configuration for the policy knowledge base.
type CorpusConfig struct {
	// Dir contains the policy documents indexed at startup.
	Dir string `yaml:"dir"`
}

// NotifyConfig holds configuration for the alert webhook.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	AuthToken  string `yaml:"auth_token"`
}

// StorageConfig selects the violation queue backend.
type StorageConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	// Path is the database file, sqlite only.
	Path string `yaml:"path"`
}

// SentinelConfig holds configuration for the batch transaction scanner.
type SentinelConfig struct {
	DatasetPath string `yaml:"dataset_path"`
	// CronSpec schedules recurring scans; empty disables the schedule.
	CronSpec string `yaml:"cron_spec"`
}

// TelemetryConfig holds configuration for OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	Environment  string `yaml:"environment"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a file and applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		// Defaults
		Server: ServerConfig{
			MetricsAddress: ":19090",
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("LEXINEL_METRICS_ADDR"); val != "" {
		cfg.Server.MetricsAddress = val
	}

	if val := os.Getenv("LEXINEL_LLM_BASE_URL"); val != "" {
		cfg.LLM.BaseURL = val
	}
	if val := os.Getenv("LEXINEL_LLM_API_KEY"); val != "" {
		cfg.LLM.APIKey = val
	}
	if val := os.Getenv("LEXINEL_LLM_MODEL"); val != "" {
		cfg.LLM.Model = val
	}
	if val := os.Getenv("LEXINEL_EMBED_MODEL"); val != "" {
		cfg.LLM.EmbedModel = val
	}

	if val := os.Getenv("LEXINEL_GUARD_MODULE"); val != "" {
		cfg.Guard.ModulePath = val
	}

	if val := os.Getenv("LEXINEL_CORPUS_DIR"); val != "" {
		cfg.Corpus.Dir = val
	}

	if val := os.Getenv("WEBHOOK_URL"); val != "" {
		cfg.Notify.WebhookURL = val
	}
	if val := os.Getenv("WEBHOOK_AUTH_TOKEN"); val != "" {
		cfg.Notify.AuthToken = val
	}

	if val := os.Getenv("LEXINEL_STORAGE_DRIVER"); val != "" {
		cfg.Storage.Driver = val
	}
	if val := os.Getenv("LEXINEL_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}

	if val := os.Getenv("LEXINEL_SENTINEL_DATASET"); val != "" {
		cfg.Sentinel.DatasetPath = val
	}
	if val := os.Getenv("LEXINEL_SENTINEL_CRON"); val != "" {
		cfg.Sentinel.CronSpec = val
	}

	if val := os.Getenv("LEXINEL_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("LEXINEL_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}

	if val := os.Getenv("LEXINEL_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// Validate performs validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage configuration: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}
	if err := c.Sentinel.Validate(); err != nil {
		return fmt.Errorf("sentinel configuration: %w", err)
	}
	return nil
}

// Validate performs validation of storage configuration.
func (c *StorageConfig) Validate() error {
	driver := strings.TrimSpace(strings.ToLower(c.Driver))
	if driver == "" {
		driver = "memory"
	}
	switch driver {
	case "memory":
		c.Driver = driver
		return nil
	case "sqlite":
		c.Driver = driver
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("sqlite driver requires a path")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q, supported drivers: memory, sqlite", c.Driver)
	}
}

// Validate performs validation of sentinel configuration.
func (c *SentinelConfig) Validate() error {
	if strings.TrimSpace(c.CronSpec) != "" && strings.TrimSpace(c.DatasetPath) == "" {
		return fmt.Errorf("cron_spec requires dataset_path")
	}
	return nil
}

// Validate performs validation of logging configuration.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}
}
