// Package config loads and validates the metalake runtime configuration.
//
// Settings are resolved in three layers: built-in defaults, then an optional
// YAML file, then environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when the named config file does not exist.
var ErrNotFound = errors.New("config file not found")

type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Collector CollectorConfig `yaml:"collector"`
	Reports   ReportConfig    `yaml:"reports"`
	Generator GeneratorConfig `yaml:"generator"`
	Mailroom  MailroomConfig  `yaml:"mailroom"`
	Model     ModelConfig     `yaml:"model"`
	Serve     ServeConfig     `yaml:"serve"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// StorageConfig selects and parameterizes the object-storage backend.
type StorageConfig struct {
	Backend  string `yaml:"backend" env:"STORAGE_BACKEND"` // "s3" | "gcs" | "local" | "mem"
	Bucket   string `yaml:"bucket" env:"BUCKET_NAME"`
	Prefix   string `yaml:"prefix" env:"STORAGE_PREFIX"`
	Region   string `yaml:"region" env:"STORAGE_REGION"`
	Endpoint string `yaml:"endpoint" env:"STORAGE_ENDPOINT"` // custom S3-compatible endpoint
	LocalDir string `yaml:"localDir" env:"STORAGE_LOCAL_DIR"`
}

type CollectorConfig struct {
	Parallelism int    `yaml:"parallelism" env:"COLLECTOR_PARALLELISM"`
	MaxResults  int    `yaml:"maxResults" env:"COLLECTOR_MAX_RESULTS"`
	Prefix      string `yaml:"prefix" env:"COLLECTOR_PREFIX"`
}

type ReportConfig struct {
	Prefix        string `yaml:"prefix" env:"REPORTS_PREFIX"`
	ExportEntries bool   `yaml:"exportEntries" env:"REPORTS_EXPORT_ENTRIES"`
}

type GeneratorConfig struct {
	RulesPath    string `yaml:"rulesPath" env:"GENERATOR_RULES_PATH"`
	MaxReadBytes int64  `yaml:"maxReadBytes" env:"GENERATOR_MAX_READ_BYTES"`
}

type MailroomConfig struct {
	UploadPrefix   string   `yaml:"uploadPrefix" env:"MAILROOM_UPLOAD_PREFIX"`
	OutboundPrefix string   `yaml:"outboundPrefix" env:"MAILROOM_OUTBOUND_PREFIX"`
	Responder      string   `yaml:"responder" env:"MAILROOM_RESPONDER"` // "storage" | "log"
	MaxAttachment  int64    `yaml:"maxAttachmentBytes" env:"MAILROOM_MAX_ATTACHMENT_BYTES"`
	AllowedTypes   []string `yaml:"allowedTypes" env:"MAILROOM_ALLOWED_TYPES" envSeparator:","`
}

// ModelConfig configures the language model used for report narratives.
// The generator carries its own model section inside its rules file.
type ModelConfig struct {
	Provider    string  `yaml:"provider" env:"MODEL_PROVIDER"` // "anthropic" | "openai"
	Name        string  `yaml:"name" env:"MODEL_NAME"`
	BaseURL     string  `yaml:"baseURL" env:"MODEL_BASE_URL"`
	MaxTokens   int     `yaml:"maxTokens" env:"MODEL_MAX_TOKENS"`
	Temperature float64 `yaml:"temperature" env:"MODEL_TEMPERATURE"`
}

type ServeConfig struct {
	Interval time.Duration `yaml:"interval" env:"SERVE_INTERVAL"`
	Lookback time.Duration `yaml:"lookback" env:"SERVE_LOOKBACK"` // cap on resumed windows
	StateDir string        `yaml:"stateDir" env:"SERVE_STATE_DIR"`
}

// UnmarshalYAML accepts duration strings such as "24h" for interval and
// lookback; yaml.v3 cannot decode those into time.Duration on its own.
// Absent keys keep whatever the struct already holds.
func (s *ServeConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval string `yaml:"interval"`
		Lookback string `yaml:"lookback"`
		StateDir string `yaml:"stateDir"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("serve.interval: %w", err)
		}
		s.Interval = d
	}
	if raw.Lookback != "" {
		d, err := time.ParseDuration(raw.Lookback)
		if err != nil {
			return fmt.Errorf("serve.lookback: %w", err)
		}
		s.Lookback = d
	}
	if raw.StateDir != "" {
		s.StateDir = raw.StateDir
	}
	return nil
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Address string `yaml:"address" env:"METRICS_ADDRESS"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:  "local",
			Prefix:   "",
			LocalDir: "./data",
		},
		Collector: CollectorConfig{
			Parallelism: 10,
		},
		Reports: ReportConfig{
			Prefix:        "analytics-reports/",
			ExportEntries: true,
		},
		Generator: GeneratorConfig{
			RulesPath:    "rules.yaml",
			MaxReadBytes: 50 * 1024 * 1024,
		},
		Mailroom: MailroomConfig{
			UploadPrefix:   "uploads/",
			OutboundPrefix: "outbound/",
			Responder:      "storage",
			MaxAttachment:  25 * 1024 * 1024,
			AllowedTypes:   []string{".pdf", ".docx", ".txt", ".xlsx", ".csv"},
		},
		Model: ModelConfig{
			Provider:    "anthropic",
			Name:        "claude-3-haiku-20240307",
			MaxTokens:   2000,
			Temperature: 0.1,
		},
		Serve: ServeConfig{
			Interval: 24 * time.Hour,
			Lookback: 7 * 24 * time.Hour,
			StateDir: "./state",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
		},
	}
}

// Load resolves the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "s3", "gcs", "local", "mem":
	default:
		return fmt.Errorf("storage.backend %q: must be one of s3, gcs, local, mem", c.Storage.Backend)
	}

	if (c.Storage.Backend == "s3" || c.Storage.Backend == "gcs") && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "local" && c.Storage.LocalDir == "" {
		return errors.New("storage.localDir is required for the local backend")
	}

	if c.Collector.Parallelism <= 0 {
		return fmt.Errorf("collector.parallelism must be positive, got %d", c.Collector.Parallelism)
	}
	if c.Collector.MaxResults < 0 {
		return fmt.Errorf("collector.maxResults must not be negative, got %d", c.Collector.MaxResults)
	}

	if c.Serve.Interval <= 0 {
		return fmt.Errorf("serve.interval must be positive, got %s", c.Serve.Interval)
	}

	switch c.Mailroom.Responder {
	case "storage", "log":
	default:
		return fmt.Errorf("mailroom.responder %q: must be storage or log", c.Mailroom.Responder)
	}

	for _, ext := range c.Mailroom.AllowedTypes {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("mailroom.allowedTypes entry %q must start with a dot", ext)
		}
	}

	return nil
}
