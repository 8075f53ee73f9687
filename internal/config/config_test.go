package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: s3
  bucket: lake-docs
  region: us-east-1
collector:
  parallelism: 20
  maxResults: 500
serve:
  interval: 1h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.Backend != "s3" {
		t.Errorf("Storage.Backend = %q, want s3", cfg.Storage.Backend)
	}
	if cfg.Storage.Bucket != "lake-docs" {
		t.Errorf("Storage.Bucket = %q, want lake-docs", cfg.Storage.Bucket)
	}
	if cfg.Collector.Parallelism != 20 {
		t.Errorf("Collector.Parallelism = %d, want 20", cfg.Collector.Parallelism)
	}
	if cfg.Collector.MaxResults != 500 {
		t.Errorf("Collector.MaxResults = %d, want 500", cfg.Collector.MaxResults)
	}
	if cfg.Serve.Interval != time.Hour {
		t.Errorf("Serve.Interval = %s, want 1h", cfg.Serve.Interval)
	}

	// Untouched sections keep their defaults.
	if cfg.Mailroom.MaxAttachment != 25*1024*1024 {
		t.Errorf("Mailroom.MaxAttachment = %d, want 25MiB default", cfg.Mailroom.MaxAttachment)
	}
	if cfg.Model.MaxTokens != 2000 {
		t.Errorf("Model.MaxTokens = %d, want 2000 default", cfg.Model.MaxTokens)
	}
}

func TestLoadParsesServeDurations(t *testing.T) {
	path := writeConfig(t, `
serve:
  interval: 30m
  lookback: 72h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Serve.Interval != 30*time.Minute {
		t.Errorf("Serve.Interval = %s, want 30m", cfg.Serve.Interval)
	}
	if cfg.Serve.Lookback != 72*time.Hour {
		t.Errorf("Serve.Lookback = %s, want 72h", cfg.Serve.Lookback)
	}
	if cfg.Serve.StateDir != "./state" {
		t.Errorf("Serve.StateDir = %q, want default ./state", cfg.Serve.StateDir)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "serve:\n  interval: tomorrow\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted serve.interval = tomorrow")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: local
  localDir: /tmp/lake
collector:
  parallelism: 5
`)

	t.Setenv("COLLECTOR_PARALLELISM", "32")
	t.Setenv("BUCKET_NAME", "env-bucket")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Collector.Parallelism != 32 {
		t.Errorf("Collector.Parallelism = %d, want env override 32", cfg.Collector.Parallelism)
	}
	if cfg.Storage.Bucket != "env-bucket" {
		t.Errorf("Storage.Bucket = %q, want env-bucket", cfg.Storage.Bucket)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3"; c.Storage.Bucket = "" }},
		{"zero parallelism", func(c *Config) { c.Collector.Parallelism = 0 }},
		{"negative max results", func(c *Config) { c.Collector.MaxResults = -1 }},
		{"zero interval", func(c *Config) { c.Serve.Interval = 0 }},
		{"unknown responder", func(c *Config) { c.Mailroom.Responder = "smtp" }},
		{"extension without dot", func(c *Config) { c.Mailroom.AllowedTypes = []string{"pdf"} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted %s", tc.name)
			}
		})
	}
}
