package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lakeops/metalake/internal/config"
	"github.com/lakeops/metalake/internal/event"
	"github.com/lakeops/metalake/internal/llm"
	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/metrics"
	"github.com/lakeops/metalake/internal/report"
	"github.com/lakeops/metalake/internal/storage"
	"github.com/lakeops/metalake/internal/version"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "metalake",
	Short: "Document metadata lake: sidecar generation, collection and reporting",
	Long: `metalake manages JSON metadata sidecars for documents in object storage:
it generates them with a language model when documents arrive, collects and
aggregates them into analytics reports, and answers email-driven upload and
statistics requests.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
}

// loadConfig resolves the runtime configuration and initializes logging and
// metrics for one command invocation.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	logging.Setup(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
	metrics.Init("metalake")

	return cfg, nil
}

// reportOptions maps the reports config section onto the assembler.
func reportOptions(cfg *config.Config) report.Options {
	return report.Options{
		Prefix:           cfg.Reports.Prefix,
		SkipEntryExports: !cfg.Reports.ExportEntries,
	}
}

// openStore opens the configured object store.
func openStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	return storage.Open(ctx, storage.Config{
		Backend:  cfg.Storage.Backend,
		Bucket:   cfg.Storage.Bucket,
		Prefix:   cfg.Storage.Prefix,
		Region:   cfg.Storage.Region,
		Endpoint: cfg.Storage.Endpoint,
		LocalDir: cfg.Storage.LocalDir,
	})
}

// newAnalystModel builds the narrative model, or nil when no API key is
// available — reports then carry the deterministic fallback narrative
// instead of failing.
func newAnalystModel(cfg *config.Config) llm.TextGenerator {
	key := apiKeyFor(cfg.Model.Provider)
	if key == "" {
		slog.Warn("no model API key configured, report narratives fall back",
			"provider", cfg.Model.Provider)
		return nil
	}

	client, err := llm.New(llm.Config{
		Provider:    cfg.Model.Provider,
		Model:       cfg.Model.Name,
		APIKey:      key,
		BaseURL:     cfg.Model.BaseURL,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	})
	if err != nil {
		slog.Warn("model init failed, report narratives fall back", "error", err)
		return nil
	}
	return client
}

func apiKeyFor(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// resolveObjectRef builds the target object reference from --bucket/--key or
// from a notification payload file ("-" reads stdin).
func resolveObjectRef(bucket, key, eventPath string) (event.ObjectRef, error) {
	if eventPath != "" {
		if bucket != "" || key != "" {
			return event.ObjectRef{}, errors.New("--event conflicts with --bucket/--key")
		}
		data, err := readEventPayload(eventPath)
		if err != nil {
			return event.ObjectRef{}, err
		}
		return event.ParseObjectEvent(data)
	}

	if bucket == "" || key == "" {
		return event.ObjectRef{}, errors.New("need --bucket and --key, or --event")
	}
	return event.ObjectRef{Bucket: bucket, Key: key}, nil
}

func readEventPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
