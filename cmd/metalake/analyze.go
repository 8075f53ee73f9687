package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lakeops/metalake/internal/analytics"
	"github.com/lakeops/metalake/internal/collector"
	"github.com/lakeops/metalake/internal/config"
	"github.com/lakeops/metalake/internal/report"
)

var analyzeFlags struct {
	window     time.Duration
	start      string
	end        string
	filters    []string
	maxResults int
	prefix     string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analytics pass and print the run summary",
	RunE:  runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.DurationVar(&analyzeFlags.window, "window", 0, "Collection lookback from now (default 24h)")
	f.StringVar(&analyzeFlags.start, "start", "", "Window start, RFC 3339 (overrides --window)")
	f.StringVar(&analyzeFlags.end, "end", "", "Window end, RFC 3339 (default now)")
	f.StringSliceVar(&analyzeFlags.filters, "filter", nil, "Attribute filter key=value, repeatable")
	f.IntVar(&analyzeFlags.maxResults, "max-results", 0, "Cap on fetched sidecars (0 = config value)")
	f.StringVar(&analyzeFlags.prefix, "prefix", "", "Key prefix to scan (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	opts, err := analyzeOptions(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := analytics.NewRunner(store, collector.New(store, store),
		report.NewAnalyst(newAnalystModel(cfg)), reportOptions(cfg))

	summary, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func analyzeOptions(cfg *config.Config) (analytics.RunOptions, error) {
	opts := analytics.RunOptions{
		Window:      analyzeFlags.window,
		Prefix:      analyzeFlags.prefix,
		MaxResults:  analyzeFlags.maxResults,
		Parallelism: cfg.Collector.Parallelism,
	}
	if opts.Prefix == "" {
		opts.Prefix = cfg.Collector.Prefix
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = cfg.Collector.MaxResults
	}

	if analyzeFlags.start != "" {
		t, err := time.Parse(time.RFC3339, analyzeFlags.start)
		if err != nil {
			return analytics.RunOptions{}, fmt.Errorf("--start: %w", err)
		}
		opts.Start = t
	}
	if analyzeFlags.end != "" {
		t, err := time.Parse(time.RFC3339, analyzeFlags.end)
		if err != nil {
			return analytics.RunOptions{}, fmt.Errorf("--end: %w", err)
		}
		opts.End = t
	}

	filters, err := parseFilters(analyzeFlags.filters)
	if err != nil {
		return analytics.RunOptions{}, err
	}
	opts.Filters = filters
	return opts, nil
}

// parseFilters turns repeated key=value flags into the collector's filter
// map. Repeating a key ORs its values.
func parseFilters(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	filters := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--filter %q: want key=value", pair)
		}
		filters[key] = append(filters[key], value)
	}
	return filters, nil
}
