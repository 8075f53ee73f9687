// Package analytics turns metadata collection runs into persisted reports,
// one summary per run, and schedules them on an interval.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lakeops/metalake/internal/collector"
	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/metrics"
	"github.com/lakeops/metalake/internal/report"
	"github.com/lakeops/metalake/internal/storage"
)

// DefaultWindow is the collection lookback when the caller gives neither an
// explicit window nor a start time.
const DefaultWindow = 24 * time.Hour

// RunOptions selects what one analytics run covers.
type RunOptions struct {
	// Window is the lookback from End when Start is zero. Zero or negative
	// falls back to DefaultWindow.
	Window time.Duration

	// Start and End bound the sidecar modification window explicitly. A
	// zero End means now; a zero Start means End minus Window.
	Start time.Time
	End   time.Time

	// Prefix narrows the scan. Empty scans the store's whole prefix.
	Prefix string

	// Filters keeps only entries whose attributes match (see
	// collector.CollectionParams.AttributeFilters).
	Filters map[string][]string

	// MaxResults caps how many sidecars are fetched. Zero means no cap.
	MaxResults int

	// Parallelism bounds concurrent fetches. Zero uses the collector
	// default.
	Parallelism int
}

// resolveWindow pins the run window against now.
func (o RunOptions) resolveWindow(now time.Time) (start, end time.Time) {
	end = o.End
	if end.IsZero() {
		end = now
	}

	start = o.Start
	if start.IsZero() {
		window := o.Window
		if window <= 0 {
			window = DefaultWindow
		}
		start = end.Add(-window)
	}
	return start, end
}

// RunSummary is what one run produced: collection totals plus where the
// report artifacts went.
type RunSummary struct {
	RunID                string              `json:"run_id"`
	WindowStart          time.Time           `json:"window_start"`
	WindowEnd            time.Time           `json:"window_end"`
	TotalScanned         int                 `json:"total_scanned"`
	TotalCollected       int                 `json:"total_collected"`
	ExecutionTimeSeconds float64             `json:"execution_time_seconds"`
	DataTransferMB       float64             `json:"data_transfer_mb"`
	Charts               int                 `json:"charts"`
	Tables               int                 `json:"tables"`
	Degraded             bool                `json:"degraded"`
	Artifacts            report.ArtifactKeys `json:"artifacts"`
}

// Runner executes analytics runs: collect, aggregate, narrate, persist.
type Runner struct {
	store     *storage.Store
	collector *collector.Collector
	analyst   *report.Analyst
	assembler *report.Assembler
	log       *slog.Logger
}

// NewRunner wires a Runner over the store. The analyst may carry a nil model;
// reports then use the deterministic narrative.
func NewRunner(store *storage.Store, coll *collector.Collector, analyst *report.Analyst, reportOpts report.Options) *Runner {
	return &Runner{
		store:     store,
		collector: coll,
		analyst:   analyst,
		assembler: report.NewAssembler(store, reportOpts),
		log:       logging.Component("analytics"),
	}
}

// Run executes one analytics run. A collection failure aborts the run; a
// persistence failure is returned alongside the summary of what had already
// completed.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	runID := uuid.NewString()
	start, end := opts.resolveWindow(time.Now().UTC())
	log := r.log.With("run_id", runID)

	log.Info("analytics run starting",
		"window_start", start,
		"window_end", end,
		"prefix", opts.Prefix,
	)

	result, err := r.collector.Collect(ctx, collector.CollectionParams{
		Bucket:           r.store.Bucket(),
		Prefix:           opts.Prefix,
		StartTime:        start,
		EndTime:          end,
		AttributeFilters: opts.Filters,
		MaxResults:       opts.MaxResults,
		Parallelism:      opts.Parallelism,
	})
	if err != nil {
		r.countRun("failure")
		return RunSummary{}, fmt.Errorf("analytics run %s: %w", runID, err)
	}

	summary := result.Aggregate()
	charts, tables := report.SelectVisuals(summary)
	analysis, degraded := r.analyst.Analyze(ctx, summary, charts)

	runSummary := RunSummary{
		RunID:                runID,
		WindowStart:          start,
		WindowEnd:            end,
		TotalScanned:         summary.TotalScanned,
		TotalCollected:       summary.TotalCollected,
		ExecutionTimeSeconds: summary.ExecutionTimeSeconds,
		DataTransferMB:       summary.DataTransferMB,
		Charts:               len(charts),
		Tables:               len(tables),
		Degraded:             degraded,
	}

	rep := &report.Report{
		GeneratedAt: time.Now().UTC(),
		PeriodStart: start,
		PeriodEnd:   end,
		Statistics:  summary,
		Analysis:    analysis,
		Charts:      charts,
		Tables:      tables,
		Degraded:    degraded,
	}

	keys, err := r.assembler.Persist(ctx, rep, result.Entries)
	if err != nil {
		r.countRun("failure")
		return runSummary, fmt.Errorf("analytics run %s: %w", runID, err)
	}
	runSummary.Artifacts = keys

	r.countRun("success")
	log.Info("analytics run finished",
		"collected", runSummary.TotalCollected,
		"scanned", runSummary.TotalScanned,
		"charts", runSummary.Charts,
		"tables", runSummary.Tables,
		"degraded", runSummary.Degraded,
		"report", keys.Markdown,
	)
	return runSummary, nil
}

func (r *Runner) countRun(outcome string) {
	if m := metrics.Get(); m != nil {
		m.IncCollectionRun(r.store.Bucket(), outcome)
	}
}
