package report

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/lakeops/metalake/internal/collector"
	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/metrics"
	"github.com/lakeops/metalake/internal/storage"
)

// DefaultPrefix is the key prefix report artifacts are written under when
// Options does not name one.
const DefaultPrefix = "analytics-reports"

// Options tunes where report artifacts go and which ones are written.
type Options struct {
	// Prefix is the key prefix for all artifacts. Empty uses DefaultPrefix.
	Prefix string

	// SkipEntryExports drops the JSONL and Parquet entry artifacts, keeping
	// only report.md and report.json.
	SkipEntryExports bool
}

// Report bundles everything one analytics run produced. It doubles as the
// JSON artifact schema.
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	PeriodStart time.Time         `json:"period_start"`
	PeriodEnd   time.Time         `json:"period_end"`
	Statistics  collector.Summary `json:"statistics"`
	Analysis    Analysis          `json:"analysis"`
	Charts      []Chart           `json:"charts"`
	Tables      []Table           `json:"tables"`
	Degraded    bool              `json:"degraded"`
}

// ArtifactKeys names the objects one persisted report consists of. The entry
// export keys are empty when exports are skipped.
type ArtifactKeys struct {
	Markdown       string `json:"markdown"`
	JSON           string `json:"json"`
	EntriesJSONL   string `json:"entries_jsonl,omitempty"`
	EntriesParquet string `json:"entries_parquet,omitempty"`
}

// Assembler renders reports and writes them, with their entry exports, to
// object storage.
type Assembler struct {
	store *storage.Store
	opts  Options
	log   *slog.Logger
}

// NewAssembler creates an Assembler writing to store.
func NewAssembler(store *storage.Store, opts Options) *Assembler {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	return &Assembler{
		store: store,
		opts:  opts,
		log:   logging.Component("report"),
	}
}

// Persist writes the artifacts of one report under {prefix}/{date}/: the
// Markdown rendering, the JSON document, and — unless skipped — the collected
// entries as zstd JSONL and Parquet.
func (a *Assembler) Persist(ctx context.Context, rep *Report, entries []collector.MetadataEntry) (ArtifactKeys, error) {
	dir := path.Join(a.opts.Prefix, rep.PeriodEnd.UTC().Format("2006-01-02"))
	keys := ArtifactKeys{
		Markdown: path.Join(dir, "report.md"),
		JSON:     path.Join(dir, "report.json"),
	}
	if !a.opts.SkipEntryExports {
		keys.EntriesJSONL = path.Join(dir, "entries.jsonl.zst")
		keys.EntriesParquet = path.Join(dir, "entries.parquet")
	}

	if err := a.store.WriteBytes(ctx, keys.Markdown, []byte(rep.Markdown()), "text/markdown"); err != nil {
		return keys, err
	}
	if err := a.store.WriteJSON(ctx, keys.JSON, rep); err != nil {
		return keys, err
	}
	if !a.opts.SkipEntryExports {
		if err := a.exportJSONL(ctx, keys.EntriesJSONL, entries); err != nil {
			return keys, err
		}
		if err := a.exportParquet(ctx, keys.EntriesParquet, entries); err != nil {
			return keys, err
		}
	}

	if m := metrics.Get(); m != nil {
		m.IncReportsGenerated(a.store.Bucket(), rep.Degraded)
	}
	a.log.Info("report persisted",
		"bucket", a.store.Bucket(),
		"markdown", keys.Markdown,
		"entries", len(entries),
		"degraded", rep.Degraded)

	return keys, nil
}

// Markdown renders the report document.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# Metadata Analytics Report\n\n")
	fmt.Fprintf(&b, "*Generated: %s UTC*\n\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "*Analysis Period: %s to %s*\n\n",
		r.PeriodStart.UTC().Format("2006-01-02"), r.PeriodEnd.UTC().Format("2006-01-02"))
	if r.Degraded {
		b.WriteString("*Narrative generated without model assistance.*\n\n")
	}

	b.WriteString("## Executive Summary\n\n")
	summary := r.Analysis.ExecutiveSummary
	if summary == "" {
		summary = "No summary available."
	}
	b.WriteString(summary + "\n\n")

	b.WriteString("## Key Findings\n\n")
	if len(r.Analysis.KeyFindings) == 0 {
		b.WriteString("No key findings available.\n\n")
	} else {
		for _, finding := range r.Analysis.KeyFindings {
			fmt.Fprintf(&b, "- %s\n", finding)
		}
		b.WriteString("\n")
	}

	r.writeStatistics(&b)
	r.writeCharts(&b)
	r.writeTables(&b)

	return b.String()
}

func (r *Report) writeStatistics(b *strings.Builder) {
	b.WriteString("## Statistics Overview\n\n")
	b.WriteString("| Metric | Value |\n| --- | --- |\n")
	fmt.Fprintf(b, "| Files collected | %d |\n", r.Statistics.TotalCollected)
	fmt.Fprintf(b, "| Sidecars scanned | %d |\n", r.Statistics.TotalScanned)
	fmt.Fprintf(b, "| Execution time | %.2f s |\n", r.Statistics.ExecutionTimeSeconds)
	fmt.Fprintf(b, "| Data transferred | %.2f MB |\n\n", r.Statistics.DataTransferMB)

	if len(r.Statistics.ByFileType) == 0 {
		return
	}
	b.WriteString("### File Types\n\n")
	b.WriteString("| Extension | Count |\n| --- | --- |\n")
	labels, values := topCounts(r.Statistics.ByFileType, len(r.Statistics.ByFileType))
	for i, label := range labels {
		if label == "" {
			label = "unknown"
		}
		fmt.Fprintf(b, "| %s | %d |\n", escapeCell(label), values[i])
	}
	b.WriteString("\n")
}

func (r *Report) writeCharts(b *strings.Builder) {
	if len(r.Charts) == 0 {
		return
	}
	b.WriteString("## Data Visualizations\n\n")
	for _, chart := range r.Charts {
		fmt.Fprintf(b, "### %s\n\n%s\n\n", chart.Title, chart.Description)
		b.WriteString("| Value | Count |\n| --- | --- |\n")
		for i, label := range chart.Labels {
			fmt.Fprintf(b, "| %s | %d |\n", escapeCell(label), chart.Values[i])
		}
		b.WriteString("\n")
	}
}

func (r *Report) writeTables(b *strings.Builder) {
	if len(r.Tables) == 0 {
		return
	}
	b.WriteString("## Detailed Metadata Distribution\n\n")
	b.WriteString("The following fields contain long text or many categories; all values are shown in full.\n\n")

	for _, table := range r.Tables {
		fmt.Fprintf(b, "### %s\n\n*%s*\n\n", table.Title, table.Reason)

		var total int
		for _, count := range table.Counts {
			total += count
		}

		b.WriteString("| # | Count | Share | Value |\n| --- | --- | --- | --- |\n")
		labels, values := topCounts(table.Counts, len(table.Counts))
		for i, label := range labels {
			share := float64(values[i]) / float64(total) * 100
			fmt.Fprintf(b, "| %d | %d | %.1f%% | %s |\n", i+1, values[i], share, escapeCell(label))
		}
		b.WriteString("\n")
	}
}

// escapeCell keeps attribute values from breaking table markup.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
