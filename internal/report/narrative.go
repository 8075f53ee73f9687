package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/lakeops/metalake/internal/collector"
	"github.com/lakeops/metalake/internal/llm"
	"github.com/lakeops/metalake/internal/logging"
)

// maxHarvestedFindings caps how many findings are pulled out of an
// unstructured model response.
const maxHarvestedFindings = 10

// Analysis is the narrative layer of a report.
type Analysis struct {
	ExecutiveSummary string          `json:"executive_summary"`
	KeyFindings      []string        `json:"key_findings"`
	Details          AnalysisDetails `json:"detailed_statistics"`
}

// AnalysisDetails holds the long-form statistical commentary.
type AnalysisDetails struct {
	Summary         string   `json:"summary"`
	NotablePatterns []string `json:"notable_patterns"`
	Recommendations []string `json:"recommendations"`
}

// Analyst produces the report narrative from a collection summary. A nil
// model is allowed; the analyst then always falls back to the deterministic
// summary, so reporting keeps working without model access.
type Analyst struct {
	model llm.TextGenerator
	log   *slog.Logger
}

// NewAnalyst creates an Analyst backed by model, which may be nil.
func NewAnalyst(model llm.TextGenerator) *Analyst {
	return &Analyst{
		model: model,
		log:   logging.Component("analyst"),
	}
}

// Analyze writes the narrative for summary and charts. The returned bool
// reports degraded mode: true when the narrative is the deterministic
// fallback rather than model output. Analysis never fails — a broken model
// degrades the narrative, not the run.
func (a *Analyst) Analyze(ctx context.Context, summary collector.Summary, charts []Chart) (Analysis, bool) {
	if a.model == nil {
		return fallbackAnalysis(summary, charts), true
	}

	prompt, err := analysisPrompt(summary, charts)
	if err != nil {
		a.log.Error("analysis prompt build failed", "error", err)
		return fallbackAnalysis(summary, charts), true
	}

	text, err := a.model.Generate(ctx, prompt)
	if err != nil {
		a.log.Warn("analysis model call failed, using fallback narrative", "error", err)
		return fallbackAnalysis(summary, charts), true
	}

	analysis, err := parseAnalysis(text)
	if err != nil {
		a.log.Warn("model response was not structured, harvesting findings", "error", err)
		return harvestAnalysis(text, summary), false
	}
	return analysis, false
}

// analysisPrompt formats the aggregation and chart descriptions for the
// model, ending with the response contract.
func analysisPrompt(summary collector.Summary, charts []Chart) (string, error) {
	stats, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode statistics: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a data analyst. Analyze the following document metadata statistics and provide comprehensive insights.\n\n")
	b.WriteString("METADATA STATISTICS:\n```json\n")
	b.Write(stats)
	b.WriteString("\n```\n")

	if len(charts) > 0 {
		b.WriteString("\nPRE-GENERATED VISUALIZATIONS:\n")
		for i, chart := range charts {
			fmt.Fprintf(&b, "%d. %s\n   Field: %s\n   Description: %s\n", i+1, chart.Title, chart.Key, chart.Description)
		}
	} else {
		b.WriteString("\nNo visualizations were generated.\n")
	}

	b.WriteString(`
Base your analysis only on the provided data. Be specific with numbers and
percentages, highlight unusual patterns, and keep findings concise.

Return your analysis as a JSON object with this structure:
{
  "executive_summary": "Brief overview of the key findings (2-3 sentences)",
  "key_findings": ["Finding 1", "Finding 2"],
  "detailed_statistics": {
    "summary": "Detailed explanation of statistics",
    "notable_patterns": ["Pattern 1"],
    "recommendations": ["Recommendation 1"]
  }
}
`)
	return b.String(), nil
}

// parseAnalysis extracts the structured analysis from the model response.
func parseAnalysis(text string) (Analysis, error) {
	obj, err := llm.ExtractJSON(text)
	if err != nil {
		return Analysis{}, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return Analysis{}, fmt.Errorf("re-encode analysis: %w", err)
	}
	var analysis Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}

	if analysis.ExecutiveSummary == "" {
		analysis.ExecutiveSummary = "Analysis completed successfully."
	}
	return analysis, nil
}

// harvestAnalysis salvages findings from an unstructured model response by
// collecting bullet and numbered lines.
func harvestAnalysis(text string, summary collector.Summary) Analysis {
	return Analysis{
		ExecutiveSummary: "Analysis completed. See key findings for details.",
		KeyFindings:      harvestFindings(text),
		Details: AnalysisDetails{
			Summary: fmt.Sprintf("Analyzed %d files across various categories.", summary.TotalCollected),
		},
	}
}

func harvestFindings(text string) []string {
	var findings []string
	for _, line := range strings.Split(text, "\n") {
		if len(findings) == maxHarvestedFindings {
			break
		}
		line = strings.TrimSpace(line)

		if rest, ok := strings.CutPrefix(line, "- "); ok {
			findings = append(findings, strings.TrimSpace(rest))
			continue
		}
		if rest, ok := strings.CutPrefix(line, "• "); ok {
			findings = append(findings, strings.TrimSpace(rest))
			continue
		}

		head, rest, ok := strings.Cut(line, ".")
		if !ok || len(line) <= 10 {
			continue
		}
		if n, err := strconv.Atoi(head); err == nil && n >= 1 && n < 20 {
			findings = append(findings, strings.TrimSpace(rest))
		}
	}
	return findings
}

// fallbackAnalysis builds a deterministic narrative from the aggregation
// when the model is unavailable.
func fallbackAnalysis(summary collector.Summary, charts []Chart) Analysis {
	var findings []string

	if name, count, ok := topCategory(summary.Aggregations, "department"); ok {
		findings = append(findings, fmt.Sprintf("Top department: %s with %d files", name, count))
	}
	if name, count, ok := topCategory(summary.Aggregations, "document_type"); ok {
		findings = append(findings, fmt.Sprintf("Most common document type: %s (%d files)", name, count))
	}
	if ext, count, ok := topCount(summary.ByFileType); ok {
		if ext == "" {
			ext = "unknown"
		}
		findings = append(findings, fmt.Sprintf("Most common file extension: %s (%d files)", ext, count))
	}

	if len(findings) == 0 {
		findings = []string{"No significant patterns detected."}
	}

	return Analysis{
		ExecutiveSummary: fmt.Sprintf(
			"Collected and analyzed %d metadata files. Generated %d visualization(s). Basic statistical analysis completed.",
			summary.TotalCollected, len(charts)),
		KeyFindings: findings,
		Details: AnalysisDetails{
			Summary:         fmt.Sprintf("Analyzed %d files across various categories.", summary.TotalCollected),
			NotablePatterns: findings,
			Recommendations: []string{"Review the generated charts for detailed distribution patterns"},
		},
	}
}

// topCategory returns the most frequent categorical value for key,
// ignoring the overflow bucket.
func topCategory(aggs map[string]collector.KeyAggregate, key string) (string, int, bool) {
	agg, ok := aggs[key]
	if !ok || agg.Categories == nil {
		return "", 0, false
	}
	return topCount(withoutOthers(agg.Categories))
}

// topCount returns the highest-count entry, ties broken by ascending name.
func topCount(counts map[string]int) (string, int, bool) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestCount, found := "", 0, false
	for _, name := range names {
		if !found || counts[name] > bestCount {
			best, bestCount, found = name, counts[name], true
		}
	}
	return best, bestCount, found
}
