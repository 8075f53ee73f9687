// Package report turns a collection summary into the analytics report:
// chart and table selection, the model-written narrative, and the rendered
// Markdown/JSON artifacts with their entry exports.
package report

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lakeops/metalake/internal/collector"
)

const (
	// maxChartCategories is the most distinct values a key may have
	// (excluding the overflow bucket) and still render as a chart.
	maxChartCategories = 15

	// maxLabelLength is the mean label length above which a key's values
	// are tabulated instead of charted.
	maxLabelLength = 80

	// topChartBars caps how many bars a single chart shows.
	topChartBars = 10
)

// Chart is the computed data for one bar chart: labels and values sorted by
// count descending, capped at topChartBars.
type Chart struct {
	Title       string   `json:"title"`
	Key         string   `json:"key"`
	Labels      []string `json:"labels"`
	Values      []int    `json:"values"`
	Description string   `json:"description"`
}

// Table carries the full value counts for a key whose values are unsuited to
// a chart, along with the reason the chart was rejected.
type Table struct {
	Title  string         `json:"title"`
	Key    string         `json:"key"`
	Counts map[string]int `json:"counts"`
	Reason string         `json:"reason"`
}

// SelectVisuals decides, per attribute key, whether the aggregation renders
// as a chart or a table. The file-type distribution always charts first.
// Numeric keys are skipped; their statistics appear in the report JSON.
func SelectVisuals(summary collector.Summary) ([]Chart, []Table) {
	var charts []Chart
	var tables []Table

	if len(summary.ByFileType) > 0 {
		charts = append(charts, fileTypeChart(summary.ByFileType))
	}

	keys := make([]string, 0, len(summary.Schema))
	for key := range summary.Schema {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		agg, ok := summary.Aggregations[key]
		if !ok || summary.Schema[key].IsNumeric || agg.Categories == nil {
			continue
		}

		counts := withoutOthers(agg.Categories)
		if len(counts) == 0 {
			continue
		}

		if reason := tableReason(counts); reason != "" {
			tables = append(tables, Table{
				Title:  keyTitle(key) + " Distribution",
				Key:    key,
				Counts: counts,
				Reason: reason,
			})
			continue
		}

		charts = append(charts, categoryChart(key, counts, summary.Schema[key]))
	}

	return charts, tables
}

// tableReason returns why counts should render as a table, or "" for a
// chart. Label length is checked before cardinality so a key failing both
// reports the less obvious problem.
func tableReason(counts map[string]int) string {
	var total int
	for label := range counts {
		total += len(label)
	}
	avg := float64(total) / float64(len(counts))

	if avg > maxLabelLength {
		return fmt.Sprintf("Long text (avg %.0f chars)", avg)
	}
	if len(counts) > maxChartCategories {
		return fmt.Sprintf("Many categories (%d)", len(counts))
	}
	return ""
}

func fileTypeChart(byFileType map[string]int) Chart {
	labels, values := topCounts(byFileType, topChartBars)
	for i, label := range labels {
		if label == "" {
			labels[i] = "unknown"
		}
	}

	var total int
	for _, v := range values {
		total += v
	}

	return Chart{
		Title:       "File Type Distribution",
		Key:         "file_type",
		Labels:      labels,
		Values:      values,
		Description: fmt.Sprintf("Distribution of %d files across %d file types", total, len(labels)),
	}
}

func categoryChart(key string, counts map[string]int, stats collector.KeyStats) Chart {
	labels, values := topCounts(counts, topChartBars)

	var total int
	for _, v := range values {
		total += v
	}

	return Chart{
		Title:  keyTitle(key) + " Distribution",
		Key:    key,
		Labels: labels,
		Values: values,
		Description: fmt.Sprintf("Distribution of %s across %d categories (total: %d, occurrence rate: %.1f%%)",
			key, len(labels), total, stats.OccurrenceRate),
	}
}

// topCounts ranks counts by value descending (ties broken by ascending
// label) and returns at most limit label/value pairs.
func topCounts(counts map[string]int, limit int) ([]string, []int) {
	type pair struct {
		label string
		count int
	}
	ranked := make([]pair, 0, len(counts))
	for label, count := range counts {
		ranked = append(ranked, pair{label, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].label < ranked[j].label
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	labels := make([]string, len(ranked))
	values := make([]int, len(ranked))
	for i, p := range ranked {
		labels[i] = p.label
		values[i] = p.count
	}
	return labels, values
}

// withoutOthers strips the overflow bucket so it never skews chart/table
// selection or renders as a category of its own.
func withoutOthers(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for label, count := range counts {
		if label == collector.OthersKey {
			continue
		}
		out[label] = count
	}
	return out
}

// keyTitle renders an attribute key as a heading: "document_type" becomes
// "Document Type".
func keyTitle(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
