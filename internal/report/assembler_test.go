package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"

	"github.com/lakeops/metalake/internal/collector"
	"github.com/lakeops/metalake/internal/storage"
)

func memStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), storage.Config{Backend: "mem"})
	if err != nil {
		t.Fatalf("open mem store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport() *Report {
	return &Report{
		GeneratedAt: time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC),
		PeriodStart: time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC),
		Statistics: collector.Summary{
			TotalCollected:       2,
			TotalScanned:         3,
			ExecutionTimeSeconds: 1.52,
			DataTransferMB:       0.25,
			ByFileType:           map[string]int{"pdf": 1, "txt": 1},
		},
		Analysis: Analysis{
			ExecutiveSummary: "Two files were collected.",
			KeyFindings:      []string{"PDFs and text files split evenly"},
		},
		Charts: []Chart{{
			Title:       "File Type Distribution",
			Key:         "file_type",
			Labels:      []string{"pdf", "txt"},
			Values:      []int{1, 1},
			Description: "Distribution of 2 files across 2 file types",
		}},
	}
}

func sampleEntries() []collector.MetadataEntry {
	return []collector.MetadataEntry{
		{
			Bucket:          "docs",
			OriginalFileKey: "uploads/a.pdf",
			MetadataFileKey: "uploads/a.pdf.metadata.json",
			LastModified:    time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
			FileSize:        1024,
			Metadata:        map[string]any{"department": "Sales"},
		},
		{
			Bucket:          "docs",
			OriginalFileKey: "uploads/b.txt",
			MetadataFileKey: "uploads/b.txt.metadata.json",
			LastModified:    time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC),
			FileSize:        512,
			Metadata:        map[string]any{"department": "HR"},
		},
	}
}

func TestPersistWritesAllArtifacts(t *testing.T) {
	ctx := context.Background()
	store := memStore(t)

	keys, err := NewAssembler(store, Options{}).Persist(ctx, sampleReport(), sampleEntries())
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	want := ArtifactKeys{
		Markdown:       "analytics-reports/2026-03-05/report.md",
		JSON:           "analytics-reports/2026-03-05/report.json",
		EntriesJSONL:   "analytics-reports/2026-03-05/entries.jsonl.zst",
		EntriesParquet: "analytics-reports/2026-03-05/entries.parquet",
	}
	if keys != want {
		t.Errorf("keys = %+v, want %+v", keys, want)
	}

	for _, key := range []string{keys.Markdown, keys.JSON, keys.EntriesJSONL, keys.EntriesParquet} {
		ok, err := store.Exists(ctx, key)
		if err != nil {
			t.Fatalf("Exists(%s): %v", key, err)
		}
		if !ok {
			t.Errorf("artifact %s was not written", key)
		}
	}
}

func TestPersistJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memStore(t)

	keys, err := NewAssembler(store, Options{}).Persist(ctx, sampleReport(), sampleEntries())
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	data, err := store.ReadAll(ctx, keys.JSON)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode report.json: %v", err)
	}
	if got.Statistics.TotalCollected != 2 || got.Statistics.TotalScanned != 3 {
		t.Errorf("statistics = %+v", got.Statistics)
	}
	if got.Analysis.ExecutiveSummary != "Two files were collected." {
		t.Errorf("summary = %q", got.Analysis.ExecutiveSummary)
	}
	if len(got.Charts) != 1 || got.Charts[0].Key != "file_type" {
		t.Errorf("charts = %+v", got.Charts)
	}
}

func TestPersistJSONLExport(t *testing.T) {
	ctx := context.Background()
	store := memStore(t)

	keys, err := NewAssembler(store, Options{}).Persist(ctx, sampleReport(), sampleEntries())
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	data, err := store.ReadAll(ctx, keys.EntriesJSONL)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open zstd stream: %v", err)
	}
	defer zr.Close()

	var entries []collector.MetadataEntry
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		var e collector.MetadataEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("decoded %d entries, want 2", len(entries))
	}
	if entries[0].OriginalFileKey != "uploads/a.pdf" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Metadata["department"] != "HR" {
		t.Errorf("second entry metadata = %v", entries[1].Metadata)
	}
}

func TestPersistParquetExport(t *testing.T) {
	ctx := context.Background()
	store := memStore(t)

	keys, err := NewAssembler(store, Options{}).Persist(ctx, sampleReport(), sampleEntries())
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	data, err := store.ReadAll(ctx, keys.EntriesParquet)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	pr := parquet.NewGenericReader[entryRow](pf)
	defer pr.Close()

	if pr.NumRows() != 2 {
		t.Fatalf("parquet has %d rows, want 2", pr.NumRows())
	}

	rows := make([]entryRow, 2)
	n, err := pr.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("read parquet rows: %v", err)
	}
	if n != 2 {
		t.Fatalf("read %d parquet rows, want 2", n)
	}

	if rows[0].OriginalKey != "uploads/a.pdf" || rows[0].Extension != "pdf" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[0].SizeBytes != 1024 {
		t.Errorf("row 0 size = %d", rows[0].SizeBytes)
	}
	if !strings.Contains(rows[0].AttributesJSON, `"department":"Sales"`) {
		t.Errorf("row 0 attributes = %s", rows[0].AttributesJSON)
	}
	wantMod := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	if rows[0].LastModified.UTC().UnixMilli() != wantMod.UnixMilli() {
		t.Errorf("row 0 last_modified = %v, want %v", rows[0].LastModified, wantMod)
	}
}

func TestPersistEmptyEntries(t *testing.T) {
	ctx := context.Background()
	store := memStore(t)

	rep := sampleReport()
	rep.Statistics = collector.Summary{
		Schema:       map[string]collector.KeyStats{},
		Aggregations: map[string]collector.KeyAggregate{},
	}
	rep.Charts = nil

	keys, err := NewAssembler(store, Options{}).Persist(ctx, rep, nil)
	if err != nil {
		t.Fatalf("Persist with no entries: %v", err)
	}

	data, err := store.ReadAll(ctx, keys.EntriesParquet)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open empty parquet: %v", err)
	}
	pr := parquet.NewGenericReader[entryRow](pf)
	defer pr.Close()
	if pr.NumRows() != 0 {
		t.Errorf("empty export has %d rows", pr.NumRows())
	}
}

func TestPersistCustomPrefixSkipsExports(t *testing.T) {
	ctx := context.Background()
	store := memStore(t)

	opts := Options{Prefix: "reports/daily", SkipEntryExports: true}
	keys, err := NewAssembler(store, opts).Persist(ctx, sampleReport(), sampleEntries())
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if keys.Markdown != "reports/daily/2026-03-05/report.md" {
		t.Errorf("markdown key = %q", keys.Markdown)
	}
	if keys.EntriesJSONL != "" || keys.EntriesParquet != "" {
		t.Errorf("skipped exports still have keys: %+v", keys)
	}

	listed, err := store.ListKeys(ctx, "reports/daily/")
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("persisted %d objects, want only report.md and report.json: %v", len(listed), listed)
	}
}

func TestMarkdownSections(t *testing.T) {
	rep := sampleReport()
	rep.Degraded = true
	rep.Tables = []Table{{
		Title:  "Summary Distribution",
		Key:    "summary",
		Counts: map[string]int{"A long value | with a pipe": 3, "Another value": 1},
		Reason: "Long text (avg 90 chars)",
	}}

	md := rep.Markdown()

	for _, want := range []string{
		"# Metadata Analytics Report",
		"*Generated: 2026-03-05 09:30:00 UTC*",
		"*Analysis Period: 2026-03-04 to 2026-03-05*",
		"*Narrative generated without model assistance.*",
		"## Executive Summary",
		"Two files were collected.",
		"## Key Findings",
		"- PDFs and text files split evenly",
		"## Statistics Overview",
		"| Files collected | 2 |",
		"| Execution time | 1.52 s |",
		"| Data transferred | 0.25 MB |",
		"### File Types",
		"## Data Visualizations",
		"### File Type Distribution",
		"| pdf | 1 |",
		"## Detailed Metadata Distribution",
		"*Long text (avg 90 chars)*",
		`A long value \| with a pipe`,
		"| 1 | 3 | 75.0% |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	// Section order must survive rendering.
	idxSummary := strings.Index(md, "## Executive Summary")
	idxFindings := strings.Index(md, "## Key Findings")
	idxStats := strings.Index(md, "## Statistics Overview")
	idxCharts := strings.Index(md, "## Data Visualizations")
	idxTables := strings.Index(md, "## Detailed Metadata Distribution")
	if !(idxSummary < idxFindings && idxFindings < idxStats && idxStats < idxCharts && idxCharts < idxTables) {
		t.Error("markdown sections out of order")
	}
}

func TestMarkdownWithoutOptionalSections(t *testing.T) {
	rep := sampleReport()
	rep.Charts = nil
	rep.Analysis.KeyFindings = nil
	rep.Statistics.ByFileType = nil

	md := rep.Markdown()
	if strings.Contains(md, "## Data Visualizations") {
		t.Error("chartless report renders a visualizations section")
	}
	if strings.Contains(md, "### File Types") {
		t.Error("report without file types renders the extension table")
	}
	if !strings.Contains(md, "No key findings available.") {
		t.Error("missing findings placeholder")
	}
	if strings.Contains(md, "without model assistance") {
		t.Error("non-degraded report carries the degraded note")
	}
}
