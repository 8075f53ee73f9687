package collector

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestAggregateEmptyResult(t *testing.T) {
	r := &CollectionResult{}
	summary := r.Aggregate()

	if summary.TotalCollected != 0 {
		t.Errorf("TotalCollected = %d, want 0", summary.TotalCollected)
	}
	if len(summary.Schema) != 0 || len(summary.Aggregations) != 0 {
		t.Errorf("empty result should have empty schema and aggregations, got %v / %v",
			summary.Schema, summary.Aggregations)
	}
	if summary.ByFileType != nil {
		t.Errorf("ByFileType = %v, want nil", summary.ByFileType)
	}
}

func TestAggregateNumericStats(t *testing.T) {
	r := &CollectionResult{Entries: []MetadataEntry{
		entryWith(map[string]any{"page_count": 10.0}),
		entryWith(map[string]any{"page_count": 20.0}),
		entryWith(map[string]any{"page_count": 25.0}),
		entryWith(map[string]any{"page_count": nil}),
	}}

	summary := r.Aggregate()
	agg, ok := summary.Aggregations["page_count"]
	if !ok {
		t.Fatal("page_count missing from aggregations")
	}
	if agg.Numeric == nil {
		t.Fatal("page_count should aggregate numerically")
	}

	stats := agg.Numeric
	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if stats.Min != 10 || stats.Max != 25 {
		t.Errorf("Min/Max = %v/%v, want 10/25", stats.Min, stats.Max)
	}
	if stats.Sum != 55 {
		t.Errorf("Sum = %v, want 55", stats.Sum)
	}
	// 55/3 = 18.333... rounds to two decimals.
	if stats.Avg != 18.33 {
		t.Errorf("Avg = %v, want 18.33", stats.Avg)
	}
}

func TestNumericStatsJSON(t *testing.T) {
	empty, err := json.Marshal(NumericStats{})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(empty) != `{"count":0}` {
		t.Errorf("zero-count JSON = %s, want {\"count\":0}", empty)
	}

	full, err := json.Marshal(NumericStats{Count: 2, Min: 1, Max: 3, Avg: 2, Sum: 4})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, field := range []string{`"count":2`, `"min":1`, `"max":3`, `"avg":2`, `"sum":4`} {
		if !strings.Contains(string(full), field) {
			t.Errorf("JSON %s missing %s", full, field)
		}
	}
}

func TestAggregateCategorical(t *testing.T) {
	r := &CollectionResult{Entries: []MetadataEntry{
		entryWith(map[string]any{"department": "Sales"}),
		entryWith(map[string]any{"department": "Sales"}),
		entryWith(map[string]any{"department": "Legal"}),
		entryWith(map[string]any{"department": nil}),
	}}

	summary := r.Aggregate()
	agg := summary.Aggregations["department"]
	if agg.Numeric != nil {
		t.Fatal("department should aggregate categorically")
	}

	if agg.Categories["Sales"] != 2 || agg.Categories["Legal"] != 1 {
		t.Errorf("Categories = %v, want Sales:2 Legal:1", agg.Categories)
	}
	if _, ok := agg.Categories[OthersKey]; ok {
		t.Errorf("no %s expected below the category limit", OthersKey)
	}
}

func TestAggregateCategoricalListFanOut(t *testing.T) {
	r := &CollectionResult{Entries: []MetadataEntry{
		entryWith(map[string]any{"tags": []any{"urgent", "q1"}}),
		entryWith(map[string]any{"tags": []any{"q1"}}),
		entryWith(map[string]any{"tags": "q2"}), // scalar mixed in
	}}

	summary := r.Aggregate()
	got := summary.Aggregations["tags"].Categories
	if got["q1"] != 2 || got["urgent"] != 1 || got["q2"] != 1 {
		t.Errorf("Categories = %v, want q1:2 urgent:1 q2:1", got)
	}
}

func TestTopCategoriesCut(t *testing.T) {
	counts := make(map[string]int)
	for i := 0; i < 12; i++ {
		counts[fmt.Sprintf("cat%02d", i)] = 100 - i
	}

	got := topCategories(counts, 10)

	if len(got) != 11 {
		t.Fatalf("len = %d, want 11 (top 10 + %s)", len(got), OthersKey)
	}
	// cat10 (90) and cat11 (89) fall past the cut.
	if got[OthersKey] != 179 {
		t.Errorf("%s = %d, want 179", OthersKey, got[OthersKey])
	}
	if _, ok := got["cat10"]; ok {
		t.Error("cat10 should have been folded into the remainder")
	}
	if got["cat00"] != 100 {
		t.Errorf("cat00 = %d, want 100", got["cat00"])
	}
}

func TestTopCategoriesTieBreak(t *testing.T) {
	// Eleven categories with the same count: the cut is alphabetical.
	counts := make(map[string]int)
	for _, name := range []string{"k", "j", "i", "h", "g", "f", "e", "d", "c", "b", "a"} {
		counts[name] = 5
	}

	got := topCategories(counts, 10)

	if _, ok := got["a"]; !ok {
		t.Error("a should survive the tie-break")
	}
	if _, ok := got["k"]; ok {
		t.Error("k should lose the tie-break")
	}
	if got[OthersKey] != 5 {
		t.Errorf("%s = %d, want 5", OthersKey, got[OthersKey])
	}
}

func TestTopCategoriesAtLimitKeepsAll(t *testing.T) {
	counts := map[string]int{}
	for i := 0; i < 10; i++ {
		counts[fmt.Sprintf("c%d", i)] = i + 1
	}

	got := topCategories(counts, 10)
	if len(got) != 10 {
		t.Errorf("len = %d, want 10 with no %s", len(got), OthersKey)
	}
}

func TestAggregateByFileType(t *testing.T) {
	entries := []MetadataEntry{
		{OriginalFileKey: "a.pdf", Metadata: map[string]any{}},
		{OriginalFileKey: "b.PDF", Metadata: map[string]any{}},
		{OriginalFileKey: "c.docx", Metadata: map[string]any{}},
		{OriginalFileKey: "README", Metadata: map[string]any{}},
	}
	r := &CollectionResult{Entries: entries}

	got := r.Aggregate().ByFileType
	if got["pdf"] != 2 {
		t.Errorf("pdf = %d, want 2", got["pdf"])
	}
	if got["docx"] != 1 {
		t.Errorf("docx = %d, want 1", got["docx"])
	}
	if got[""] != 1 {
		t.Errorf("extensionless count = %d, want 1", got[""])
	}
}

func TestAggregateTotals(t *testing.T) {
	r := &CollectionResult{
		Entries: []MetadataEntry{
			entryWith(map[string]any{"department": "Sales"}),
			entryWith(map[string]any{"department": "Sales"}),
		},
		TotalScanned:      5,
		ExecutionTime:     1500 * time.Millisecond,
		DataTransferBytes: 1572864, // 1.5 MiB
	}

	summary := r.Aggregate()
	if summary.TotalCollected != 2 {
		t.Errorf("TotalCollected = %d, want 2", summary.TotalCollected)
	}
	if summary.TotalScanned != 5 {
		t.Errorf("TotalScanned = %d, want 5", summary.TotalScanned)
	}
	if summary.ExecutionTimeSeconds != 1.5 {
		t.Errorf("ExecutionTimeSeconds = %v, want 1.5", summary.ExecutionTimeSeconds)
	}
	if summary.DataTransferMB != 1.5 {
		t.Errorf("DataTransferMB = %v, want 1.5", summary.DataTransferMB)
	}
	if summary.Schema["department"].OccurrenceRate != 100.0 {
		t.Errorf("OccurrenceRate = %v, want 100.0", summary.Schema["department"].OccurrenceRate)
	}
}

func TestSummaryJSONShape(t *testing.T) {
	r := &CollectionResult{Entries: []MetadataEntry{
		{OriginalFileKey: "a.pdf", Metadata: map[string]any{"department": "Sales", "page_count": 12.0}},
	}}

	data, err := json.Marshal(r.Aggregate())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"total_collected", "total_scanned", "schema", "aggregations", "by_file_type"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("summary JSON missing %q", key)
		}
	}

	aggs := decoded["aggregations"].(map[string]any)
	if dept, ok := aggs["department"].(map[string]any); !ok || dept["Sales"] != 1.0 {
		t.Errorf("department aggregation = %v, want categorical counts", aggs["department"])
	}
	if pages, ok := aggs["page_count"].(map[string]any); !ok || pages["count"] != 1.0 {
		t.Errorf("page_count aggregation = %v, want numeric stats", aggs["page_count"])
	}
}

func TestAggregateIdempotent(t *testing.T) {
	r := &CollectionResult{
		Entries: []MetadataEntry{
			entryWith(map[string]any{"department": "Sales", "page_count": 12.0, "tags": []any{"a", "b"}}),
			entryWith(map[string]any{"department": "Legal", "page_count": 3.0}),
			entryWith(map[string]any{"department": "Sales", "tags": []any{"b"}}),
		},
		TotalScanned:      7,
		ExecutionTime:     250 * time.Millisecond,
		DataTransferBytes: 4096,
	}

	first := r.Aggregate()
	second := r.Aggregate()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated Aggregate differs:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestAggregateCategoricalManyDistinct(t *testing.T) {
	r := &CollectionResult{}
	for i := 1; i <= 15; i++ {
		r.Entries = append(r.Entries, entryWith(map[string]any{
			"category": fmt.Sprintf("category-%02d", i),
		}))
	}

	counts := r.Aggregate().Aggregations["category"].Categories
	if len(counts) != topCategoryLimit+1 {
		t.Fatalf("got %d entries, want %d plus %s", len(counts), topCategoryLimit, OthersKey)
	}
	if counts[OthersKey] != 5 {
		t.Errorf("%s = %d, want 5", OthersKey, counts[OthersKey])
	}
	// All counts tie at one, so the kept ten are the first by name.
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("category-%02d", i)
		if counts[name] != 1 {
			t.Errorf("counts[%q] = %d, want 1", name, counts[name])
		}
	}
}

func TestAggregateMixedValuesCategorical(t *testing.T) {
	r := &CollectionResult{Entries: []MetadataEntry{
		entryWith(map[string]any{"code": 1.0}),
		entryWith(map[string]any{"code": 2.0}),
		entryWith(map[string]any{"code": "bad"}),
	}}

	agg := r.Aggregate().Aggregations["code"]
	if agg.Numeric != nil {
		t.Fatalf("code aggregated numerically despite string value: %+v", agg.Numeric)
	}
	want := map[string]int{"1": 1, "2": 1, "bad": 1}
	if !reflect.DeepEqual(agg.Categories, want) {
		t.Errorf("Categories = %v, want %v", agg.Categories, want)
	}
}
