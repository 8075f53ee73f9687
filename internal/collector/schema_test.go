package collector

import (
	"reflect"
	"testing"
)

func entryWith(attrs map[string]any) MetadataEntry {
	return MetadataEntry{
		Bucket:          "test-bucket",
		OriginalFileKey: "doc.pdf",
		MetadataFileKey: "doc.pdf.metadata.json",
		Metadata:        attrs,
	}
}

func TestDiscoverSchemaEmpty(t *testing.T) {
	schema := DiscoverSchema(nil)
	if len(schema) != 0 {
		t.Errorf("DiscoverSchema(nil) = %v, want empty", schema)
	}
}

func TestDiscoverSchemaOccurrenceAndNulls(t *testing.T) {
	entries := []MetadataEntry{
		entryWith(map[string]any{"department": "Sales"}),
		entryWith(map[string]any{"department": "Legal"}),
		entryWith(map[string]any{"department": nil}),
		entryWith(map[string]any{}), // key absent counts as null
	}

	schema := DiscoverSchema(entries)
	stats, ok := schema["department"]
	if !ok {
		t.Fatal("department missing from schema")
	}

	if stats.OccurrenceRate != 50.0 {
		t.Errorf("OccurrenceRate = %v, want 50.0", stats.OccurrenceRate)
	}
	if stats.NonNullCount != 2 {
		t.Errorf("NonNullCount = %d, want 2", stats.NonNullCount)
	}
	if stats.NullCount != 2 {
		t.Errorf("NullCount = %d, want 2", stats.NullCount)
	}
}

func TestDiscoverSchemaRoundsOccurrenceRate(t *testing.T) {
	// 1 of 3 entries: 33.333...% rounds to 33.3.
	entries := []MetadataEntry{
		entryWith(map[string]any{"author": "Alice"}),
		entryWith(map[string]any{}),
		entryWith(map[string]any{}),
	}

	schema := DiscoverSchema(entries)
	if got := schema["author"].OccurrenceRate; got != 33.3 {
		t.Errorf("OccurrenceRate = %v, want 33.3", got)
	}
}

func TestDiscoverSchemaSkipsAllNullKeys(t *testing.T) {
	entries := []MetadataEntry{
		entryWith(map[string]any{"ghost": nil, "department": "Sales"}),
		entryWith(map[string]any{"ghost": nil}),
	}

	schema := DiscoverSchema(entries)
	if _, ok := schema["ghost"]; ok {
		t.Error("key with no non-null values should be omitted from schema")
	}
	if _, ok := schema["department"]; !ok {
		t.Error("department missing from schema")
	}
}

func TestDiscoverSchemaTypes(t *testing.T) {
	tests := []struct {
		name        string
		values      []any
		wantTypes   []string
		wantNumeric bool
	}{
		{"all numbers", []any{1.0, 2.5}, []string{"number"}, true},
		{"all strings", []any{"a", "b"}, []string{"string"}, false},
		{"mixed", []any{"a", 1.0}, []string{"number", "string"}, false},
		{"bools are not numeric", []any{true, false}, []string{"bool"}, false},
		{"lists", []any{[]any{"x"}, []any{"y"}}, []string{"list"}, false},
		{"objects", []any{map[string]any{"a": 1.0}}, []string{"object"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []MetadataEntry
			for _, v := range tt.values {
				entries = append(entries, entryWith(map[string]any{"k": v}))
			}

			schema := DiscoverSchema(entries)
			stats := schema["k"]
			if !reflect.DeepEqual(stats.Types, tt.wantTypes) {
				t.Errorf("Types = %v, want %v", stats.Types, tt.wantTypes)
			}
			if stats.IsNumeric != tt.wantNumeric {
				t.Errorf("IsNumeric = %v, want %v", stats.IsNumeric, tt.wantNumeric)
			}
		})
	}
}

func TestDiscoverSchemaSampleValues(t *testing.T) {
	// Samples come from the first five non-null values in sidecar-key order,
	// deduplicated. All fixtures here share one key, so given order holds.
	entries := []MetadataEntry{
		entryWith(map[string]any{"dept": "Sales"}),
		entryWith(map[string]any{"dept": nil}),
		entryWith(map[string]any{"dept": "Sales"}),
		entryWith(map[string]any{"dept": "Legal"}),
		entryWith(map[string]any{"dept": "HR"}),
		entryWith(map[string]any{"dept": "Ops"}),
		entryWith(map[string]any{"dept": "Finance"}), // sixth non-null, out of window
	}

	schema := DiscoverSchema(entries)
	got := schema["dept"].SampleValues
	want := []string{"Sales", "Legal", "HR", "Ops"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SampleValues = %v, want %v", got, want)
	}
}

func TestDiscoverSchemaSamplesOrderedByKey(t *testing.T) {
	// Fetch completion order varies run to run; samples must not.
	entries := []MetadataEntry{
		{MetadataFileKey: "b.pdf.metadata.json", Metadata: map[string]any{"dept": "Legal"}},
		{MetadataFileKey: "a.pdf.metadata.json", Metadata: map[string]any{"dept": "Sales"}},
	}

	schema := DiscoverSchema(entries)
	got := schema["dept"].SampleValues
	want := []string{"Sales", "Legal"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SampleValues = %v, want %v", got, want)
	}
}

func TestRenderValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"plain", "plain"},
		{2.0, "2"},
		{2.5, "2.5"},
		{true, "true"},
		{false, "false"},
		{nil, "null"},
		{[]any{"a", "b"}, `["a","b"]`},
		{[]any{1.0, 2.0}, `[1,2]`},
		{map[string]any{"a": 1.0}, `{"a":1}`},
	}

	for _, tt := range tests {
		if got := renderValue(tt.in); got != tt.want {
			t.Errorf("renderValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
