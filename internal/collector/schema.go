package collector

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Attribute value kinds as reported in schema "types". These follow the JSON
// type system; all JSON numbers decode to a single "number" kind.
const (
	kindString = "string"
	kindNumber = "number"
	kindBool   = "bool"
	kindList   = "list"
	kindObject = "object"
	kindNull   = "null"
)

// KeyStats describes one attribute key across all collected entries.
type KeyStats struct {
	OccurrenceRate float64  `json:"occurrence_rate"`
	Types          []string `json:"types"`
	IsNumeric      bool     `json:"is_numeric"`
	NonNullCount   int      `json:"non_null_count"`
	NullCount      int      `json:"null_count"`
	SampleValues   []string `json:"sample_values"`
}

// DiscoverSchema computes per-key statistics over the union of attribute
// keys found in entries. A key absent from an entry counts as null for that
// entry; keys with no non-null values anywhere are omitted entirely.
// Entries are ordered by sidecar key before sampling, so sample values are
// stable across runs even though fetch completion order is not.
func DiscoverSchema(entries []MetadataEntry) map[string]KeyStats {
	schema := make(map[string]KeyStats)
	if len(entries) == 0 {
		return schema
	}
	total := len(entries)

	ordered := make([]MetadataEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MetadataFileKey < ordered[j].MetadataFileKey
	})

	allKeys := make(map[string]struct{})
	for _, e := range ordered {
		for k := range e.Metadata {
			allKeys[k] = struct{}{}
		}
	}

	for key := range allKeys {
		var (
			values    []any
			nullCount int
		)
		for _, e := range ordered {
			v, ok := e.Metadata[key]
			if !ok || v == nil {
				nullCount++
				continue
			}
			values = append(values, v)
		}

		if len(values) == 0 {
			continue
		}

		kinds := make(map[string]struct{})
		numeric := true
		for _, v := range values {
			k := valueKind(v)
			kinds[k] = struct{}{}
			if k != kindNumber {
				numeric = false
			}
		}

		types := make([]string, 0, len(kinds))
		for k := range kinds {
			types = append(types, k)
		}
		sort.Strings(types)

		schema[key] = KeyStats{
			OccurrenceRate: round1(float64(len(values)) / float64(total) * 100),
			Types:          types,
			IsNumeric:      numeric,
			NonNullCount:   len(values),
			NullCount:      nullCount,
			SampleValues:   sampleValues(values, 5),
		}
	}

	return schema
}

// sampleValues renders the first n values and deduplicates them, keeping
// first-seen order.
func sampleValues(values []any, n int) []string {
	if len(values) > n {
		values = values[:n]
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := renderValue(v)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// valueKind classifies a decoded JSON value.
func valueKind(v any) string {
	switch v.(type) {
	case string:
		return kindString
	case float64:
		return kindNumber
	case bool:
		return kindBool
	case []any:
		return kindList
	case map[string]any:
		return kindObject
	case nil:
		return kindNull
	default:
		return kindObject
	}
}

// renderValue converts a decoded JSON value to its canonical string form:
// strings pass through, numbers use the shortest exact decimal form, bools
// are "true"/"false", and composites render as compact JSON.
func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return kindNull
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
