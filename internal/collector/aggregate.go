package collector

import (
	"encoding/json"
	"sort"
)

// OthersKey absorbs category counts beyond the top-N cut in categorical
// aggregations. Report rendering strips it before ranking real categories.
const OthersKey = "_others"

// topCategoryLimit is how many distinct categories are reported per key
// before the remainder collapses into OthersKey.
const topCategoryLimit = 10

// Summary is the aggregate view of one collection run.
type Summary struct {
	TotalCollected       int                     `json:"total_collected"`
	TotalScanned         int                     `json:"total_scanned"`
	ExecutionTimeSeconds float64                 `json:"execution_time_seconds"`
	DataTransferMB       float64                 `json:"data_transfer_mb"`
	Schema               map[string]KeyStats     `json:"schema"`
	Aggregations         map[string]KeyAggregate `json:"aggregations"`
	ByFileType           map[string]int          `json:"by_file_type,omitempty"`
}

// NumericStats summarizes a numeric attribute key. A zero Count renders as
// {"count": 0} with no other fields.
type NumericStats struct {
	Count int
	Min   float64
	Max   float64
	Avg   float64
	Sum   float64
}

func (s NumericStats) MarshalJSON() ([]byte, error) {
	if s.Count == 0 {
		return []byte(`{"count":0}`), nil
	}
	return json.Marshal(struct {
		Count int     `json:"count"`
		Min   float64 `json:"min"`
		Max   float64 `json:"max"`
		Avg   float64 `json:"avg"`
		Sum   float64 `json:"sum"`
	}{s.Count, s.Min, s.Max, s.Avg, s.Sum})
}

// KeyAggregate is either numeric statistics or categorical counts for one
// attribute key, depending on whether the key is numeric.
type KeyAggregate struct {
	Numeric    *NumericStats
	Categories map[string]int
}

func (a KeyAggregate) MarshalJSON() ([]byte, error) {
	if a.Numeric != nil {
		return json.Marshal(a.Numeric)
	}
	return json.Marshal(a.Categories)
}

// Aggregate computes the summary for the run: schema, per-key aggregations
// and file-type counts. An empty result produces zero totals with empty
// schema and aggregation maps.
func (r *CollectionResult) Aggregate() Summary {
	if len(r.Entries) == 0 {
		return Summary{
			Schema:       map[string]KeyStats{},
			Aggregations: map[string]KeyAggregate{},
		}
	}

	schema := DiscoverSchema(r.Entries)

	aggs := make(map[string]KeyAggregate, len(schema))
	for key, stats := range schema {
		if stats.IsNumeric {
			aggs[key] = KeyAggregate{Numeric: aggregateNumeric(r.Entries, key)}
		} else {
			aggs[key] = KeyAggregate{Categories: aggregateCategorical(r.Entries, key)}
		}
	}

	return Summary{
		TotalCollected:       len(r.Entries),
		TotalScanned:         r.TotalScanned,
		ExecutionTimeSeconds: r.ExecutionTime.Seconds(),
		DataTransferMB:       round2(float64(r.DataTransferBytes) / 1024 / 1024),
		Schema:               schema,
		Aggregations:         aggs,
		ByFileType:           aggregateByFileType(r.Entries),
	}
}

// aggregateNumeric computes count/min/max/avg/sum over the key's numeric
// values. Only the average is rounded (two decimals).
func aggregateNumeric(entries []MetadataEntry, key string) *NumericStats {
	var values []float64
	for _, e := range entries {
		if v, ok := e.Metadata[key].(float64); ok {
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return &NumericStats{}
	}

	min, max := values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	return &NumericStats{
		Count: len(values),
		Min:   min,
		Max:   max,
		Avg:   round2(sum / float64(len(values))),
		Sum:   sum,
	}
}

// aggregateCategorical counts rendered values for the key. List values fan
// out: each element counts once. The result keeps the top categories and
// folds the rest into OthersKey.
func aggregateCategorical(entries []MetadataEntry, key string) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		value, ok := e.Metadata[key]
		if !ok || value == nil {
			continue
		}
		if items, isList := value.([]any); isList {
			for _, item := range items {
				counts[renderValue(item)]++
			}
			continue
		}
		counts[renderValue(value)]++
	}
	return topCategories(counts, topCategoryLimit)
}

// topCategories returns counts unchanged when there are at most limit
// distinct categories; otherwise the top limit by count (ties broken by
// ascending category name) plus an OthersKey entry summing the remainder.
func topCategories(counts map[string]int, limit int) map[string]int {
	if len(counts) <= limit {
		return counts
	}

	type category struct {
		name  string
		count int
	}
	ranked := make([]category, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, category{name, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})

	out := make(map[string]int, limit+1)
	others := 0
	for i, c := range ranked {
		if i < limit {
			out[c.name] = c.count
		} else {
			others += c.count
		}
	}
	out[OthersKey] = others
	return out
}

// aggregateByFileType counts entries per original-file extension, the empty
// string covering keys without one.
func aggregateByFileType(entries []MetadataEntry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.FileExtension()]++
	}
	return counts
}
