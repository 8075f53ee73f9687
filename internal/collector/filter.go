package collector

import (
	"log/slog"
	"slices"
)

// applyFilters keeps entries whose attributes satisfy every filter key.
func applyFilters(entries []MetadataEntry, filters map[string][]string, log *slog.Logger) []MetadataEntry {
	if len(filters) == 0 {
		return entries
	}

	filtered := make([]MetadataEntry, 0, len(entries))
	for _, e := range entries {
		if matchesFilters(e, filters) {
			filtered = append(filtered, e)
		}
	}

	log.Info("applied attribute filters",
		"before", len(entries),
		"after", len(filtered),
		"filters", len(filters),
	)
	return filtered
}

// matchesFilters reports whether the entry satisfies every filter. A missing
// or null attribute never matches. Values are compared by their rendered
// string form; list values match when any element is accepted.
func matchesFilters(e MetadataEntry, filters map[string][]string) bool {
	for key, allowed := range filters {
		value, ok := e.Metadata[key]
		if !ok || value == nil {
			return false
		}

		if items, isList := value.([]any); isList {
			matched := false
			for _, item := range items {
				if slices.Contains(allowed, renderValue(item)) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}

		if !slices.Contains(allowed, renderValue(value)) {
			return false
		}
	}
	return true
}
