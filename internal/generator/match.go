package generator

import (
	"path"
	"strings"
)

// MatchRule returns the first path rule whose pattern matches key.
func (r *Rules) MatchRule(key string) (*PathRule, bool) {
	for i := range r.PathRules {
		if MatchPattern(key, r.PathRules[i].Pattern) {
			return &r.PathRules[i], true
		}
	}
	return nil, false
}

// MatchPattern reports whether key matches a segment glob pattern. The
// pattern is anchored to the whole key: "*" and "?" match within one
// segment, "**" matches any number of segments including none, and "{name}"
// matches exactly one segment.
func MatchPattern(key, pattern string) bool {
	_, ok := matchSegments(splitKey(key), splitKey(pattern))
	return ok
}

// ExtractValues resolves a rule's extractions for key. Literal values pass
// through; "{name}" values take the segment captured by the pattern. A key
// that does not match the rule yields nil.
func ExtractValues(key string, rule *PathRule) map[string]string {
	captures, ok := matchSegments(splitKey(key), splitKey(rule.Pattern))
	if !ok {
		return nil
	}

	out := make(map[string]string, len(rule.Extractions))
	for field, value := range rule.Extractions {
		if name, isRef := placeholderName(value); isRef {
			if captured, found := captures[name]; found {
				out[field] = captured
			}
			continue
		}
		out[field] = value
	}
	return out
}

func splitKey(s string) []string {
	return strings.Split(strings.Trim(s, "/"), "/")
}

// matchSegments matches key segments against pattern segments, returning
// placeholder captures on success. "**" backtracks over zero or more key
// segments.
func matchSegments(keys, pats []string) (map[string]string, bool) {
	if len(pats) == 0 {
		if len(keys) == 0 {
			return map[string]string{}, true
		}
		return nil, false
	}

	head := pats[0]

	if head == "**" {
		for skip := 0; skip <= len(keys); skip++ {
			if captures, ok := matchSegments(keys[skip:], pats[1:]); ok {
				return captures, true
			}
		}
		return nil, false
	}

	if len(keys) == 0 {
		return nil, false
	}

	if name, isPlaceholder := placeholderName(head); isPlaceholder {
		captures, ok := matchSegments(keys[1:], pats[1:])
		if !ok {
			return nil, false
		}
		captures[name] = keys[0]
		return captures, true
	}

	if ok, err := path.Match(head, keys[0]); err != nil || !ok {
		return nil, false
	}
	return matchSegments(keys[1:], pats[1:])
}
