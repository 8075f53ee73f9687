package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
)

// ErrNoJSONFound is returned when no strategy recovers a JSON object from
// model output.
var ErrNoJSONFound = errors.New("llm: no valid JSON object found in model output")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON recovers a JSON object from model output. It tries, in order:
// the whole text, fenced code blocks, then balanced-brace candidates found
// anywhere in the text (longest first).
func ExtractJSON(text string) (map[string]any, error) {
	if obj, ok := tryParse(strings.TrimSpace(text)); ok {
		return obj, nil
	}

	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if obj, ok := tryParse(m[1]); ok {
			return obj, nil
		}
	}

	candidates := braceCandidates(text)
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})
	for _, c := range candidates {
		if obj, ok := tryParse(c); ok {
			return obj, nil
		}
	}

	return nil, ErrNoJSONFound
}

func tryParse(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// braceCandidates returns every outermost balanced {...} span in text,
// ignoring braces inside JSON string literals.
func braceCandidates(text string) []string {
	var (
		out      []string
		depth    int
		start    int
		inString bool
		escaped  bool
	)

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, text[start:i+1])
			}
		}
	}

	return out
}
