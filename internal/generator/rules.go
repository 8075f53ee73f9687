// Package generator produces metadata sidecars for stored documents. A
// document's key is matched against configured path rules; a text model
// fills the configured fields from a content preview, and path captures
// override whatever the model said.
package generator

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field types accepted in rules files.
const (
	FieldString     = "STRING"
	FieldStringList = "STRING_LIST"
	FieldNumber     = "NUMBER"
	FieldBoolean    = "BOOLEAN"
)

// ErrEmptyRules is returned when the rules file holds no usable document.
var ErrEmptyRules = errors.New("generator: rules file is empty")

// Field defines one metadata attribute the model must produce.
type Field struct {
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Options     []string `yaml:"options"`
}

// PathRule maps a key pattern to extraction values. Extraction values are
// literals, or "{name}" references to a placeholder segment in the pattern.
type PathRule struct {
	Pattern     string            `yaml:"pattern"`
	Extractions map[string]string `yaml:"extractions"`
}

// ModelSettings tunes the generation model. Unset values inherit defaults;
// provider and model fall back to the service-wide model configuration.
type ModelSettings struct {
	Provider           string  `yaml:"provider"`
	Model              string  `yaml:"model"`
	MaxTokens          int     `yaml:"maxTokens"`
	Temperature        float64 `yaml:"temperature"`
	InputContextWindow int     `yaml:"inputContextWindow"`
}

// Rules is a parsed rules file.
type Rules struct {
	Fields            map[string]Field `yaml:"fields"`
	PathRules         []PathRule       `yaml:"pathRules"`
	Model             ModelSettings    `yaml:"model"`
	TabularExtensions []string         `yaml:"tabularExtensions"`
}

func defaultRules() Rules {
	return Rules{
		Model: ModelSettings{
			MaxTokens:          2000,
			Temperature:        0.1,
			InputContextWindow: 100000,
		},
	}
}

// LoadRules reads and validates a rules file. Defaults are applied first so
// absent keys keep them.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("generator: reading rules file: %w", err)
	}

	rules := defaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("generator: parsing rules file: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// Validate checks field types and placeholder references.
func (r *Rules) Validate() error {
	if len(r.Fields) == 0 && len(r.PathRules) == 0 {
		return ErrEmptyRules
	}

	for name, f := range r.Fields {
		switch f.Type {
		case "", FieldString, FieldStringList, FieldNumber, FieldBoolean:
		default:
			return fmt.Errorf("generator: field %q has unknown type %q", name, f.Type)
		}
	}

	for i, rule := range r.PathRules {
		if rule.Pattern == "" {
			return fmt.Errorf("generator: path rule %d has no pattern", i)
		}
		placeholders := patternPlaceholders(rule.Pattern)
		for field, value := range rule.Extractions {
			name, isRef := placeholderName(value)
			if !isRef {
				continue
			}
			if _, ok := placeholders[name]; !ok {
				return fmt.Errorf("generator: path rule %q extraction %q references {%s} which is not in the pattern",
					rule.Pattern, field, name)
			}
		}
	}

	if r.Model.MaxTokens < 1 {
		return fmt.Errorf("generator: model maxTokens must be positive, got %d", r.Model.MaxTokens)
	}
	if r.Model.InputContextWindow < 1 {
		return fmt.Errorf("generator: model inputContextWindow must be positive, got %d", r.Model.InputContextWindow)
	}

	return nil
}

// fieldType normalizes a field's declared type, defaulting to STRING.
func (f Field) fieldType() string {
	if f.Type == "" {
		return FieldString
	}
	return f.Type
}

// patternPlaceholders collects the {name} segments of a pattern.
func patternPlaceholders(pattern string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, seg := range strings.Split(pattern, "/") {
		if name, ok := placeholderName(seg); ok {
			out[name] = struct{}{}
		}
	}
	return out
}

// placeholderName returns the name inside a whole-string "{name}" reference.
func placeholderName(s string) (string, bool) {
	if len(s) < 3 || !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	name := s[1 : len(s)-1]
	if name == "" || strings.ContainsAny(name, "{}/") {
		return "", false
	}
	return name, true
}
