package generator

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	charsPerToken       = 4
	promptOverheadChars = 2000
	minContentChars     = 3000
)

// MaxContentChars bounds how much file content fits in a prompt for a model
// with the given input context window, reserving room for the prompt
// scaffolding and the model's own output.
func MaxContentChars(inputContextWindow, maxTokens int) int {
	budget := (inputContextWindow-maxTokens)*charsPerToken - promptOverheadChars
	if budget < minContentChars {
		return minContentChars
	}
	return budget
}

// BuildPrompt renders the metadata-generation prompt: file identity, a
// capped content preview, the field definitions and the output contract.
func BuildPrompt(key, preview string, fields map[string]Field, maxContentChars int) string {
	if len(preview) > maxContentChars {
		cut := maxContentChars
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut] + "\n... (truncated)"
	}

	return fmt.Sprintf(`Please generate metadata for the following file according to the specified field definitions.

## File Information
- File name: %s
- File path: %s

## File Content
%s

## Metadata Field Definitions
%s

## Generation Rules
1. All [Required] fields must be included
2. If Options are specified, use only those values
3. Infer appropriate values from the file content
4. If values are unknown, infer them from the file name or path

## Output Format
Output in valid JSON format. No explanatory text or additional text is needed.

Example:
`+"```json"+`
{
  "field1": "value1",
  "field2": "value2"
}
`+"```"+`

Please output in JSON format:`,
		path.Base(key), key, preview, fieldDefinitions(fields))
}

// fieldDefinitions renders one line per field in name order.
func fieldDefinitions(fields map[string]Field) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(fields))
	for _, name := range names {
		f := fields[name]

		line := fmt.Sprintf("- %s (%s) [Required]", name, promptType(f.fieldType()))
		if f.Description != "" {
			line += ": " + f.Description
		}
		if len(f.Options) > 0 {
			line += "\n  Options: " + strings.Join(f.Options, ", ")
		}
		if f.fieldType() == FieldStringList {
			line += "\n  Array items: string"
		}

		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// promptType maps rules-file field types to the type words shown to the
// model.
func promptType(fieldType string) string {
	switch fieldType {
	case FieldStringList:
		return "array"
	case FieldNumber:
		return "number"
	case FieldBoolean:
		return "boolean"
	default:
		return "string"
	}
}
