package generator

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
	"unicode/utf8"
)

// textExtensions are rendered by plain text decoding.
var textExtensions = []string{
	".txt", ".md", ".markdown", ".rst", ".log",
	".html", ".xml", ".yaml", ".yml",
}

// binaryScanCap bounds how much printable text the binary scan emits.
const binaryScanCap = 512 * 1024

// Preview renders file content into prompt-ready text based on the key's
// extension: tabular files become a header/sample-row summary, JSON is
// pretty-printed, known text types are decoded, and everything else gets a
// printable-run scan unless it already is valid text.
func (r *Rules) Preview(key string, content []byte) string {
	ext := strings.ToLower(path.Ext(key))

	switch {
	case ext == ".csv" || slices.Contains(r.TabularExtensions, ext):
		return previewTabular(content)
	case ext == ".json":
		return previewJSON(content)
	case slices.Contains(textExtensions, ext):
		return decodeText(content)
	case utf8.Valid(content):
		return string(content)
	default:
		return previewBinary(content)
	}
}

// decodeText decodes bytes as UTF-8, falling back to latin-1 (a 1:1
// byte-to-rune mapping that cannot fail).
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes)
}

// previewTabular summarizes delimited files: headers, the first five rows
// and a row count.
func previewTabular(content []byte) string {
	reader := csv.NewReader(strings.NewReader(decodeText(content)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil || len(records) == 0 {
		return "[empty or unreadable tabular file]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CSV Headers: %s\n", strings.Join(records[0], ", "))
	b.WriteString("\nSample rows (first 5):\n")
	for i, row := range records[1:] {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "Row %d: %s\n", i+1, strings.Join(row, ", "))
	}
	fmt.Fprintf(&b, "\nTotal rows: %d", len(records)-1)
	return b.String()
}

// previewJSON pretty-prints JSON content, falling back to text decoding
// when it does not parse.
func previewJSON(content []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(content), "", "  "); err != nil {
		return decodeText(content)
	}
	return buf.String()
}

// previewBinary extracts printable ASCII runs of four or more characters
// from binary content, one per line.
func previewBinary(content []byte) string {
	var (
		b   strings.Builder
		run []byte
	)

	flush := func() {
		if len(run) >= 4 {
			b.Write(run)
			b.WriteByte('\n')
		}
		run = run[:0]
	}

	for _, c := range content {
		if b.Len() >= binaryScanCap {
			break
		}
		if (c >= 0x20 && c < 0x7f) || c == '\t' {
			run = append(run, c)
			continue
		}
		flush()
	}
	flush()

	if b.Len() == 0 {
		return "[no extractable text found]"
	}
	return strings.TrimRight(b.String(), "\n")
}
