package generator

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func promptFields() map[string]Field {
	return map[string]Field{
		"title":        {Type: FieldString, Description: "Title of the document"},
		"category":     {Type: FieldString, Description: "Category", Options: []string{"technical", "business", "personal"}},
		"tags":         {Type: FieldStringList, Description: "Topic tags"},
		"page_count":   {Type: FieldNumber, Description: "Number of pages"},
		"is_published": {Type: FieldBoolean, Description: "Publication state"},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("path/to/nested/document.pdf", "This is the content.", promptFields(), 3000)

	for _, want := range []string{
		"File name: document.pdf",
		"File path: path/to/nested/document.pdf",
		"This is the content.",
		"[Required]",
		"Title of the document",
		"Options: technical, business, personal",
		"- tags (array)",
		"Array items: string",
		"- page_count (number)",
		"- is_published (boolean)",
		"- title (string)",
		"Output in valid JSON format",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptTruncatesContent(t *testing.T) {
	long := strings.Repeat("x", 10000)
	prompt := BuildPrompt("big.txt", long, promptFields(), 3000)

	if !strings.Contains(prompt, "... (truncated)") {
		t.Error("prompt missing truncation marker")
	}
	if len(prompt) > 3000+2000 {
		t.Errorf("prompt length = %d, content cap not applied", len(prompt))
	}
}

func TestBuildPromptShortContentNotTruncated(t *testing.T) {
	prompt := BuildPrompt("small.txt", "short", promptFields(), 3000)
	if strings.Contains(prompt, "(truncated)") {
		t.Error("short content should not be marked truncated")
	}
}

func TestBuildPromptTruncatesAtRuneBoundary(t *testing.T) {
	// Multibyte content cut mid-rune must back off to a boundary.
	content := strings.Repeat("日", 2000)
	prompt := BuildPrompt("jp.txt", content, promptFields(), 3001)

	if !strings.ContainsRune(prompt, '日') {
		t.Fatal("prompt lost its content")
	}
	if !utf8.ValidString(prompt) {
		t.Error("prompt contains a broken rune at the cut")
	}
}

func TestMaxContentChars(t *testing.T) {
	tests := []struct {
		window    int
		maxTokens int
		want      int
	}{
		{100000, 2000, (100000-2000)*4 - 2000},
		{2000, 2000, 3000},  // degenerate budget floors at the minimum
		{1000, 10000, 3000}, // window smaller than output reserve
	}

	for _, tt := range tests {
		if got := MaxContentChars(tt.window, tt.maxTokens); got != tt.want {
			t.Errorf("MaxContentChars(%d, %d) = %d, want %d", tt.window, tt.maxTokens, got, tt.want)
		}
	}
}
