package mailroom

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lakeops/metalake/internal/collector"
	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/storage"
)

// unknownAttribute stands in for documents whose sidecar lacks the counted
// attribute.
const unknownAttribute = "Unknown"

const helpText = `Available Commands:
- get stats: Get overall document statistics
- get stats [department]: Get statistics for specific department
- status [filename]: Check processing status of a file
- help: Show this help message`

// UsageStats is the statistics payload of a stats command.
type UsageStats struct {
	TotalDocuments int
	Departments    map[string]int
	DocumentTypes  map[string]int
	FilteredBy     string // department filter, empty when unfiltered
}

// CommandResult is the outcome of one command email. Stats is set for stats
// commands, Attributes for a processed-file status lookup.
type CommandResult struct {
	Success    bool
	Message    string
	Stats      *UsageStats
	Attributes map[string]any
}

// Commander executes the commands accepted in report emails. Statistics run
// the collector over the upload area, so command results and analytics runs
// agree on what counts as a processed document.
type Commander struct {
	store        *storage.Store
	collector    *collector.Collector
	uploadPrefix string
	log          *slog.Logger
}

// NewCommander creates a Commander over store's upload area.
func NewCommander(store *storage.Store, coll *collector.Collector, opts Options) *Commander {
	opts = opts.withDefaults()
	return &Commander{
		store:        store,
		collector:    coll,
		uploadPrefix: opts.UploadPrefix,
		log:          logging.Component("mailroom"),
	}
}

// Execute runs the command in an email body. The command word is matched
// case-insensitively; arguments keep their original casing so filenames with
// capitals still resolve.
func (c *Commander) Execute(ctx context.Context, body string) CommandResult {
	trimmed := strings.TrimSpace(body)
	lower := strings.ToLower(trimmed)

	switch {
	case lower == "get stats":
		return c.stats(ctx, "")
	case strings.HasPrefix(lower, "get stats "):
		return c.stats(ctx, strings.TrimSpace(trimmed[len("get stats "):]))
	case lower == "help":
		return CommandResult{Success: true, Message: helpText}
	case strings.HasPrefix(lower, "status "):
		return c.status(ctx, strings.TrimSpace(trimmed[len("status "):]))
	default:
		return CommandResult{
			Message: fmt.Sprintf("Unknown command: %s. Send 'help' for available commands.", trimmed),
		}
	}
}

// stats counts processed documents by department and document type. A
// department filter keeps only matching documents, compared case-insensitively.
func (c *Commander) stats(ctx context.Context, department string) CommandResult {
	result, err := c.collector.Collect(ctx, collector.CollectionParams{
		Bucket: c.store.Bucket(),
		Prefix: c.uploadPrefix,
	})
	if err != nil {
		c.log.Error("stats collection failed", "error", err)
		return CommandResult{Message: fmt.Sprintf("Failed to generate statistics: %v", err)}
	}

	stats := &UsageStats{
		Departments:   make(map[string]int),
		DocumentTypes: make(map[string]int),
		FilteredBy:    department,
	}
	for _, entry := range result.Entries {
		dept := stringAttribute(entry, "department")
		if department != "" && !strings.EqualFold(dept, department) {
			continue
		}
		stats.TotalDocuments++
		stats.Departments[dept]++
		stats.DocumentTypes[stringAttribute(entry, "document_type")]++
	}

	return CommandResult{
		Success: true,
		Message: "Statistics generated successfully",
		Stats:   stats,
	}
}

// status reports whether a file in the upload area has a sidecar yet.
func (c *Commander) status(ctx context.Context, filename string) CommandResult {
	key := storage.SidecarKey(c.uploadPrefix + filename)
	attrs, ok := c.store.FetchSidecar(ctx, key)
	if !ok {
		return CommandResult{
			Success: true,
			Message: fmt.Sprintf("File '%s' not found or not yet processed", filename),
		}
	}
	return CommandResult{
		Success:    true,
		Message:    fmt.Sprintf("File '%s' has been processed successfully", filename),
		Attributes: attrs,
	}
}

func stringAttribute(entry collector.MetadataEntry, key string) string {
	if v, ok := entry.Metadata[key].(string); ok && v != "" {
		return v
	}
	return unknownAttribute
}
