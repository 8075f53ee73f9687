package mailroom

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/storage"
)

// Responder delivers replies to inbound emails.
type Responder interface {
	SendUploadConfirmation(ctx context.Context, recipient string, result IntakeResult) error
	SendCommandResponse(ctx context.Context, recipient string, result CommandResult) error
}

// NewResponder builds the responder named by mode: "storage" writes rendered
// replies to the outbound area for an external relay, "log" only logs them.
func NewResponder(store *storage.Store, opts Options, mode string) (Responder, error) {
	switch mode {
	case "storage":
		return &StoreResponder{
			store:  store,
			prefix: opts.withDefaults().OutboundPrefix,
			log:    logging.Component("responder"),
		}, nil
	case "log":
		return &LogResponder{log: logging.Component("responder")}, nil
	default:
		return nil, fmt.Errorf("unknown responder mode %q", mode)
	}
}

// StoreResponder renders replies as text objects under the outbound prefix.
// An external relay owns actual delivery.
type StoreResponder struct {
	store  *storage.Store
	prefix string
	log    *slog.Logger
}

func (r *StoreResponder) SendUploadConfirmation(ctx context.Context, recipient string, result IntakeResult) error {
	subject, body := renderUploadConfirmation(result)
	return r.write(ctx, recipient, subject, body)
}

func (r *StoreResponder) SendCommandResponse(ctx context.Context, recipient string, result CommandResult) error {
	subject, body := renderCommandResponse(result)
	return r.write(ctx, recipient, subject, body)
}

func (r *StoreResponder) write(ctx context.Context, recipient, subject, body string) error {
	key := r.prefix + uuid.NewString() + ".txt"
	content := fmt.Sprintf("To: %s\nSubject: %s\n\n%s\n", recipient, subject, body)
	if err := r.store.WriteBytes(ctx, key, []byte(content), "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("queue reply %s: %w", key, err)
	}
	r.log.Info("reply queued", "key", key, "recipient", recipient, "subject", subject)
	return nil
}

// LogResponder logs replies instead of delivering them. Used in development
// and in deployments without an outbound relay.
type LogResponder struct {
	log *slog.Logger
}

func (r *LogResponder) SendUploadConfirmation(_ context.Context, recipient string, result IntakeResult) error {
	subject, body := renderUploadConfirmation(result)
	r.log.Info("upload confirmation", "recipient", recipient, "subject", subject, "body", body)
	return nil
}

func (r *LogResponder) SendCommandResponse(_ context.Context, recipient string, result CommandResult) error {
	subject, body := renderCommandResponse(result)
	r.log.Info("command response", "recipient", recipient, "subject", subject, "body", body)
	return nil
}

func renderUploadConfirmation(result IntakeResult) (subject, body string) {
	if !result.Success {
		return "Document Upload Failed", fmt.Sprintf(`Your document upload failed.

Error: %s

Please check your attachments and try again. Supported file types: PDF, DOCX, TXT, XLSX, CSV (max 25MB each).`, result.Message)
	}

	return "Document Upload Successful", fmt.Sprintf(`Your document upload was successful.

%s

Files processed: %s

The documents are now being processed for metadata generation and will be available shortly.`, result.Message, strings.Join(result.Stored, ", "))
}

func renderCommandResponse(result CommandResult) (subject, body string) {
	if !result.Success {
		return "Metalake Command Error", "Command failed: " + result.Message
	}

	subject = "Metalake Command Response"
	switch {
	case result.Stats != nil:
		body = renderStats(result.Stats)
	case len(result.Attributes) > 0:
		body = result.Message + "\n\n" + renderAttributes(result.Attributes)
	default:
		body = result.Message
	}
	return subject, body
}

func renderStats(stats *UsageStats) string {
	var b strings.Builder
	if stats.FilteredBy != "" {
		fmt.Fprintf(&b, "Statistics for Department: %s\n\n", stats.FilteredBy)
	}
	b.WriteString("Metalake Statistics Report\n\n")
	fmt.Fprintf(&b, "Total Documents: %d\n", stats.TotalDocuments)

	b.WriteString("\nDepartments:")
	for _, name := range sortedKeys(stats.Departments) {
		fmt.Fprintf(&b, "\n- %s: %d documents", name, stats.Departments[name])
	}

	b.WriteString("\n\nDocument Types:")
	for _, name := range sortedKeys(stats.DocumentTypes) {
		fmt.Fprintf(&b, "\n- %s: %d documents", name, stats.DocumentTypes[name])
	}
	return b.String()
}

func renderAttributes(attrs map[string]any) string {
	var b strings.Builder
	for i, key := range sortedKeys(attrs) {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %v", key, attrs[key])
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
