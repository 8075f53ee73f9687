package mailroom

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/storage"
)

// Intake files valid email attachments into the upload area, where the
// generator and collector pick them up.
type Intake struct {
	store        *storage.Store
	uploadPrefix string
	maxSize      int64
	allowedTypes []string
	log          *slog.Logger
}

// IntakeResult reports what happened to one message's attachments. Failures
// are results, not errors: a confirmation goes back to the sender either way.
type IntakeResult struct {
	Success bool
	Message string
	Stored  []string // filenames stored under the upload prefix
}

// NewIntake creates an Intake writing to store under opts.UploadPrefix.
func NewIntake(store *storage.Store, opts Options) *Intake {
	opts = opts.withDefaults()
	return &Intake{
		store:        store,
		uploadPrefix: opts.UploadPrefix,
		maxSize:      opts.MaxAttachment,
		allowedTypes: opts.AllowedTypes,
		log:          logging.Component("mailroom"),
	}
}

// ProcessAttachments validates and stores each attachment. Invalid or
// oversized files are dropped; the result lists only what was stored.
func (i *Intake) ProcessAttachments(ctx context.Context, msg *Message) IntakeResult {
	if len(msg.Attachments) == 0 {
		return IntakeResult{Message: "No attachments found in email"}
	}

	var stored []string
	for _, att := range msg.Attachments {
		name, ok := i.validate(att)
		if !ok {
			continue
		}

		key := i.uploadPrefix + name
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := i.store.WriteBytes(ctx, key, att.Data, contentType); err != nil {
			i.log.Error("attachment store failed", "key", key, "error", err)
			continue
		}
		i.log.Info("attachment stored", "key", key, "size", len(att.Data))
		stored = append(stored, name)
	}

	if len(stored) == 0 {
		return IntakeResult{Message: "No valid attachments to process"}
	}
	return IntakeResult{
		Success: true,
		Message: fmt.Sprintf("Successfully processed %d files", len(stored)),
		Stored:  stored,
	}
}

// validate checks extension and size, returning the sanitized filename the
// object will be stored under. Directory components are stripped so a
// crafted filename cannot escape the upload prefix.
func (i *Intake) validate(att Attachment) (string, bool) {
	name := path.Base(strings.ReplaceAll(att.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		i.log.Warn("attachment rejected: unusable filename", "filename", att.Filename)
		return "", false
	}

	ext := strings.ToLower(path.Ext(name))
	if !slices.Contains(i.allowedTypes, ext) {
		i.log.Warn("attachment rejected: file type not allowed", "filename", name, "ext", ext)
		return "", false
	}

	if int64(len(att.Data)) > i.maxSize {
		i.log.Warn("attachment rejected: too large", "filename", name, "size", len(att.Data), "max", i.maxSize)
		return "", false
	}

	return name, true
}
