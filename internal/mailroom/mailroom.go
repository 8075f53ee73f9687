package mailroom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lakeops/metalake/internal/collector"
	"github.com/lakeops/metalake/internal/event"
	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/metrics"
	"github.com/lakeops/metalake/internal/storage"
)

// ErrUnroutableKey is returned for object keys outside the inbound email
// prefixes.
var ErrUnroutableKey = errors.New("mailroom: key is not an inbound email")

// Inbound key prefixes deciding how a message is handled.
const (
	uploadRoutePrefix  = "inbound/upload/"
	reportsRoutePrefix = "inbound/reports/"
)

// Options carries the tunable mailroom settings. The zero value gets
// production defaults.
type Options struct {
	UploadPrefix   string   // where accepted attachments land
	OutboundPrefix string   // where the storage responder queues replies
	MaxAttachment  int64    // per-attachment size cap in bytes
	AllowedTypes   []string // acceptable attachment extensions, with dot
}

func (o Options) withDefaults() Options {
	if o.UploadPrefix == "" {
		o.UploadPrefix = "uploads/"
	}
	if o.OutboundPrefix == "" {
		o.OutboundPrefix = "outbound/"
	}
	if o.MaxAttachment <= 0 {
		o.MaxAttachment = 25 << 20
	}
	if len(o.AllowedTypes) == 0 {
		o.AllowedTypes = []string{".pdf", ".docx", ".txt", ".xlsx", ".csv"}
	}
	return o
}

// Outcome summarizes how one inbound email was handled.
type Outcome struct {
	Route   string // "upload" or "command"
	Success bool
	Message string
}

// Mailroom routes inbound email objects to attachment intake or command
// processing and sends the reply.
type Mailroom struct {
	store     *storage.Store
	intake    *Intake
	commander *Commander
	responder Responder
	log       *slog.Logger
}

// New wires a Mailroom over store. The collector computes stats-command
// answers; responder delivers replies.
func New(store *storage.Store, coll *collector.Collector, responder Responder, opts Options) *Mailroom {
	return &Mailroom{
		store:     store,
		intake:    NewIntake(store, opts),
		commander: NewCommander(store, coll, opts),
		responder: responder,
		log:       logging.Component("mailroom"),
	}
}

// ProcessObject handles one inbound email object: route by key prefix, fetch
// and parse the message, run the route's handler, reply to the sender.
// Responder failures are logged, not raised — the work the email asked for
// is already done by then.
func (m *Mailroom) ProcessObject(ctx context.Context, ref event.ObjectRef) (Outcome, error) {
	route, err := routeForKey(ref.Key)
	if err != nil {
		m.count("unknown", "unroutable")
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnroutableKey, ref.Key)
	}

	raw, err := m.store.ReadAll(ctx, ref.Key)
	if err != nil {
		m.count(route, "error")
		return Outcome{}, err
	}

	msg, err := ParseMessage(raw)
	if err != nil {
		m.count(route, "error")
		return Outcome{}, fmt.Errorf("email %s: %w", ref.Key, err)
	}

	log := m.log
	if id := logging.CorrelationID(ctx); id != "" {
		log = log.With("correlation_id", id)
	}
	log.Info("processing inbound email",
		"key", ref.Key,
		"route", route,
		"sender", msg.Sender,
		"attachments", len(msg.Attachments))

	var outcome Outcome
	switch route {
	case "upload":
		result := m.intake.ProcessAttachments(ctx, msg)
		if err := m.responder.SendUploadConfirmation(ctx, msg.Sender, result); err != nil {
			log.Error("upload confirmation failed", "recipient", msg.Sender, "error", err)
		}
		outcome = Outcome{Route: route, Success: result.Success, Message: result.Message}

	case "command":
		result := m.commander.Execute(ctx, msg.Body)
		if err := m.responder.SendCommandResponse(ctx, msg.Sender, result); err != nil {
			log.Error("command response failed", "recipient", msg.Sender, "error", err)
		}
		outcome = Outcome{Route: route, Success: result.Success, Message: result.Message}
	}

	if outcome.Success {
		m.count(route, "ok")
	} else {
		m.count(route, "rejected")
	}
	return outcome, nil
}

func routeForKey(key string) (string, error) {
	switch {
	case strings.HasPrefix(key, uploadRoutePrefix):
		return "upload", nil
	case strings.HasPrefix(key, reportsRoutePrefix):
		return "command", nil
	default:
		return "", ErrUnroutableKey
	}
}

func (m *Mailroom) count(route, outcome string) {
	if mx := metrics.Get(); mx != nil {
		mx.IncEmailsProcessed(route, outcome)
	}
}
