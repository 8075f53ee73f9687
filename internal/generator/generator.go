package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lakeops/metalake/internal/event"
	"github.com/lakeops/metalake/internal/llm"
	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/metrics"
	"github.com/lakeops/metalake/internal/storage"
)

var (
	// ErrSidecarExists means the document already has a sidecar; nothing
	// is generated.
	ErrSidecarExists = errors.New("generator: sidecar already exists")

	// ErrNoMatchingRule means no path rule covers the key.
	ErrNoMatchingRule = errors.New("generator: no rule matches key")

	// ErrSidecarObject means the event points at a sidecar itself, which
	// never gets metadata of its own.
	ErrSidecarObject = errors.New("generator: object is itself a sidecar")
)

// ObjectStore is the slice of storage the generator needs.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	ReadAtMost(ctx context.Context, key string, limit int64) ([]byte, error)
	WriteSidecar(ctx context.Context, originalKey string, attrs map[string]any) error
}

// Generator turns object-created events into metadata sidecars.
type Generator struct {
	rules   *Rules
	model   llm.TextGenerator
	store   ObjectStore
	readCap int64
	log     *slog.Logger
}

// New creates a Generator. readCap bounds how many object bytes are read
// for the content preview.
func New(rules *Rules, model llm.TextGenerator, store ObjectStore, readCap int64) *Generator {
	return &Generator{
		rules:   rules,
		model:   model,
		store:   store,
		readCap: readCap,
		log:     logging.Component("generator"),
	}
}

// Result is one generated sidecar.
type Result struct {
	Key        string         `json:"key"`
	SidecarKey string         `json:"sidecar_key"`
	Attributes map[string]any `json:"attributes"`
}

// Process generates and stores a sidecar for the referenced object. It
// skips objects that already have one, sidecars themselves, and keys no
// rule covers; those come back as sentinel errors the caller can test for.
func (g *Generator) Process(ctx context.Context, ref event.ObjectRef) (*Result, error) {
	log := g.log.With("bucket", ref.Bucket, "key", ref.Key)
	if id := logging.CorrelationID(ctx); id != "" {
		log = log.With("correlation_id", id)
	}

	result, err := g.process(ctx, log, ref)
	if m := metrics.Get(); m != nil {
		m.IncGeneratorRequest(outcomeLabel(err))
	}
	return result, err
}

func (g *Generator) process(ctx context.Context, log *slog.Logger, ref event.ObjectRef) (*Result, error) {
	if storage.IsSidecarKey(ref.Key) {
		return nil, ErrSidecarObject
	}

	sidecarKey := storage.SidecarKey(ref.Key)
	exists, err := g.store.Exists(ctx, sidecarKey)
	if err != nil {
		return nil, fmt.Errorf("generator: checking sidecar %s: %w", sidecarKey, err)
	}
	if exists {
		log.Info("sidecar already present, skipping")
		return nil, ErrSidecarExists
	}

	rule, ok := g.rules.MatchRule(ref.Key)
	if !ok {
		log.Info("no path rule matches key, skipping")
		return nil, ErrNoMatchingRule
	}

	content, err := g.store.ReadAtMost(ctx, ref.Key, g.readCap)
	if err != nil {
		return nil, fmt.Errorf("generator: reading object %s: %w", ref.Key, err)
	}

	preview := g.rules.Preview(ref.Key, content)
	prompt := BuildPrompt(ref.Key, preview, g.rules.Fields,
		MaxContentChars(g.rules.Model.InputContextWindow, g.rules.Model.MaxTokens))

	log.Info("generating metadata", "rule", rule.Pattern, "content_bytes", len(content))

	text, err := g.model.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generator: model call failed: %w", err)
	}

	attrs, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	// Path captures are authoritative over model output.
	for field, value := range ExtractValues(ref.Key, rule) {
		attrs[field] = value
	}

	if err := g.store.WriteSidecar(ctx, ref.Key, attrs); err != nil {
		return nil, fmt.Errorf("generator: writing sidecar %s: %w", sidecarKey, err)
	}

	log.Info("sidecar written", "sidecar_key", sidecarKey, "attributes", len(attrs))

	return &Result{
		Key:        ref.Key,
		SidecarKey: sidecarKey,
		Attributes: attrs,
	}, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSidecarExists), errors.Is(err, ErrSidecarObject):
		return "skipped"
	case errors.Is(err, ErrNoMatchingRule):
		return "unmatched"
	default:
		return "error"
	}
}
