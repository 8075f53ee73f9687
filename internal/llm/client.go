// Package llm wraps text-generation model providers behind a single
// prompt-in, text-out interface and recovers structured JSON from their
// output.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/metrics"
)

var (
	// ErrUnknownProvider is returned for providers New does not support.
	ErrUnknownProvider = errors.New("llm: unknown provider")

	// ErrEmptyResponse is returned when the model answers with no choices.
	ErrEmptyResponse = errors.New("llm: model returned no content")
)

// TextGenerator produces text for a prompt. Implemented by Client and by
// test fakes.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and tunes a model provider.
type Config struct {
	Provider    string // "anthropic" | "openai"
	Model       string
	APIKey      string
	BaseURL     string // optional override
	MaxTokens   int
	Temperature float64
}

// Client is a TextGenerator over a langchaingo model.
type Client struct {
	model       llms.Model
	provider    string
	maxTokens   int
	temperature float64
	log         *slog.Logger
}

// New builds a client for the configured provider.
func New(cfg Config) (*Client, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		model:       model,
		provider:    cfg.Provider,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		log:         logging.Component("llm"),
	}, nil
}

func newModel(cfg Config) (llms.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithModel(cfg.Model),
			anthropic.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	case "openai":
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// Generate sends one prompt and returns the first choice's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	c.log.Debug("calling model", "provider", c.provider, "prompt_chars", len(prompt))

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(c.maxTokens),
		llms.WithTemperature(c.temperature),
	)
	if err != nil {
		if m := metrics.Get(); m != nil {
			m.IncModelInvocation(c.provider, "error")
		}
		return "", fmt.Errorf("llm: generating content: %w", err)
	}
	if len(resp.Choices) == 0 {
		if m := metrics.Get(); m != nil {
			m.IncModelInvocation(c.provider, "empty")
		}
		return "", ErrEmptyResponse
	}

	if m := metrics.Get(); m != nil {
		m.IncModelInvocation(c.provider, "ok")
	}
	return resp.Choices[0].Content, nil
}
