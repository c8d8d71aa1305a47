// Package genai generates personalized motivation lines for reminders using
// the OpenAI API. It is optional: without an API key the client falls back
// to the fixed phrase rotation, so the service never depends on OpenAI
// being reachable.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/zhanghealth/zhanghealth/internal/messages"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.ChatModelGPT4oMini

const systemPrompt = "You write one short, warm encouragement line for a family " +
	"health reminder SMS. Reply in Simplified Chinese, at most 40 characters, " +
	"optionally one emoji. Never give medical advice."

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion API. A nil api means generation
// is disabled and only the fallback phrases are used.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds a GenAI client, falling back to the OPENAI_API_KEY
// environment variable. A missing key disables generation rather than
// failing.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.APIKey == "" {
		slog.Info("GenAI.NewClient: no OpenAI API key configured, using fixed motivation phrases")
		return &Client{model: cfg.Model}
	}
	api := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{api: &api, model: cfg.Model}
}

// Enabled reports whether generated motivation lines are available.
func (c *Client) Enabled() bool { return c.api != nil }

// GeneratePrompt runs one chat completion with the given system and user
// prompts.
func (c *Client) GeneratePrompt(ctx context.Context, system, user string) (string, error) {
	if c.api == nil {
		return "", fmt.Errorf("genai client is disabled")
	}
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// MotivationLine returns one encouragement line for a member. Generation
// errors fall back to the fixed phrase rotation so a reminder always has a
// motivation line.
func (c *Client) MotivationLine(ctx context.Context, memberName string, messageIndex int) string {
	if c.api == nil {
		return messages.Motivation()
	}
	user := fmt.Sprintf("Recipient: %s. This is reminder #%d of their exercise plan.", memberName, messageIndex+1)
	line, err := c.GeneratePrompt(ctx, systemPrompt, user)
	if err != nil || line == "" {
		slog.Warn("GenAI.MotivationLine: generation failed, using fixed phrase", "error", err)
		return messages.Motivation()
	}
	return line
}
