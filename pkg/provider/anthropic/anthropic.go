// Package anthropic implements a Reasoner on top of the Anthropic Messages
// API using the official SDK.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/provider"
)

// Name is the provider identifier.
const Name = "anthropic"

const defaultMaxTokens = 4096

// Config holds the Anthropic adapter settings.
type Config struct {
	BaseURL       string
	APIKey        string
	ThinkingModel string
	TaskModel     string
	MaxTokens     int
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client sends single-turn requests to /v1/messages.
type Client struct {
	cfg   Config
	inner sdk.Client
}

var _ provider.Reasoner = (*Client)(nil)

// New creates an Anthropic client. A missing key is reported on the first
// call, not here.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &Client{cfg: cfg, inner: sdk.NewClient(opts...)}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return Name }

// Think answers the prompt with the thinking model.
func (c *Client) Think(ctx context.Context, prompt string) (string, error) {
	return c.message(ctx, "think", c.cfg.ThinkingModel, prompt)
}

// Complete answers the prompt with the task model.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.message(ctx, "complete", c.cfg.TaskModel, prompt)
}

func (c *Client) message(ctx context.Context, op, model, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", provider.ErrMissingKey(Name, "Anthropic")
	}

	debug.Log("providers", "messages request", "provider", Name, "op", op, "model", model, "prompt_len", len(prompt))

	resp, err := c.inner.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(c.cfg.MaxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", translateError(op, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	debug.Log("providers", "messages response", "provider", Name, "op", op,
		"stop_reason", string(resp.StopReason), "content_len", b.Len())
	return strings.TrimSpace(b.String()), nil
}

// translateError maps SDK errors onto provider.Error so callers see the
// same shape regardless of backend.
func translateError(op string, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		msg := provider.ExtractErrorMessage(strings.NewReader(apiErr.RawJSON()))
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &provider.Error{Provider: Name, Op: op, StatusCode: apiErr.StatusCode, Message: msg}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &provider.Error{Provider: Name, Op: op, Message: "request canceled", Err: err}
	}
	return provider.NetworkError(Name, op, err)
}
