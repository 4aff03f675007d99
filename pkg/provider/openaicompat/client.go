package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/provider"
)

// Config describes one OpenAI-compatible backend.
type Config struct {
	// Name is the provider identifier used in errors and metrics.
	Name string

	// DisplayName is used in the missing-credentials message. Defaults to Name.
	DisplayName string

	// BaseURL includes the API version segment, e.g. https://api.openai.com/v1.
	BaseURL string
	APIKey  string

	// RequireKey makes every call fail fast when APIKey is empty.
	RequireKey bool

	ThinkingModel string
	TaskModel     string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration

	// Headers are added to every request (OpenRouter attribution headers).
	Headers map[string]string

	// SystemPrompt, when set, is sent as a system message before the prompt.
	SystemPrompt string

	// ModelMapper optionally rewrites the model name before each request.
	ModelMapper func(ctx context.Context, model string) string

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client performs requests against an OpenAI-compatible Chat Completions
// backend. A Client is immutable after New.
type Client struct {
	cfg        Config
	httpClient *http.Client
	baseURL    string
}

var (
	_ provider.Reasoner    = (*Client)(nil)
	_ provider.ModelLister = (*Client)(nil)
)

// New creates a Client for an OpenAI-compatible backend.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Name
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:        cfg,
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return c.cfg.Name }

// Think answers the prompt with the thinking model.
func (c *Client) Think(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, "think", c.cfg.ThinkingModel, prompt)
}

// Complete answers the prompt with the task model.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, "complete", c.cfg.TaskModel, prompt)
}

// Chat sends a single-turn conversation and returns the trimmed content of
// the first choice.
func (c *Client) Chat(ctx context.Context, op, model, prompt string) (string, error) {
	if c.cfg.RequireKey && c.cfg.APIKey == "" {
		return "", provider.ErrMissingKey(c.cfg.Name, c.cfg.DisplayName)
	}
	if c.cfg.ModelMapper != nil {
		model = c.cfg.ModelMapper(ctx, model)
	}

	messages := make([]ChatMessage, 0, 2)
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: c.cfg.SystemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: prompt})

	chatReq := ChatCompletionRequest{Model: model, Messages: messages}
	if c.cfg.Temperature != 0 {
		t := c.cfg.Temperature
		chatReq.Temperature = &t
	}
	if c.cfg.MaxTokens > 0 {
		n := c.cfg.MaxTokens
		chatReq.MaxTokens = &n
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", &provider.Error{Provider: c.cfg.Name, Op: op, Message: "failed to marshal request", Err: err}
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &provider.Error{Provider: c.cfg.Name, Op: op, Message: "failed to create HTTP request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	debug.Log("providers", "chat request", "provider", c.cfg.Name, "op", op, "model", model, "url", url, "prompt_len", len(prompt))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", provider.NetworkError(c.cfg.Name, op, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", provider.HTTPError(c.cfg.Name, op, httpResp)
	}

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return "", provider.DecodeError(c.cfg.Name, op, err)
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return "", &provider.Error{Provider: c.cfg.Name, Op: op, StatusCode: httpResp.StatusCode, Message: chatResp.Error.Message}
	}
	if len(chatResp.Choices) == 0 {
		return "", &provider.Error{Provider: c.cfg.Name, Op: op, Message: "backend returned no choices"}
	}

	content := ""
	if p := chatResp.Choices[0].Message.Content; p != nil {
		content = strings.TrimSpace(*p)
	}
	debug.Log("providers", "chat response", "provider", c.cfg.Name, "op", op, "model", chatResp.Model,
		"finish_reason", chatResp.Choices[0].FinishReason, "content_len", len(content))
	return content, nil
}

// ListModels returns the model identifiers reported by /models. Backends
// that require a key return an empty list when none is configured.
func (c *Client) ListModels(ctx context.Context, _ bool) ([]string, error) {
	if c.cfg.RequireKey && c.cfg.APIKey == "" {
		return []string{}, nil
	}

	url := c.baseURL + "/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &provider.Error{Provider: c.cfg.Name, Op: "list_models", Message: "failed to create HTTP request", Err: err}
	}
	c.setHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, provider.NetworkError(c.cfg.Name, "list_models", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, provider.HTTPError(c.cfg.Name, "list_models", httpResp)
	}

	var modelsResp ChatModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, provider.DecodeError(c.cfg.Name, "list_models", err)
	}

	models := make([]string, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the client used for requests.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

func (c *Client) setHeaders(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
}

// String describes the client for logs.
func (c *Client) String() string {
	return fmt.Sprintf("%s(%s)", c.cfg.Name, c.baseURL)
}

// OpenRouterHeaders returns the attribution headers OpenRouter expects.
func OpenRouterHeaders(referer string) map[string]string {
	if referer == "" {
		referer = "http://localhost:8080"
	}
	return map[string]string{
		"HTTP-Referer": referer,
		"X-Title":      "OpenResearch",
	}
}
