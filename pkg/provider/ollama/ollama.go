// Package ollama implements a Reasoner backed by a local Ollama server
// (/api/generate) and lists its installed models (/api/tags).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/provider"
)

// Name is the provider identifier.
const Name = "ollama"

// Config holds the Ollama adapter settings.
type Config struct {
	BaseURL       string
	ThinkingModel string
	TaskModel     string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client talks to an Ollama server.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

var (
	_ provider.Reasoner    = (*Client)(nil)
	_ provider.ModelLister = (*Client)(nil)
)

// New creates an Ollama client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, baseURL: strings.TrimRight(cfg.BaseURL, "/"), httpClient: hc}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return Name }

// Think answers the prompt with the thinking model.
func (c *Client) Think(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "think", c.cfg.ThinkingModel, prompt)
}

// Complete answers the prompt with the task model.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "complete", c.cfg.TaskModel, prompt)
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *Client) generate(ctx context.Context, op, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", &provider.Error{Provider: Name, Op: op, Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", &provider.Error{Provider: Name, Op: op, Message: "failed to create HTTP request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	debug.Log("providers", "generate request", "provider", Name, "op", op, "model", model, "prompt_len", len(prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", provider.NetworkError(Name, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", provider.HTTPError(Name, op, resp)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", provider.DecodeError(Name, op, err)
	}
	return strings.TrimSpace(gr.Response), nil
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// ListModels returns the names of the locally installed models.
func (c *Client) ListModels(ctx context.Context, _ bool) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &provider.Error{Provider: Name, Op: "list_models", Message: "failed to create HTTP request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.NetworkError(Name, "list_models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.HTTPError(Name, "list_models", resp)
	}

	var tr tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, provider.DecodeError(Name, "list_models", err)
	}

	models := make([]string, 0, len(tr.Models))
	for _, m := range tr.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			models = append(models, name)
		}
	}
	return models, nil
}
