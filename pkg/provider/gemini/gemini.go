// Package gemini implements a Reasoner backed by the Google Gemini
// generateContent REST endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/provider"
)

// Name is the provider identifier.
const Name = "gemini"

// Config holds the Gemini adapter settings.
type Config struct {
	BaseURL       string
	APIKey        string
	ThinkingModel string
	TaskModel     string
	MaxTokens     int
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client calls models/{model}:generateContent.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

var _ provider.Reasoner = (*Client)(nil)

// New creates a Gemini client.
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

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, op, model, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", provider.ErrMissingKey(Name, "Gemini")
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{MaxOutputTokens: c.cfg.MaxTokens},
	})
	if err != nil {
		return "", &provider.Error{Provider: Name, Op: op, Message: "failed to marshal request", Err: err}
	}

	endpoint := c.baseURL + "/v1beta/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &provider.Error{Provider: Name, Op: op, Message: "failed to create HTTP request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	debug.Log("providers", "generateContent request", "provider", Name, "op", op, "model", model, "prompt_len", len(prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the key; report the failure without it.
		return "", provider.NetworkError(Name, op, redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", provider.HTTPError(Name, op, resp)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", provider.DecodeError(Name, op, err)
	}
	if len(gr.Candidates) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
