// Package lmstudio implements a Reasoner for a local LM Studio server.
//
// LM Studio speaks the OpenAI Chat Completions dialect, but model names in
// configuration rarely match the identifiers of the loaded models exactly.
// Requested names are resolved against a cached model catalog before each
// request.
package lmstudio

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/provider"
	"github.com/rhuss/openresearch/pkg/provider/openaicompat"
)

// Name is the provider identifier.
const Name = "lmstudio"

const (
	systemPrompt   = "You are a helpful research assistant."
	catalogTTL     = 60 * time.Second
	catalogTimeout = 10 * time.Second
)

// Config holds the LM Studio adapter settings.
type Config struct {
	BaseURL       string
	ThinkingModel string
	TaskModel     string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client is an LM Studio backend. The catalog cache is scoped to the
// client; a new base URL means a new Client and an empty cache.
type Client struct {
	chat    *openaicompat.Client
	baseURL string
	catalog *http.Client
	now     func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	models    []string
	fetchedAt time.Time
}

var (
	_ provider.Reasoner    = (*Client)(nil)
	_ provider.ModelLister = (*Client)(nil)
)

// New creates an LM Studio client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 600 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		catalog: &http.Client{Timeout: catalogTimeout},
		now:     time.Now,
	}
	if cfg.HTTPClient != nil {
		c.catalog = cfg.HTTPClient
	}
	c.chat = openaicompat.New(openaicompat.Config{
		Name:          Name,
		DisplayName:   "LM Studio",
		BaseURL:       cfg.BaseURL,
		ThinkingModel: cfg.ThinkingModel,
		TaskModel:     cfg.TaskModel,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		Timeout:       cfg.Timeout,
		SystemPrompt:  systemPrompt,
		ModelMapper:   c.resolve,
		HTTPClient:    cfg.HTTPClient,
	})
	return c
}

// Name returns the provider identifier.
func (c *Client) Name() string { return Name }

// Think answers the prompt with the thinking model.
func (c *Client) Think(ctx context.Context, prompt string) (string, error) {
	return c.chat.Think(ctx, prompt)
}

// Complete answers the prompt with the task model.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.chat.Complete(ctx, prompt)
}

// ListModels returns the loaded model identifiers. Results are cached for a
// minute unless forceRefresh is set. When a refresh fails the previous
// catalog is returned; the error surfaces only when there is nothing cached.
func (c *Client) ListModels(ctx context.Context, forceRefresh bool) ([]string, error) {
	c.mu.Lock()
	fresh := len(c.models) > 0 && c.now().Sub(c.fetchedAt) < catalogTTL
	cached := c.models
	c.mu.Unlock()
	if fresh && !forceRefresh {
		return cloneStrings(cached), nil
	}

	v, err, _ := c.group.Do("models", func() (any, error) {
		models, err := c.fetchModels(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.models = models
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return models, nil
	})
	if err != nil {
		debug.Log("providers", "model catalog refresh failed", "provider", Name, "error", err)
		if len(cached) > 0 {
			return cloneStrings(cached), nil
		}
		return nil, err
	}
	return cloneStrings(v.([]string)), nil
}

func (c *Client) fetchModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, &provider.Error{Provider: Name, Op: "list_models", Message: "failed to create HTTP request", Err: err}
	}
	resp, err := c.catalog.Do(req)
	if err != nil {
		return nil, provider.NetworkError(Name, "list_models", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.HTTPError(Name, "list_models", resp)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, provider.DecodeError(Name, "list_models", err)
	}
	return parseCatalog(raw), nil
}

// parseCatalog accepts {"data":[{"id":..}]}, {"models":[{"name":..}|".."]}
// and a bare JSON list.
func parseCatalog(raw json.RawMessage) []string {
	models := []string{}

	var list []any
	if json.Unmarshal(raw, &list) == nil {
		for _, item := range list {
			if s := stringify(item); s != "" {
				models = append(models, s)
			}
		}
		return models
	}

	var obj struct {
		Data   []map[string]any `json:"data"`
		Models []any            `json:"models"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return models
	}
	if obj.Data != nil {
		for _, item := range obj.Data {
			if id, ok := item["id"].(string); ok && id != "" {
				models = append(models, id)
			}
		}
		return models
	}
	for _, item := range obj.Models {
		switch v := item.(type) {
		case string:
			models = append(models, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok && name != "" {
				models = append(models, name)
			}
		}
	}
	return models
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// resolve maps a configured model name onto a loaded model. Matching is
// tried exact, case-insensitive, normalized and normalized-substring, in
// that order. Unresolvable names pass through unchanged.
func (c *Client) resolve(ctx context.Context, requested string) string {
	if requested == "" {
		return requested
	}
	available, err := c.ListModels(ctx, false)
	if err != nil || len(available) == 0 {
		return requested
	}
	resolved := ResolveModel(requested, available)
	if resolved != requested {
		debug.Log("providers", "resolved model name", "provider", Name, "requested", requested, "resolved", resolved)
	}
	return resolved
}

// ResolveModel picks the best match for requested among available.
func ResolveModel(requested string, available []string) string {
	for _, m := range available {
		if m == requested {
			return m
		}
	}
	for _, m := range available {
		if strings.EqualFold(m, requested) {
			return m
		}
	}
	norm := normalize(requested)
	for _, m := range available {
		if normalize(m) == norm {
			return m
		}
	}
	for _, m := range available {
		if strings.Contains(normalize(m), norm) {
			return m
		}
	}
	return requested
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
