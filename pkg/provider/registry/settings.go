package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rhuss/openresearch/pkg/config"
	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/provider"
)

// ErrUnknownLister is returned by Models for a backend without model listing.
var ErrUnknownLister = errors.New("provider does not support model listing")

// Manager owns the mutable provider settings. Every successful Update
// builds a fresh Set and swaps it into the registry; operations that
// already took a snapshot keep using the old one.
type Manager struct {
	mu     sync.Mutex
	llm    config.LLMConfig
	search config.SearchConfig
	reg    *provider.Registry
}

// NewManager builds the initial Set from llm and search.
func NewManager(llm config.LLMConfig, search config.SearchConfig) *Manager {
	return &Manager{
		llm:    llm,
		search: search,
		reg:    provider.NewRegistry(Build(llm, search)),
	}
}

// Current returns the active Set.
func (m *Manager) Current() *provider.Set {
	return m.reg.Current()
}

// Settings returns the flat settings view with API keys masked.
func (m *Manager) Settings() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]any)
	for key, f := range settingFields(&m.llm, &m.search) {
		switch {
		case f.secret:
			out[key] = MaskSecret(*f.str)
		case f.str != nil:
			out[key] = *f.str
		default:
			out[key] = *f.num
		}
	}
	return out
}

// Update applies a partial settings document. Null and absent fields are
// left unchanged, unknown fields are ignored, and a masked API key echoed
// back from Settings keeps the stored key. On error nothing is applied.
func (m *Manager) Update(patch map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	llm, search := m.llm, m.search
	fields := settingFields(&llm, &search)

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	changed := []string{}
	for _, key := range keys {
		raw := patch[key]
		f, ok := fields[key]
		if !ok {
			debug.Log("config", "ignoring unknown setting", "key", key)
			continue
		}
		if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if f.num != nil {
			var n int
			if err := json.Unmarshal(raw, &n); err != nil {
				errs = append(errs, fmt.Errorf("%s must be an integer", key))
				continue
			}
			if n < 0 {
				errs = append(errs, fmt.Errorf("%s must be >= 0, got %d", key, n))
				continue
			}
			*f.num = n
			changed = append(changed, key)
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			errs = append(errs, fmt.Errorf("%s must be a string", key))
			continue
		}
		if f.secret && s != "" && s == MaskSecret(*f.str) {
			continue
		}
		*f.str = s
		changed = append(changed, key)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	m.llm, m.search = llm, search
	m.reg.Swap(Build(llm, search))
	slog.Info("provider settings updated",
		"llm_provider", ReasonerName(llm.Provider),
		"search_provider", SearcherName(search.Provider),
		"changed", changed)
	return nil
}

// Models lists the models of the named backend using the current Set.
func (m *Manager) Models(ctx context.Context, name string, forceRefresh bool) ([]string, error) {
	l, ok := m.Current().Models[name]
	if !ok || l == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLister, name)
	}
	return l.ListModels(ctx, forceRefresh)
}

// MaskSecret hides all but the last four characters of a credential.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}

type settingField struct {
	str    *string
	num    *int
	secret bool
}

// settingFields maps the flat setting names onto the nested config.
func settingFields(llm *config.LLMConfig, search *config.SearchConfig) map[string]settingField {
	fields := map[string]settingField{
		"llm_provider":       {str: &llm.Provider},
		"search_provider":    {str: &search.Provider},
		"searxng_base_url":   {str: &search.SearXNG.BaseURL},
		"searxng_categories": {str: &search.SearXNG.Categories},
		"searxng_language":   {str: &search.SearXNG.Language},
		"searxng_results":    {num: &search.SearXNG.Results},
		"duckduckgo_region":  {str: &search.DuckDuckGo.Region},
		"duckduckgo_results": {num: &search.DuckDuckGo.Results},
	}
	for _, name := range config.LLMProviders {
		p := llm.For(name)
		fields[name+"_base_url"] = settingField{str: &p.BaseURL}
		fields[name+"_api_key"] = settingField{str: &p.APIKey, secret: true}
		fields[name+"_thinking_model"] = settingField{str: &p.ThinkingModel}
		fields[name+"_task_model"] = settingField{str: &p.TaskModel}
		fields[name+"_max_tokens"] = settingField{num: &p.MaxTokens}
	}
	return fields
}
