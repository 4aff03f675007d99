// Package registry builds provider Sets from configuration.
//
// Selection is a closed dispatch table keyed by backend name. Unknown names
// fall back to the default backend (openrouter for reasoners, searxng for
// searchers) so a typo in the provider choice never blocks a task.
package registry

import (
	"log/slog"
	"strings"

	"github.com/rhuss/openresearch/pkg/config"
	"github.com/rhuss/openresearch/pkg/provider"
	"github.com/rhuss/openresearch/pkg/provider/anthropic"
	"github.com/rhuss/openresearch/pkg/provider/gemini"
	"github.com/rhuss/openresearch/pkg/provider/lmstudio"
	"github.com/rhuss/openresearch/pkg/provider/ollama"
	"github.com/rhuss/openresearch/pkg/provider/openaicompat"
	"github.com/rhuss/openresearch/pkg/search/duckduckgo"
	"github.com/rhuss/openresearch/pkg/search/searxng"
)

const (
	// DefaultReasoner is used when llm.provider is unknown.
	DefaultReasoner = "openrouter"
	// DefaultSearcher is used when search.provider is unknown.
	DefaultSearcher = "searxng"
)

type reasonerFactory func(p config.LLMProviderConfig) provider.Reasoner

type searcherFactory func(c config.SearchConfig) provider.Searcher

var reasoners = map[string]reasonerFactory{
	"ollama": func(p config.LLMProviderConfig) provider.Reasoner {
		return newOllama(p)
	},
	"openrouter": func(p config.LLMProviderConfig) provider.Reasoner {
		return newOpenRouter(p)
	},
	"openai": func(p config.LLMProviderConfig) provider.Reasoner {
		return compat("openai", "OpenAI", p)
	},
	"mistral": func(p config.LLMProviderConfig) provider.Reasoner {
		return compat("mistral", "Mistral", p)
	},
	"groq": func(p config.LLMProviderConfig) provider.Reasoner {
		return compat("groq", "Groq", p)
	},
	"anthropic": func(p config.LLMProviderConfig) provider.Reasoner {
		return anthropic.New(anthropic.Config{
			BaseURL:       p.BaseURL,
			APIKey:        p.APIKey,
			ThinkingModel: p.ThinkingModel,
			TaskModel:     p.TaskModel,
			MaxTokens:     p.MaxTokens,
			Timeout:       p.Timeout,
		})
	},
	"gemini": func(p config.LLMProviderConfig) provider.Reasoner {
		return gemini.New(gemini.Config{
			BaseURL:       p.BaseURL,
			APIKey:        p.APIKey,
			ThinkingModel: p.ThinkingModel,
			TaskModel:     p.TaskModel,
			MaxTokens:     p.MaxTokens,
			Timeout:       p.Timeout,
		})
	},
	"lmstudio": func(p config.LLMProviderConfig) provider.Reasoner {
		return newLMStudio(p)
	},
}

var searchers = map[string]searcherFactory{
	"searxng": func(c config.SearchConfig) provider.Searcher {
		return searxng.New(searxng.Config{
			BaseURL:    c.SearXNG.BaseURL,
			Categories: c.SearXNG.Categories,
			Language:   c.SearXNG.Language,
			Results:    c.SearXNG.Results,
			Timeout:    c.SearXNG.Timeout,
		})
	},
	"duckduckgo": func(c config.SearchConfig) provider.Searcher {
		return duckduckgo.New(duckduckgo.Config{
			BaseURL: c.DuckDuckGo.BaseURL,
			Region:  c.DuckDuckGo.Region,
			Results: c.DuckDuckGo.Results,
			Timeout: c.DuckDuckGo.Timeout,
		})
	},
}

// ReasonerName returns the backend name a configured key selects.
func ReasonerName(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if _, ok := reasoners[k]; ok {
		return k
	}
	return DefaultReasoner
}

// SearcherName returns the backend name a configured key selects.
func SearcherName(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if _, ok := searchers[k]; ok {
		return k
	}
	return DefaultSearcher
}

// BuildReasoner constructs the reasoner selected by cfg.Provider.
func BuildReasoner(cfg config.LLMConfig) provider.Reasoner {
	name := ReasonerName(cfg.Provider)
	if name != strings.ToLower(strings.TrimSpace(cfg.Provider)) {
		slog.Warn("unknown llm provider, using default", "provider", cfg.Provider, "default", name)
	}
	return reasoners[name](*cfg.For(name))
}

// BuildSearcher constructs the searcher selected by cfg.Provider.
func BuildSearcher(cfg config.SearchConfig) provider.Searcher {
	name := SearcherName(cfg.Provider)
	if name != strings.ToLower(strings.TrimSpace(cfg.Provider)) {
		slog.Warn("unknown search provider, using default", "provider", cfg.Provider, "default", name)
	}
	return searchers[name](cfg)
}

// Build constructs an instrumented Set from the LLM and search settings.
// Model listers are created for every backend that supports listing; the
// active reasoner shares its instance with the matching lister so the LM
// Studio catalog cache is not duplicated.
func Build(llm config.LLMConfig, search config.SearchConfig) *provider.Set {
	ol := newOllama(llm.Ollama)
	or := newOpenRouter(llm.OpenRouter)
	lm := newLMStudio(llm.LMStudio)

	var r provider.Reasoner
	switch ReasonerName(llm.Provider) {
	case "ollama":
		r = ol
	case "openrouter":
		r = or
	case "lmstudio":
		r = lm
	default:
		r = BuildReasoner(llm)
	}

	return &provider.Set{
		Reasoner: Instrument(r),
		Searcher: InstrumentSearcher(BuildSearcher(search)),
		Models: map[string]provider.ModelLister{
			"ollama":     InstrumentLister("ollama", ol),
			"openrouter": InstrumentLister("openrouter", or),
			"lmstudio":   InstrumentLister("lmstudio", lm),
		},
	}
}

func newOllama(p config.LLMProviderConfig) *ollama.Client {
	return ollama.New(ollama.Config{
		BaseURL:       p.BaseURL,
		ThinkingModel: p.ThinkingModel,
		TaskModel:     p.TaskModel,
		Timeout:       p.Timeout,
	})
}

func newOpenRouter(p config.LLMProviderConfig) *openaicompat.Client {
	c := compatConfig("openrouter", "OpenRouter", p)
	c.Headers = openaicompat.OpenRouterHeaders("")
	return openaicompat.New(c)
}

func newLMStudio(p config.LLMProviderConfig) *lmstudio.Client {
	return lmstudio.New(lmstudio.Config{
		BaseURL:       p.BaseURL,
		ThinkingModel: p.ThinkingModel,
		TaskModel:     p.TaskModel,
		MaxTokens:     p.MaxTokens,
		Temperature:   p.Temperature,
		Timeout:       p.Timeout,
	})
}

func compat(name, display string, p config.LLMProviderConfig) *openaicompat.Client {
	return openaicompat.New(compatConfig(name, display, p))
}

func compatConfig(name, display string, p config.LLMProviderConfig) openaicompat.Config {
	return openaicompat.Config{
		Name:          name,
		DisplayName:   display,
		BaseURL:       p.BaseURL,
		APIKey:        p.APIKey,
		RequireKey:    true,
		ThinkingModel: p.ThinkingModel,
		TaskModel:     p.TaskModel,
		MaxTokens:     p.MaxTokens,
		Temperature:   p.Temperature,
		Timeout:       p.Timeout,
	}
}
