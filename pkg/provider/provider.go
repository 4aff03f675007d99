package provider

import (
	"context"

	"github.com/rhuss/openresearch/pkg/api"
)

// Reasoner abstracts a text-generation backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Reasoner interface {
	// Name returns the backend identifier (e.g., "openrouter", "ollama").
	Name() string

	// Think answers a prompt with the higher-effort model. Used for
	// clarification and planning.
	Think(ctx context.Context, prompt string) (string, error)

	// Complete answers a prompt with the task model. Used for report writing.
	Complete(ctx context.Context, prompt string) (string, error)
}

// SearchOptions tunes a single search. Zero values select the adapter's
// configured defaults.
type SearchOptions struct {
	Language   string
	MaxResults int
}

// Searcher abstracts a web-search backend.
//
// Search returns at most the configured number of hits. An empty result is
// not an error; errors are reserved for transport and decoding failures.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOptions) ([]api.SearchHit, error)
}

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context, forceRefresh bool) ([]string, error)
}
