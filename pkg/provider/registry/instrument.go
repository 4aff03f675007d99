package registry

import (
	"context"
	"time"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/observability"
	"github.com/rhuss/openresearch/pkg/provider"
)

// Instrument wraps r so every call is counted and timed.
func Instrument(r provider.Reasoner) provider.Reasoner {
	if r == nil {
		return nil
	}
	if _, ok := r.(*instrumentedReasoner); ok {
		return r
	}
	return &instrumentedReasoner{inner: r}
}

type instrumentedReasoner struct {
	inner provider.Reasoner
}

func (i *instrumentedReasoner) Name() string { return i.inner.Name() }

func (i *instrumentedReasoner) Think(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := i.inner.Think(ctx, prompt)
	observability.ObserveProviderCall(i.inner.Name(), "think", start, err)
	return out, err
}

func (i *instrumentedReasoner) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := i.inner.Complete(ctx, prompt)
	observability.ObserveProviderCall(i.inner.Name(), "complete", start, err)
	return out, err
}

// InstrumentSearcher wraps s so every query is counted along with the
// number of hits returned.
func InstrumentSearcher(s provider.Searcher) provider.Searcher {
	if s == nil {
		return nil
	}
	if _, ok := s.(*instrumentedSearcher); ok {
		return s
	}
	return &instrumentedSearcher{inner: s}
}

type instrumentedSearcher struct {
	inner provider.Searcher
}

func (i *instrumentedSearcher) Name() string { return i.inner.Name() }

func (i *instrumentedSearcher) Search(ctx context.Context, query string, opts provider.SearchOptions) ([]api.SearchHit, error) {
	hits, err := i.inner.Search(ctx, query, opts)
	observability.ObserveSearch(i.inner.Name(), len(hits), err)
	return hits, err
}

// InstrumentLister wraps a model lister under the given provider label.
func InstrumentLister(name string, l provider.ModelLister) provider.ModelLister {
	return &instrumentedLister{name: name, inner: l}
}

type instrumentedLister struct {
	name  string
	inner provider.ModelLister
}

func (i *instrumentedLister) ListModels(ctx context.Context, forceRefresh bool) ([]string, error) {
	start := time.Now()
	models, err := i.inner.ListModels(ctx, forceRefresh)
	observability.ObserveProviderCall(i.name, "list_models", start, err)
	return models, err
}
