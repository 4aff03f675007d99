// Package searxng implements a Searcher backed by a SearXNG instance's JSON
// API.
package searxng

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/provider"
)

// Name is the provider identifier.
const Name = "searxng"

// htmlTagRegex matches HTML tags for stripping from titles and snippets.
var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// Config holds the SearXNG adapter settings.
type Config struct {
	BaseURL    string
	Categories string
	Language   string
	Results    int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Searcher queries /search?format=json.
type Searcher struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

var _ provider.Searcher = (*Searcher)(nil)

// New creates a SearXNG searcher.
func New(cfg Config) *Searcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.Categories == "" {
		cfg.Categories = "general"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Results <= 0 {
		cfg.Results = 8
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Searcher{cfg: cfg, baseURL: strings.TrimRight(cfg.BaseURL, "/"), httpClient: hc}
}

// Name returns the provider identifier.
func (s *Searcher) Name() string { return Name }

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content *string `json:"content"`
}

// Search runs the query and returns at most the configured number of hits.
// opts.Language and opts.MaxResults override the configured values when set.
func (s *Searcher) Search(ctx context.Context, query string, opts provider.SearchOptions) ([]api.SearchHit, error) {
	lang := s.cfg.Language
	if opts.Language != "" {
		lang = opts.Language
	}
	limit := s.cfg.Results
	if opts.MaxResults > 0 {
		limit = opts.MaxResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("language", lang)
	params.Set("categories", s.cfg.Categories)
	params.Set("safesearch", "1")
	searchURL := s.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &provider.Error{Provider: Name, Op: "search", Message: "failed to create HTTP request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	debug.Log("search", "searxng request", "query", query, "language", lang, "limit", limit)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, provider.NetworkError(Name, "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.HTTPError(Name, "search", resp)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, provider.DecodeError(Name, "search", err)
	}

	hits := make([]api.SearchHit, 0, min(len(sr.Results), limit))
	for i, r := range sr.Results {
		if i >= limit {
			break
		}
		hits = append(hits, toHit(r))
	}
	debug.Log("search", "searxng response", "query", query, "results", len(sr.Results), "returned", len(hits))
	return hits, nil
}

func toHit(r searchResult) api.SearchHit {
	title := stripHTML(r.Title)
	if title == "" {
		title = r.URL
	}
	if title == "" {
		title = "Untitled"
	}
	hit := api.SearchHit{Title: title, URL: r.URL}
	if r.Content != nil {
		snippet := stripHTML(*r.Content)
		hit.Snippet = &snippet
	}
	return hit
}

// stripHTML removes HTML tags from text.
func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagRegex.ReplaceAllString(s, ""))
}
