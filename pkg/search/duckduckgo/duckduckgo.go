// Package duckduckgo implements a Searcher that scrapes the DuckDuckGo HTML
// endpoint. No API key is needed.
package duckduckgo

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/provider"
)

// Name is the provider identifier.
const Name = "duckduckgo"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config holds the DuckDuckGo adapter settings.
type Config struct {
	BaseURL    string
	Region     string
	Results    int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Searcher queries {base}/html.
type Searcher struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

var _ provider.Searcher = (*Searcher)(nil)

// New creates a DuckDuckGo searcher.
func New(cfg Config) *Searcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://duckduckgo.com"
	}
	if cfg.Region == "" {
		cfg.Region = "us-en"
	}
	if cfg.Results <= 0 {
		cfg.Results = 8
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Searcher{cfg: cfg, baseURL: strings.TrimRight(cfg.BaseURL, "/"), httpClient: hc}
}

// Name returns the provider identifier.
func (s *Searcher) Name() string { return Name }

// Search runs the query. opts.Language, when set, is used as the kl region.
func (s *Searcher) Search(ctx context.Context, query string, opts provider.SearchOptions) ([]api.SearchHit, error) {
	region := s.cfg.Region
	if opts.Language != "" {
		region = opts.Language
	}
	limit := s.cfg.Results
	if opts.MaxResults > 0 {
		limit = opts.MaxResults
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("kl", region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/html?"+params.Encode(), nil)
	if err != nil {
		return nil, &provider.Error{Provider: Name, Op: "search", Message: "failed to create HTTP request", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	debug.Log("search", "duckduckgo request", "query", query, "region", region, "limit", limit)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, provider.NetworkError(Name, "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.HTTPError(Name, "search", resp)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, provider.DecodeError(Name, "search", err)
	}

	hits := extractHits(doc, limit)
	debug.Log("search", "duckduckgo response", "query", query, "returned", len(hits))
	return hits, nil
}

// extractHits walks the .result blocks. The cap applies to blocks, so
// blocks without a title reduce the number of hits returned.
func extractHits(doc *html.Node, limit int) []api.SearchHit {
	blocks := findAll(doc, "result")
	if len(blocks) > limit {
		blocks = blocks[:limit]
	}

	hits := make([]api.SearchHit, 0, len(blocks))
	for _, b := range blocks {
		titleNode := findFirst(b, "result__title")
		if titleNode == nil {
			continue
		}
		title := textOf(titleNode)
		if title == "" {
			continue
		}
		var link, snippet string
		if n := findFirst(b, "result__url"); n != nil {
			link = strings.Trim(textOf(n), ". \t\n")
		}
		if n := findFirst(b, "result__snippet"); n != nil {
			snippet = textOf(n)
		}
		hits = append(hits, api.SearchHit{Title: title, URL: link, Snippet: &snippet})
	}
	return hits
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// findAll returns all descendants of n carrying class, in document order.
func findAll(n *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if hasClass(c, class) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasClass(c, class) {
			return c
		}
		if found := findFirst(c, class); found != nil {
			return found
		}
	}
	return nil
}

// textOf returns the text below n with runs of whitespace collapsed.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
