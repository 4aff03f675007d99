package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/openresearch/pkg/provider"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div class="results">
  <div class="result results_links web-result">
    <h2 class="result__title"><a class="result__a" href="/l/?uddg=x">Go <b>Programming</b> Language</a></h2>
    <a class="result__url" href="/l/?uddg=x"> go.dev... </a>
    <a class="result__snippet">Go is an <b>open source</b> language.</a>
  </div>
  <div class="result">
    <h2 class="result__title"> </h2>
    <a class="result__url">skipped.example</a>
  </div>
  <div class="result">
    <h2 class="result__title">No Snippet</h2>
  </div>
</div>
</body></html>`

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/html" {
			t.Errorf("path = %q, want /html", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("kl"); got != "us-en" {
			t.Errorf("kl = %q, want us-en", got)
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/5.0") {
			t.Errorf("User-Agent = %q, want browser UA", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(resultsPage))
	}))
	defer server.Close()

	hits, err := New(Config{BaseURL: server.URL}).Search(context.Background(), "golang", provider.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2 (untitled block skipped): %+v", len(hits), hits)
	}
	if hits[0].Title != "Go Programming Language" {
		t.Errorf("hits[0].Title = %q", hits[0].Title)
	}
	if hits[0].URL != "go.dev" {
		t.Errorf("hits[0].URL = %q, want dots and spaces trimmed", hits[0].URL)
	}
	if hits[0].Snippet == nil || !strings.Contains(*hits[0].Snippet, "open source") {
		t.Errorf("hits[0].Snippet = %v", hits[0].Snippet)
	}
	if hits[1].Title != "No Snippet" || hits[1].URL != "" || hits[1].Snippet == nil || *hits[1].Snippet != "" {
		t.Errorf("hits[1] = %+v", hits[1])
	}
}

func TestSearchCapAppliesToBlocks(t *testing.T) {
	var page strings.Builder
	page.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&page, `<div class="result"><h2 class="result__title">T%d</h2></div>`, i)
	}
	page.WriteString("</body></html>")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("kl"); got != "de-de" {
			t.Errorf("kl = %q, want de-de", got)
		}
		w.Write([]byte(page.String()))
	}))
	defer server.Close()

	s := New(Config{BaseURL: server.URL, Region: "de-de", Results: 4})
	hits, err := s.Search(context.Background(), "q", provider.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 4 {
		t.Errorf("len(hits) = %d, want 4", len(hits))
	}
	if hits[3].Title != "T3" {
		t.Errorf("hits[3].Title = %q, want T3", hits[3].Title)
	}
}

func TestSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>No results.</p></body></html>`))
	}))
	defer server.Close()

	hits, err := New(Config{BaseURL: server.URL}).Search(context.Background(), "q", provider.SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("len(hits) = %d, want 0", len(hits))
	}
}

func TestSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}).Search(context.Background(), "q", provider.SearchOptions{})
	if !provider.IsProviderError(err) {
		t.Errorf("error = %v, want provider error", err)
	}
}
