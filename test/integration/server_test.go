package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/openresearch/pkg/api"
)

func TestHealthEndpointNoAuth(t *testing.T) {
	resp := do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); !strings.Contains(body, `"ok"`) {
		t.Errorf("body = %q", body)
	}
}

func TestMetricsEndpointNoAuth(t *testing.T) {
	// Produce at least one recorded request first.
	do(t, http.MethodGet, "/health", "", nil).Body.Close()

	resp := do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, resp, http.StatusOK)
	body := readBody(t, resp)
	for _, want := range []string{"openresearch_requests_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want int
	}{
		{"no credentials", "", http.StatusUnauthorized},
		{"wrong key", "not-a-key", http.StatusUnauthorized},
		{"valid key", aliceKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodGet, "/api/settings", tt.key, nil)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSettings(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/settings", aliceKey, nil)
	expectStatus(t, resp, http.StatusOK)
	s := decode[map[string]any](t, resp)
	if s["llm_provider"] != "ollama" || s["search_provider"] != "searxng" {
		t.Errorf("providers = %v / %v", s["llm_provider"], s["search_provider"])
	}
	if s["ollama_base_url"] != testEnv.LLM.URL {
		t.Errorf("ollama_base_url = %v, want %s", s["ollama_base_url"], testEnv.LLM.URL)
	}

	resp = do(t, http.MethodPost, "/api/settings", aliceKey, map[string]any{"searxng_results": -1})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestListModels(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/settings/ollama/models?force_refresh=true", aliceKey, nil)
	expectStatus(t, resp, http.StatusOK)
	got := decode[struct {
		Models []string `json:"models"`
	}](t, resp)
	if strings.Join(got.Models, ",") != "llama3:8b,qwen2:7b" {
		t.Errorf("models = %v", got.Models)
	}

	resp = do(t, http.MethodGet, "/api/settings/mistral/models", aliceKey, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

// bearerTransport adds an API key to every MCP request.
type bearerTransport struct{ key string }

func (b bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.key)
	return http.DefaultTransport.RoundTrip(r)
}

func TestMCPStartShowsOwnerTasksOnly(t *testing.T) {
	client := mcp.NewClient(&mcp.Implementation{Name: "integration", Version: "1.0.0"}, nil)
	session, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{
		Endpoint:   testEnv.BaseURL() + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{key: bobKey}},
	}, nil)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "research_start",
		Arguments: map[string]any{"topic": "no questions please"},
	})
	if err != nil || res.IsError {
		t.Fatalf("research_start: err=%v result=%+v", err, res)
	}
	var started api.TaskResponse
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &started); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	id := started.TaskID

	// Visible to bob over HTTP, hidden from alice.
	resp := do(t, http.MethodGet, "/api/research/"+id, bobKey, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	resp = do(t, http.MethodGet, "/api/research/"+id, aliceKey, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
