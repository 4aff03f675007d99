package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/engine"
	"github.com/rhuss/openresearch/pkg/provider/registry"
	"github.com/rhuss/openresearch/pkg/storage"
)

const taskID = "0b6e4c1e-8a4f-4f0e-9d59-2a7f3f1c9e11"

// mockEngine is a configurable Engine for testing.
type mockEngine struct {
	mu       sync.Mutex
	tasks    map[string]*api.Task
	startErr error
	gateOpen bool
	updates  chan *api.Task

	confirmed []api.SearchQuery
	answers   []string
}

func newMockEngine(tasks ...*api.Task) *mockEngine {
	m := &mockEngine{tasks: make(map[string]*api.Task)}
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
	return m
}

func (m *mockEngine) Start(_ context.Context, topic, depth string) (string, error) {
	if m.startErr != nil {
		return "", m.startErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[taskID] = &api.Task{
		ID:      taskID,
		Topic:   topic,
		Depth:   api.NormalizeDepth(depth),
		Status:  api.TaskStatusStarting,
		Message: "Generating search plan",
		Steps:   []api.SearchStep{},
	}
	return taskID, nil
}

func (m *mockEngine) Get(_ context.Context, id string) (*api.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

func (m *mockEngine) Confirm(_ context.Context, id string, queries []api.SearchQuery) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok || !m.gateOpen {
		return false
	}
	m.confirmed = queries
	return true
}

func (m *mockEngine) Clarify(_ context.Context, id string, answers []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok || !m.gateOpen {
		return false
	}
	m.answers = answers
	return true
}

func (m *mockEngine) Subscribe(_ context.Context, id string) (<-chan *api.Task, func(), error) {
	if _, err := m.Get(context.Background(), id); err != nil {
		return nil, nil, err
	}
	if m.updates == nil {
		m.updates = make(chan *api.Task)
	}
	return m.updates, func() {}, nil
}

// mockSettings is a configurable Settings for testing.
type mockSettings struct {
	values    map[string]any
	updateErr error
	patch     map[string]json.RawMessage
	models    []string
	modelsErr error
	force     bool
}

func (m *mockSettings) Settings() map[string]any { return m.values }

func (m *mockSettings) Update(patch map[string]json.RawMessage) error {
	m.patch = patch
	return m.updateErr
}

func (m *mockSettings) Models(_ context.Context, _ string, force bool) ([]string, error) {
	m.force = force
	return m.models, m.modelsErr
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	a := NewAdapter(newMockEngine(), nil, DefaultConfig())
	rec := doRequest(t, a.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestStart(t *testing.T) {
	a := NewAdapter(newMockEngine(), nil, DefaultConfig())

	rec := doRequest(t, a.Handler(), http.MethodPost, "/api/research/start", `{"topic":"quantum computing","depth":"deep"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decodeBody[api.TaskResponse](t, rec)
	if got.TaskID != taskID || got.Status != api.TaskStatusStarting {
		t.Errorf("response = %+v", got)
	}
	if got.Progress == nil || got.Progress.Depth != api.DepthDeep || got.Progress.Message != "Generating search plan" {
		t.Errorf("progress = %+v", got.Progress)
	}
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		ctype    string
		startErr error
		want     int
	}{
		{"empty topic", `{"topic":"  "}`, "application/json", nil, http.StatusBadRequest},
		{"bad depth", `{"topic":"x","depth":"extreme"}`, "application/json", nil, http.StatusBadRequest},
		{"invalid json", `{"topic":`, "application/json", nil, http.StatusBadRequest},
		{"wrong content type", `{"topic":"x"}`, "text/plain", nil, http.StatusUnsupportedMediaType},
		{"too large", `{"topic":"` + strings.Repeat("a", 2048) + `"}`, "application/json", nil, http.StatusRequestEntityTooLarge},
		{"shutting down", `{"topic":"x"}`, "application/json", engine.ErrShuttingDown, http.StatusServiceUnavailable},
		{"store failure", `{"topic":"x"}`, "application/json", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newMockEngine()
			eng.startErr = tt.startErr
			a := NewAdapter(eng, nil, Config{MaxBodySize: 1024})

			req := httptest.NewRequest(http.MethodPost, "/api/research/start", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.ctype)
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if got := decodeBody[api.ErrorResponse](t, rec); got.Error == nil {
				t.Error("missing error payload")
			}
		})
	}
}

func TestGet(t *testing.T) {
	task := &api.Task{ID: taskID, Topic: "t", Status: api.TaskStatusSearching, Message: "Searching (1/2): a"}
	a := NewAdapter(newMockEngine(task), nil, DefaultConfig())

	rec := doRequest(t, a.Handler(), http.MethodGet, "/api/research/"+taskID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody[api.TaskResponse](t, rec)
	if got.Status != api.TaskStatusSearching || got.Progress.Message != "Searching (1/2): a" {
		t.Errorf("response = %+v", got)
	}

	for _, id := range []string{"not-a-uuid", "5d2b8f6e-0000-4000-8000-000000000000"} {
		rec := doRequest(t, a.Handler(), http.MethodGet, "/api/research/"+id, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", id, rec.Code)
		}
		if got := decodeBody[api.ErrorResponse](t, rec); got.Error.Message != "Task not found" {
			t.Errorf("message = %q", got.Error.Message)
		}
	}
}

func TestReport(t *testing.T) {
	report := "# Findings\n\nQuantum **advantage**."
	done := &api.Task{ID: taskID, Topic: "Quantum <computing>", Status: api.TaskStatusDone, ReportMarkdown: &report}
	pendingID := "9f0c2f7a-3e4b-4c5d-8e6f-7a8b9c0d1e2f"
	pending := &api.Task{ID: pendingID, Status: api.TaskStatusReporting}
	a := NewAdapter(newMockEngine(done, pending), nil, DefaultConfig())

	rec := doRequest(t, a.Handler(), http.MethodGet, "/api/research/"+taskID+"/report.html", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"<h1>Findings</h1>", "<strong>advantage</strong>", "<title>Quantum &lt;computing&gt;</title>"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	rec = doRequest(t, a.Handler(), http.MethodGet, "/api/research/"+pendingID+"/report.html", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unfinished report status = %d, want 404", rec.Code)
	}
}

func TestConfirmAndClarify(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		gateOpen bool
		want     int
		message  string
	}{
		{"confirm", "/confirm", `{"approved_queries":[{"query":"a"},{"query":"b","rationale":"r"}]}`, true,
			http.StatusOK, "Queries confirmed, continuing research"},
		{"confirm without gate", "/confirm", `{"approved_queries":[{"query":"a"}]}`, false,
			http.StatusNotFound, "Task not found or not awaiting confirmation"},
		{"confirm empty list", "/confirm", `{"approved_queries":[]}`, true,
			http.StatusBadRequest, "at least one query is required"},
		{"confirm blank query", "/confirm", `{"approved_queries":[{"query":" "}]}`, true,
			http.StatusBadRequest, "query must not be empty"},
		{"clarify", "/clarify", `{"answers":["last five years","experts"]}`, true,
			http.StatusOK, "Clarifications received, creating enhanced search plan"},
		{"clarify empty answers", "/clarify", `{"answers":[]}`, true,
			http.StatusOK, "Clarifications received, creating enhanced search plan"},
		{"clarify without gate", "/clarify", `{"answers":["x"]}`, false,
			http.StatusNotFound, "Task not found or not awaiting clarification"},
		{"clarify missing answers", "/clarify", `{}`, true,
			http.StatusBadRequest, "answers is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newMockEngine(&api.Task{ID: taskID})
			eng.gateOpen = tt.gateOpen
			a := NewAdapter(eng, nil, DefaultConfig())

			rec := doRequest(t, a.Handler(), http.MethodPost, "/api/research/"+taskID+tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			var msg string
			if rec.Code == http.StatusOK {
				msg = decodeBody[api.MessageResponse](t, rec).Message
			} else {
				msg = decodeBody[api.ErrorResponse](t, rec).Error.Message
			}
			if msg != tt.message {
				t.Errorf("message = %q, want %q", msg, tt.message)
			}
		})
	}
}

func TestConfirmPassesQueries(t *testing.T) {
	eng := newMockEngine(&api.Task{ID: taskID})
	eng.gateOpen = true
	a := NewAdapter(eng, nil, DefaultConfig())

	doRequest(t, a.Handler(), http.MethodPost, "/api/research/"+taskID+"/confirm",
		`{"approved_queries":[{"query":"a"},{"query":"b","rationale":"why"}]}`)

	if len(eng.confirmed) != 2 || eng.confirmed[1].Rationale == nil || *eng.confirmed[1].Rationale != "why" {
		t.Errorf("confirmed = %+v", eng.confirmed)
	}
}

func TestSettingsRoutes(t *testing.T) {
	settings := &mockSettings{
		values: map[string]any{"llm_provider": "openrouter", "openrouter_api_key": "****abcd"},
		models: []string{"m1", "m2"},
	}
	a := NewAdapter(newMockEngine(), settings, DefaultConfig())

	rec := doRequest(t, a.Handler(), http.MethodGet, "/api/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET settings status = %d", rec.Code)
	}
	if got := decodeBody[map[string]any](t, rec); got["openrouter_api_key"] != "****abcd" {
		t.Errorf("settings = %v", got)
	}

	rec = doRequest(t, a.Handler(), http.MethodPost, "/api/settings", `{"llm_provider":"ollama","ollama_task_model":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST settings status = %d", rec.Code)
	}
	if got := decodeBody[api.MessageResponse](t, rec); got.Message != "Settings updated" {
		t.Errorf("message = %q", got.Message)
	}
	if string(settings.patch["llm_provider"]) != `"ollama"` {
		t.Errorf("patch = %v", settings.patch)
	}

	settings.updateErr = errors.New("searxng_results must be an integer")
	rec = doRequest(t, a.Handler(), http.MethodPost, "/api/settings", `{"searxng_results":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad update status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, a.Handler(), http.MethodGet, "/api/settings/lmstudio/models?force_refresh=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("models status = %d", rec.Code)
	}
	if got := decodeBody[map[string][]string](t, rec); len(got["models"]) != 2 {
		t.Errorf("models = %v", got)
	}
	if !settings.force {
		t.Error("force_refresh not passed through")
	}
}

func TestListModelsErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		err     error
		want    int
		message string
	}{
		{"unknown provider", "", registry.ErrUnknownLister, http.StatusNotFound, ""},
		{"backend down", "", errors.New("connection refused"), http.StatusInternalServerError, "Failed to fetch models: connection refused"},
		{"bad flag", "?force_refresh=maybe", nil, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(newMockEngine(), &mockSettings{modelsErr: tt.err}, DefaultConfig())
			rec := doRequest(t, a.Handler(), http.MethodGet, "/api/settings/ollama/models"+tt.query, "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.message != "" {
				if got := decodeBody[api.ErrorResponse](t, rec); got.Error.Message != tt.message {
					t.Errorf("message = %q, want %q", got.Error.Message, tt.message)
				}
			}
		})
	}
}

func TestSettingsRoutesDisabled(t *testing.T) {
	a := NewAdapter(newMockEngine(), nil, DefaultConfig())
	rec := doRequest(t, a.Handler(), http.MethodGet, "/api/settings", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := NewAdapter(newMockEngine(), nil, DefaultConfig())
	doRequest(t, a.Handler(), http.MethodGet, "/health", "")

	rec := doRequest(t, a.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "openresearch_requests_total") {
		t.Error("metrics output missing openresearch_requests_total")
	}
}

func TestMount(t *testing.T) {
	a := NewAdapter(newMockEngine(), nil, DefaultConfig())
	a.Mount("/mcp", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := doRequest(t, a.Handler(), http.MethodPost, "/mcp", "")
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}
