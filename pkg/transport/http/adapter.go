package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/engine"
	"github.com/rhuss/openresearch/pkg/observability"
	"github.com/rhuss/openresearch/pkg/provider/registry"
	"github.com/rhuss/openresearch/pkg/render"
	"github.com/rhuss/openresearch/pkg/storage"
	"github.com/rhuss/openresearch/pkg/transport"
)

// Engine is the subset of the orchestration engine served over HTTP.
type Engine interface {
	Start(ctx context.Context, topic, depth string) (string, error)
	Get(ctx context.Context, id string) (*api.Task, error)
	Confirm(ctx context.Context, id string, queries []api.SearchQuery) bool
	Clarify(ctx context.Context, id string, answers []string) bool
	Subscribe(ctx context.Context, id string) (<-chan *api.Task, func(), error)
}

// Settings is the runtime provider settings surface.
type Settings interface {
	Settings() map[string]any
	Update(patch map[string]json.RawMessage) error
	Models(ctx context.Context, provider string, forceRefresh bool) ([]string, error)
}

var (
	_ Engine   = (*engine.Engine)(nil)
	_ Settings = (*registry.Manager)(nil)
)

// Adapter serves the research and settings API over HTTP.
type Adapter struct {
	engine   Engine
	settings Settings // nil disables the settings routes
	mux      *http.ServeMux
	config   Config
	handler  http.Handler
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	// MetricsPath mounts the Prometheus handler. Empty disables it.
	MetricsPath string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
		MetricsPath: "/metrics",
	}
}

// NewAdapter creates an HTTP adapter. Middleware is applied in the given
// order around the router; request metrics always wrap the router directly
// so the matched route pattern is available.
func NewAdapter(eng Engine, settings Settings, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	a := &Adapter{
		engine:   eng,
		settings: settings,
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("GET /health", a.handleHealth)
	a.mux.HandleFunc("POST /api/research/start", a.handleStart)
	a.mux.HandleFunc("GET /api/research/{id}", a.handleGet)
	a.mux.HandleFunc("GET /api/research/{id}/report.html", a.handleReport)
	a.mux.HandleFunc("GET /api/research/{id}/events", a.handleEvents)
	a.mux.HandleFunc("POST /api/research/{id}/confirm", a.handleConfirm)
	a.mux.HandleFunc("POST /api/research/{id}/clarify", a.handleClarify)

	if settings != nil {
		a.mux.HandleFunc("GET /api/settings", a.handleGetSettings)
		a.mux.HandleFunc("POST /api/settings", a.handleUpdateSettings)
		a.mux.HandleFunc("GET /api/settings/{provider}/models", a.handleListModels)
	}
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	mws := append(append([]transport.Middleware{}, middlewares...), observability.MetricsMiddleware)
	a.handler = transport.Chain(mws...)(a.mux)
	return a
}

// Mount registers an additional handler on the router, behind the same
// middleware as the API routes.
func (a *Adapter) Mount(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter, middleware included.
func (a *Adapter) Handler() http.Handler {
	return a.handler
}

func (a *Adapter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStart handles POST /api/research/start.
func (a *Adapter) handleStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartRequest
	if !a.decode(w, r, &req) {
		return
	}
	if apiErr := api.ValidateStartRequest(&req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	id, err := a.engine.Start(r.Context(), req.Topic, req.Depth)
	if err != nil {
		if errors.Is(err, engine.ErrShuttingDown) {
			transport.WriteAPIError(w, api.NewUnavailableError("server is shutting down"))
			return
		}
		slog.Error("starting research task failed", "error", err)
		transport.WriteAPIError(w, api.NewServerError(err.Error()))
		return
	}

	task, err := a.engine.Get(r.Context(), id)
	if err != nil {
		transport.WriteAPIError(w, api.NewServerError(err.Error()))
		return
	}
	transport.WriteJSON(w, http.StatusOK, taskResponse(task))
}

// handleGet handles GET /api/research/{id}.
func (a *Adapter) handleGet(w http.ResponseWriter, r *http.Request) {
	task, ok := a.lookup(w, r)
	if !ok {
		return
	}
	transport.WriteJSON(w, http.StatusOK, taskResponse(task))
}

// handleReport handles GET /api/research/{id}/report.html.
func (a *Adapter) handleReport(w http.ResponseWriter, r *http.Request) {
	task, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if task.Status != api.TaskStatusDone || task.ReportMarkdown == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("Report not available"))
		return
	}

	page, err := render.Page(task.Topic, *task.ReportMarkdown)
	if err != nil {
		transport.WriteAPIError(w, api.NewServerError(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// handleConfirm handles POST /api/research/{id}/confirm.
func (a *Adapter) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req api.QueryConfirmation
	if !a.decode(w, r, &req) {
		return
	}
	if apiErr := api.ValidateQueryConfirmation(&req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	id := r.PathValue("id")
	if !api.ValidateTaskID(id) || !a.engine.Confirm(r.Context(), id, req.ApprovedQueries) {
		transport.WriteAPIError(w, api.NewNotFoundError("Task not found or not awaiting confirmation"))
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Queries confirmed, continuing research"})
}

// handleClarify handles POST /api/research/{id}/clarify.
func (a *Adapter) handleClarify(w http.ResponseWriter, r *http.Request) {
	var req api.ClarificationResponse
	if !a.decode(w, r, &req) {
		return
	}
	if apiErr := api.ValidateClarificationResponse(&req); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	id := r.PathValue("id")
	if !api.ValidateTaskID(id) || !a.engine.Clarify(r.Context(), id, req.Answers) {
		transport.WriteAPIError(w, api.NewNotFoundError("Task not found or not awaiting clarification"))
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Clarifications received, creating enhanced search plan"})
}

// handleGetSettings handles GET /api/settings.
func (a *Adapter) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, a.settings.Settings())
}

// handleUpdateSettings handles POST /api/settings.
func (a *Adapter) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if !a.decode(w, r, &patch) {
		return
	}
	if err := a.settings.Update(patch); err != nil {
		transport.WriteAPIError(w, api.NewInvalidRequestError("", err.Error()))
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Settings updated"})
}

// handleListModels handles GET /api/settings/{provider}/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	force := false
	if v := r.URL.Query().Get("force_refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			transport.WriteAPIError(w, api.NewInvalidRequestError("force_refresh", "force_refresh must be a boolean"))
			return
		}
		force = b
	}

	models, err := a.settings.Models(r.Context(), r.PathValue("provider"), force)
	if err != nil {
		if errors.Is(err, registry.ErrUnknownLister) {
			transport.WriteAPIError(w, api.NewNotFoundError(err.Error()))
			return
		}
		transport.WriteAPIError(w, api.NewServerError("Failed to fetch models: "+err.Error()))
		return
	}
	if models == nil {
		models = []string{}
	}
	transport.WriteJSON(w, http.StatusOK, map[string][]string{"models": models})
}

// lookup resolves the {id} path value to a visible task, writing a 404 when
// there is none.
func (a *Adapter) lookup(w http.ResponseWriter, r *http.Request) (*api.Task, bool) {
	id := r.PathValue("id")
	if !api.ValidateTaskID(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("Task not found"))
		return nil, false
	}
	task, err := a.engine.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("Task not found"))
		} else {
			transport.WriteAPIError(w, api.NewServerError(err.Error()))
		}
		return nil, false
	}
	return task, true
}

// decode reads a JSON request body into v, writing the error response and
// returning false on failure.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}

func taskResponse(t *api.Task) api.TaskResponse {
	return api.TaskResponse{TaskID: t.ID, Status: t.Status, Progress: t}
}
