package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rhuss/openresearch/pkg/api"
	"github.com/rhuss/openresearch/pkg/debug"
	"github.com/rhuss/openresearch/pkg/storage"
	"github.com/rhuss/openresearch/pkg/transport"
)

// progressEvent is the SSE event type carrying a task snapshot.
const progressEvent = "progress"

// keepAliveInterval is how often an idle event stream sends a comment line.
var keepAliveInterval = 15 * time.Second

// sseWriter formats Server-Sent Events on an http.ResponseWriter.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	mu      sync.Mutex
	started bool
	done    bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// start sends the SSE headers and lifts the server write deadline, which
// would otherwise cut long-running streams.
func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	_ = s.rc.SetWriteDeadline(time.Time{})
	s.w.WriteHeader(http.StatusOK)
}

// WriteEvent sends one event:
//
//	event: {name}\n
//	data: {json}\n
//	\n
//
// When final is set it also sends "data: [DONE]" and refuses further writes.
func (s *sseWriter) WriteEvent(name string, v any, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return errors.New("cannot write event: stream is completed")
	}
	s.start()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if final {
		if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
			return fmt.Errorf("failed to write [DONE]: %w", err)
		}
		s.done = true
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// KeepAlive sends a comment line so proxies keep the connection open.
func (s *sseWriter) KeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.start()
	if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

// handleEvents handles GET /api/research/{id}/events. It sends the current
// snapshot, then one event per change until the task finishes or the
// client goes away.
func (a *Adapter) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateTaskID(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("Task not found"))
		return
	}

	ctx := r.Context()
	updates, cancel, err := a.engine.Subscribe(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("Task not found"))
		} else {
			transport.WriteAPIError(w, api.NewServerError(err.Error()))
		}
		return
	}
	defer cancel()

	sse := newSSEWriter(w)
	task, err := a.engine.Get(ctx, id)
	if err != nil {
		transport.WriteAPIError(w, api.NewServerError(err.Error()))
		return
	}
	if err := sse.WriteEvent(progressEvent, taskResponse(task), task.Status.IsTerminal()); err != nil || task.Status.IsTerminal() {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			debug.Log("transport", "event stream closed by client", "task_id", id)
			return
		case <-ticker.C:
			if err := sse.KeepAlive(); err != nil {
				return
			}
		case snap, ok := <-updates:
			if !ok {
				return
			}
			final := snap.Status.IsTerminal()
			if err := sse.WriteEvent(progressEvent, taskResponse(snap), final); err != nil {
				debug.Log("transport", "event stream write failed", "task_id", id, "error", err)
				return
			}
			if final {
				return
			}
		}
	}
}
