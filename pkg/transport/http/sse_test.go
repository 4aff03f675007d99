package http

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/openresearch/pkg/api"
)

func TestWriteEventSSEFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	sse := newSSEWriter(rec)

	if err := sse.WriteEvent(progressEvent, map[string]string{"status": "searching"}, false); err != nil {
		t.Fatalf("WriteEvent error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	want := "event: progress\ndata: {\"status\":\"searching\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestWriteEventFinal(t *testing.T) {
	rec := httptest.NewRecorder()
	sse := newSSEWriter(rec)

	if err := sse.WriteEvent(progressEvent, "done", true); err != nil {
		t.Fatalf("WriteEvent error: %v", err)
	}
	if !strings.HasSuffix(rec.Body.String(), "data: [DONE]\n\n") {
		t.Errorf("missing [DONE] in %q", rec.Body.String())
	}
	if err := sse.WriteEvent(progressEvent, "again", false); err == nil {
		t.Error("expected error writing after the final event")
	}
	if err := sse.KeepAlive(); err != nil {
		t.Errorf("KeepAlive after final event: %v", err)
	}
}

func TestKeepAlive(t *testing.T) {
	rec := httptest.NewRecorder()
	sse := newSSEWriter(rec)
	if err := sse.KeepAlive(); err != nil {
		t.Fatalf("KeepAlive error: %v", err)
	}
	if got := rec.Body.String(); got != ": keep-alive\n\n" {
		t.Errorf("body = %q", got)
	}
}

// readEvents collects the data payloads of an SSE stream until [DONE].
func readEvents(t *testing.T, sc *bufio.Scanner, n int) []string {
	t.Helper()
	var out []string
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		out = append(out, data)
		if data == "[DONE]" || len(out) == n {
			break
		}
	}
	return out
}

func TestEventsStream(t *testing.T) {
	eng := newMockEngine(&api.Task{ID: taskID, Status: api.TaskStatusSearching, Message: "Executing web searches"})
	eng.updates = make(chan *api.Task, 2)
	srv := httptest.NewServer(NewAdapter(eng, nil, DefaultConfig()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/research/" + taskID + "/events")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	first := readEvents(t, sc, 1)
	if len(first) != 1 {
		t.Fatalf("events = %v", first)
	}
	var snap api.TaskResponse
	if err := json.Unmarshal([]byte(first[0]), &snap); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if snap.Status != api.TaskStatusSearching {
		t.Errorf("first event status = %q", snap.Status)
	}

	eng.updates <- &api.Task{ID: taskID, Status: api.TaskStatusReporting, Message: "Compiling report"}
	eng.updates <- &api.Task{ID: taskID, Status: api.TaskStatusDone, Message: "Completed"}

	rest := readEvents(t, sc, 0)
	if len(rest) != 3 || rest[2] != "[DONE]" {
		t.Fatalf("events = %v", rest)
	}
	if !strings.Contains(rest[1], `"status":"done"`) {
		t.Errorf("last event = %s", rest[1])
	}
}

func TestEventsTerminalTask(t *testing.T) {
	eng := newMockEngine(&api.Task{ID: taskID, Status: api.TaskStatusError, Message: "Failed: boom"})
	srv := httptest.NewServer(NewAdapter(eng, nil, DefaultConfig()).Handler())
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/api/research/" + taskID + "/events")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	events := readEvents(t, bufio.NewScanner(resp.Body), 0)
	if len(events) != 2 || events[1] != "[DONE]" {
		t.Errorf("events = %v", events)
	}
}

func TestEventsUnknownTask(t *testing.T) {
	a := NewAdapter(newMockEngine(), nil, DefaultConfig())
	rec := doRequest(t, a.Handler(), http.MethodGet, "/api/research/"+taskID+"/events", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestEventsFlushThroughMiddlewareChain(t *testing.T) {
	eng := newMockEngine(&api.Task{ID: taskID, Status: api.TaskStatusAwaitingConfirmation, Message: "Waiting for search query confirmation"})
	srv := httptest.NewServer(NewServer(eng, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/research/" + taskID + "/events")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	// The task stays open, so the first event only arrives if it was flushed.
	got := make(chan []string, 1)
	go func() {
		got <- readEvents(t, bufio.NewScanner(resp.Body), 1)
	}()
	select {
	case events := <-got:
		if len(events) != 1 || !strings.Contains(events[0], `"status":"awaiting_confirmation"`) {
			t.Errorf("events = %v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first event was not flushed to the client")
	}
}
