package http

import (
	"context"
	"net"
	gohttp "net/http"
	"testing"
	"time"

	"github.com/rhuss/openresearch/pkg/transport"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	return ln
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	srv := NewServer(newMockEngine(), nil)
	ln := listen(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeOn(ctx, ln) }()

	resp, err := gohttp.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != gohttp.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, gohttp.StatusOK)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS header set without Origin")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeOn() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	release := make(chan struct{})
	slow := func(next gohttp.Handler) gohttp.Handler {
		return gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
			<-release
			next.ServeHTTP(w, r)
		})
	}
	srv := NewServer(newMockEngine(), nil,
		WithShutdownTimeout(5*time.Second),
		WithMiddleware(slow),
	)
	ln := listen(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeOn(ctx, ln) }()

	responseCh := make(chan int, 1)
	go func() {
		resp, err := gohttp.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			responseCh <- 0
			return
		}
		resp.Body.Close()
		responseCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	if status := <-responseCh; status != gohttp.StatusOK {
		t.Errorf("in-flight request status = %d, want %d", status, gohttp.StatusOK)
	}
	if err := <-done; err != nil {
		t.Errorf("ServeOn() error: %v", err)
	}
}

func TestServerMiddlewareOrder(t *testing.T) {
	var sawRequestID string
	marker := transport.Middleware(func(next gohttp.Handler) gohttp.Handler {
		return gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
			sawRequestID = transport.RequestIDFromContext(r.Context())
			next.ServeHTTP(w, r)
		})
	})
	srv := NewServer(newMockEngine(), nil, WithMiddleware(marker))

	rec := doRequest(t, srv.Handler(), gohttp.MethodGet, "/health", "")
	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if sawRequestID == "" || sawRequestID != rec.Header().Get("X-Request-ID") {
		t.Errorf("custom middleware saw request ID %q, response has %q", sawRequestID, rec.Header().Get("X-Request-ID"))
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	srv := NewServer(newMockEngine(), nil,
		WithAddr(":9999"),
		WithMaxBodySize(1024),
		WithShutdownTimeout(10*time.Second),
		WithTimeouts(5*time.Second, 0),
		WithAllowedOrigins([]string{"https://app.example"}),
		WithMetricsPath(""),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.config.Addr, ":9999")
	}
	if srv.config.MaxBodySize != 1024 {
		t.Errorf("max body size = %d, want %d", srv.config.MaxBodySize, 1024)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
	if srv.httpServer.ReadTimeout != 5*time.Second || srv.httpServer.WriteTimeout != 0 {
		t.Errorf("timeouts = %v/%v", srv.httpServer.ReadTimeout, srv.httpServer.WriteTimeout)
	}

	rec := doRequest(t, srv.Handler(), gohttp.MethodGet, "/metrics", "")
	if rec.Code != gohttp.StatusNotFound {
		t.Errorf("metrics status = %d, want 404 when disabled", rec.Code)
	}
}
