// Package transport holds the HTTP plumbing shared by the research API
// and the MCP endpoint: the middleware chain and JSON error responses.
//
// # Middleware
//
// Middleware wraps an http.Handler. Built-in middleware provides panic
// recovery, request ID assignment (X-Request-ID), CORS for the configured
// origins and structured request logging via log/slog. Chain composes them
// so that the first middleware is the outermost wrapper.
package transport
