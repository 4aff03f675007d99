package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error is returned by adapters for transport, status and credential
// failures. StatusCode is zero when no HTTP response was received.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Op != "" {
		b.WriteString(" " + e.Op)
	}
	b.WriteString(": ")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "HTTP %d: ", e.StatusCode)
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// IsProviderError reports whether err is or wraps an *Error.
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// ErrMissingKey builds the error reported when a backend needs an API key
// and none is configured.
func ErrMissingKey(provider, display string) *Error {
	return &Error{Provider: provider, Message: display + " API key is required"}
}

// NetworkError wraps a failure to reach the backend.
func NetworkError(provider, op string, err error) *Error {
	return &Error{Provider: provider, Op: op, Message: "backend connection error", Err: err}
}

// DecodeError wraps a failure to parse a backend response.
func DecodeError(provider, op string, err error) *Error {
	return &Error{Provider: provider, Op: op, Message: "failed to parse backend response", Err: err}
}

// HTTPError converts a non-2xx response into an *Error. The body is read
// (bounded) for an error message in either the {"error":{"message":...}} or
// the {"error":"..."} shape.
func HTTPError(provider, op string, resp *http.Response) *Error {
	msg := ExtractErrorMessage(resp.Body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Provider: provider, Op: op, StatusCode: resp.StatusCode, Message: msg}
}

// ExtractErrorMessage tries to find an error message in a JSON error body.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	return messageFromJSON(data)
}

func messageFromJSON(data []byte) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	if len(env.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if json.Unmarshal(env.Error, &s) == nil && s != "" {
			return s
		}
	}
	return env.Message
}
