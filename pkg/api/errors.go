package api

import "fmt"

// ErrorType is the category of an API error. The HTTP layer derives the
// status code from it.
type ErrorType string

const (
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeUnauthenticated ErrorType = "unauthenticated"
	ErrorTypeUnavailable     ErrorType = "unavailable"
	ErrorTypeServerError     ErrorType = "server_error"
)

// APIError is the error payload of every failed API call.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse is the top-level JSON body of an error.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError reports a bad request field.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Param: param, Message: message}
}

// NewNotFoundError reports an unknown task, or a task that is not in the
// state the call requires.
func NewNotFoundError(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// NewUnauthenticatedError reports missing or invalid credentials.
func NewUnauthenticatedError(message string) *APIError {
	return &APIError{Type: ErrorTypeUnauthenticated, Message: message}
}

// NewUnavailableError reports that the engine no longer accepts tasks.
func NewUnavailableError(message string) *APIError {
	return &APIError{Type: ErrorTypeUnavailable, Message: message}
}

// NewServerError reports an internal failure.
func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}
