package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// APIError is a response that arrived with a non-2xx status. The body is
// preserved for callers that need to inspect it.
type APIError struct {
	StatusCode int            `json:"-"`
	Method     string         `json:"-"`
	Path       string         `json:"-"`
	Message    string         `json:"message,omitempty"`
	Body       []byte         `json:"-"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	target := strings.TrimSpace(e.Method + " " + e.Path)
	if e.Message != "" {
		if e.RequestID != "" {
			return fmt.Sprintf("api error: %s status=%d request_id=%s message=%s", target, e.StatusCode, e.RequestID, e.Message)
		}
		return fmt.Sprintf("api error: %s status=%d message=%s", target, e.StatusCode, e.Message)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("api error: %s status=%d request_id=%s", target, e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("api error: %s status=%d", target, e.StatusCode)
}

// NotFoundError indicates a 404: the task or document is unknown to the server.
type NotFoundError struct{ *APIError }

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.APIError.Error()) }
func (e *NotFoundError) Unwrap() error { return e.APIError }

// ServerError indicates 5xx errors from the document service.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("server error: %s", e.APIError.Error()) }
func (e *ServerError) Unwrap() error { return e.APIError }

// TimeoutError indicates no response arrived before the deadline.
type TimeoutError struct {
	Method string
	Path   string
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out: %s %s: %v", e.Method, e.Path, e.Err)
}
func (e *TimeoutError) Unwrap() error { return e.Err }

// NetworkError indicates the service could not be reached at all.
type NetworkError struct {
	Host string
	Err  error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("service unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("service unreachable: %v", e.Err)
}
func (e *NetworkError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries a 404 from the service.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTransport reports whether no response arrived (timeout or unreachable).
func IsTransport(err error) bool {
	var te *TimeoutError
	var ne *NetworkError
	return errors.As(err, &te) || errors.As(err, &ne)
}

// IsRetryable reports whether a GET that failed with err may be reissued.
func IsRetryable(err error) bool { return IsTransport(err) }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// classifyTransportError maps a failed round trip to Timeout or Network.
func classifyTransportError(method, path, host string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Method: method, Path: path, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &TimeoutError{Method: method, Path: path, Err: err}
	}
	return &NetworkError{Host: host, Err: err}
}

// classifyAPIError maps a generic APIError to the typed errors callers switch on.
func classifyAPIError(apiErr *APIError) error {
	sc := apiErr.StatusCode
	if sc == 404 {
		return &NotFoundError{APIError: apiErr}
	}
	if sc >= 500 && sc <= 599 {
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// errorMessage pulls a human readable message from common error shapes,
// including FastAPI's {"detail": "..."} and validation lists.
func errorMessage(raw map[string]any) string {
	switch v := raw["detail"].(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok {
					parts = append(parts, msg)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	switch v := raw["error"].(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	if msg, ok := raw["message"].(string); ok {
		return msg
	}
	return ""
}
