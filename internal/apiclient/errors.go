package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
)

// Error classes. A *StatusError matches the class of its status code with
// errors.Is; transport failures wrap ErrUnreachable or ErrTimeout.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
	ErrUnreachable  = errors.New("api unreachable")
	ErrTimeout      = errors.New("request timed out or cancelled")
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the backend's explanation: Laravel "message", RFC 7807
	// "detail" or "title", or the status text.
	Message string
	// Fields holds per-field validation messages, if any.
	Fields map[string][]string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	if len(e.Fields) > 0 {
		msg += " (" + e.FieldSummary() + ")"
	}
	return msg
}

// FieldSummary joins the field messages in a stable order.
func (e *StatusError) FieldSummary() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return strings.Join(parts, ", ")
}

// Is reports whether target is the class of e's status code.
func (e *StatusError) Is(target error) bool {
	return classify(e.StatusCode) == target
}

func classify(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnprocessableEntity || code == http.StatusBadRequest:
		return ErrValidation
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrServer
	}
	return nil
}

// newStatusError builds a StatusError from a decoded error body, which
// may be a Laravel error, an RFC 7807 problem, or anything else.
func newStatusError(method, path string, code int, body any) *StatusError {
	e := &StatusError{Method: method, Path: path, StatusCode: code}
	if obj, ok := body.(map[string]any); ok {
		for _, key := range []string{"message", "detail", "title", "error"} {
			if s, ok := obj[key].(string); ok && s != "" {
				e.Message = s
				break
			}
		}
		if fields, ok := obj["errors"].(map[string]any); ok {
			e.Fields = make(map[string][]string, len(fields))
			for k, v := range fields {
				switch msgs := v.(type) {
				case []any:
					for _, m := range msgs {
						if s, ok := m.(string); ok {
							e.Fields[k] = append(e.Fields[k], s)
						}
					}
				case string:
					e.Fields[k] = []string{msgs}
				}
			}
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(code)
	}
	return e
}

// mapTransportError classifies errors that happened before a response
// arrived.
func mapTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dial tcp") {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return err
}
