package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotConfigured is returned by collaborators that lack credentials or an
// endpoint.
var ErrNotConfigured = errors.New("service not configured")

// DisambiguationError reports a knowledge lookup that matched several pages.
type DisambiguationError struct {
	Topic   string
	Options []string
}

func (e *DisambiguationError) Error() string {
	return fmt.Sprintf("%q is ambiguous: %s", e.Topic, strings.Join(e.Options, ", "))
}

// StatusError is a non-2xx answer from an upstream HTTP API.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s http status %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s http status %d: %s", e.Service, e.Code, e.Body)
}

// Retryable reports whether the upstream may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
