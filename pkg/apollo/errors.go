package apollo

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an Apollo API failure.
type ErrorKind string

const (
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnauthorized ErrorKind = "unauthorized"
	KindBadRequest   ErrorKind = "bad_request"
	KindNotFound     ErrorKind = "not_found"
	KindUnknown      ErrorKind = "unknown"
)

// Error is a typed Apollo API failure. Callers branch on Kind to produce
// user-facing messages rather than parsing provider error bodies.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("apollo: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// KindOf returns the ErrorKind of err if it is (or wraps) an apollo.Error,
// and KindUnknown otherwise.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

func newStatusError(statusCode int, body string) *Error {
	kind := KindUnknown
	switch statusCode {
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = KindBadRequest
	case http.StatusNotFound:
		kind = KindNotFound
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return &Error{Kind: kind, StatusCode: statusCode, Message: body}
}
