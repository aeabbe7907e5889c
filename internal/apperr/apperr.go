// Package apperr defines the error taxonomy shared by all pipeline
// operations. Every public operation fails with one of these categories
// so the dashboard and the moderation bot can render a stable message
// instead of a raw error string.
package apperr

import (
	"errors"
	"net/http"
	"time"
)

// Kind is a stable error category.
type Kind string

const (
	KindInvalidInput  Kind = "invalid_input"
	KindInvalidState  Kind = "invalid_state"
	KindNotFound      Kind = "not_found"
	KindRateLimited   Kind = "rate_limited"
	KindBlockedURL    Kind = "blocked_url"
	KindUnauthorized  Kind = "unauthorized"
	KindForbidden     Kind = "forbidden"
	KindUpstream      Kind = "upstream_error"
	KindNoValidOutput Kind = "no_valid_output"
)

// Error carries a category, a user-facing message and optional detail.
type Error struct {
	Kind       Kind
	Message    string
	Detail     string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the category to the status code returned to clients.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindInvalidState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindBlockedURL, KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUpstream:
		return http.StatusBadGateway
	case KindNoValidOutput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func InvalidState(msg string) *Error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

// NotFound deliberately does not distinguish "does not exist" from
// "not owned by the caller", to avoid leaking existence.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

func BlockedURL(msg string) *Error {
	return &Error{Kind: KindBlockedURL, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Forbidden(msg, detail string) *Error {
	return &Error{Kind: KindForbidden, Message: msg, Detail: detail}
}

func Upstream(msg, detail string) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Detail: detail}
}

func NoValidOutput(msg string) *Error {
	return &Error{Kind: KindNoValidOutput, Message: msg}
}

// Wrap attaches an underlying cause to a categorized error.
func Wrap(e *Error, err error) *Error {
	e.Err = err
	return e
}

// KindOf returns the category of err, or an empty Kind for
// uncategorized errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err belongs to the given category.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
