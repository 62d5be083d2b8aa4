// Package apperr defines the error kinds produced by the console's session and
// authorization core. Every failure carries exactly one Kind so callers can pick the
// right user-facing behaviour without parsing messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindUnauthorized       Kind = "unauthorized"
	KindSessionExpired     Kind = "session_expired"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindInvalidRequest     Kind = "invalid_request"
	KindServiceUnavailable Kind = "service_unavailable"
	KindStorage            Kind = "storage"
	KindProfileNotFound    Kind = "profile_not_found"
)

// Sentinels for errors.Is comparisons. Matching is by Kind only.
var (
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrSessionExpired     = &Error{Kind: KindSessionExpired}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrStorage            = &Error{Kind: KindStorage}
	ErrProfileNotFound    = &Error{Kind: KindProfileNotFound}
)

// Error is the structured error returned by the transport, the credential store, the
// session manager and the access gate.
type Error struct {
	Kind Kind
	// Status is the HTTP status that produced the error, 0 for local failures.
	Status int
	// Code is the backend error code from the response envelope, if any.
	Code string
	// Message is safe to show to the user. Server messages are kept verbatim.
	Message string
	// Expired marks an Unauthorized error as token-expiry shaped (refreshable)
	// rather than permission shaped.
	Expired bool
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind with a user-facing message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsExpiryShaped reports whether err is an Unauthorized error that a token refresh
// could resolve.
func IsExpiryShaped(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindUnauthorized && e.Expired
}

// Message returns the user-facing message of err, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
