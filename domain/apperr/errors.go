// Package apperr defines the error taxonomy shared by every module.
//
// An *Error is JSON-serializable so it can travel inside request-reply
// responses and come back out as the same Kind on the caller's side.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and status mapping.
type Kind string

const (
	// KindValidation marks missing or malformed input.
	KindValidation Kind = "validation"
	// KindAuthentication marks bad credentials.
	KindAuthentication Kind = "authentication"
	// KindAuthorization marks a missing, invalid or expired session.
	KindAuthorization Kind = "authorization"
	// KindNotFound marks an unknown user or resource.
	KindNotFound Kind = "not_found"
	// KindInternal marks an unexpected failure such as storage being unavailable.
	KindInternal Kind = "internal"
)

// Error is a classified error.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	cause error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind that unwraps to cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Validation creates a validation error.
func Validation(message string) *Error { return New(KindValidation, message) }

// Authentication creates an authentication error.
func Authentication(message string) *Error { return New(KindAuthentication, message) }

// Authorization creates an authorization error.
func Authorization(message string) *Error { return New(KindAuthorization, message) }

// NotFound creates a not-found error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error { return Wrap(KindInternal, message, cause) }

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error with the same kind and message, so sentinels
// still compare equal after a JSON round trip.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// From returns err as an *Error, classifying anything unknown as internal.
// A nil err yields nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal error", err)
}

// Public returns the message safe to show to a client.
func Public(err error) string {
	e := From(err)
	if e == nil {
		return ""
	}
	if e.Kind == KindInternal {
		return "internal server error"
	}
	return e.Message
}
