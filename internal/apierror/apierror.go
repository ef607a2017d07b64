// Package apierror defines caller-facing errors and their HTTP representation.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindAccessExpired
	KindForbidden
	KindValidation
	KindInvalidCredentials
	KindConflict
	KindNotFound
)

// Machine-readable reasons returned to clients.
const (
	ReasonMissing            = "missing"
	ReasonInvalid            = "invalid"
	ReasonExpired            = "expired"
	ReasonForbidden          = "forbidden"
	ReasonValidation         = "validation"
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonConflict           = "conflict"
	ReasonNotFound           = "not_found"
	ReasonInternal           = "internal"
)

// Error is an error that can be shown to the caller.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnauthorized, KindAccessExpired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindInvalidCredentials, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// As returns err as *Error. Errors that are not *Error become internal errors.
func As(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

func NewMissingToken() *Error {
	return &Error{Kind: KindUnauthorized, Reason: ReasonMissing, Message: "access denied, no valid token provided"}
}

func NewInvalidToken(err error) *Error {
	return &Error{Kind: KindUnauthorized, Reason: ReasonInvalid, Message: "invalid access token", Err: err}
}

func NewAccessExpired(err error) *Error {
	return &Error{Kind: KindAccessExpired, Reason: ReasonExpired, Message: "access token expired", Err: err}
}

func NewMissingRefreshToken() *Error {
	return &Error{Kind: KindUnauthorized, Reason: ReasonMissing, Message: "refresh token is required"}
}

func NewForbidden(message string, err error) *Error {
	return &Error{Kind: KindForbidden, Reason: ReasonForbidden, Message: message, Err: err}
}

func NewValidation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Reason: ReasonValidation, Message: message, Err: err}
}

func NewInvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Reason: ReasonInvalidCredentials, Message: "invalid credentials"}
}

func NewConflict(message string) *Error {
	return &Error{Kind: KindConflict, Reason: ReasonConflict, Message: message}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Reason: ReasonNotFound, Message: message}
}

func NewInternal(err error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonInternal, Message: "internal server error", Err: err}
}
