// Package apperr defines the error taxonomy returned by the lawconnect
// handlers and the HTTP status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindAuthentication   Kind = "authentication_error"
	KindNotFound         Kind = "not_found"
	KindPrecondition     Kind = "precondition_failed"
	KindProviderExchange Kind = "provider_exchange_error"
	KindDelivery         Kind = "delivery_error"
	KindPersistence      Kind = "persistence_error"
	KindInternal         Kind = "internal_error"
)

var statusByKind = map[Kind]int{
	KindValidation:       http.StatusBadRequest,
	KindAuthentication:   http.StatusUnauthorized,
	KindNotFound:         http.StatusNotFound,
	KindPrecondition:     http.StatusBadRequest,
	KindProviderExchange: http.StatusBadRequest,
	KindDelivery:         http.StatusInternalServerError,
	KindPersistence:      http.StatusInternalServerError,
	KindInternal:         http.StatusInternalServerError,
}

// Error is a classified, caller-facing error.
type Error struct {
	Kind    Kind   // error class
	Message string // human-readable message returned to the caller
	Status  int    // HTTP status code
	Err     error  // underlying cause, never serialized
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates an error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: kind, Message: message, Status: status, Err: cause}
}

// Constructors for each kind.
var (
	// Validation indicates missing or malformed caller input.
	Validation = func(msg string) *Error {
		return New(KindValidation, msg, nil)
	}

	// Authentication indicates a missing or rejected bearer credential.
	Authentication = func(msg string, cause error) *Error {
		return New(KindAuthentication, msg, cause)
	}

	// NotFound indicates the entity is absent or not owned by the caller.
	NotFound = func(msg string) *Error {
		return New(KindNotFound, msg, nil)
	}

	// Precondition indicates a required integration is not set up.
	Precondition = func(msg string, cause error) *Error {
		return New(KindPrecondition, msg, cause)
	}

	// ProviderExchange indicates the identity provider rejected a token operation.
	// The message carries the provider's raw error text.
	ProviderExchange = func(msg string, cause error) *Error {
		return New(KindProviderExchange, msg, cause)
	}

	// Delivery indicates the mail API rejected the send.
	Delivery = func(msg string, cause error) *Error {
		return New(KindDelivery, msg, cause)
	}

	// Persistence indicates a store read or write failed.
	Persistence = func(msg string, cause error) *Error {
		return New(KindPersistence, msg, cause)
	}

	// Internal indicates an unexpected failure.
	Internal = func(msg string, cause error) *Error {
		return New(KindInternal, msg, cause)
	}
)

// From converts any error into an *Error. Unclassified errors become internal errors.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal server error", err)
}

// KindOf returns the kind of err, or the empty kind when err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}
