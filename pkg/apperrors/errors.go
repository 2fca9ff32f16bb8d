package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary handling. Validation errors are
// user-correctable and always surfaced with their message; not-found errors
// are surfaced distinctly; external-service errors are caught at integration
// boundaries and either logged or surfaced depending on the call site.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindExternalService
)

// Error is the portal error taxonomy. Handlers map Kind to HTTP status codes.
type Error struct {
	Kind    Kind
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

// Validation returns a user-correctable error (bad field value, illegal state
// transition, missing companion data such as a reject reason).
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an unknown-id error. A milestone referenced that does not
// belong to its proposal is reported as not-found, never as a crash.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// ExternalService wraps a collaborator failure (watcher unreachable or
// returned an error envelope).
func ExternalService(err error, format string, args ...any) *Error {
	return &Error{Kind: KindExternalService, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return isKind(err, KindValidation)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return isKind(err, KindNotFound)
}

// IsExternalService reports whether err is an external-service error.
func IsExternalService(err error) bool {
	return isKind(err, KindExternalService)
}

func isKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
