package apperr

import "fmt"

// Code is a stable, machine-readable error class. Codes are part of the
// API contract; clients branch on them (e.g. "expired" means re-prompt,
// "conflict" means already done).
type Code string

const (
	CodeValidation        Code = "validation"
	CodeInvalidTransition Code = "invalid_transition"
	CodeConflict          Code = "conflict"
	CodeExpired           Code = "expired"
	CodeNotFound          Code = "not_found"
	CodeUpstream          Code = "upstream"
)

// Error is a structured application error.
type Error struct {
	Code    Code   `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// ErrNotFound is the shared sentinel for missing or not-owned resources.
var ErrNotFound = &Error{Code: CodeNotFound, Message: "not found"}

// NewValidation reports malformed input on a specific field.
func NewValidation(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

// NewInvalidTransition reports a status that does not permit the action.
func NewInvalidTransition(message string) *Error {
	return &Error{Code: CodeInvalidTransition, Message: message}
}

// NewConflict reports an already-done action (duplicate confirmation,
// already-reported issue).
func NewConflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// NewUpstream wraps a collaborator failure (payment provider etc.).
func NewUpstream(message string, cause error) *Error {
	return &Error{Code: CodeUpstream, Message: message, Cause: cause}
}

// CodeOf extracts the taxonomy code from an error, or empty if the error
// is not an *Error.
func CodeOf(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// Is supports errors.Is against the shared sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || t.Message == e.Message)
}
