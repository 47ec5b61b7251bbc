// Package apperr defines the error kinds shared by all domain services.
// Handlers map kinds onto HTTP status codes in one place instead of
// inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Validation covers malformed or missing input.
	Validation Kind = iota
	// NotFound covers lookups of unknown doctors, patients, slots or appointments.
	NotFound
	// Conflict covers overlap rejections, double-booking races and
	// delete-with-active-bookings.
	Conflict
	// TemplateNotSet is returned when slot generation runs against a doctor
	// without an availability template.
	TemplateNotSet
	// Unauthorized covers failed credential checks.
	Unauthorized
	// Upstream covers failures in collaborators that are logged but not
	// surfaced as user errors.
	Upstream
)

// Error carries a kind and a human-readable message.
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

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err if it is (or wraps) an *Error. Unclassified
// errors report Upstream so handlers default to a 500.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Upstream, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
