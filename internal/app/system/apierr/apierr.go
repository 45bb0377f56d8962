// internal/app/system/apierr/apierr.go
// Package apierr defines the request-level error taxonomy shared by every
// feature handler. Stores return these (or sentinel errors wrapped around
// them) so handlers can map failures to HTTP statuses without inspecting
// driver errors.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP mapping.
type Kind int

const (
	// Internal is everything unclassified (mapped to 500).
	Internal Kind = iota
	// NotFound: the referenced resource is absent. Reported identically
	// to Forbidden on protected resources to avoid leaking existence.
	NotFound
	// Unauthorized: anonymous principal on a protected action.
	Unauthorized
	// Forbidden: authenticated but insufficient permission.
	Forbidden
	// Conflict: duplicate membership/invitation or banned-user violation.
	Conflict
	// Invalid: malformed input (bad ordering token, bad frame, bad body).
	Invalid
)

// Error carries a kind and a user-safe message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// E builds a classified error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of err, unwrapping as needed. Plain errors
// classify as Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
