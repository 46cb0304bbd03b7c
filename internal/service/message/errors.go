package message

import (
	"errors"
	"fmt"
)

// Kind classifies a store failure. None of them are retryable.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
)

// Error is returned by every Service operation that fails.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of the message text.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation    = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "message not found"}
	ErrAuthorization = &Error{Kind: KindAuthorization, Message: "not the author"}
)

var (
	errEmptyContent   = &Error{Kind: KindValidation, Message: "message content cannot be empty"}
	errZeroLimit      = &Error{Kind: KindValidation, Message: "limit must be at least 1"}
	errZeroPage       = &Error{Kind: KindValidation, Message: "page must be at least 1"}
	errParentNotFound = &Error{Kind: KindNotFound, Message: "parent message not found"}
	errUpdateDenied   = &Error{Kind: KindAuthorization, Message: "only the author can update this message"}
	errDeleteDenied   = &Error{Kind: KindAuthorization, Message: "only the author can delete this message"}
)

// KindOf extracts the kind of err, or "" when err is not a store error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
