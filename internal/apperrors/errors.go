// Package apperrors defines the error taxonomy shared by services and
// handlers. Callers match with errors.Is against the Kind sentinels or pull
// details out with errors.As.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindUnauthorized      Kind = "unauthorized"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindAuthExpired       Kind = "auth_expired"
	KindStorageFetch      Kind = "storage_fetch_failed"
	KindPlatformRejected  Kind = "platform_rejected"
	KindTransientNetwork  Kind = "transient_network"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	// UnitIndex names the offending content unit for media-stage and
	// validation failures. -1 when not applicable.
	UnitIndex int
	Cause     error
}

func (e *Error) Error() string {
	if e.UnitIndex >= 0 {
		return fmt.Sprintf("%s (unit %d): %s", e.Kind, e.UnitIndex, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match two *Error values by kind alone, so sentinels like
// ErrNotFound match any not-found error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, UnitIndex: -1}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), UnitIndex: -1}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, UnitIndex: -1, Cause: cause}
}

// AtUnit returns a copy of the error annotated with the content unit index.
func (e *Error) AtUnit(i int) *Error {
	c := *e
	c.UnitIndex = i
	return &c
}

// Kind sentinels for errors.Is matching.
var (
	ErrValidation        = New(KindValidation, "validation failed")
	ErrUnauthorized      = New(KindUnauthorized, "unauthorized")
	ErrNotFound          = New(KindNotFound, "not found")
	ErrInvalidTransition = New(KindInvalidTransition, "invalid status transition")
	ErrAuthExpired       = New(KindAuthExpired, "authentication expired, account must be re-linked")
	ErrStorageFetch      = New(KindStorageFetch, "storage fetch failed")
	ErrPlatformRejected  = New(KindPlatformRejected, "platform rejected media")
	ErrTransientNetwork  = New(KindTransientNetwork, "transient network failure")
	ErrInternal          = New(KindInternal, "internal error")
)

// KindOf reports the taxonomy kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
