package apiclient

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call.
type Kind string

const (
	KindAuthExpired Kind = "auth_expired"
	KindNotFound    Kind = "not_found"
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindServer      Kind = "server"
	KindDecode      Kind = "decode"
)

const (
	msgNetwork  = "network unreachable"
	msgTimeout  = "request timed out"
	msgNotFound = "record no longer exists"
	msgExpired  = "session expired"
	msgGeneric  = "request failed"
)

// Error is the normalized failure of one remote call. Message is safe to
// show the operator; for server failures it is the envelope error verbatim.
type Error struct {
	Kind    Kind
	Message string
	Status  int
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// Retryable reports whether the operator may simply try again.
func (e *Error) Retryable() bool { return e.Kind != KindAuthExpired && e.Kind != KindNotFound }

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == k
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Message returns the operator-facing text of err.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
