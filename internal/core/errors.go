package core

import (
	"errors"
	"fmt"
	"time"
)

// Kind discriminates domain errors so handlers can map them to responses
// without string matching.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindInvalidState       Kind = "invalid_state"
	KindUnauthorized       Kind = "unauthorized"
	KindInsufficientPoints Kind = "insufficient_points"
	KindInvalidCode        Kind = "invalid_code"
	KindDuplicateRequest   Kind = "duplicate_request"
	KindSelfFriend         Kind = "self_friend"
	KindLastAdmin          Kind = "last_admin"
	KindBootstrapDenied    Kind = "bootstrap_not_allowed"
	KindRateLimited        Kind = "rate_limited"
	KindNotFound           Kind = "not_found"
)

// Error is the typed error returned by all domain operations. It never
// escapes the API boundary raw: handlers translate it into the JSON
// envelope {success:false, error:{kind, message}}.
type Error struct {
	Kind    Kind
	Message string

	// Set for invalid_state errors.
	CurrentState   string
	AttemptedState string

	// Set for rate_limited errors, as a retry hint.
	ResetAt time.Time
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(current, attempted string) *Error {
	return &Error{
		Kind:           KindInvalidState,
		Message:        fmt.Sprintf("cannot move from %q to %q", current, attempted),
		CurrentState:   current,
		AttemptedState: attempted,
	}
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func InsufficientPoints(have, need int) *Error {
	return &Error{
		Kind:    KindInsufficientPoints,
		Message: fmt.Sprintf("need %d points, have %d", need, have),
	}
}

func InvalidCode(code string) *Error {
	return &Error{Kind: KindInvalidCode, Message: fmt.Sprintf("no active invite matches %q", code)}
}

func DuplicateRequest(msg string) *Error {
	return &Error{Kind: KindDuplicateRequest, Message: msg}
}

func SelfFriend() *Error {
	return &Error{Kind: KindSelfFriend, Message: "cannot friend yourself"}
}

func LastAdmin() *Error {
	return &Error{Kind: KindLastAdmin, Message: "refusing to demote the last remaining admin"}
}

func BootstrapDenied(reason string) *Error {
	return &Error{Kind: KindBootstrapDenied, Message: reason}
}

func RateLimited(resetAt time.Time) *Error {
	return &Error{
		Kind:    KindRateLimited,
		Message: fmt.Sprintf("rate limit exceeded, retry after %s", resetAt.Format(time.RFC3339)),
		ResetAt: resetAt,
	}
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// KindOf extracts the Kind from err, or "" if err is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// AsError returns err as a domain *Error, or nil.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return nil
}
