package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so transports can map it without string matching.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindRideNotFound        Kind = "ride_not_found"
	KindRideUnavailable     Kind = "ride_unavailable"
	KindAlreadyBooked       Kind = "already_booked"
	KindStorageFailure      Kind = "storage_failure"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindUnauthorized        Kind = "unauthorized"
	KindNotConfigured       Kind = "not_configured"
)

// Sentinels usable as errors.Is targets.
var (
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrRideNotFound        = &Error{Kind: KindRideNotFound}
	ErrRideUnavailable     = &Error{Kind: KindRideUnavailable}
	ErrAlreadyBooked       = &Error{Kind: KindAlreadyBooked}
	ErrStorageFailure      = &Error{Kind: KindStorageFailure}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrNotConfigured       = &Error{Kind: KindNotConfigured}
)

// Error carries a Kind, the failing operation and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so the package sentinels match any error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid is shorthand for an InvalidInput error describing field.
func Invalid(op, field, msg string) error {
	return &Error{Kind: KindInvalidInput, Op: op, Msg: fmt.Sprintf("%s: %s", field, msg)}
}

// KindOf returns the kind of the outermost *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether any error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}
