// Package domerrors provides coded domain errors. Services return these so
// transport layers can map outcomes to responses without string matching.
package domerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Codes are stable API vocabulary; messages
// are free-form and may change.
type Code string

const (
	// CodeValidation covers malformed or missing input, detected before any
	// mutation.
	CodeValidation Code = "validation"
	// CodePrecondition covers stage-order violations and already-completed
	// actions.
	CodePrecondition Code = "precondition_violation"
	// CodeCapacityExhausted: no remaining slots for the requested key.
	CodeCapacityExhausted Code = "capacity_exhausted"
	// CodeDuplicateReservation: the identity token already holds a
	// reservation for the key.
	CodeDuplicateReservation Code = "duplicate_reservation"
	// CodeHolidayBlocked: the requested date is flagged as a holiday.
	CodeHolidayBlocked Code = "holiday_blocked"
	// CodeExpiredToken: a one-time code or credential is past its expiry.
	CodeExpiredToken Code = "expired_token"
	// CodeInvalidCode: a presented one-time code does not match or was
	// already consumed.
	CodeInvalidCode Code = "invalid_code"
	// CodeNotFound: the referenced entity does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict: a uniqueness constraint was violated.
	CodeConflict Code = "conflict"
	// CodeUnauthorized: missing or invalid caller credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal: unexpected backing-store or infrastructure failure.
	// Detail is logged, never surfaced.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates a cause with a code and message. The cause stays reachable
// through errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost message carried by err, or a generic
// message for non-domain errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
