// Package coreerr implements the closed set of error kinds from spec §7.
// Every error a component surfaces to a caller or to the event bus is one
// of these kinds, each carrying a correlation id for the structured alert
// the design notes require on every recovery point.
package coreerr

import "fmt"

// Kind is the closed set of error categories.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNotFound        Kind = "not_found"
	KindAccessDenied    Kind = "access_denied"
	KindStateConflict   Kind = "state_conflict"
	KindProvider        Kind = "provider"
	KindSettlement      Kind = "settlement"
	KindDataStale       Kind = "data_stale"
	KindFatal           Kind = "fatal"
)

// Error is the concrete error type carried through the core. Components
// compare Kind() rather than sentinel values so a single switch can route
// validation vs. access vs. provider failures per spec §7 "Propagation".
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	Retryable     bool
	Cause         error
}

func (e *Error) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.CorrelationID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, correlationID, msg string, retryable bool, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(msg, args...), CorrelationID: correlationID, Retryable: retryable}
}

// Validation builds a non-retryable ValidationError.
func Validation(correlationID, msg string, args ...any) *Error {
	return newErr(KindValidation, correlationID, msg, false, args...)
}

// InsufficientFunds builds a non-retryable InsufficientFunds error.
func InsufficientFunds(correlationID, msg string, args ...any) *Error {
	return newErr(KindInsufficientFunds, correlationID, msg, false, args...)
}

// NotFound builds a non-retryable NotFound error.
func NotFound(correlationID, msg string, args ...any) *Error {
	return newErr(KindNotFound, correlationID, msg, false, args...)
}

// AccessDenied builds a non-retryable AccessDenied error.
func AccessDenied(correlationID, msg string, args ...any) *Error {
	return newErr(KindAccessDenied, correlationID, msg, false, args...)
}

// StateConflict builds a non-retryable StateConflict error.
func StateConflict(correlationID, msg string, args ...any) *Error {
	return newErr(KindStateConflict, correlationID, msg, false, args...)
}

// Provider builds a ProviderError; retryable unless the caller says
// otherwise (EE retries a slice, after maxPartialFills it stops).
func Provider(correlationID string, retryable bool, msg string, args ...any) *Error {
	return newErr(KindProvider, correlationID, msg, retryable, args...)
}

// Settlement builds a SettlementError; retryable distinguishes a payment
// system transient failure from a fatal compliance rejection.
func Settlement(correlationID string, retryable bool, msg string, args ...any) *Error {
	return newErr(KindSettlement, correlationID, msg, retryable, args...)
}

// DataStale builds a DataStale error for a missing/expired rate.
func DataStale(correlationID, msg string, args ...any) *Error {
	return newErr(KindDataStale, correlationID, msg, false, args...)
}

// Fatal builds an internal/unexpected error; never brings down the process,
// only the one operation.
func Fatal(correlationID string, cause error, msg string, args ...any) *Error {
	e := newErr(KindFatal, correlationID, msg, false, args...)
	e.Cause = cause
	return e
}

// Is reports whether err (or anything it wraps) is a *Error of kind k.
func Is(err error, k Kind) bool {
	var ce *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			ce = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ce != nil && ce.Kind == k
}
