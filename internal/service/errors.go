package service

import (
	"errors"
	"fmt"
	"log/slog"
)

// Kind classifies a service failure. The HTTP layer maps each kind to a
// status code and echoes it to the caller as error_kind.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindCascadePartial Kind = "cascade_partial"
	KindInternal       Kind = "internal"
)

// Error is the only error type returned by the services. Message is
// safe to show to end users; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindInternal for anything that is
// not a *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Messages shown for the domain conflicts.
const (
	MsgAlreadyReservedThatDay = "you already have a reservation for that day"
	MsgSpotNotAvailable       = "spot not available that day"
	MsgSpotAlreadyReserved    = "spot already reserved for that day"
	MsgCessionExists          = "a cession already exists for one of the selected days"
	MsgCessionTaken           = "someone already booked this spot"
	MsgVisitorSpotTaken       = "this spot already has a visitor booking for that day"
	MsgOnlyOwnSpot            = "you can only cede your own spot"
	MsgCascadePartial         = "the cession was cancelled but the dependent reservation could not be cancelled; manual follow-up required"
	MsgInternal               = "internal error"
)

func validationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

func unauthorizedError() *Error {
	return &Error{Kind: KindUnauthorized, Message: "authentication required"}
}

func forbiddenError(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func notFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func conflictError(msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: cause}
}

func cascadePartialError(cause error) *Error {
	return &Error{Kind: KindCascadePartial, Message: MsgCascadePartial, Err: cause}
}

func internalError(op string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: fmt.Errorf("%s: %w", op, cause)}
}

// fail logs cause at ERROR with the operation name and returns the
// generic internal error.
func fail(logger *slog.Logger, op string, cause error) *Error {
	logger.Error("operation failed", "op", op, "error", cause)
	return internalError(op, cause)
}
