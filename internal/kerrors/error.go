package kerrors

import (
	"errors"
	"fmt"
)

// Error is a structured kernel error carrying the operation that failed,
// the status it maps to, and any wrapped cause. It mirrors the shape of
// a userspace driver's request-scoped error (op/code/inner), adapted
// here to carry a Status instead of an errno.
type Error struct {
	Op     string // operation that failed, e.g. "ML_$LOCK", "AST_$GET_ATTRIBUTES"
	Status Status // kernel status this error maps to
	Msg    string // human-readable detail
	Inner  error  // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Status.String()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (status=%s)", e.Op, msg, e.Status)
	}
	return fmt.Sprintf("%s (status=%s)", msg, e.Status)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison against another *Error by Status.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Status == te.Status
	}
	return false
}

// New creates a structured error for the given operation and status.
func New(op string, status Status, msg string) *Error {
	return &Error{Op: op, Status: status, Msg: msg}
}

// Wrap attaches an operation name and status to an inner error.
func Wrap(op string, status Status, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Status: status, Msg: inner.Error(), Inner: inner}
}

// StatusOf extracts the Status from an error, or OK if it is nil, or a
// generic internal-error status if the error isn't a *Error.
func StatusOf(err error) Status {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return MakeStatus(SubsystemFAULT, 0xFFFF)
}
