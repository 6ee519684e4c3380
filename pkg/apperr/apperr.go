// Package apperr defines the error kinds shared by every layer of the point-of-sale core.
package apperr

import (
	"errors"
	"fmt"
)

// Kind names a class of failure reported on the operation boundary.
type Kind string

const (
	KindInvalidTransition Kind = "InvalidTransition"
	KindTerminalState     Kind = "TerminalStateViolation"
	KindOrderLocked       Kind = "OrderLocked"
	KindForbidden         Kind = "Forbidden"
	KindUnauthorized      Kind = "Unauthorized"
	KindConfigPersistence Kind = "ConfigPersistenceFailure"
	KindObserverFailure   Kind = "ObserverFailure"
	KindNotFound          Kind = "NotFound"
	KindInvalidInput      Kind = "InvalidInput"
	KindPaymentRequired   Kind = "PaymentRequired"
	KindInternal          Kind = "Internal"
)

// Error is a kinded error. Sentinels are *Error values and callers wrap them with %w.
type Error struct {
	kind Kind
	msg  string
}

// New returns a kinded error.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind reports the error class.
func (e *Error) Kind() Kind { return e.kind }

type kinded interface {
	Kind() Kind
}

// KindOf classifies err. Errors without a kind are Internal; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// Is reports whether err belongs to kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wrap annotates a kinded sentinel with call-site detail.
func Wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
