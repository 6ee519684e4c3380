package order

import (
	"fmt"

	"tablepos/pkg/apperr"
)

var (
	// ErrNotFound indicates the requested order does not exist.
	ErrNotFound          = apperr.New(apperr.KindNotFound, "order not found")
	ErrInvalidTransition = apperr.New(apperr.KindInvalidTransition, "order: invalid transition")
	ErrTerminalState     = apperr.New(apperr.KindTerminalState, "order: terminal state")
	ErrOrderLocked       = apperr.New(apperr.KindOrderLocked, "order: items locked")
	ErrUnknownState      = apperr.New(apperr.KindInvalidInput, "order: unknown state")
	ErrInvalidOrder      = apperr.New(apperr.KindInvalidInput, "order: invalid order")
	ErrInvalidItem       = apperr.New(apperr.KindInvalidInput, "order: invalid item")
	ErrItemNotFound      = apperr.New(apperr.KindNotFound, "order: item not found")
	ErrPaymentRequired   = apperr.New(apperr.KindPaymentRequired, "order: paid requires a payment")
	ErrInvalidPayment    = apperr.New(apperr.KindInvalidInput, "order: invalid payment")
	ErrPaymentNotFound   = apperr.New(apperr.KindNotFound, "payment not found")
)

// TransitionError describes a rejected state change.
type TransitionError struct {
	OrderID int64
	From    State
	To      State
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %d: %s -> %s: %v", e.OrderID, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func wrap(sentinel *apperr.Error, format string, args ...any) error {
	return apperr.Wrap(sentinel, format, args...)
}
