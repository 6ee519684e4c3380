package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Method is how a bill was settled.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
)

// ParseMethod validates s.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodCash, MethodCard, MethodTransfer:
		return m, nil
	}
	return "", wrap(ErrInvalidPayment, "unknown method %q", s)
}

// Payment settles an order. It is written once and never changed.
type Payment struct {
	ID          string          `json:"id"`
	OrderID     int64           `json:"order_id"`
	Method      Method          `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Tip         decimal.Decimal `json:"tip"`
	ProcessedBy string          `json:"processed_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Charged is Amount + Tip.
func (p Payment) Charged() decimal.Decimal {
	return p.Amount.Add(p.Tip)
}
