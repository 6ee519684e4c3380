// Package settings holds the restaurant-wide runtime configuration: tax and
// tip rates, currency and contact details. One Store is live per process; it
// is reached through a Handle that builds it on first use.
package settings

import (
	"github.com/shopspring/decimal"

	"tablepos/pkg/apperr"
)

var (
	// ErrInvalid reports a patch value out of range. Nothing is mutated.
	ErrInvalid = apperr.New(apperr.KindInvalidInput, "settings: invalid value")
	// ErrPersistence reports a failed durable write. The in-memory update
	// has already been applied.
	ErrPersistence = apperr.New(apperr.KindConfigPersistence, "settings: persist failed")
)

// Settings is the durable record shape.
type Settings struct {
	Name           string  `json:"name"`
	TaxRate        float64 `json:"tax_rate"`
	TipRate        float64 `json:"tip_rate"`
	Currency       string  `json:"currency"`
	Address        string  `json:"address"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email"`
	Schedule       string  `json:"schedule"`
	Capacity       int     `json:"capacity"`
	MaxWaitMinutes int     `json:"max_wait_minutes"`
}

// Defaults are used when no durable record exists or it cannot be read.
func Defaults() Settings {
	return Settings{
		Name:           "Code & Taste",
		TaxRate:        0.16,
		TipRate:        0.15,
		Currency:       "MXN",
		Address:        "Av. Universidad #123, Chihuahua, Chih.",
		Phone:          "614-123-4567",
		Email:          "contacto@codeandtaste.com",
		Schedule:       "9:00 AM - 11:00 PM",
		Capacity:       80,
		MaxWaitMinutes: 45,
	}
}

// Totals is a priced breakdown rounded to cents.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Totals applies the tax rate to subtotal.
func (s Settings) Totals(subtotal decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(decimal.NewFromFloat(s.TaxRate)).Round(2)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

// SuggestedTip applies the tip rate to total.
func (s Settings) SuggestedTip(total decimal.Decimal) decimal.Decimal {
	return total.Mul(decimal.NewFromFloat(s.TipRate)).Round(2)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name           *string  `json:"name,omitempty"`
	TaxRate        *float64 `json:"tax_rate,omitempty"`
	TipRate        *float64 `json:"tip_rate,omitempty"`
	Currency       *string  `json:"currency,omitempty"`
	Address        *string  `json:"address,omitempty"`
	Phone          *string  `json:"phone,omitempty"`
	Email          *string  `json:"email,omitempty"`
	Schedule       *string  `json:"schedule,omitempty"`
	Capacity       *int     `json:"capacity,omitempty"`
	MaxWaitMinutes *int     `json:"max_wait_minutes,omitempty"`
}

func (p Patch) validate() error {
	if p.TaxRate != nil && (*p.TaxRate < 0 || *p.TaxRate > 1) {
		return apperr.Wrap(ErrInvalid, "tax_rate %v outside [0,1]", *p.TaxRate)
	}
	if p.TipRate != nil && (*p.TipRate < 0 || *p.TipRate > 1) {
		return apperr.Wrap(ErrInvalid, "tip_rate %v outside [0,1]", *p.TipRate)
	}
	if p.Capacity != nil && *p.Capacity <= 0 {
		return apperr.Wrap(ErrInvalid, "capacity must be positive")
	}
	if p.MaxWaitMinutes != nil && *p.MaxWaitMinutes < 0 {
		return apperr.Wrap(ErrInvalid, "max_wait_minutes must not be negative")
	}
	if p.Currency != nil && len(*p.Currency) != 3 {
		return apperr.Wrap(ErrInvalid, "currency %q is not a 3-letter code", *p.Currency)
	}
	return nil
}

func (p Patch) applyTo(s *Settings) {
	setIf(&s.Name, p.Name)
	setIf(&s.TaxRate, p.TaxRate)
	setIf(&s.TipRate, p.TipRate)
	setIf(&s.Currency, p.Currency)
	setIf(&s.Address, p.Address)
	setIf(&s.Phone, p.Phone)
	setIf(&s.Email, p.Email)
	setIf(&s.Schedule, p.Schedule)
	setIf(&s.Capacity, p.Capacity)
	setIf(&s.MaxWaitMinutes, p.MaxWaitMinutes)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
