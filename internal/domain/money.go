// Package domain defines core data structures used throughout the analyzer.
package domain

import (
	"github.com/shopspring/decimal"
)

// DefaultReferenceCurrency is the currency every value is normalized to.
const DefaultReferenceCurrency = "rub"

var nanoFactor = decimal.New(1, 9)

// Money is a decimal amount tagged with its ISO currency code (lowercase,
// as the broker reports it).
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// MoneyFromUnitsNano decodes the broker wire format: whole units plus
// fractional nano-units (1e-9).
func MoneyFromUnitsNano(units int64, nano int32, currency string) Money {
	return Money{
		Amount:   decimal.NewFromInt(units).Add(decimal.New(int64(nano), 0).Div(nanoFactor)),
		Currency: currency,
	}
}

// QuotationFromUnitsNano decodes a currency-less price quotation.
func QuotationFromUnitsNano(units int64, nano int32) decimal.Decimal {
	return decimal.NewFromInt(units).Add(decimal.New(int64(nano), 0).Div(nanoFactor))
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// FxRates maps a currency code to its rate against the reference currency.
// The table is snapshotted once per aggregator and never refreshed.
type FxRates struct {
	Reference string
	Rates     map[string]decimal.Decimal
}

// NewFxRates builds a rate table against the given reference currency.
func NewFxRates(reference string, rates map[string]decimal.Decimal) FxRates {
	if reference == "" {
		reference = DefaultReferenceCurrency
	}
	return FxRates{Reference: reference, Rates: rates}
}

// ToReference converts the amount into the reference currency. A currency
// absent from the table converts at 1:1, an explicit fallback rather than
// a failure.
func (r FxRates) ToReference(m Money) decimal.Decimal {
	if m.Currency == "" || m.Currency == r.Reference {
		return m.Amount
	}
	rate, ok := r.Rates[m.Currency]
	if !ok {
		return m.Amount
	}
	return m.Amount.Mul(rate)
}
