package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoneyFromUnitsNano(t *testing.T) {
	m := MoneyFromUnitsNano(100, 500000000, "rub")
	assert.True(t, m.Amount.Equal(decimal.NewFromFloat(100.5)), "got %s", m.Amount)
	assert.Equal(t, "rub", m.Currency)

	m = MoneyFromUnitsNano(-1, -250000000, "usd")
	assert.True(t, m.Amount.Equal(decimal.NewFromFloat(-1.25)), "got %s", m.Amount)

	assert.True(t, MoneyFromUnitsNano(0, 0, "rub").IsZero())
}

func TestQuotationFromUnitsNano(t *testing.T) {
	q := QuotationFromUnitsNano(101, 750000000)
	assert.True(t, q.Equal(decimal.NewFromFloat(101.75)))
}

func TestFxRatesToReference(t *testing.T) {
	rates := NewFxRates("rub", map[string]decimal.Decimal{"usd": decimal.NewFromInt(90)})

	// reference currency passes through
	assert.True(t, rates.ToReference(Money{Amount: decimal.NewFromInt(10), Currency: "rub"}).Equal(decimal.NewFromInt(10)))

	// table rate applies
	assert.True(t, rates.ToReference(Money{Amount: decimal.NewFromInt(2), Currency: "usd"}).Equal(decimal.NewFromInt(180)))

	// unknown currency converts 1:1 instead of failing
	assert.True(t, rates.ToReference(Money{Amount: decimal.NewFromInt(7), Currency: "chf"}).Equal(decimal.NewFromInt(7)))

	// empty currency is treated as the reference
	assert.True(t, rates.ToReference(Money{Amount: decimal.NewFromInt(3)}).Equal(decimal.NewFromInt(3)))
}

func TestNewFxRatesDefaultsReference(t *testing.T) {
	rates := NewFxRates("", nil)
	assert.Equal(t, DefaultReferenceCurrency, rates.Reference)
}

func TestWeightsSum(t *testing.T) {
	w := Weights{"A": decimal.NewFromFloat(0.4), "B": decimal.NewFromFloat(0.6)}
	assert.True(t, w.Sum().Equal(decimal.NewFromInt(1)))
	assert.True(t, Weights{}.Sum().IsZero())
}
