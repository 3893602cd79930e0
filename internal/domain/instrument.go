package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentClass is the broker-reported instrument type.
type InstrumentClass string

const (
	ClassBond  InstrumentClass = "bond"
	ClassShare InstrumentClass = "share"
	ClassFund  InstrumentClass = "etf"
)

// Instrument holds immutable metadata fetched once per instrument key and
// cached for the lifetime of an aggregation run. Class-specific attributes
// live in the Bond/Fund variants; exactly one of them is set for those
// classes, both are nil otherwise.
type Instrument struct {
	Key     string
	Class   InstrumentClass
	Name    string
	Sector  string
	Country string
	// Currency is the trading currency of the instrument quotes.
	Currency string

	Bond *BondDetails
	Fund *FundDetails
}

// BondDetails carries bond-only attributes. Bond quotes come in as a
// percentage of nominal, so the nominal keeps its own currency.
type BondDetails struct {
	Nominal        Money
	CouponsPerYear int
	FloatingCoupon bool
	Amortization   bool
	PlacementDate  time.Time
	MaturityDate   time.Time
}

// FundDetails carries fund-only attributes.
type FundDetails struct {
	Focus string
}

// SecurityPosition is a raw holding as reported by the broker account
// endpoint: instrument key, class and held quantity. Long-only holdings
// are assumed, so quantity is never negative.
type SecurityPosition struct {
	Key      string
	Class    InstrumentClass
	Quantity decimal.Decimal
}

// AccountPositions is the raw positions payload for one account.
type AccountPositions struct {
	Cash       []Money
	Blocked    []Money
	Securities []SecurityPosition
}

// AveragePrices maps an instrument key to its average purchase price.
type AveragePrices map[string]Money

// CouponEvent is one entry of a bond coupon schedule: payment date and
// payout per bond. Schedules are ordered by date ascending.
type CouponEvent struct {
	Date   time.Time
	Amount Money
}

// DividendEvent is a scheduled dividend: record date and net amount per
// share.
type DividendEvent struct {
	RecordDate time.Time
	Amount     Money
}
