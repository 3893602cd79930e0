package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionValue is the valued part shared by every position kind. All money
// fields are in the reference currency.
type PositionValue struct {
	Key          string
	Name         string
	Country      string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Value        decimal.Decimal
	AveragePrice decimal.Decimal
	// BuyProfit is (current price - average purchase price) * quantity.
	BuyProfit decimal.Decimal
}

// BondPosition is a valued bond holding with coupon-derived metrics.
// Floating-coupon bonds carry zero coupon metrics: their payouts are not
// known in advance.
type BondPosition struct {
	PositionValue

	CouponsPerYear int
	Nominal        decimal.Decimal
	Amortization   bool
	PlacementDate  time.Time
	MaturityDate   time.Time

	// CouponPayout is the next payout per bond; when the next coupon is not
	// fixed yet the previous payout is used as an estimate.
	CouponPayout decimal.Decimal
	// CouponYieldPercent is payout * coupons-per-year / nominal, as a
	// percentage rounded to one decimal.
	CouponYieldPercent decimal.Decimal
	// AnnualCoupon is the yearly coupon income for the whole position.
	AnnualCoupon decimal.Decimal
	// FutureCoupons sums the payouts from the next coupon through maturity,
	// times the held quantity.
	FutureCoupons decimal.Decimal
}

// BondAggregate breaks the bond class down into regular and floater buckets.
type BondAggregate struct {
	TotalPrice    decimal.Decimal
	TotalAmount   decimal.Decimal
	RegularPrice  decimal.Decimal
	RegularAmount decimal.Decimal
	FloaterPrice  decimal.Decimal
	FloaterAmount decimal.Decimal

	// RegularCoupon and FloaterCoupon are annual coupon income sums per
	// bucket; floaters always report zero.
	RegularCoupon decimal.Decimal
	FloaterCoupon decimal.Decimal
	// CouponsReceived sums historical coupon payments attributed to held
	// bonds by instrument name.
	CouponsReceived decimal.Decimal

	Regular  []BondPosition
	Floaters []BondPosition
	Sector   map[string]decimal.Decimal
}

// SharePosition is a valued share holding with dividend attribution.
type SharePosition struct {
	PositionValue

	// DividendsReceived sums historical dividend operations attributed to
	// this position by instrument name.
	DividendsReceived decimal.Decimal
	// NextDividend is the dividend scheduled within the lookup horizon,
	// nil if none.
	NextDividend *DividendEvent
}

// ShareAggregate is the share class rollup.
type ShareAggregate struct {
	TotalPrice        decimal.Decimal
	TotalAmount       decimal.Decimal
	BuyProfit         decimal.Decimal
	DividendsReceived decimal.Decimal

	Positions []SharePosition
	Sector    map[string]decimal.Decimal
}

// FundPosition is a valued fund holding.
type FundPosition struct {
	PositionValue

	Focus string
}

// FundAggregate is the fund class rollup, broken down by focus tag instead
// of sector.
type FundAggregate struct {
	TotalPrice  decimal.Decimal
	TotalAmount decimal.Decimal
	BuyProfit   decimal.Decimal

	Positions []FundPosition
	Focus     map[string]decimal.Decimal
}

// BasicAggregate is the minimal rollup used for instrument classes the
// aggregator does not recognize, so new classes degrade gracefully instead
// of failing the run.
type BasicAggregate struct {
	TotalPrice  decimal.Decimal
	TotalAmount decimal.Decimal
	Positions   []PositionValue
}

// Snapshot is the normalized valuation of one account at one point in time.
// It is built once per aggregation call and never mutated afterwards.
type Snapshot struct {
	Bonds  BondAggregate
	Shares ShareAggregate
	Funds  FundAggregate
	// Other maps an unrecognized class name to its minimal aggregate.
	Other map[string]BasicAggregate

	CashTotal    decimal.Decimal
	BlockedTotal decimal.Decimal
	// DividendsReceived is the portfolio-wide historical dividend total,
	// including instruments no longer held.
	DividendsReceived decimal.Decimal
	// WholePrice is cash plus blocked funds plus every position value.
	WholePrice decimal.Decimal

	TakenAt time.Time
}

// CurrentValues flattens the snapshot into instrument name -> position value,
// the shape the rebalance engine consumes.
func (s *Snapshot) CurrentValues() map[string]decimal.Decimal {
	values := make(map[string]decimal.Decimal)
	add := func(p PositionValue) {
		values[p.Name] = values[p.Name].Add(p.Value)
	}

	for _, p := range s.Bonds.Regular {
		add(p.PositionValue)
	}
	for _, p := range s.Bonds.Floaters {
		add(p.PositionValue)
	}
	for _, p := range s.Shares.Positions {
		add(p.PositionValue)
	}
	for _, p := range s.Funds.Positions {
		add(p.PositionValue)
	}
	for _, agg := range s.Other {
		for _, p := range agg.Positions {
			add(p)
		}
	}
	return values
}

// PositionsTotal is the summed value of every security position, excluding
// cash and blocked funds.
func (s *Snapshot) PositionsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, v := range s.CurrentValues() {
		total = total.Add(v)
	}
	return total
}
