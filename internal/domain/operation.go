package domain

import "time"

// OperationType classifies account history entries. The aggregator only
// consumes income-type operations; everything else is filtered out at the
// client boundary.
type OperationType string

const (
	OperationDividend OperationType = "dividend"
	OperationCoupon   OperationType = "coupon"
)

// Operation is a single account history entry: an income payment tied to an
// instrument. Name duplicates the instrument display name because historical
// payments are attributed to positions by name, including instruments that
// changed their key after corporate events.
type Operation struct {
	ID            string
	Type          OperationType
	InstrumentKey string
	Name          string
	Payment       Money
	Date          time.Time
}
