package domain

import "github.com/shopspring/decimal"

// Weights maps an instrument key to its target allocation fraction.
// A valid weight map has every weight > 0 and the sum equal to 1; the
// normalizer enforces this before the map reaches the engine.
type Weights map[string]decimal.Decimal

// Sum returns the total of all weights.
func (w Weights) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range w {
		total = total.Add(v)
	}
	return total
}

// PlanEntry is one instrument's line of a rebalance plan.
type PlanEntry struct {
	Current decimal.Decimal
	Target  decimal.Decimal
	Delta   decimal.Decimal
}

// Plan maps instrument keys to their old -> new moves plus the realized
// total money the plan distributes. Plans are produced fresh per request
// and never persisted.
type Plan struct {
	Entries map[string]PlanEntry
	Total   decimal.Decimal
}
