package rebalance

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

// Mode selects the constraint regime a plan is computed under.
type Mode int

const (
	// ModeFree reallocates the current total freely; holdings absent from
	// the target are fully liquidated.
	ModeFree Mode = iota + 1
	// ModeInject is ModeFree with extra cash added to the total, so the
	// plan can avoid liquidation by deploying new money instead.
	ModeInject
	// ModeNoSell finds the smallest total that brings every targeted
	// holding to its weight without selling anything; untargeted holdings
	// pass through unmodified.
	ModeNoSell
)

const (
	// noSellTolerance is the absolute convergence tolerance of the
	// feasibility search, in reference currency units.
	noSellTolerance = 100
	// bracketGrowth caps the initial upper bracket at growth * total.
	bracketGrowth = 100
	// planPlaces is the rounding applied to plan values.
	planPlaces = int32(2)
	// maxBracketExpansions bounds the doubling phase when the initial
	// bracket does not contain the feasibility threshold.
	maxBracketExpansions = 64
)

// Engine computes rebalance plans from a current valuation map and a
// normalized weight map.
type Engine struct {
	l         *zap.Logger
	tolerance decimal.Decimal
}

// NewEngine returns an engine with the default convergence tolerance.
func NewEngine(l *zap.Logger) *Engine {
	return &Engine{l: l, tolerance: decimal.NewFromInt(noSellTolerance)}
}

// Plan computes a rebalance plan for the given mode. current maps instrument
// keys to their present value, weights is a normalized target allocation,
// totalMoney is the portfolio total backing the plan and injection is the
// extra cash for ModeInject (ignored by the other modes).
//
// Any invalid input returns (nil, error): the caller must treat that as
// "no plan produced", never as an empty plan.
func (e *Engine) Plan(mode Mode, current map[string]decimal.Decimal, weights domain.Weights,
	totalMoney, injection decimal.Decimal) (*domain.Plan, error) {

	if len(weights) == 0 {
		return nil, errors.New("empty target weights")
	}
	if !weights.Sum().IsPositive() {
		return nil, errors.New("target weights sum is not positive")
	}
	for key, w := range weights {
		if !w.IsPositive() {
			return nil, errors.Errorf("non-positive weight for %s", key)
		}
	}
	if totalMoney.IsNegative() {
		return nil, errors.New("negative total money")
	}

	switch mode {
	case ModeFree:
		return e.planFree(current, weights, totalMoney), nil
	case ModeInject:
		if injection.IsNegative() {
			return nil, errors.New("negative injection")
		}
		return e.planFree(current, weights, totalMoney.Add(injection)), nil
	case ModeNoSell:
		return e.planNoSell(current, weights, totalMoney)
	default:
		return nil, errors.Errorf("unknown rebalance mode %d", mode)
	}
}

// planFree distributes total by weight; instruments held but absent from the
// target get a zero target, i.e. full liquidation.
func (e *Engine) planFree(current map[string]decimal.Decimal, weights domain.Weights,
	total decimal.Decimal) *domain.Plan {

	entries := make(map[string]domain.PlanEntry, len(weights)+len(current))
	for key, weight := range weights {
		cur := current[key]
		target := total.Mul(weight)
		entries[key] = domain.PlanEntry{Current: cur, Target: target, Delta: target.Sub(cur)}
	}
	for key, cur := range current {
		if _, targeted := weights[key]; targeted {
			continue
		}
		entries[key] = domain.PlanEntry{Current: cur, Target: decimal.Zero, Delta: cur.Neg()}
	}

	return &domain.Plan{Entries: entries, Total: total}
}

// planNoSell locates the smallest feasible total via bisection and builds the
// plan at that total. The feasibility predicate is monotonically true above
// the threshold max_i(current_i / weight_i); the search converges to within
// the tolerance rather than to exact equality.
func (e *Engine) planNoSell(current map[string]decimal.Decimal, weights domain.Weights,
	totalMoney decimal.Decimal) (*domain.Plan, error) {

	feasible := func(total decimal.Decimal) bool {
		for key, weight := range weights {
			cur, held := current[key]
			if !held {
				continue
			}
			if total.Mul(weight).LessThan(cur) {
				return false
			}
		}
		return true
	}

	total := totalMoney
	if !feasible(total) {
		left, right := total, total.Mul(decimal.NewFromInt(bracketGrowth))
		expansions := 0
		for !feasible(right) {
			if expansions++; expansions > maxBracketExpansions {
				return nil, errors.New("no feasible total: a target weight is vanishingly small")
			}
			left = right
			right = right.Mul(decimal.NewFromInt(2))
		}
		for right.Sub(left).GreaterThan(e.tolerance) {
			mid := left.Add(right).Div(decimal.NewFromInt(2))
			if feasible(mid) {
				right = mid
			} else {
				left = mid
			}
		}
		total = right
	}

	e.l.Debug("no-sell total located",
		zap.String("current_total", totalMoney.StringFixed(2)),
		zap.String("plan_total", total.StringFixed(2)))

	entries := make(map[string]domain.PlanEntry, len(weights)+len(current))
	for key, weight := range weights {
		cur := current[key]
		target := total.Mul(weight).Round(planPlaces)
		entries[key] = domain.PlanEntry{
			Current: cur.Round(planPlaces),
			Target:  target,
			Delta:   target.Sub(cur).Round(planPlaces),
		}
	}
	// holdings outside the target are not forced into a sale, unlike ModeFree
	for key, cur := range current {
		if _, targeted := weights[key]; targeted {
			continue
		}
		cur = cur.Round(planPlaces)
		entries[key] = domain.PlanEntry{Current: cur, Target: cur, Delta: decimal.Zero}
	}

	return &domain.Plan{Entries: entries, Total: total.Round(planPlaces)}, nil
}
