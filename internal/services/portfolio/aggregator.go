// Package portfolio turns raw account data into a normalized valuation
// snapshot broken down by instrument class, sector and income stream.
package portfolio

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

// dividendHorizon is how far ahead scheduled dividends are looked up.
const dividendHorizon = 180 * 24 * time.Hour

var (
	hundred     = decimal.NewFromInt(100)
	yieldPlaces = int32(1)
)

type marketData interface {
	Instrument(ctx context.Context, key string, class domain.InstrumentClass) (*domain.Instrument, error)
	LastPrice(ctx context.Context, key string) (decimal.Decimal, error)
}

type scheduleSource interface {
	GetBondCoupons(ctx context.Context, key string, from, to time.Time) ([]domain.CouponEvent, error)
	GetDividends(ctx context.Context, key string, from, to time.Time) ([]domain.DividendEvent, error)
}

// Aggregator builds portfolio snapshots. The FX rate table is snapshotted at
// construction and never refreshed; instrument lookups go through the
// memoizing cache for the aggregator's lifetime.
//
// Aggregation fails closed: any lookup failure aborts the whole pass with an
// error instead of returning partially-filled totals, because a partial
// snapshot would silently misstate portfolio value.
type Aggregator struct {
	market    marketData
	schedules scheduleSource
	rates     domain.FxRates
	l         *zap.Logger

	// now is overridable for tests.
	now func() time.Time
}

// NewAggregator wires the aggregator with its collaborators and the FX
// snapshot.
func NewAggregator(market marketData, schedules scheduleSource, rates domain.FxRates, l *zap.Logger) *Aggregator {
	return &Aggregator{
		market:    market,
		schedules: schedules,
		rates:     rates,
		l:         l,
		now:       time.Now,
	}
}

// Aggregate values every position and cash balance in the reference currency
// and rolls them up per instrument class. The returned snapshot is immutable;
// on any failure the result is (nil, error), never a partial snapshot.
func (a *Aggregator) Aggregate(ctx context.Context, positions domain.AccountPositions,
	operations []domain.Operation, avgPrices domain.AveragePrices) (*domain.Snapshot, error) {

	a.l.Info("aggregating portfolio",
		zap.Int("securities", len(positions.Securities)),
		zap.Int("operations", len(operations)))

	snap := &domain.Snapshot{
		Bonds: domain.BondAggregate{
			Sector: make(map[string]decimal.Decimal),
		},
		Shares: domain.ShareAggregate{
			Sector: make(map[string]decimal.Decimal),
		},
		Funds: domain.FundAggregate{
			Focus: make(map[string]decimal.Decimal),
		},
		Other:   make(map[string]domain.BasicAggregate),
		TakenAt: a.now(),
	}

	for _, m := range positions.Cash {
		snap.CashTotal = snap.CashTotal.Add(a.rates.ToReference(m))
	}
	for _, m := range positions.Blocked {
		snap.BlockedTotal = snap.BlockedTotal.Add(a.rates.ToReference(m))
	}

	income := a.collectIncome(operations)
	snap.DividendsReceived = income.dividendsTotal

	for _, sec := range positions.Securities {
		if err := a.addSecurity(ctx, snap, sec, avgPrices, income); err != nil {
			return nil, err
		}
	}

	sortPositions(snap)

	snap.WholePrice = snap.CashTotal.
		Add(snap.BlockedTotal).
		Add(snap.PositionsTotal())

	a.l.Info("portfolio aggregated",
		zap.String("whole_price", snap.WholePrice.StringFixed(2)),
		zap.String("cash", snap.CashTotal.StringFixed(2)))

	return snap, nil
}

// incomeByName is the operation history reduced to per-instrument-name income
// totals in the reference currency.
type incomeByName struct {
	dividends      map[string]decimal.Decimal
	coupons        map[string]decimal.Decimal
	dividendsTotal decimal.Decimal
}

func (a *Aggregator) collectIncome(operations []domain.Operation) incomeByName {
	income := incomeByName{
		dividends: make(map[string]decimal.Decimal),
		coupons:   make(map[string]decimal.Decimal),
	}
	for _, op := range operations {
		paid := a.rates.ToReference(op.Payment)
		switch op.Type {
		case domain.OperationDividend:
			income.dividends[op.Name] = income.dividends[op.Name].Add(paid)
			income.dividendsTotal = income.dividendsTotal.Add(paid)
		case domain.OperationCoupon:
			income.coupons[op.Name] = income.coupons[op.Name].Add(paid)
		}
	}
	return income
}

func (a *Aggregator) addSecurity(ctx context.Context, snap *domain.Snapshot,
	sec domain.SecurityPosition, avgPrices domain.AveragePrices, income incomeByName) error {

	inst, err := a.market.Instrument(ctx, sec.Key, sec.Class)
	if err != nil {
		return errors.Wrapf(err, "instrument lookup failed for %s", sec.Key)
	}
	lastPrice, err := a.market.LastPrice(ctx, sec.Key)
	if err != nil {
		return errors.Wrapf(err, "price lookup failed for %s", sec.Key)
	}

	switch sec.Class {
	case domain.ClassBond:
		return a.addBond(ctx, snap, sec, inst, lastPrice, avgPrices, income)
	case domain.ClassShare:
		a.addShare(ctx, snap, sec, inst, lastPrice, avgPrices, income)
		return a.attachNextDividend(ctx, snap, sec.Key)
	case domain.ClassFund:
		a.addFund(snap, sec, inst, lastPrice, avgPrices)
		return nil
	default:
		a.addOther(snap, sec, inst, lastPrice, avgPrices)
		return nil
	}
}

// valuePosition computes the common valued part of a position in the
// reference currency.
func (a *Aggregator) valuePosition(sec domain.SecurityPosition, inst *domain.Instrument,
	unitPrice decimal.Decimal, avgPrices domain.AveragePrices) domain.PositionValue {

	avg := decimal.Zero
	if m, ok := avgPrices[sec.Key]; ok {
		avg = a.rates.ToReference(m)
	}

	value := unitPrice.Mul(sec.Quantity)
	return domain.PositionValue{
		Key:          sec.Key,
		Name:         inst.Name,
		Country:      inst.Country,
		Quantity:     sec.Quantity,
		UnitPrice:    unitPrice,
		Value:        value,
		AveragePrice: avg,
		BuyProfit:    unitPrice.Sub(avg).Mul(sec.Quantity),
	}
}

func (a *Aggregator) addBond(ctx context.Context, snap *domain.Snapshot, sec domain.SecurityPosition,
	inst *domain.Instrument, lastPrice decimal.Decimal, avgPrices domain.AveragePrices, income incomeByName) error {

	if inst.Bond == nil {
		return errors.Errorf("instrument %s is classified as bond but has no bond details", sec.Key)
	}

	// bond quotes are a percentage of nominal, not a money amount
	nominal := a.rates.ToReference(inst.Bond.Nominal)
	unitPrice := lastPrice.Div(hundred).Mul(nominal)

	pos := domain.BondPosition{
		PositionValue:  a.valuePosition(sec, inst, unitPrice, avgPrices),
		CouponsPerYear: inst.Bond.CouponsPerYear,
		Nominal:        nominal,
		Amortization:   inst.Bond.Amortization,
		PlacementDate:  inst.Bond.PlacementDate,
		MaturityDate:   inst.Bond.MaturityDate,
	}

	agg := &snap.Bonds
	agg.TotalPrice = agg.TotalPrice.Add(pos.Value)
	agg.TotalAmount = agg.TotalAmount.Add(sec.Quantity)
	agg.Sector[inst.Sector] = agg.Sector[inst.Sector].Add(pos.Value)
	agg.CouponsReceived = agg.CouponsReceived.Add(income.coupons[inst.Name])

	if inst.Bond.FloatingCoupon {
		agg.FloaterPrice = agg.FloaterPrice.Add(pos.Value)
		agg.FloaterAmount = agg.FloaterAmount.Add(sec.Quantity)
		agg.Floaters = append(agg.Floaters, pos)
		return nil
	}

	if err := a.couponMetrics(ctx, &pos, inst); err != nil {
		return err
	}

	agg.RegularPrice = agg.RegularPrice.Add(pos.Value)
	agg.RegularAmount = agg.RegularAmount.Add(sec.Quantity)
	agg.RegularCoupon = agg.RegularCoupon.Add(pos.AnnualCoupon)
	agg.Regular = append(agg.Regular, pos)
	return nil
}

// couponMetrics fills payout, yield and future cash flow for a fixed-coupon
// bond from its date-ordered coupon schedule.
func (a *Aggregator) couponMetrics(ctx context.Context, pos *domain.BondPosition, inst *domain.Instrument) error {
	from, to := scheduleWindow(inst.Bond, a.now())
	schedule, err := a.schedules.GetBondCoupons(ctx, inst.Key, from, to)
	if err != nil {
		return errors.Wrapf(err, "coupon schedule lookup failed for %s", inst.Key)
	}
	if len(schedule) == 0 {
		return nil
	}

	// lower-bound search: schedules can be long, a linear scan is wasteful
	now := a.now()
	next := sort.Search(len(schedule), func(i int) bool {
		return schedule[i].Date.After(now)
	})
	if next == len(schedule) {
		return nil
	}

	payout := a.rates.ToReference(schedule[next].Amount)
	if payout.IsZero() && next > 0 {
		// the next payout is not fixed yet, use the previous one as estimate
		payout = a.rates.ToReference(schedule[next-1].Amount)
	}

	perYear := decimal.NewFromInt(int64(pos.CouponsPerYear))
	pos.CouponPayout = payout
	pos.AnnualCoupon = payout.Mul(perYear).Mul(pos.Quantity)
	if pos.Nominal.IsPositive() {
		pos.CouponYieldPercent = payout.Mul(perYear).Div(pos.Nominal).Mul(hundred).Round(yieldPlaces)
	}

	future := decimal.Zero
	for _, ev := range schedule[next:] {
		future = future.Add(a.rates.ToReference(ev.Amount))
	}
	pos.FutureCoupons = future.Mul(pos.Quantity)

	return nil
}

func scheduleWindow(bond *domain.BondDetails, now time.Time) (time.Time, time.Time) {
	from, to := bond.PlacementDate, bond.MaturityDate
	if from.IsZero() {
		from = now.AddDate(-10, 0, 0)
	}
	if to.IsZero() {
		to = now.AddDate(30, 0, 0)
	}
	return from, to
}

func (a *Aggregator) addShare(_ context.Context, snap *domain.Snapshot, sec domain.SecurityPosition,
	inst *domain.Instrument, lastPrice decimal.Decimal, avgPrices domain.AveragePrices, income incomeByName) {

	unitPrice := a.rates.ToReference(domain.Money{Amount: lastPrice, Currency: inst.Currency})
	pos := domain.SharePosition{
		PositionValue:     a.valuePosition(sec, inst, unitPrice, avgPrices),
		DividendsReceived: income.dividends[inst.Name],
	}

	agg := &snap.Shares
	agg.TotalPrice = agg.TotalPrice.Add(pos.Value)
	agg.TotalAmount = agg.TotalAmount.Add(sec.Quantity)
	agg.BuyProfit = agg.BuyProfit.Add(pos.BuyProfit)
	agg.DividendsReceived = agg.DividendsReceived.Add(pos.DividendsReceived)
	agg.Sector[inst.Sector] = agg.Sector[inst.Sector].Add(pos.Value)
	agg.Positions = append(agg.Positions, pos)
}

// attachNextDividend looks up a dividend scheduled within the horizon for the
// share position appended last.
func (a *Aggregator) attachNextDividend(ctx context.Context, snap *domain.Snapshot, key string) error {
	now := a.now()
	events, err := a.schedules.GetDividends(ctx, key, now, now.Add(dividendHorizon))
	if err != nil {
		return errors.Wrapf(err, "dividend schedule lookup failed for %s", key)
	}
	if len(events) == 0 {
		return nil
	}

	next := events[0]
	for _, ev := range events[1:] {
		if ev.RecordDate.Before(next.RecordDate) {
			next = ev
		}
	}

	pos := &snap.Shares.Positions[len(snap.Shares.Positions)-1]
	pos.NextDividend = &next
	return nil
}

func (a *Aggregator) addFund(snap *domain.Snapshot, sec domain.SecurityPosition,
	inst *domain.Instrument, lastPrice decimal.Decimal, avgPrices domain.AveragePrices) {

	unitPrice := a.rates.ToReference(domain.Money{Amount: lastPrice, Currency: inst.Currency})
	focus := ""
	if inst.Fund != nil {
		focus = inst.Fund.Focus
	}
	pos := domain.FundPosition{
		PositionValue: a.valuePosition(sec, inst, unitPrice, avgPrices),
		Focus:         focus,
	}

	agg := &snap.Funds
	agg.TotalPrice = agg.TotalPrice.Add(pos.Value)
	agg.TotalAmount = agg.TotalAmount.Add(sec.Quantity)
	agg.BuyProfit = agg.BuyProfit.Add(pos.BuyProfit)
	agg.Focus[focus] = agg.Focus[focus].Add(pos.Value)
	agg.Positions = append(agg.Positions, pos)
}

// addOther is the fallback for instrument classes the aggregator does not
// recognize: a minimal rollup keeps the snapshot total correct without code
// changes for every new class the broker introduces.
func (a *Aggregator) addOther(snap *domain.Snapshot, sec domain.SecurityPosition,
	inst *domain.Instrument, lastPrice decimal.Decimal, avgPrices domain.AveragePrices) {

	unitPrice := a.rates.ToReference(domain.Money{Amount: lastPrice, Currency: inst.Currency})
	pos := a.valuePosition(sec, inst, unitPrice, avgPrices)

	agg := snap.Other[string(sec.Class)]
	agg.TotalPrice = agg.TotalPrice.Add(pos.Value)
	agg.TotalAmount = agg.TotalAmount.Add(sec.Quantity)
	agg.Positions = append(agg.Positions, pos)
	snap.Other[string(sec.Class)] = agg
}

// sortPositions orders every per-class list by descending position value so
// downstream consumers see largest holdings first.
func sortPositions(snap *domain.Snapshot) {
	byValueBond := func(list []domain.BondPosition) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Value.GreaterThan(list[j].Value) })
	}
	byValueBond(snap.Bonds.Regular)
	byValueBond(snap.Bonds.Floaters)

	sort.SliceStable(snap.Shares.Positions, func(i, j int) bool {
		return snap.Shares.Positions[i].Value.GreaterThan(snap.Shares.Positions[j].Value)
	})
	sort.SliceStable(snap.Funds.Positions, func(i, j int) bool {
		return snap.Funds.Positions[i].Value.GreaterThan(snap.Funds.Positions[j].Value)
	})
	for class, agg := range snap.Other {
		sort.SliceStable(agg.Positions, func(i, j int) bool {
			return agg.Positions[i].Value.GreaterThan(agg.Positions[j].Value)
		})
		snap.Other[class] = agg
	}
}
