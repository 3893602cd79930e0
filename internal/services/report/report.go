// Package report renders portfolio snapshots and rebalance plans for humans:
// a styled terminal summary plus CSV and pie-chart files on disk.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/storage/snapshots"
	"go.uber.org/zap"
)

const (
	dirPermissions = 0o755

	// historyTail bounds how many journal records the history section shows.
	historyTail = 10
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"})
)

// Renderer writes report artifacts under a timestamped directory and formats
// terminal output. It only ever reads the snapshot, never mutates it.
type Renderer struct {
	outDir string
	l      *zap.Logger
}

// NewRenderer creates a renderer rooted at outDir.
func NewRenderer(outDir string, l *zap.Logger) *Renderer {
	if outDir == "" {
		outDir = "./reports"
	}
	return &Renderer{outDir: outDir, l: l}
}

// Render writes the CSV and chart files for the snapshot and returns the
// report directory path.
func (r *Renderer) Render(snap *domain.Snapshot) (string, error) {
	dir := filepath.Join(r.outDir, "report_"+snap.TakenAt.Format("2006-01-02_15_04_05"))
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return "", errors.Wrapf(err, "create report directory %s", dir)
	}

	if err := r.writeBonds(dir, snap); err != nil {
		return "", err
	}
	if err := r.writeShares(dir, snap); err != nil {
		return "", err
	}
	if err := r.writeFunds(dir, snap); err != nil {
		return "", err
	}
	if err := r.writeOther(dir, snap); err != nil {
		return "", err
	}
	if err := r.writeCharts(dir, snap); err != nil {
		return "", err
	}

	r.l.Info("report written", zap.String("dir", dir))
	return dir, nil
}

func (r *Renderer) writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, "write csv rows")
	}
	w.Flush()
	return w.Error()
}

func (r *Renderer) writeBonds(dir string, snap *domain.Snapshot) error {
	header := []string{
		"name", "coupons_per_year", "unit_price", "quantity", "value", "avg_price",
		"annual_coupon", "coupon_yield_pct", "full_yield_pct", "future_coupons",
		"buy_profit", "amortization", "placement_date", "maturity_date", "country", "nominal",
	}

	rows := func(list []domain.BondPosition) [][]string {
		out := make([][]string, 0, len(list))
		for _, p := range list {
			out = append(out, []string{
				p.Name,
				fmt.Sprintf("%d", p.CouponsPerYear),
				p.UnitPrice.StringFixed(2),
				p.Quantity.String(),
				p.Value.StringFixed(2),
				p.AveragePrice.StringFixed(2),
				p.AnnualCoupon.StringFixed(2),
				p.CouponYieldPercent.String(),
				fullYieldPercent(p).StringFixed(2),
				p.FutureCoupons.StringFixed(2),
				p.BuyProfit.StringFixed(2),
				fmt.Sprintf("%t", p.Amortization),
				formatDate(p.PlacementDate),
				formatDate(p.MaturityDate),
				p.Country,
				p.Nominal.StringFixed(2),
			})
		}
		return out
	}

	if err := r.writeCSV(filepath.Join(dir, "bonds_regular.csv"), header, rows(snap.Bonds.Regular)); err != nil {
		return err
	}
	return r.writeCSV(filepath.Join(dir, "bonds_floater.csv"), header, rows(snap.Bonds.Floaters))
}

func (r *Renderer) writeShares(dir string, snap *domain.Snapshot) error {
	header := []string{
		"name", "country", "unit_price", "quantity", "value", "avg_price",
		"buy_profit", "dividends_received", "dividend_yield_pct", "next_dividend", "next_dividend_date",
	}
	rows := make([][]string, 0, len(snap.Shares.Positions))
	for _, p := range snap.Shares.Positions {
		nextAmount, nextDate := "", ""
		if p.NextDividend != nil {
			nextAmount = p.NextDividend.Amount.Amount.StringFixed(2)
			nextDate = formatDate(p.NextDividend.RecordDate)
		}
		rows = append(rows, []string{
			p.Name,
			p.Country,
			p.UnitPrice.StringFixed(2),
			p.Quantity.String(),
			p.Value.StringFixed(2),
			p.AveragePrice.StringFixed(2),
			p.BuyProfit.StringFixed(2),
			p.DividendsReceived.StringFixed(2),
			percentOf(p.DividendsReceived, p.Value).StringFixed(2),
			nextAmount,
			nextDate,
		})
	}
	return r.writeCSV(filepath.Join(dir, "shares.csv"), header, rows)
}

func (r *Renderer) writeFunds(dir string, snap *domain.Snapshot) error {
	header := []string{"name", "unit_price", "quantity", "value", "avg_price", "buy_profit", "focus"}
	rows := make([][]string, 0, len(snap.Funds.Positions))
	for _, p := range snap.Funds.Positions {
		rows = append(rows, []string{
			p.Name,
			p.UnitPrice.StringFixed(2),
			p.Quantity.String(),
			p.Value.StringFixed(2),
			p.AveragePrice.StringFixed(2),
			p.BuyProfit.StringFixed(2),
			p.Focus,
		})
	}
	return r.writeCSV(filepath.Join(dir, "funds.csv"), header, rows)
}

func (r *Renderer) writeOther(dir string, snap *domain.Snapshot) error {
	header := []string{"name", "unit_price", "quantity", "value"}
	for class, agg := range snap.Other {
		rows := make([][]string, 0, len(agg.Positions))
		for _, p := range agg.Positions {
			rows = append(rows, []string{
				p.Name,
				p.UnitPrice.StringFixed(2),
				p.Quantity.String(),
				p.Value.StringFixed(2),
			})
		}
		if err := r.writeCSV(filepath.Join(dir, "other_"+class+".csv"), header, rows); err != nil {
			return err
		}
	}
	return nil
}

// Summary formats the snapshot for the terminal.
func (r *Renderer) Summary(snap *domain.Snapshot) string {
	var b strings.Builder

	line := func(label string, value decimal.Decimal) {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(label+":"), value.StringFixed(2)))
	}

	b.WriteString(headerStyle.Render("PORTFOLIO") + "\n")
	line("Whole price", snap.WholePrice)
	line("Cash", snap.CashTotal)
	line("Blocked", snap.BlockedTotal)
	line("Dividends received", snap.DividendsReceived)

	b.WriteString(headerStyle.Render("BONDS") + "\n")
	line("Total", snap.Bonds.TotalPrice)
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Share of portfolio:"),
		percentOf(snap.Bonds.TotalPrice, snap.WholePrice).StringFixed(2)+"%"))
	line("Regular", snap.Bonds.RegularPrice)
	line("Floaters", snap.Bonds.FloaterPrice)
	line("Annual coupons", snap.Bonds.RegularCoupon)
	line("Coupons received", snap.Bonds.CouponsReceived)

	b.WriteString(headerStyle.Render("SHARES") + "\n")
	line("Total", snap.Shares.TotalPrice)
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Share of portfolio:"),
		percentOf(snap.Shares.TotalPrice, snap.WholePrice).StringFixed(2)+"%"))
	line("Buy profit", snap.Shares.BuyProfit)
	line("Dividends", snap.Shares.DividendsReceived)

	b.WriteString(headerStyle.Render("FUNDS") + "\n")
	line("Total", snap.Funds.TotalPrice)
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Share of portfolio:"),
		percentOf(snap.Funds.TotalPrice, snap.WholePrice).StringFixed(2)+"%"))
	line("Buy profit", snap.Funds.BuyProfit)

	for class, agg := range snap.Other {
		b.WriteString(headerStyle.Render(strings.ToUpper(class)) + "\n")
		line("Total", agg.TotalPrice)
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("taken at %s", snap.TakenAt.Format(time.RFC3339))) + "\n")
	return b.String()
}

// FormatPlan renders a rebalance plan as old -> new : delta lines, largest
// moves first.
func (r *Renderer) FormatPlan(plan *domain.Plan) string {
	keys := make([]string, 0, len(plan.Entries))
	for key := range plan.Entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return plan.Entries[keys[i]].Delta.Abs().GreaterThan(plan.Entries[keys[j]].Delta.Abs())
	})

	var b strings.Builder
	b.WriteString(headerStyle.Render("REBALANCE PLAN") + "\n")
	for _, key := range keys {
		e := plan.Entries[key]
		b.WriteString(fmt.Sprintf("%s %s -> %s : %s\n",
			labelStyle.Render(key),
			e.Current.StringFixed(2),
			e.Target.StringFixed(2),
			e.Delta.StringFixed(2)))
	}
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Total:"), plan.Total.StringFixed(2)))
	return b.String()
}

// FormatHistory renders the tail of the valuation journal as one line per
// record, oldest first, with the change against the previous valuation.
func (r *Renderer) FormatHistory(records []snapshots.StoredRecord) string {
	if len(records) == 0 {
		return ""
	}
	if len(records) > historyTail {
		records = records[len(records)-historyTail:]
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("VALUATION HISTORY") + "\n")
	for i, rec := range records {
		line := fmt.Sprintf("%s %s", rec.Record.TakenAt.Format("2006-01-02 15:04"), rec.Record.WholePrice.StringFixed(2))
		if i > 0 {
			delta := rec.Record.WholePrice.Sub(records[i-1].Record.WholePrice)
			sign := ""
			if !delta.IsNegative() {
				sign = "+"
			}
			line += dimStyle.Render(" (" + sign + delta.StringFixed(2) + ")")
		}
		b.WriteString(labelStyle.Render(line) + "\n")
	}
	return b.String()
}

func fullYieldPercent(p domain.BondPosition) decimal.Decimal {
	invested := p.AveragePrice.Mul(p.Quantity)
	if !invested.IsPositive() {
		return decimal.Zero
	}
	return p.Value.Add(p.AnnualCoupon).Sub(invested).Div(invested).Mul(decimal.NewFromInt(100))
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
