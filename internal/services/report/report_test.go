package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/storage/snapshots"
	"go.uber.org/zap"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func testSnapshot() *domain.Snapshot {
	snap := &domain.Snapshot{
		CashTotal:  d(1000),
		WholePrice: d(21000),
		TakenAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Other:      map[string]domain.BasicAggregate{},
	}
	snap.Bonds = domain.BondAggregate{
		TotalPrice:   d(10000),
		RegularPrice: d(10000),
		Regular: []domain.BondPosition{{
			PositionValue: domain.PositionValue{
				Name: "OFZ 26238", Quantity: d(10), UnitPrice: d(1000), Value: d(10000), AveragePrice: d(990),
			},
			CouponsPerYear: 2,
			Nominal:        d(1000),
			AnnualCoupon:   d(700),
		}},
		Sector: map[string]decimal.Decimal{"government": d(10000)},
	}
	snap.Shares = domain.ShareAggregate{
		TotalPrice: d(7000),
		Positions: []domain.SharePosition{{
			PositionValue: domain.PositionValue{
				Name: "Lukoil", Quantity: d(1), UnitPrice: d(7000), Value: d(7000),
			},
			DividendsReceived: d(500),
		}},
		Sector: map[string]decimal.Decimal{"energy": d(7000)},
	}
	snap.Funds = domain.FundAggregate{
		TotalPrice: d(3000),
		Positions: []domain.FundPosition{{
			PositionValue: domain.PositionValue{Name: "Gold ETF", Quantity: d(20), UnitPrice: d(150), Value: d(3000)},
			Focus:         "gold",
		}},
		Focus: map[string]decimal.Decimal{"gold": d(3000)},
	}
	return snap
}

func TestRenderWritesArtifacts(t *testing.T) {
	renderer := NewRenderer(t.TempDir(), zap.NewNop())

	dir, err := renderer.Render(testSnapshot())
	require.NoError(t, err)

	for _, name := range []string{
		"bonds_regular.csv", "bonds_floater.csv", "shares.csv", "funds.csv",
		"allocation.png", "bond_sectors.png", "share_sectors.png", "fund_focus.png",
	} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, statErr, "missing artifact %s", name)
	}

	f, err := os.Open(filepath.Join(dir, "shares.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one share")
	assert.Equal(t, "Lukoil", rows[1][0])
}

func TestRenderSkipsEmptyCharts(t *testing.T) {
	renderer := NewRenderer(t.TempDir(), zap.NewNop())

	snap := &domain.Snapshot{
		TakenAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Other:   map[string]domain.BasicAggregate{},
	}
	snap.Bonds.Sector = map[string]decimal.Decimal{}
	snap.Shares.Sector = map[string]decimal.Decimal{}
	snap.Funds.Focus = map[string]decimal.Decimal{}

	dir, err := renderer.Render(snap)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "bond_sectors.png"))
	assert.True(t, os.IsNotExist(statErr), "empty chart must not be written")
}

func TestSummaryListsClassTotals(t *testing.T) {
	renderer := NewRenderer(t.TempDir(), zap.NewNop())

	out := renderer.Summary(testSnapshot())

	assert.Contains(t, out, "PORTFOLIO")
	assert.Contains(t, out, "21000.00")
	assert.Contains(t, out, "BONDS")
	assert.Contains(t, out, "10000.00")
	assert.Contains(t, out, "SHARES")
	assert.Contains(t, out, "FUNDS")
}

func TestFormatHistoryShowsTailWithDeltas(t *testing.T) {
	renderer := NewRenderer(t.TempDir(), zap.NewNop())

	records := make([]snapshots.StoredRecord, 0, 12)
	for i := 0; i < 12; i++ {
		records = append(records, snapshots.StoredRecord{
			Index: uint64(i + 1),
			Record: snapshots.Record{
				TakenAt:    time.Date(2026, 1, 1+i, 12, 0, 0, 0, time.UTC),
				WholePrice: d(float64(1000 + 100*i)),
			},
		})
	}

	out := renderer.FormatHistory(records)

	assert.Contains(t, out, "VALUATION HISTORY")
	// only the tail is shown
	assert.NotContains(t, out, "2026-01-01")
	assert.Contains(t, out, "2026-01-03")
	assert.Contains(t, out, "2026-01-12")
	assert.Contains(t, out, "(+100.00)")

	assert.Empty(t, renderer.FormatHistory(nil))
}

func TestFormatPlanLargestMoveFirst(t *testing.T) {
	renderer := NewRenderer(t.TempDir(), zap.NewNop())

	plan := &domain.Plan{
		Entries: map[string]domain.PlanEntry{
			"small": {Current: d(100), Target: d(110), Delta: d(10)},
			"big":   {Current: d(100), Target: d(400), Delta: d(300)},
		},
		Total: d(510),
	}

	out := renderer.FormatPlan(plan)
	assert.Less(t, strings.Index(out, "big"), strings.Index(out, "small"), "largest move must come first")
	assert.Contains(t, out, "510.00")
}
