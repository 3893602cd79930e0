package report

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	chart "github.com/wcharczuk/go-chart/v2"
)

const chartSize = 900

func (r *Renderer) writeCharts(dir string, snap *domain.Snapshot) error {
	allocation := map[string]decimal.Decimal{
		"bonds":  snap.Bonds.TotalPrice,
		"shares": snap.Shares.TotalPrice,
		"funds":  snap.Funds.TotalPrice,
		"cash":   snap.CashTotal.Add(snap.BlockedTotal),
	}
	for class, agg := range snap.Other {
		allocation[class] = agg.TotalPrice
	}

	charts := []struct {
		file   string
		slices map[string]decimal.Decimal
	}{
		{"allocation.png", allocation},
		{"bond_sectors.png", snap.Bonds.Sector},
		{"share_sectors.png", snap.Shares.Sector},
		{"fund_focus.png", snap.Funds.Focus},
	}

	for _, c := range charts {
		if err := writePie(filepath.Join(dir, c.file), c.slices); err != nil {
			return err
		}
	}
	return nil
}

// writePie renders a pie chart PNG; slices with non-positive value are skipped
// and a chart with nothing to show is skipped entirely.
func writePie(path string, slices map[string]decimal.Decimal) error {
	values := make([]chart.Value, 0, len(slices))
	for label, v := range slices {
		if !v.IsPositive() {
			continue
		}
		if label == "" {
			label = "unspecified"
		}
		values = append(values, chart.Value{Label: label, Value: v.InexactFloat64()})
	}
	if len(values) == 0 {
		return nil
	}

	pie := chart.PieChart{
		Width:  chartSize,
		Height: chartSize,
		Values: values,
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	if err := pie.Render(chart.PNG, f); err != nil {
		return errors.Wrapf(err, "render %s", path)
	}
	return nil
}
