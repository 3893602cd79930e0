package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/portfolio"
	"github.com/vadiminshakov/folio/internal/services/rebalance"
	"github.com/vadiminshakov/folio/internal/services/report"
	"github.com/vadiminshakov/folio/internal/setup"
	"github.com/vadiminshakov/folio/internal/storage/snapshots"
	"go.uber.org/zap"
)

// operationsLookback bounds how far back the income history is fetched.
const operationsLookback = 5 * 365 * 24 * time.Hour

type brokerage interface {
	GetPositions(ctx context.Context, accountID string) (domain.AccountPositions, error)
	GetAveragePrices(ctx context.Context, accountID string) (domain.AveragePrices, error)
	GetOperations(ctx context.Context, accountID string, from, to time.Time) ([]domain.Operation, error)
}

// App is the interactive session: it loops on the main menu and dispatches to
// the report and rebalance flows. A failed flow reports the error and returns
// to the menu; only a cancelled prompt or a done context ends the session.
type App struct {
	accountID  string
	client     brokerage
	aggregator *portfolio.Aggregator
	engine     *rebalance.Engine
	renderer   *report.Renderer
	journal    *snapshots.WALStore
	l          *zap.Logger
}

// NewApp wires the session together.
func NewApp(accountID string, client brokerage, aggregator *portfolio.Aggregator,
	engine *rebalance.Engine, renderer *report.Renderer, journal *snapshots.WALStore, l *zap.Logger) *App {

	return &App{
		accountID:  accountID,
		client:     client,
		aggregator: aggregator,
		engine:     engine,
		renderer:   renderer,
		journal:    journal,
		l:          l,
	}
}

// Run drives the menu loop until the user quits or the context is done.
func (a *App) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		setup.ShowHeader()
		action, err := setup.ChooseAction()
		if err != nil {
			return errors.Wrap(err, "menu prompt failed")
		}

		switch action {
		case setup.ActionReport:
			if err := a.runReport(ctx); err != nil {
				a.l.Error("report flow failed", zap.Error(err))
				setup.ShowError(err.Error())
			}
		case setup.ActionRebalance:
			if err := a.runRebalance(ctx); err != nil {
				a.l.Error("rebalance flow failed", zap.Error(err))
				setup.ShowError(err.Error())
			}
		case setup.ActionQuit:
			a.l.Info("session finished")
			return nil
		}
	}
}

// buildSnapshot fetches account state and aggregates it.
func (a *App) buildSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	positions, err := a.client.GetPositions(ctx, a.accountID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch positions")
	}
	avgPrices, err := a.client.GetAveragePrices(ctx, a.accountID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch average prices")
	}

	now := time.Now()
	operations, err := a.client.GetOperations(ctx, a.accountID, now.Add(-operationsLookback), now)
	if err != nil {
		return nil, errors.Wrap(err, "fetch operations")
	}

	return a.aggregator.Aggregate(ctx, positions, operations, avgPrices)
}

func (a *App) runReport(ctx context.Context) error {
	snap, err := a.buildSnapshot(ctx)
	if err != nil {
		return err
	}

	// journal write failures must not cost the user their report
	if err := a.journal.Save(snapshots.RecordFromSnapshot(snap)); err != nil {
		a.l.Error("valuation journal write failed", zap.Error(err))
	}

	dir, err := a.renderer.Render(snap)
	if err != nil {
		return err
	}

	setup.ShowOK(a.renderer.Summary(snap))

	// past valuations give the whole-price number its trend context
	history, err := a.journal.RecordsAfter(0)
	if err != nil {
		a.l.Error("valuation journal read failed", zap.Error(err))
	} else if len(history) > 1 {
		setup.ShowOK(a.renderer.FormatHistory(history))
	}

	setup.ShowOK("report files written to " + dir)
	return nil
}

func (a *App) runRebalance(ctx context.Context) error {
	snap, err := a.buildSnapshot(ctx)
	if err != nil {
		return err
	}

	input, err := setup.PromptRebalance()
	if err != nil {
		return errors.Wrap(err, "rebalance prompt failed")
	}

	weights, err := a.normalizeWithRetry(input.WeightSpec)
	if err != nil {
		return err
	}

	// free cash backs the plan alongside the positions
	total := snap.PositionsTotal().Add(snap.CashTotal)
	plan, err := a.engine.Plan(rebalance.Mode(input.Mode), snap.CurrentValues(), weights, total, input.Injection)
	if err != nil {
		return err
	}

	accepted, err := setup.ConfirmPlan(a.renderer.FormatPlan(plan))
	if err != nil {
		return errors.Wrap(err, "plan confirmation failed")
	}
	if accepted {
		setup.ShowOK("plan accepted; execute the trades with your broker")
	}
	return nil
}

// normalizeWithRetry keeps re-prompting while the spec cannot be normalized.
func (a *App) normalizeWithRetry(spec string) (domain.Weights, error) {
	for {
		weights, status, err := rebalance.Normalize(spec)
		switch status {
		case rebalance.StatusReady:
			return weights, nil
		case rebalance.StatusRebalanced:
			setup.ShowOK("weights rescaled to sum to 1")
			return weights, nil
		default:
			a.l.Warn("target allocation rejected", zap.String("spec", spec), zap.Error(err))
			setup.ShowError(err.Error())
			spec, err = setup.PromptWeightSpec()
			if err != nil {
				return nil, errors.Wrap(err, "weight prompt failed")
			}
		}
	}
}
