// Command folio analyzes a brokerage portfolio: it values every position in
// the reference currency, writes reports with income metrics and allocation
// charts, and plans rebalancing under three constraint regimes.
//
// Usage:
//
//	folio --config config.yaml
//	folio (uses CLI arguments)
//
// Required environment variables:
//
//	TINKOFF_API_TOKEN - read-only API token for the brokerage gateway
package main

import (
	"context"
	"log"
	"os"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal"
	"github.com/vadiminshakov/folio/internal/clients"
	"github.com/vadiminshakov/folio/internal/services/marketdata"
	"github.com/vadiminshakov/folio/internal/services/portfolio"
	"github.com/vadiminshakov/folio/internal/services/rebalance"
	"github.com/vadiminshakov/folio/internal/services/report"
	"github.com/vadiminshakov/folio/internal/storage/snapshots"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	token := os.Getenv("TINKOFF_API_TOKEN")
	if token == "" {
		log.Fatal("TINKOFF_API_TOKEN environment variable must be set")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx := context.Background()
	client := clients.NewTinkoffClient(cfg.BaseURL, token, cfg.HTTPTimeout, logger)

	accountID := cfg.AccountID
	if accountID == "" {
		accounts, err := client.GetAccounts(ctx)
		if err != nil {
			logger.Fatal("account lookup failed", zap.Error(err))
		}
		if len(accounts) == 0 {
			logger.Fatal("no accounts visible to the token")
		}
		accountID = accounts[0].ID
		logger.Info("account selected", zap.String("account", accountID), zap.String("name", accounts[0].Name))
	}

	rates, err := client.GetFxRates(ctx, cfg.ReferenceCurrency)
	if err != nil {
		logger.Fatal("fx rate snapshot failed", zap.Error(err))
	}

	journal, err := snapshots.NewWALStore(cfg.JournalDir)
	if err != nil {
		logger.Fatal("valuation journal init failed", zap.Error(err))
	}
	defer journal.Close()

	cache := marketdata.NewCache(client)
	aggregator := portfolio.NewAggregator(cache, client, rates, logger)
	engine := rebalance.NewEngine(logger)
	renderer := report.NewRenderer(cfg.ReportDir, logger)

	app := internal.NewApp(accountID, client, aggregator, engine, renderer, journal, logger)
	if err := app.Run(ctx); err != nil {
		logger.Fatal("session failed", zap.Error(err))
	}
}
