// Package clients contains the network client for the brokerage REST
// gateway.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/pkg/retrier"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public invest REST gateway.
	DefaultBaseURL = "https://invest-public-api.tinkoff.ru/rest"

	defaultTimeout = 30 * time.Second
	servicePrefix  = "tinkoff.public.invest.api.contract.v1."
	figiIDType     = "INSTRUMENT_ID_TYPE_FIGI"
	operationsPage = 1000
)

// TinkoffClient talks JSON-over-HTTP to the brokerage account, instrument,
// market data and history services. Every call blocks the caller; transient
// failures are retried with exponential backoff.
type TinkoffClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retrier    *retrier.Retrier
	l          *zap.Logger
}

// Account is one brokerage account visible to the token.
type Account struct {
	ID   string
	Name string
}

// NewTinkoffClient creates a client for the given gateway and token.
func NewTinkoffClient(baseURL, token string, timeout time.Duration, l *zap.Logger) *TinkoffClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TinkoffClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		retrier:    retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(500*time.Millisecond)),
		l:          l,
	}
}

// call posts the request to {service}/{method} and decodes the response,
// retrying transient failures.
func (c *TinkoffClient) call(ctx context.Context, service, method string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrapf(err, "marshal %s request", method)
	}

	url := fmt.Sprintf("%s/%s%s/%s", c.baseURL, servicePrefix, service, method)

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return errors.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("x-request-id", uuid.NewString())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrapf(err, "%s request failed", method)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "read response body")
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr errorResponse
			if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
				return errors.Errorf("%s returned status %d: %s", method, resp.StatusCode, apiErr.Message)
			}
			return errors.Errorf("%s returned status %d", method, resp.StatusCode)
		}

		if err := json.Unmarshal(body, respBody); err != nil {
			return errors.Wrapf(err, "unmarshal %s response", method)
		}
		return nil
	})
}

// GetAccounts lists the accounts visible to the token.
func (c *TinkoffClient) GetAccounts(ctx context.Context) ([]Account, error) {
	var resp accountsResponse
	if err := c.call(ctx, "UsersService", "GetAccounts", struct{}{}, &resp); err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		accounts = append(accounts, Account{ID: a.ID, Name: a.Name})
	}
	return accounts, nil
}

// GetPositions fetches cash balances, blocked balances and security holdings
// for the account.
func (c *TinkoffClient) GetPositions(ctx context.Context, accountID string) (domain.AccountPositions, error) {
	var resp positionsResponse
	if err := c.call(ctx, "OperationsService", "GetPositions", positionsRequest{AccountID: accountID}, &resp); err != nil {
		return domain.AccountPositions{}, err
	}

	positions := domain.AccountPositions{
		Cash:    make([]domain.Money, 0, len(resp.Money)),
		Blocked: make([]domain.Money, 0, len(resp.Blocked)),
	}
	for _, m := range resp.Money {
		positions.Cash = append(positions.Cash, m.toMoney())
	}
	for _, m := range resp.Blocked {
		positions.Blocked = append(positions.Blocked, m.toMoney())
	}
	for _, s := range resp.Securities {
		positions.Securities = append(positions.Securities, domain.SecurityPosition{
			Key:      s.Figi,
			Class:    domain.InstrumentClass(s.InstrumentType),
			Quantity: decimal.NewFromInt(parseUnits(s.Balance)),
		})
	}
	return positions, nil
}

// GetAveragePrices fetches average purchase prices per instrument key from
// the portfolio endpoint.
func (c *TinkoffClient) GetAveragePrices(ctx context.Context, accountID string) (domain.AveragePrices, error) {
	var resp portfolioResponse
	if err := c.call(ctx, "OperationsService", "GetPortfolio", portfolioRequest{AccountID: accountID}, &resp); err != nil {
		return nil, err
	}

	prices := make(domain.AveragePrices, len(resp.Positions))
	for _, p := range resp.Positions {
		prices[p.Figi] = p.AveragePositionPrice.toMoney()
	}
	return prices, nil
}

// GetOperations pages through the account history cursor and returns
// dividend- and coupon-type entries only.
func (c *TinkoffClient) GetOperations(ctx context.Context, accountID string, from, to time.Time) ([]domain.Operation, error) {
	var operations []domain.Operation
	cursor := ""
	for {
		req := operationsRequest{
			AccountID: accountID,
			From:      from.Format(time.RFC3339),
			To:        to.Format(time.RFC3339),
			Cursor:    cursor,
			Limit:     operationsPage,
			OperationTypes: []string{
				"OPERATION_TYPE_DIVIDEND",
				"OPERATION_TYPE_COUPON",
			},
		}
		var resp operationsResponse
		if err := c.call(ctx, "OperationsService", "GetOperationsByCursor", req, &resp); err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			opType, ok := operationTypeFromWire(item.Type)
			if !ok {
				continue
			}
			operations = append(operations, domain.Operation{
				ID:            item.ID,
				Type:          opType,
				InstrumentKey: item.Figi,
				Name:          item.Name,
				Payment:       item.Payment.toMoney(),
				Date:          item.Date,
			})
		}

		if !resp.HasNext {
			return operations, nil
		}
		cursor = resp.NextCursor
	}
}

func operationTypeFromWire(wire string) (domain.OperationType, bool) {
	switch wire {
	case "OPERATION_TYPE_DIVIDEND":
		return domain.OperationDividend, true
	case "OPERATION_TYPE_COUPON":
		return domain.OperationCoupon, true
	default:
		return "", false
	}
}

// GetInstrument fetches instrument metadata through the class-specific
// endpoint, falling back to the generic one for unknown classes.
func (c *TinkoffClient) GetInstrument(ctx context.Context, key string, class domain.InstrumentClass) (*domain.Instrument, error) {
	var method string
	switch class {
	case domain.ClassBond:
		method = "BondBy"
	case domain.ClassShare:
		method = "ShareBy"
	case domain.ClassFund:
		method = "EtfBy"
	default:
		method = "GetInstrumentBy"
	}

	var resp instrumentResponse
	if err := c.call(ctx, "InstrumentsService", method, instrumentRequest{IDType: figiIDType, ID: key}, &resp); err != nil {
		return nil, err
	}
	return resp.Instrument.toDomain(class), nil
}

// GetLastPrice fetches the latest quote for one instrument.
func (c *TinkoffClient) GetLastPrice(ctx context.Context, key string) (decimal.Decimal, error) {
	var resp lastPricesResponse
	if err := c.call(ctx, "MarketDataService", "GetLastPrices", lastPricesRequest{InstrumentID: []string{key}}, &resp); err != nil {
		return decimal.Decimal{}, err
	}
	if len(resp.LastPrices) == 0 {
		return decimal.Decimal{}, errors.Errorf("no last price for %s", key)
	}
	return resp.LastPrices[0].Price.toDecimal(), nil
}

// GetBondCoupons fetches the coupon schedule, ordered by date ascending.
func (c *TinkoffClient) GetBondCoupons(ctx context.Context, key string, from, to time.Time) ([]domain.CouponEvent, error) {
	req := scheduleRequest{Figi: key, From: from.Format(time.RFC3339), To: to.Format(time.RFC3339)}
	var resp couponsResponse
	if err := c.call(ctx, "InstrumentsService", "GetBondCoupons", req, &resp); err != nil {
		return nil, err
	}

	events := make([]domain.CouponEvent, 0, len(resp.Events))
	for _, ev := range resp.Events {
		events = append(events, domain.CouponEvent{Date: ev.CouponDate, Amount: ev.PayOneBond.toMoney()})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events, nil
}

// GetDividends fetches scheduled dividends for the period.
func (c *TinkoffClient) GetDividends(ctx context.Context, key string, from, to time.Time) ([]domain.DividendEvent, error) {
	req := scheduleRequest{Figi: key, From: from.Format(time.RFC3339), To: to.Format(time.RFC3339)}
	var resp dividendsResponse
	if err := c.call(ctx, "InstrumentsService", "GetDividends", req, &resp); err != nil {
		return nil, err
	}

	events := make([]domain.DividendEvent, 0, len(resp.Dividends))
	for _, d := range resp.Dividends {
		events = append(events, domain.DividendEvent{RecordDate: d.RecordDate, Amount: d.DividendNet.toMoney()})
	}
	return events, nil
}

// GetFxRates snapshots last prices for every traded currency against the
// reference currency.
func (c *TinkoffClient) GetFxRates(ctx context.Context, reference string) (domain.FxRates, error) {
	var resp currenciesResponse
	req := currenciesRequest{InstrumentStatus: "INSTRUMENT_STATUS_BASE"}
	if err := c.call(ctx, "InstrumentsService", "Currencies", req, &resp); err != nil {
		return domain.FxRates{}, err
	}

	rates := make(map[string]decimal.Decimal, len(resp.Instruments))
	for _, cur := range resp.Instruments {
		if cur.IsoCurrencyName == "" || cur.IsoCurrencyName == reference {
			continue
		}
		price, err := c.GetLastPrice(ctx, cur.Figi)
		if err != nil {
			return domain.FxRates{}, errors.Wrapf(err, "rate lookup failed for %s", cur.IsoCurrencyName)
		}
		rates[cur.IsoCurrencyName] = price
	}

	c.l.Info("fx rates snapshotted", zap.Int("currencies", len(rates)))
	return domain.NewFxRates(reference, rates), nil
}
