package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/pkg/retrier"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *TinkoffClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTinkoffClient(srv.URL, "test-token", 5*time.Second, zap.NewNop())
}

func TestCallSendsAuthAndDecodesMoney(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("x-request-id"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "OperationsService/GetPositions"), "path %s", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"money":   []map[string]any{{"currency": "rub", "units": "100", "nano": 500000000}},
			"blocked": []map[string]any{{"currency": "usd", "units": "1", "nano": 0}},
			"securities": []map[string]any{
				{"figi": "BBG000000001", "balance": "10", "instrumentType": "bond"},
			},
		})
	})

	positions, err := client.GetPositions(context.Background(), "acc1")
	require.NoError(t, err)

	require.Len(t, positions.Cash, 1)
	assert.True(t, positions.Cash[0].Amount.Equal(decimal.NewFromFloat(100.5)), "got %s", positions.Cash[0].Amount)
	assert.Equal(t, "rub", positions.Cash[0].Currency)

	require.Len(t, positions.Securities, 1)
	assert.Equal(t, domain.ClassBond, positions.Securities[0].Class)
	assert.True(t, positions.Securities[0].Quantity.Equal(decimal.NewFromInt(10)))
}

func TestCallSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"code": 16, "message": "token expired"})
	})
	// shrink the backoff so the exhausted retries do not slow the test down
	client.retrier = retrier.New(retrier.WithMaxRetries(1), retrier.WithInitialInterval(time.Millisecond))

	_, err := client.GetAccounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestGetOperationsPagesThroughCursor(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req operationsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		calls++

		if req.Cursor == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"hasNext":    true,
				"nextCursor": "page2",
				"items": []map[string]any{
					{
						"id": "op1", "type": "OPERATION_TYPE_DIVIDEND", "figi": "f1", "name": "Lukoil",
						"date":    time.Now().UTC().Format(time.RFC3339),
						"payment": map[string]any{"currency": "rub", "units": "250", "nano": 0},
					},
					{
						"id": "op2", "type": "OPERATION_TYPE_BUY", "figi": "f1", "name": "Lukoil",
						"payment": map[string]any{"currency": "rub", "units": "-100", "nano": 0},
					},
				},
			})
			return
		}

		assert.Equal(t, "page2", req.Cursor)
		json.NewEncoder(w).Encode(map[string]any{
			"hasNext": false,
			"items": []map[string]any{
				{
					"id": "op3", "type": "OPERATION_TYPE_COUPON", "figi": "f2", "name": "OFZ",
					"payment": map[string]any{"currency": "rub", "units": "35", "nano": 0},
				},
			},
		})
	})

	ops, err := client.GetOperations(context.Background(), "acc1", time.Now().AddDate(-1, 0, 0), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// the unrelated buy operation is dropped
	require.Len(t, ops, 2)
	assert.Equal(t, domain.OperationDividend, ops[0].Type)
	assert.Equal(t, domain.OperationCoupon, ops[1].Type)
	assert.True(t, ops[1].Payment.Amount.Equal(decimal.NewFromInt(35)))
}

func TestGetBondCouponsSortsAscending(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"events": []map[string]any{
				{"couponDate": "2027-01-01T00:00:00Z", "payOneBond": map[string]any{"currency": "rub", "units": "40", "nano": 0}},
				{"couponDate": "2026-01-01T00:00:00Z", "payOneBond": map[string]any{"currency": "rub", "units": "35", "nano": 0}},
			},
		})
	})

	events, err := client.GetBondCoupons(context.Background(), "f1", time.Now(), time.Now().AddDate(2, 0, 0))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.True(t, events[0].Date.Before(events[1].Date))
	assert.True(t, events[0].Amount.Amount.Equal(decimal.NewFromInt(35)))
}

func TestGetInstrumentDispatchesByClass(t *testing.T) {
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"instrument": map[string]any{
				"figi": "f1", "name": "OFZ 26238", "sector": "government",
				"initialNominal":        map[string]any{"currency": "rub", "units": "1000", "nano": 0},
				"couponQuantityPerYear": 2,
			},
		})
	})

	inst, err := client.GetInstrument(context.Background(), "f1", domain.ClassBond)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "InstrumentsService/BondBy"))
	require.NotNil(t, inst.Bond)
	assert.Equal(t, 2, inst.Bond.CouponsPerYear)
	assert.True(t, inst.Bond.Nominal.Amount.Equal(decimal.NewFromInt(1000)))

	_, err = client.GetInstrument(context.Background(), "f1", "warrant")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "InstrumentsService/GetInstrumentBy"))
}

func TestGetLastPriceEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"lastPrices": []any{}})
	})

	_, err := client.GetLastPrice(context.Background(), "f1")
	assert.Error(t, err)
}
