package clients

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

// The REST gateway serializes protobuf messages as JSON: int64 fields arrive
// as strings, money comes split into whole units plus nano-units.

type moneyValue struct {
	Currency string `json:"currency"`
	Units    string `json:"units"`
	Nano     int32  `json:"nano"`
}

func (m moneyValue) toMoney() domain.Money {
	return domain.MoneyFromUnitsNano(parseUnits(m.Units), m.Nano, m.Currency)
}

type quotation struct {
	Units string `json:"units"`
	Nano  int32  `json:"nano"`
}

func (q quotation) toDecimal() decimal.Decimal {
	return domain.QuotationFromUnitsNano(parseUnits(q.Units), q.Nano)
}

func parseUnits(s string) int64 {
	if s == "" {
		return 0
	}
	units, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return units
}

type accountsResponse struct {
	Accounts []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"accounts"`
}

type positionsRequest struct {
	AccountID string `json:"accountId"`
}

type positionsResponse struct {
	Money      []moneyValue `json:"money"`
	Blocked    []moneyValue `json:"blocked"`
	Securities []struct {
		Figi           string `json:"figi"`
		Balance        string `json:"balance"`
		InstrumentType string `json:"instrumentType"`
	} `json:"securities"`
}

type portfolioRequest struct {
	AccountID string `json:"accountId"`
}

type portfolioResponse struct {
	Positions []struct {
		Figi                 string     `json:"figi"`
		AveragePositionPrice moneyValue `json:"averagePositionPrice"`
	} `json:"positions"`
}

type operationsRequest struct {
	AccountID      string   `json:"accountId"`
	From           string   `json:"from"`
	To             string   `json:"to"`
	Cursor         string   `json:"cursor,omitempty"`
	Limit          int      `json:"limit"`
	OperationTypes []string `json:"operationTypes"`
}

type operationsResponse struct {
	HasNext    bool   `json:"hasNext"`
	NextCursor string `json:"nextCursor"`
	Items      []struct {
		ID             string     `json:"id"`
		Type           string     `json:"type"`
		Figi           string     `json:"figi"`
		Name           string     `json:"name"`
		Date           time.Time  `json:"date"`
		Payment        moneyValue `json:"payment"`
		InstrumentType string     `json:"instrumentType"`
	} `json:"items"`
}

type instrumentRequest struct {
	IDType string `json:"idType"`
	ID     string `json:"id"`
}

type instrumentResponse struct {
	Instrument wireInstrument `json:"instrument"`
}

// wireInstrument is the superset of the per-class instrument payloads; only
// the fields relevant to the requested class are populated.
type wireInstrument struct {
	Figi              string `json:"figi"`
	Name              string `json:"name"`
	Sector            string `json:"sector"`
	CountryOfRiskName string `json:"countryOfRiskName"`
	Currency          string `json:"currency"`

	InitialNominal        *moneyValue `json:"initialNominal"`
	CouponQuantityPerYear int32       `json:"couponQuantityPerYear"`
	FloatingCouponFlag    bool        `json:"floatingCouponFlag"`
	AmortizationFlag      bool        `json:"amortizationFlag"`
	PlacementDate         time.Time   `json:"placementDate"`
	MaturityDate          time.Time   `json:"maturityDate"`

	FocusType string `json:"focusType"`
}

func (w wireInstrument) toDomain(class domain.InstrumentClass) *domain.Instrument {
	inst := &domain.Instrument{
		Key:      w.Figi,
		Class:    class,
		Name:     w.Name,
		Sector:   w.Sector,
		Country:  w.CountryOfRiskName,
		Currency: w.Currency,
	}

	switch class {
	case domain.ClassBond:
		details := &domain.BondDetails{
			CouponsPerYear: int(w.CouponQuantityPerYear),
			FloatingCoupon: w.FloatingCouponFlag,
			Amortization:   w.AmortizationFlag,
			PlacementDate:  w.PlacementDate,
			MaturityDate:   w.MaturityDate,
		}
		if w.InitialNominal != nil {
			details.Nominal = w.InitialNominal.toMoney()
		}
		inst.Bond = details
	case domain.ClassFund:
		inst.Fund = &domain.FundDetails{Focus: w.FocusType}
	}

	return inst
}

type lastPricesRequest struct {
	InstrumentID []string `json:"instrumentId"`
}

type lastPricesResponse struct {
	LastPrices []struct {
		Figi  string    `json:"figi"`
		Price quotation `json:"price"`
	} `json:"lastPrices"`
}

type scheduleRequest struct {
	Figi string `json:"figi"`
	From string `json:"from"`
	To   string `json:"to"`
}

type couponsResponse struct {
	Events []struct {
		CouponDate time.Time  `json:"couponDate"`
		PayOneBond moneyValue `json:"payOneBond"`
	} `json:"events"`
}

type dividendsResponse struct {
	Dividends []struct {
		RecordDate  time.Time  `json:"recordDate"`
		DividendNet moneyValue `json:"dividendNet"`
	} `json:"dividends"`
}

type currenciesRequest struct {
	InstrumentStatus string `json:"instrumentStatus"`
}

type currenciesResponse struct {
	Instruments []struct {
		Figi            string `json:"figi"`
		IsoCurrencyName string `json:"isoCurrencyName"`
	} `json:"instruments"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
