// Package marketdata memoizes instrument metadata and last-price lookups.
package marketdata

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
)

type instrumentSource interface {
	GetInstrument(ctx context.Context, key string, class domain.InstrumentClass) (*domain.Instrument, error)
	GetLastPrice(ctx context.Context, key string) (decimal.Decimal, error)
}

// Cache memoizes per-instrument lookups for the lifetime of one aggregator.
// There is no eviction: the cache is bounded by the number of distinct
// instruments an account touches. It is an explicit object passed into the
// aggregator, never ambient state, so a caller controls when stale metadata
// gets thrown away by constructing a fresh cache.
type Cache struct {
	src instrumentSource

	mu          sync.RWMutex
	instruments map[string]*domain.Instrument
	prices      map[string]decimal.Decimal
}

// NewCache wraps the broker lookup source with memoization.
func NewCache(src instrumentSource) *Cache {
	return &Cache{
		src:         src,
		instruments: make(map[string]*domain.Instrument),
		prices:      make(map[string]decimal.Decimal),
	}
}

// Instrument returns the cached metadata for the key, fetching it once on
// first use.
func (c *Cache) Instrument(ctx context.Context, key string, class domain.InstrumentClass) (*domain.Instrument, error) {
	c.mu.RLock()
	inst, ok := c.instruments[key]
	c.mu.RUnlock()
	if ok {
		return inst, nil
	}

	inst, err := c.src.GetInstrument(ctx, key, class)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch instrument %s", key)
	}

	c.mu.Lock()
	c.instruments[key] = inst
	c.mu.Unlock()

	return inst, nil
}

// LastPrice returns the cached last price for the key, fetching it once on
// first use.
func (c *Cache) LastPrice(ctx context.Context, key string) (decimal.Decimal, error) {
	c.mu.RLock()
	price, ok := c.prices[key]
	c.mu.RUnlock()
	if ok {
		return price, nil
	}

	price, err := c.src.GetLastPrice(ctx, key)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "fetch last price %s", key)
	}

	c.mu.Lock()
	c.prices[key] = price
	c.mu.Unlock()

	return price, nil
}

// Size returns the number of distinct instruments cached so far.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instruments)
}
