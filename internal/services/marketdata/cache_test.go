package marketdata

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
)

type countingSource struct {
	instrumentCalls int
	priceCalls      int
	fail            bool
}

func (s *countingSource) GetInstrument(_ context.Context, key string, class domain.InstrumentClass) (*domain.Instrument, error) {
	s.instrumentCalls++
	if s.fail {
		return nil, errors.New("source down")
	}
	return &domain.Instrument{Key: key, Class: class, Name: "instr-" + key}, nil
}

func (s *countingSource) GetLastPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	s.priceCalls++
	if s.fail {
		return decimal.Decimal{}, errors.New("source down")
	}
	return decimal.NewFromInt(42), nil
}

func TestCacheMemoizesInstruments(t *testing.T) {
	src := &countingSource{}
	cache := NewCache(src)

	for i := 0; i < 3; i++ {
		inst, err := cache.Instrument(context.Background(), "figi1", domain.ClassShare)
		require.NoError(t, err)
		assert.Equal(t, "instr-figi1", inst.Name)
	}
	assert.Equal(t, 1, src.instrumentCalls, "only the first lookup may hit the source")

	_, err := cache.Instrument(context.Background(), "figi2", domain.ClassShare)
	require.NoError(t, err)
	assert.Equal(t, 2, src.instrumentCalls)
	assert.Equal(t, 2, cache.Size())
}

func TestCacheMemoizesPrices(t *testing.T) {
	src := &countingSource{}
	cache := NewCache(src)

	for i := 0; i < 3; i++ {
		price, err := cache.LastPrice(context.Background(), "figi1")
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(42)))
	}
	assert.Equal(t, 1, src.priceCalls)
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	src := &countingSource{fail: true}
	cache := NewCache(src)

	_, err := cache.Instrument(context.Background(), "figi1", domain.ClassShare)
	assert.Error(t, err)

	src.fail = false
	inst, err := cache.Instrument(context.Background(), "figi1", domain.ClassShare)
	require.NoError(t, err)
	assert.Equal(t, "instr-figi1", inst.Name)
	assert.Equal(t, 2, src.instrumentCalls)
}
