package calculator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
)

// stubSource is a RateSource backed by a fixed rate table, counting how
// many lookups reach it.
type stubSource struct {
	mu    sync.Mutex
	rates map[currency.Pair]float64
	calls atomic.Int64
}

func newStubSource(rates map[currency.Pair]float64) *stubSource {
	return &stubSource{rates: rates}
}

func (s *stubSource) GetRate(
	ctx context.Context,
	from, to currency.Currency,
) (*exchange.Rate, error) {
	s.calls.Add(1)
	if from == to {
		return exchange.Identity(from), nil
	}
	s.mu.Lock()
	v, ok := s.rates[currency.Pair{From: from, To: to}]
	s.mu.Unlock()
	if !ok {
		return nil, &exchange.RateNotAvailableError{From: from, To: to}
	}
	return exchange.NewRate(from, to, v, time.Now(), "stub")
}

func mustRate(t *testing.T, from, to currency.Currency, value float64) *exchange.Rate {
	t.Helper()
	r, err := exchange.NewRate(from, to, value, time.Now(), "test")
	require.NoError(t, err)
	return r
}

func TestConvert(t *testing.T) {
	calc := New()
	rate := mustRate(t, currency.USD, currency.EUR, 0.85)

	assert.InDelta(t, 85.0, calc.Convert(100, rate), 1e-9)
	assert.InDelta(t, -85.0, calc.Convert(-100, rate), 1e-9)
	assert.Zero(t, calc.Convert(0, rate))
}

func TestBatchConvertWithRates_PartialFailureIsolation(t *testing.T) {
	calc := New()
	rates := map[currency.Pair]*exchange.Rate{
		{From: currency.USD, To: currency.EUR}: mustRate(t, currency.USD, currency.EUR, 0.85),
	}
	requests := []ConversionRequest{
		{Amount: 100, From: currency.USD, To: currency.EUR},
		{Amount: 50, From: currency.GBP, To: currency.USD},
	}

	results := calc.BatchConvertWithRates(requests, rates)
	require.Len(t, results, 2)

	assert.True(t, results[0].Succeeded)
	assert.InDelta(t, 85.0, results[0].ConvertedAmount, 1e-9)

	assert.False(t, results[1].Succeeded)
	var notAvailable *exchange.RateNotAvailableError
	require.ErrorAs(t, results[1].Err, &notAvailable)
	assert.Equal(t, currency.GBP, notAvailable.From)
}

func TestBatchConvertWithRates_IdentityWithoutEntry(t *testing.T) {
	calc := New()
	results := calc.BatchConvertWithRates([]ConversionRequest{
		{Amount: 42, From: currency.USD, To: currency.USD},
	}, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].Succeeded)
	assert.InDelta(t, 42.0, results[0].ConvertedAmount, 1e-9)
}

func TestBatchConvert_GroupsByPair(t *testing.T) {
	calc := New()
	source := newStubSource(map[currency.Pair]float64{
		{From: currency.USD, To: currency.EUR}: 0.85,
	})

	requests := make([]ConversionRequest, 100)
	for i := range requests {
		requests[i] = ConversionRequest{Amount: float64(i), From: currency.USD, To: currency.EUR}
	}

	results := calc.BatchConvert(context.Background(), requests, source)
	require.Len(t, results, 100)
	for i, res := range results {
		require.True(t, res.Succeeded)
		assert.InDelta(t, float64(i)*0.85, res.ConvertedAmount, 1e-9)
	}
	assert.Equal(t, int64(1), source.calls.Load(),
		"one fetch per distinct pair regardless of request count")
}

func TestBatchConvert_GroupFailureIsolation(t *testing.T) {
	calc := New()
	source := newStubSource(map[currency.Pair]float64{
		{From: currency.USD, To: currency.EUR}: 0.85,
	})

	requests := []ConversionRequest{
		{Amount: 100, From: currency.USD, To: currency.EUR},
		{Amount: 10, From: currency.GBP, To: currency.JPY},
		{Amount: 20, From: currency.GBP, To: currency.JPY},
		{Amount: 200, From: currency.USD, To: currency.EUR},
	}
	results := calc.BatchConvert(context.Background(), requests, source)
	require.Len(t, results, 4)

	assert.True(t, results[0].Succeeded)
	assert.True(t, results[3].Succeeded)

	// Both requests of the failed group carry the same underlying error.
	assert.False(t, results[1].Succeeded)
	assert.False(t, results[2].Succeeded)
	assert.Equal(t, results[1].Err, results[2].Err)
	assert.Equal(t, int64(2), source.calls.Load(), "two distinct pairs, two fetches")
}

func TestPortfolioValue(t *testing.T) {
	calc := New()
	source := newStubSource(map[currency.Pair]float64{
		{From: currency.EUR, To: currency.USD}: 1.1,
	})

	holdings := []Holding{
		{AssetID: uuid.NewString(), Currency: currency.USD, Amount: 1000},
		{AssetID: uuid.NewString(), Currency: currency.EUR, Amount: 2000},
	}

	pv := calc.PortfolioValue(context.Background(), holdings, currency.USD, source)
	assert.InDelta(t, 3200.0, pv.TotalValue, 1e-9)
	assert.Equal(t, 2, pv.SuccessfulConversions)
	assert.Zero(t, pv.FailedConversions)
	assert.InDelta(t, 1000.0, pv.ValuesByAsset[holdings[0].AssetID], 1e-9)
	assert.InDelta(t, 2200.0, pv.ValuesByAsset[holdings[1].AssetID], 1e-9)
}

func TestPortfolioValue_PartialFailure(t *testing.T) {
	calc := New()
	source := newStubSource(map[currency.Pair]float64{
		{From: currency.EUR, To: currency.USD}: 1.1,
	})

	holdings := []Holding{
		{AssetID: "a", Currency: currency.EUR, Amount: 1000},
		{AssetID: "b", Currency: currency.GBP, Amount: 500},
	}

	pv := calc.PortfolioValue(context.Background(), holdings, currency.USD, source)
	assert.InDelta(t, 1100.0, pv.TotalValue, 1e-9,
		"total is computed from the successes")
	assert.Equal(t, 1, pv.SuccessfulConversions)
	assert.Equal(t, 1, pv.FailedConversions)
	assert.NotContains(t, pv.ValuesByAsset, "b")
}

func TestCurrencyBreakdown(t *testing.T) {
	calc := New()
	source := newStubSource(map[currency.Pair]float64{
		{From: currency.EUR, To: currency.USD}: 1.0,
	})

	holdings := []Holding{
		{AssetID: "a", Currency: currency.USD, Amount: 1000},
		{AssetID: "b", Currency: currency.USD, Amount: 2000},
		{AssetID: "c", Currency: currency.EUR, Amount: 3000},
	}

	breakdown := calc.CurrencyBreakdown(context.Background(), holdings, currency.USD, source)
	require.Len(t, breakdown.Items, 2)
	assert.InDelta(t, 6000.0, breakdown.TotalValue, 1e-9)

	sum := 0.0
	for _, item := range breakdown.Items {
		sum += item.Percentage
		assert.InDelta(t, 50.0, item.Percentage, 0.1)
	}
	assert.InDelta(t, 100.0, sum, 0.1)

	// One conversion per native currency, not per holding.
	assert.Equal(t, int64(2), source.calls.Load())

	usdItem := breakdown.Items[0]
	if usdItem.Currency != currency.USD {
		usdItem = breakdown.Items[1]
	}
	assert.Equal(t, 2, usdItem.HoldingCount)
	assert.InDelta(t, 3000.0, usdItem.NativeAmount, 1e-9)
}

func TestCurrencyBreakdown_SortedByValue(t *testing.T) {
	calc := New()
	source := newStubSource(map[currency.Pair]float64{
		{From: currency.EUR, To: currency.USD}: 1.1,
		{From: currency.GBP, To: currency.USD}: 1.3,
	})

	holdings := []Holding{
		{AssetID: "a", Currency: currency.GBP, Amount: 100},
		{AssetID: "b", Currency: currency.EUR, Amount: 5000},
		{AssetID: "c", Currency: currency.USD, Amount: 300},
	}

	breakdown := calc.CurrencyBreakdown(context.Background(), holdings, currency.USD, source)
	require.Len(t, breakdown.Items, 3)
	assert.Equal(t, currency.EUR, breakdown.Items[0].Currency)
	assert.Equal(t, currency.USD, breakdown.Items[1].Currency)
	assert.Equal(t, currency.GBP, breakdown.Items[2].Currency)
}
