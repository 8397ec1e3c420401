package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
	"github.com/fluxfin/fxengine/pkg/provider"
)

// ErrMockFailure is the error a failing Mock returns from every fetch.
var ErrMockFailure = errors.New("mock provider failure")

// Mock is a deterministic RateProvider for tests. Rates are served from an
// injected table, every fetch is counted, and each capability can be
// toggled. The zero value is unusable; use NewMock.
type Mock struct {
	name        string
	available   bool
	historical  bool
	failAll     bool
	rates       map[currency.Pair]float64
	histRates   map[string]float64 // "FROM/TO@2006-01-02"
	observedAt  time.Time
	FetchedSets atomic.Int64
	FetchedPair atomic.Int64
	FetchedHist atomic.Int64
}

// NewMock builds a mock named name serving the given pair→rate table.
func NewMock(name string, rates map[currency.Pair]float64) *Mock {
	return &Mock{
		name:       name,
		available:  true,
		historical: true,
		rates:      rates,
		histRates:  make(map[string]float64),
		observedAt: time.Now().UTC(),
	}
}

// SetAvailable toggles the Available flag.
func (m *Mock) SetAvailable(v bool) *Mock { m.available = v; return m }

// SetHistorical toggles the SupportsHistorical flag.
func (m *Mock) SetHistorical(v bool) *Mock { m.historical = v; return m }

// SetFailing makes every fetch return ErrMockFailure.
func (m *Mock) SetFailing(v bool) *Mock { m.failAll = v; return m }

// SetObservedAt pins the timestamp stamped on served rates.
func (m *Mock) SetObservedAt(t time.Time) *Mock { m.observedAt = t; return m }

// SetHistoricalRate registers a rate for a pair on a specific day.
func (m *Mock) SetHistoricalRate(from, to currency.Currency, date time.Time, value float64) *Mock {
	key := string(from) + "/" + string(to) + "@" + exchange.NormalizeDate(date).Format("2006-01-02")
	m.histRates[key] = value
	return m
}

// Calls reports the total number of fetches of any kind.
func (m *Mock) Calls() int64 {
	return m.FetchedSets.Load() + m.FetchedPair.Load() + m.FetchedHist.Load()
}

// Name implements provider.RateProvider.
func (m *Mock) Name() string { return m.name }

// Available implements provider.RateProvider.
func (m *Mock) Available() bool { return m.available }

// SupportsHistorical implements provider.RateProvider.
func (m *Mock) SupportsHistorical() bool { return m.historical }

// FetchSet implements provider.RateProvider.
func (m *Mock) FetchSet(
	ctx context.Context,
	base currency.Currency,
) (*exchange.RateSet, error) {
	m.FetchedSets.Add(1)
	if m.failAll {
		return nil, ErrMockFailure
	}
	values := make(map[currency.Currency]float64)
	for pair, v := range m.rates {
		if pair.From == base {
			values[pair.To] = v
		}
	}
	if len(values) == 0 {
		return nil, &exchange.RateNotAvailableError{From: base, To: ""}
	}
	return exchange.NewRateSet(base, values, m.observedAt, m.name), nil
}

// FetchPair implements provider.RateProvider.
func (m *Mock) FetchPair(
	ctx context.Context,
	from, to currency.Currency,
) (*exchange.Rate, error) {
	m.FetchedPair.Add(1)
	if m.failAll {
		return nil, ErrMockFailure
	}
	v, ok := m.rates[currency.Pair{From: from, To: to}]
	if !ok {
		return nil, &exchange.RateNotAvailableError{From: from, To: to}
	}
	return exchange.NewRate(from, to, v, m.observedAt, m.name)
}

// FetchHistorical implements provider.RateProvider.
func (m *Mock) FetchHistorical(
	ctx context.Context,
	from, to currency.Currency,
	date time.Time,
) (*exchange.Rate, error) {
	m.FetchedHist.Add(1)
	if m.failAll {
		return nil, ErrMockFailure
	}
	day := exchange.NormalizeDate(date)
	key := string(from) + "/" + string(to) + "@" + day.Format("2006-01-02")
	v, ok := m.histRates[key]
	if !ok {
		return nil, &exchange.HistoricalRateNotAvailableError{From: from, To: to, Date: day}
	}
	return exchange.NewRate(from, to, v, day, m.name)
}

var _ provider.RateProvider = (*Mock)(nil)
