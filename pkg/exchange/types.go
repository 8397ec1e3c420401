// Package exchange holds the domain types of the rate engine: exchange
// rates, bulk rate sets, and the error taxonomy shared by the cache,
// the limiter, and the conversion service.
package exchange

import (
	"fmt"
	"math"
	"time"

	"github.com/fluxfin/fxengine/pkg/currency"
)

// DefaultTTL is how long a current rate is considered fresh.
const DefaultTTL = 4 * time.Hour

// Rate is one observed exchange rate between two currencies.
type Rate struct {
	From       currency.Currency `json:"from"`
	To         currency.Currency `json:"to"`
	Value      float64           `json:"rate"`
	ObservedAt time.Time         `json:"observed_at"`
	Source     string            `json:"source"`
}

// NewRate validates and constructs a rate. The value must be a positive
// finite number; providers returning anything else are treated as broken.
func NewRate(
	from, to currency.Currency,
	value float64,
	observedAt time.Time,
	source string,
) (*Rate, error) {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: rate %v for %s/%s", ErrInvalidResponse, value, from, to)
	}
	return &Rate{
		From:       from,
		To:         to,
		Value:      value,
		ObservedAt: observedAt,
		Source:     source,
	}, nil
}

// Identity returns the degenerate 1.0 rate for a currency against itself.
func Identity(c currency.Currency) *Rate {
	return &Rate{
		From:       c,
		To:         c,
		Value:      1.0,
		ObservedAt: time.Now().UTC(),
		Source:     "identity",
	}
}

// Pair returns the lookup key for this rate.
func (r *Rate) Pair() currency.Pair {
	return currency.Pair{From: r.From, To: r.To}
}

// Inverse derives the reversed-direction rate. It is computed once at cache
// write time so every external fetch doubles effective cache coverage; the
// inverse is never refetched live.
func (r *Rate) Inverse() *Rate {
	return &Rate{
		From:       r.To,
		To:         r.From,
		Value:      1 / r.Value,
		ObservedAt: r.ObservedAt,
		Source:     r.Source,
	}
}

// Expired reports whether the rate is older than ttl at the given instant.
func (r *Rate) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(r.ObservedAt) > ttl
}

// RateSet is the result of one bulk fetch: every rate a provider quotes
// against a single base currency.
type RateSet struct {
	Base      currency.Currency           `json:"base"`
	Rates     map[currency.Currency]*Rate `json:"rates"`
	FetchedAt time.Time                   `json:"fetched_at"`
}

// NewRateSet builds a set from a raw currency→value map, dropping
// non-positive quotes instead of failing the whole set.
func NewRateSet(
	base currency.Currency,
	values map[currency.Currency]float64,
	observedAt time.Time,
	source string,
) *RateSet {
	set := &RateSet{
		Base:      base,
		Rates:     make(map[currency.Currency]*Rate, len(values)),
		FetchedAt: observedAt,
	}
	for to, v := range values {
		if to == base {
			continue
		}
		r, err := NewRate(base, to, v, observedAt, source)
		if err != nil {
			continue
		}
		set.Rates[to] = r
	}
	return set
}

// NormalizeDate truncates a timestamp to the start of its UTC calendar day.
// Historical rates are keyed by day, not by instant.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
