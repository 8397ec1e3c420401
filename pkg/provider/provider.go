// Package provider defines the capability contract an external source of
// exchange rates must satisfy. Concrete adapters live under infra/provider.
package provider

import (
	"context"
	"time"

	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
)

// RateProvider is one external source of exchange rates.
//
// Fetch calls perform exactly one network request and nothing else: no
// caching, no request counting. Both are the caller's responsibility so the
// service can consult admission control before every attempt. A fetch must
// fail rather than return a stale or fabricated rate.
type RateProvider interface {
	// FetchSet retrieves every rate the source quotes against base.
	FetchSet(ctx context.Context, base currency.Currency) (*exchange.RateSet, error)

	// FetchPair retrieves the current rate for a single pair.
	FetchPair(ctx context.Context, from, to currency.Currency) (*exchange.Rate, error)

	// FetchHistorical retrieves the rate for a pair on a past calendar day.
	FetchHistorical(
		ctx context.Context,
		from, to currency.Currency,
		date time.Time,
	) (*exchange.Rate, error)

	// Available reports whether the provider can be dispatched to at all,
	// e.g. false when no API credential is configured.
	Available() bool

	// SupportsHistorical reports whether FetchHistorical is implemented by
	// the underlying source.
	SupportsHistorical() bool

	// Name identifies the provider in cache entries, quotas, and logs.
	Name() string
}
