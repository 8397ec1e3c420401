package exchange

import (
	"errors"
	"fmt"
	"time"

	"github.com/fluxfin/fxengine/pkg/currency"
)

// Sentinel errors for conditions that carry no parameters.
var (
	// ErrNoProvidersConfigured is returned when the service was built with
	// an empty provider list.
	ErrNoProvidersConfigured = errors.New("no rate providers configured")

	// ErrInvalidResponse is returned when a provider answers with a payload
	// that cannot be turned into a usable rate.
	ErrInvalidResponse = errors.New("invalid provider response")
)

// RateNotAvailableError is returned when no provider could supply a current
// rate for a pair, or a pure lookup had no rate to work with.
type RateNotAvailableError struct {
	From currency.Currency
	To   currency.Currency
}

func (e *RateNotAvailableError) Error() string {
	return fmt.Sprintf("no exchange rate available for %s/%s", e.From, e.To)
}

// HistoricalRateNotAvailableError is returned when a historical rate for a
// specific date cannot be served. The service never substitutes a current
// rate for a missing historical one.
type HistoricalRateNotAvailableError struct {
	From currency.Currency
	To   currency.Currency
	Date time.Time
}

func (e *HistoricalRateNotAvailableError) Error() string {
	return fmt.Sprintf(
		"no historical rate available for %s/%s on %s",
		e.From, e.To, e.Date.Format("2006-01-02"),
	)
}

// AllProvidersFailedError wraps the last underlying failure observed while
// walking the fallback chain. Per-provider failures are swallowed inside the
// loop; only this terminal condition reaches the caller.
type AllProvidersFailedError struct {
	Underlying error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all rate providers failed: %v", e.Underlying)
}

func (e *AllProvidersFailedError) Unwrap() error { return e.Underlying }

// RateLimitExceededError records that admission control refused an outbound
// call. Inside the fallback loop this causes a silent skip; it is surfaced
// only through usage statistics and diagnostics.
type RateLimitExceededError struct {
	Provider string
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for provider %s", e.Provider)
}

// NetworkError wraps a transport-level failure from a provider call.
type NetworkError struct {
	Underlying error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Underlying)
}

func (e *NetworkError) Unwrap() error { return e.Underlying }
