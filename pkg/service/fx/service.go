// Package fx is the conversion orchestrator: it answers rate and conversion
// requests cache-first, walks the configured provider fallback chain under
// admission control on a miss, and writes successful fetches through to the
// cache.
package fx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fluxfin/fxengine/pkg/cache"
	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
	"github.com/fluxfin/fxengine/pkg/provider"
	"github.com/fluxfin/fxengine/pkg/ratelimit"
)

// Defaults for the orchestrator's tunables.
const (
	DefaultRefreshInterval = 30 * time.Minute
	DefaultProviderTimeout = 10 * time.Second
	DefaultRefreshBase     = currency.USD
)

// Config carries the orchestrator's tunables. Zero fields fall back to the
// package defaults.
type Config struct {
	// CacheTTL is the freshness window applied when deciding whether a
	// cached rate can be served without a provider call.
	CacheTTL time.Duration

	// RefreshInterval is how often the background refresh fires.
	RefreshInterval time.Duration

	// RefreshBase is the base currency the background refresh fetches
	// bulk rates for.
	RefreshBase currency.Currency

	// ProviderTimeout bounds each individual provider attempt so one hung
	// upstream cannot stall the fallback chain.
	ProviderTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = exchange.DefaultTTL
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.RefreshBase == "" {
		c.RefreshBase = DefaultRefreshBase
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	return c
}

// Service orchestrates providers, cache, and limiter. The provider list and
// its order are fixed at construction; only cache contents and limiter
// counters mutate at runtime.
type Service struct {
	providers []provider.RateProvider
	cache     *cache.Cache
	limiter   *ratelimit.Limiter
	cfg       Config
	logger    *slog.Logger
	cron      *cron.Cron
	now       func() time.Time
}

// New wires the orchestrator from its collaborators. Providers are
// attempted in the order given; pass the highest-priority source first.
func New(
	providers []provider.RateProvider,
	rateCache *cache.Cache,
	limiter *ratelimit.Limiter,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		providers: providers,
		cache:     rateCache,
		limiter:   limiter,
		cfg:       cfg.withDefaults(),
		logger:    logger.With("component", "fx_service"),
		now:       time.Now,
	}
}

// Convert converts an amount between two currencies using the freshest
// available rate. Zero and negative amounts convert arithmetically.
func (s *Service) Convert(
	ctx context.Context,
	amount float64,
	from, to currency.Currency,
) (float64, error) {
	if from == to {
		return amount, nil
	}
	rate, err := s.GetRate(ctx, from, to)
	if err != nil {
		return 0, err
	}
	return amount * rate.Value, nil
}

// GetRate resolves the current rate for a pair: identity for degenerate
// pairs, then cache, then the provider fallback chain. An expired cache
// entry counts as a miss.
func (s *Service) GetRate(
	ctx context.Context,
	from, to currency.Currency,
) (*exchange.Rate, error) {
	if from == to {
		return exchange.Identity(from), nil
	}

	if cached, ok := s.cache.GetRate(from, to); ok {
		if !cached.Expired(s.cfg.CacheTTL, s.now()) {
			s.logger.Debug("rate served from cache", "pair", cached.Pair().String())
			return cached, nil
		}
		s.logger.Debug("cached rate expired, refetching",
			"pair", cached.Pair().String(), "observed_at", cached.ObservedAt)
	}

	rate, err := s.fetchPairWithFallback(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.cache.SaveRate(rate)
	return rate, nil
}

// UpdateAllRates bulk-fetches every rate against base from the first
// provider that succeeds and ingests the set into the cache.
func (s *Service) UpdateAllRates(ctx context.Context, base currency.Currency) error {
	if len(s.providers) == 0 {
		return exchange.ErrNoProvidersConfigured
	}

	var lastErr error
	for _, p := range s.providers {
		if !s.admit(p) {
			continue
		}
		set, err := s.fetchSet(ctx, p, base)
		if err != nil {
			lastErr = err
			s.logger.Warn("bulk fetch failed",
				"provider", p.Name(), "base", base.String(), "error", err)
			continue
		}
		s.cache.SaveRates(set)
		s.logger.Info("bulk rates updated",
			"provider", p.Name(), "base", base.String(), "count", len(set.Rates))
		return nil
	}

	if lastErr != nil {
		return &exchange.AllProvidersFailedError{Underlying: lastErr}
	}
	return &exchange.RateNotAvailableError{From: base}
}

// GetHistoricalRate resolves the rate for a pair on a past calendar day.
// Only providers that support historical data are attempted, and a missing
// historical rate never falls back to the current rate: substituting one
// would silently corrupt historical reporting.
func (s *Service) GetHistoricalRate(
	ctx context.Context,
	from, to currency.Currency,
	date time.Time,
) (*exchange.Rate, error) {
	day := exchange.NormalizeDate(date)

	if from == to {
		r := exchange.Identity(from)
		r.ObservedAt = day
		return r, nil
	}

	if cached, ok := s.cache.GetHistoricalRate(from, to, day); ok {
		return cached, nil
	}

	var lastErr error
	for _, p := range s.providers {
		if !p.SupportsHistorical() {
			continue
		}
		if !s.admit(p) {
			continue
		}
		rate, err := s.fetchHistorical(ctx, p, from, to, day)
		if err != nil {
			lastErr = err
			s.logger.Warn("historical fetch failed",
				"provider", p.Name(), "pair", from.String()+"/"+to.String(),
				"date", day.Format("2006-01-02"), "error", err)
			continue
		}
		s.cache.SaveHistoricalRate(rate)
		return rate, nil
	}

	if lastErr != nil {
		s.logger.Warn("historical rate unavailable",
			"pair", from.String()+"/"+to.String(),
			"date", day.Format("2006-01-02"), "last_error", lastErr)
	}
	return nil, &exchange.HistoricalRateNotAvailableError{From: from, To: to, Date: day}
}

// ClearCache empties the rate cache.
func (s *Service) ClearCache() {
	s.cache.ClearAll()
}

// CacheStats reports cache contents.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Statistics()
}

// ProviderUsage reports a provider's admission-control consumption.
func (s *Service) ProviderUsage(name string) ratelimit.Usage {
	return s.limiter.Usage(name)
}

// StartBackgroundRefresh schedules opportunistic bulk refreshes of the
// configured base currency plus expired-entry sweeps. Refresh failures are
// logged and swallowed; this is best-effort warm-up, not a user action.
func (s *Service) StartBackgroundRefresh() error {
	if s.cron != nil {
		return fmt.Errorf("background refresh already started")
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.RefreshInterval)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshInterval/2)
		defer cancel()

		if err := s.UpdateAllRates(ctx, s.cfg.RefreshBase); err != nil {
			s.logger.Warn("background refresh failed", "error", err)
		}
		s.cache.ClearExpired()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule background refresh: %w", err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("background refresh started",
		"interval", s.cfg.RefreshInterval, "base", s.cfg.RefreshBase.String())
	return nil
}

// Close stops the background refresh, waiting for a running refresh to
// finish.
func (s *Service) Close() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

// fetchPairWithFallback walks the provider chain in configured order for a
// single pair. Per-provider failures are retained only as the last observed
// error and surfaced when the whole chain fails.
func (s *Service) fetchPairWithFallback(
	ctx context.Context,
	from, to currency.Currency,
) (*exchange.Rate, error) {
	if len(s.providers) == 0 {
		return nil, exchange.ErrNoProvidersConfigured
	}

	var lastErr error
	for _, p := range s.providers {
		if !s.admit(p) {
			continue
		}
		rate, err := s.fetchPair(ctx, p, from, to)
		if err != nil {
			lastErr = err
			s.logger.Warn("provider fetch failed",
				"provider", p.Name(),
				"pair", from.String()+"/"+to.String(), "error", err)
			continue
		}
		s.logger.Info("rate fetched",
			"provider", p.Name(), "pair", rate.Pair().String(), "rate", rate.Value)
		return rate, nil
	}

	if lastErr != nil {
		return nil, &exchange.AllProvidersFailedError{Underlying: lastErr}
	}
	return nil, &exchange.RateNotAvailableError{From: from, To: to}
}

// admit decides whether a provider may be attempted: it must be available
// and the limiter must grant a slot. The reservation happens before the
// network call so in-flight and failed attempts still consume quota.
func (s *Service) admit(p provider.RateProvider) bool {
	if !p.Available() {
		return false
	}
	if !s.limiter.Reserve(p.Name()) {
		limitErr := &exchange.RateLimitExceededError{Provider: p.Name()}
		wait, _ := s.limiter.RecommendedWait(p.Name())
		s.logger.Debug("provider skipped by admission control",
			"provider", p.Name(), "error", limitErr, "recommended_wait", wait)
		return false
	}
	return true
}

func (s *Service) fetchPair(
	ctx context.Context,
	p provider.RateProvider,
	from, to currency.Currency,
) (*exchange.Rate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	return p.FetchPair(ctx, from, to)
}

func (s *Service) fetchSet(
	ctx context.Context,
	p provider.RateProvider,
	base currency.Currency,
) (*exchange.RateSet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	return p.FetchSet(ctx, base)
}

func (s *Service) fetchHistorical(
	ctx context.Context,
	p provider.RateProvider,
	from, to currency.Currency,
	day time.Time,
) (*exchange.Rate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	return p.FetchHistorical(ctx, from, to, day)
}
