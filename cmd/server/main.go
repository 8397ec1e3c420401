package main

import (
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/fluxfin/fxengine/infra/persistence"
	infraprovider "github.com/fluxfin/fxengine/infra/provider"
	"github.com/fluxfin/fxengine/pkg/cache"
	"github.com/fluxfin/fxengine/pkg/calculator"
	"github.com/fluxfin/fxengine/pkg/config"
	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/provider"
	"github.com/fluxfin/fxengine/pkg/ratelimit"
	"github.com/fluxfin/fxengine/pkg/service/fx"
	"github.com/fluxfin/fxengine/webapi/rates"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := persistence.NewFileStore(cfg.Exchange.SnapshotPath)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}

	rateCache := cache.New(
		cache.WithTTL(cfg.Exchange.CacheTTL),
		cache.WithStore(store),
		cache.WithLogger(logger),
	)

	limiter := ratelimit.New(quotas(cfg))

	// Priority order: the keyed host first, the free ECB mirror as
	// fallback. An absent key makes the first provider skip itself.
	providers := []provider.RateProvider{
		infraprovider.NewExchangeRateHost(
			cfg.Exchange.ExchangeRateHostKey,
			cfg.Exchange.ExchangeRateHostURL,
			cfg.Exchange.ProviderTimeout,
		),
		infraprovider.NewFrankfurter(
			cfg.Exchange.FrankfurterURL,
			cfg.Exchange.ProviderTimeout,
		),
	}

	refreshBase, err := currency.Parse(cfg.Exchange.RefreshBase)
	if err != nil {
		logger.Warn("invalid refresh base, falling back to USD",
			"value", cfg.Exchange.RefreshBase)
		refreshBase = currency.USD
	}

	svc := fx.New(providers, rateCache, limiter, fx.Config{
		CacheTTL:        cfg.Exchange.CacheTTL,
		RefreshInterval: cfg.Exchange.RefreshInterval,
		RefreshBase:     refreshBase,
		ProviderTimeout: cfg.Exchange.ProviderTimeout,
	}, logger)
	defer svc.Close()

	if err := svc.StartBackgroundRefresh(); err != nil {
		logger.Error("failed to start background refresh", "error", err)
		os.Exit(1)
	}

	app := fiber.New()
	rates.Routes(app, svc, calculator.New())

	logger.Info("listening", "addr", cfg.HTTP.Addr)
	if err := app.Listen(cfg.HTTP.Addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// quotas builds the limiter configuration. The keyed host gets the tight
// budget of its paid tier; the free mirror a generous one. Defaults apply
// when the environment sets nothing.
func quotas(cfg *config.App) map[string]ratelimit.Quota {
	hostQuota := ratelimit.Quota{
		PerMinute: cfg.Exchange.ExchangeRateHostQuota.PerMinute,
		PerHour:   cfg.Exchange.ExchangeRateHostQuota.PerHour,
		PerDay:    cfg.Exchange.ExchangeRateHostQuota.PerDay,
	}
	if hostQuota == (ratelimit.Quota{}) {
		hostQuota = ratelimit.Quota{PerMinute: 10, PerHour: 100, PerDay: 1000}
	}
	frankfurterQuota := ratelimit.Quota{
		PerMinute: cfg.Exchange.FrankfurterQuota.PerMinute,
		PerHour:   cfg.Exchange.FrankfurterQuota.PerHour,
		PerDay:    cfg.Exchange.FrankfurterQuota.PerDay,
	}
	if frankfurterQuota == (ratelimit.Quota{}) {
		frankfurterQuota = ratelimit.Quota{PerMinute: 60, PerHour: 1000, PerDay: 10000}
	}
	return map[string]ratelimit.Quota{
		infraprovider.ExchangeRateHostName: hostQuota,
		infraprovider.FrankfurterName:      frankfurterQuota,
	}
}
