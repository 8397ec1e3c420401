// Package config loads the engine's configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// HTTP configures the inbound API surface.
type HTTP struct {
	Addr string `envconfig:"ADDR" default:":8080"`
}

// ProviderQuota is one provider's admission-control budget. Zero means
// unlimited for that window.
type ProviderQuota struct {
	PerMinute int `envconfig:"PER_MINUTE"`
	PerHour   int `envconfig:"PER_HOUR"`
	PerDay    int `envconfig:"PER_DAY"`
}

// Exchange configures providers, caching, and refresh behavior.
type Exchange struct {
	// ExchangeRateHostKey enables the exchangerate.host provider; when
	// empty the provider reports itself unavailable.
	ExchangeRateHostKey string `envconfig:"EXCHANGERATE_HOST_KEY"`
	ExchangeRateHostURL string `envconfig:"EXCHANGERATE_HOST_URL"`
	FrankfurterURL      string `envconfig:"FRANKFURTER_URL"`

	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"4h"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"30m"`
	RefreshBase     string        `envconfig:"REFRESH_BASE" default:"USD"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	SnapshotPath    string        `envconfig:"SNAPSHOT_PATH" default:"data/rates.json"`

	// Free-tier hosts get a generous default; the keyed host a tighter one.
	FrankfurterQuota      ProviderQuota `envconfig:"FRANKFURTER_QUOTA"`
	ExchangeRateHostQuota ProviderQuota `envconfig:"EXCHANGERATE_HOST_QUOTA"`
}

// App is the root configuration.
type App struct {
	Env      string   `envconfig:"ENV" default:"development"`
	HTTP     HTTP     `envconfig:"HTTP"`
	Exchange Exchange `envconfig:"EXCHANGE"`
}

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load(logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using system environment")
	}

	var cfg App
	if err := envconfig.Process("FXENGINE", &cfg); err != nil {
		return nil, err
	}

	logger.Info("config loaded",
		"env", cfg.Env,
		"http_addr", cfg.HTTP.Addr,
		"cache_ttl", cfg.Exchange.CacheTTL,
		"refresh_interval", cfg.Exchange.RefreshInterval,
		"provider_timeout", cfg.Exchange.ProviderTimeout,
		"snapshot_path", cfg.Exchange.SnapshotPath,
		"exchangerate_host_key", maskValue(cfg.Exchange.ExchangeRateHostKey),
	)
	return &cfg, nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
