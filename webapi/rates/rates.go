// Package rates exposes the conversion engine over HTTP: single and batch
// conversion, rate lookup, historical rates, portfolio valuation, and cache
// management.
package rates

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fluxfin/fxengine/pkg/calculator"
	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
	"github.com/fluxfin/fxengine/pkg/service/fx"
)

// Routes registers the engine's HTTP endpoints.
func Routes(app *fiber.App, svc *fx.Service, calc *calculator.Calculator) {
	api := app.Group("/api")

	api.Get("/rates/:from/:to", GetRate(svc))
	api.Get("/rates/:from/:to/historical", GetHistoricalRate(svc))
	api.Post("/convert", Convert(svc))
	api.Post("/convert/batch", BatchConvert(svc, calc))
	api.Post("/portfolio/value", PortfolioValue(svc, calc))
	api.Post("/portfolio/breakdown", CurrencyBreakdown(svc, calc))
	api.Get("/cache/stats", CacheStats(svc))
	api.Delete("/cache", ClearCache(svc))
	api.Get("/providers/:name/usage", ProviderUsage(svc))
}

// GetRate returns the current exchange rate for a pair.
func GetRate(svc *fx.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := parsePair(c)
		if err != nil {
			return badRequest(c, err)
		}
		rate, err := svc.GetRate(c.Context(), from, to)
		if err != nil {
			return rateError(c, err)
		}
		return c.JSON(rate)
	}
}

// GetHistoricalRate returns the rate for a pair on a past calendar day,
// supplied via the date query parameter.
func GetHistoricalRate(svc *fx.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := parsePair(c)
		if err != nil {
			return badRequest(c, err)
		}
		date, err := time.Parse("2006-01-02", c.Query("date"))
		if err != nil {
			return badRequest(c, errors.New("date must be formatted as YYYY-MM-DD"))
		}
		rate, err := svc.GetHistoricalRate(c.Context(), from, to, date)
		if err != nil {
			return rateError(c, err)
		}
		return c.JSON(rate)
	}
}

// Convert converts a single amount between two currencies.
func Convert(svc *fx.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req convertRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		from, to, err := req.pair()
		if err != nil {
			return badRequest(c, err)
		}
		converted, err := svc.Convert(c.Context(), req.Amount, from, to)
		if err != nil {
			return rateError(c, err)
		}
		return c.JSON(convertResponse{
			Amount:          req.Amount,
			From:            from,
			To:              to,
			ConvertedAmount: converted,
		})
	}
}

// BatchConvert converts a set of requests, grouping them by currency pair
// so shared pairs cost one rate fetch. Per-item failures do not abort the
// batch.
func BatchConvert(svc *fx.Service, calc *calculator.Calculator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req batchRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		requests, err := req.toDomain()
		if err != nil {
			return badRequest(c, err)
		}

		results := calc.BatchConvert(c.Context(), requests, svc)
		return c.JSON(batchResponse{
			BatchID: uuid.NewString(),
			Results: toResultDTOs(results),
		})
	}
}

// PortfolioValue values a set of holdings in a target currency. Partial
// failures still produce a total over the successes.
func PortfolioValue(svc *fx.Service, calc *calculator.Calculator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		holdings, target, err := parsePortfolio(c)
		if err != nil {
			return badRequest(c, err)
		}
		return c.JSON(calc.PortfolioValue(c.Context(), holdings, target, svc))
	}
}

// CurrencyBreakdown reports per-currency portfolio composition.
func CurrencyBreakdown(svc *fx.Service, calc *calculator.Calculator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		holdings, target, err := parsePortfolio(c)
		if err != nil {
			return badRequest(c, err)
		}
		return c.JSON(calc.CurrencyBreakdown(c.Context(), holdings, target, svc))
	}
}

// CacheStats reports cache contents.
func CacheStats(svc *fx.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.CacheStats())
	}
}

// ClearCache empties the rate cache.
func ClearCache(svc *fx.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		svc.ClearCache()
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ProviderUsage reports a provider's admission-control consumption.
func ProviderUsage(svc *fx.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.ProviderUsage(c.Params("name")))
	}
}

func parsePair(c *fiber.Ctx) (currency.Currency, currency.Currency, error) {
	from, err := currency.Parse(c.Params("from"))
	if err != nil {
		return "", "", err
	}
	to, err := currency.Parse(c.Params("to"))
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}

func parsePortfolio(c *fiber.Ctx) ([]calculator.Holding, currency.Currency, error) {
	var req portfolioRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, "", err
	}
	return req.toDomain()
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
}

// rateError maps the engine's error taxonomy onto HTTP statuses.
func rateError(c *fiber.Ctx, err error) error {
	var (
		notAvailable     *exchange.RateNotAvailableError
		histNotAvailable *exchange.HistoricalRateNotAvailableError
		allFailed        *exchange.AllProvidersFailedError
	)
	switch {
	case errors.As(err, &notAvailable), errors.As(err, &histNotAvailable):
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: err.Error()})
	case errors.As(err, &allFailed):
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, exchange.ErrNoProvidersConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
}
