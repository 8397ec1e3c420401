package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
	"github.com/fluxfin/fxengine/pkg/provider"
)

// FrankfurterName identifies the frankfurter.app adapter.
const FrankfurterName = "frankfurter"

// frankfurterResponse is the shape of both the latest and dated endpoints:
// {"amount": 1, "base": "USD", "date": "2024-03-01", "rates": {"EUR": 0.92}}.
type frankfurterResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// Frankfurter fetches ECB reference rates from frankfurter.app. The source
// is keyless, so the adapter is always available; it serves as the free
// fallback behind keyed providers.
type Frankfurter struct {
	baseURL string
	http    *httpClient
}

// NewFrankfurter builds the adapter. baseURL is overridable for tests; pass
// "" for the production endpoint.
func NewFrankfurter(baseURL string, timeout time.Duration) *Frankfurter {
	if baseURL == "" {
		baseURL = "https://api.frankfurter.app"
	}
	return &Frankfurter{
		baseURL: baseURL,
		http:    newHTTPClient(timeout),
	}
}

// Name implements provider.RateProvider.
func (p *Frankfurter) Name() string { return FrankfurterName }

// Available implements provider.RateProvider. No credential is needed.
func (p *Frankfurter) Available() bool { return true }

// SupportsHistorical implements provider.RateProvider.
func (p *Frankfurter) SupportsHistorical() bool { return true }

// FetchSet implements provider.RateProvider.
func (p *Frankfurter) FetchSet(
	ctx context.Context,
	base currency.Currency,
) (*exchange.RateSet, error) {
	endpoint := fmt.Sprintf("%s/latest?from=%s", p.baseURL, base)
	resp, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	values := make(map[currency.Currency]float64, len(resp.Rates))
	for code, v := range resp.Rates {
		c, err := currency.Parse(code)
		if err != nil {
			continue
		}
		values[c] = v
	}
	set := exchange.NewRateSet(base, values, time.Now().UTC(), p.Name())
	if len(set.Rates) == 0 {
		return nil, fmt.Errorf("%w: no usable rates for base %s", exchange.ErrInvalidResponse, base)
	}
	return set, nil
}

// FetchPair implements provider.RateProvider.
func (p *Frankfurter) FetchPair(
	ctx context.Context,
	from, to currency.Currency,
) (*exchange.Rate, error) {
	endpoint := fmt.Sprintf("%s/latest?from=%s&to=%s", p.baseURL, from, to)
	resp, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	value, ok := resp.Rates[to.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s missing from response", exchange.ErrInvalidResponse, to)
	}
	return exchange.NewRate(from, to, value, time.Now().UTC(), p.Name())
}

// FetchHistorical implements provider.RateProvider.
func (p *Frankfurter) FetchHistorical(
	ctx context.Context,
	from, to currency.Currency,
	date time.Time,
) (*exchange.Rate, error) {
	day := exchange.NormalizeDate(date)
	endpoint := fmt.Sprintf("%s/%s?from=%s&to=%s",
		p.baseURL, day.Format("2006-01-02"), from, to)
	resp, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	value, ok := resp.Rates[to.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s missing from response", exchange.ErrInvalidResponse, to)
	}
	return exchange.NewRate(from, to, value, day, p.Name())
}

func (p *Frankfurter) get(ctx context.Context, endpoint string) (*frankfurterResponse, error) {
	var resp frankfurterResponse
	if err := p.http.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if len(resp.Rates) == 0 {
		return nil, fmt.Errorf("%w: empty rates", exchange.ErrInvalidResponse)
	}
	return &resp, nil
}

var _ provider.RateProvider = (*Frankfurter)(nil)
