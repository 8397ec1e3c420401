package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
	"github.com/fluxfin/fxengine/pkg/provider"
)

// ExchangeRateHostName identifies the exchangerate.host adapter in cache
// entries, quotas, and logs.
const ExchangeRateHostName = "exchangerate.host"

// exchangeRateHostResponse is the shared shape of the latest and historical
// endpoints: {"success": true, "timestamp": ..., "base": "USD",
// "rates": {"EUR": 0.91, ...}}. success:false is a hard failure even with
// a 200 status.
type exchangeRateHostResponse struct {
	Success   bool               `json:"success"`
	Timestamp int64              `json:"timestamp"`
	Base      string             `json:"base"`
	Date      string             `json:"date"`
	Rates     map[string]float64 `json:"rates"`
	Error     struct {
		Code int    `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// ExchangeRateHost fetches rates from exchangerate.host. It requires an
// access key; without one the provider reports itself unavailable and the
// fallback chain skips it.
type ExchangeRateHost struct {
	baseURL   string
	accessKey string
	http      *httpClient
}

// NewExchangeRateHost builds the adapter. baseURL is overridable for tests;
// pass "" for the production endpoint.
func NewExchangeRateHost(accessKey, baseURL string, timeout time.Duration) *ExchangeRateHost {
	if baseURL == "" {
		baseURL = "https://api.exchangerate.host"
	}
	return &ExchangeRateHost{
		baseURL:   baseURL,
		accessKey: accessKey,
		http:      newHTTPClient(timeout),
	}
}

// Name implements provider.RateProvider.
func (p *ExchangeRateHost) Name() string { return ExchangeRateHostName }

// Available implements provider.RateProvider. A missing credential means
// the provider must never be dispatched to.
func (p *ExchangeRateHost) Available() bool { return p.accessKey != "" }

// SupportsHistorical implements provider.RateProvider.
func (p *ExchangeRateHost) SupportsHistorical() bool { return true }

// FetchSet implements provider.RateProvider.
func (p *ExchangeRateHost) FetchSet(
	ctx context.Context,
	base currency.Currency,
) (*exchange.RateSet, error) {
	endpoint := fmt.Sprintf("%s/latest?%s", p.baseURL, p.query(base, ""))
	return p.fetchSet(ctx, endpoint, base)
}

// FetchPair implements provider.RateProvider.
func (p *ExchangeRateHost) FetchPair(
	ctx context.Context,
	from, to currency.Currency,
) (*exchange.Rate, error) {
	endpoint := fmt.Sprintf("%s/latest?%s", p.baseURL, p.query(from, to))
	set, err := p.fetchSet(ctx, endpoint, from)
	if err != nil {
		return nil, err
	}
	rate, ok := set.Rates[to]
	if !ok {
		return nil, fmt.Errorf("%w: %s missing from response", exchange.ErrInvalidResponse, to)
	}
	return rate, nil
}

// FetchHistorical implements provider.RateProvider. The source exposes
// historical quotes at /YYYY-MM-DD.
func (p *ExchangeRateHost) FetchHistorical(
	ctx context.Context,
	from, to currency.Currency,
	date time.Time,
) (*exchange.Rate, error) {
	day := exchange.NormalizeDate(date)
	endpoint := fmt.Sprintf("%s/%s?%s",
		p.baseURL, day.Format("2006-01-02"), p.query(from, to))

	var resp exchangeRateHostResponse
	if err := p.http.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", exchange.ErrInvalidResponse, resp.Error.Info)
	}
	value, ok := resp.Rates[to.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s missing from response", exchange.ErrInvalidResponse, to)
	}
	return exchange.NewRate(from, to, value, day, p.Name())
}

func (p *ExchangeRateHost) fetchSet(
	ctx context.Context,
	endpoint string,
	base currency.Currency,
) (*exchange.RateSet, error) {
	var resp exchangeRateHostResponse
	if err := p.http.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", exchange.ErrInvalidResponse, resp.Error.Info)
	}

	observed := time.Now().UTC()
	if resp.Timestamp > 0 {
		observed = time.Unix(resp.Timestamp, 0).UTC()
	}
	values := make(map[currency.Currency]float64, len(resp.Rates))
	for code, v := range resp.Rates {
		c, err := currency.Parse(code)
		if err != nil {
			continue
		}
		values[c] = v
	}
	set := exchange.NewRateSet(base, values, observed, p.Name())
	if len(set.Rates) == 0 {
		return nil, fmt.Errorf("%w: no usable rates for base %s", exchange.ErrInvalidResponse, base)
	}
	return set, nil
}

func (p *ExchangeRateHost) query(base, symbol currency.Currency) string {
	q := url.Values{}
	q.Set("access_key", p.accessKey)
	q.Set("base", base.String())
	if symbol != "" {
		q.Set("symbols", symbol.String())
	}
	return q.Encode()
}

var _ provider.RateProvider = (*ExchangeRateHost)(nil)
