// Package calculator performs conversion arithmetic and batch orchestration
// on top of rates supplied by the cache or the fx service. It never mutates
// cache state; all failures originate from rate unavailability, never from
// the math itself.
package calculator

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
)

// maxConcurrentFetches bounds parallel rate lookups during a batch.
const maxConcurrentFetches = 4

// RateSource supplies rates to the I/O-performing batch operations. The fx
// service satisfies it.
type RateSource interface {
	GetRate(ctx context.Context, from, to currency.Currency) (*exchange.Rate, error)
}

// ConversionRequest asks for one amount to be converted between two
// currencies. The amount may carry any sign; zero converts to zero.
type ConversionRequest struct {
	Amount   float64           `json:"amount"`
	From     currency.Currency `json:"from"`
	To       currency.Currency `json:"to"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Pair returns the request's lookup key.
func (r ConversionRequest) Pair() currency.Pair {
	return currency.Pair{From: r.From, To: r.To}
}

// ConversionResult is the outcome for one request. Exactly one of RateUsed
// and Err is meaningful depending on Succeeded.
type ConversionResult struct {
	Request         ConversionRequest `json:"request"`
	ConvertedAmount float64           `json:"converted_amount"`
	RateUsed        *exchange.Rate    `json:"rate_used,omitempty"`
	Succeeded       bool              `json:"succeeded"`
	Err             error             `json:"-"`
}

// Holding is one asset position to be valued.
type Holding struct {
	AssetID  string            `json:"asset_id"`
	Currency currency.Currency `json:"currency"`
	Amount   float64           `json:"amount"`
}

// PortfolioValue is the aggregate of valuing a set of holdings in one
// target currency. Partial failures still yield a total over the successes.
type PortfolioValue struct {
	TotalValue            float64            `json:"total_value"`
	Currency              currency.Currency  `json:"currency"`
	SuccessfulConversions int                `json:"successful_conversions"`
	FailedConversions     int                `json:"failed_conversions"`
	ValuesByAsset         map[string]float64 `json:"values_by_asset"`
	ComputedAt            time.Time          `json:"computed_at"`
}

// BreakdownItem is one currency's share of a portfolio.
type BreakdownItem struct {
	Currency        currency.Currency `json:"currency"`
	NativeAmount    float64           `json:"native_amount"`
	ConvertedAmount float64           `json:"converted_amount"`
	Percentage      float64           `json:"percentage"`
	HoldingCount    int               `json:"holding_count"`
}

// CurrencyBreakdown reports per-currency portfolio composition, sorted by
// descending converted value.
type CurrencyBreakdown struct {
	Items      []BreakdownItem   `json:"items"`
	TotalValue float64           `json:"total_value"`
	Currency   currency.Currency `json:"currency"`
	ComputedAt time.Time         `json:"computed_at"`
}

// metadataAssetID tags portfolio requests so results can be mapped back to
// their holdings after the batch round-trip.
const metadataAssetID = "asset_id"

// Calculator is stateless; the zero value is ready to use.
type Calculator struct{}

// New returns a Calculator.
func New() *Calculator { return &Calculator{} }

// Convert multiplies an amount by a rate. Negative and zero amounts pass
// through without special-casing.
func (c *Calculator) Convert(amount float64, rate *exchange.Rate) float64 {
	return amount * rate.Value
}

// BatchConvertWithRates converts every request against a caller-supplied
// rate map. Pure function, no I/O: a missing pair yields a failed result
// for that request only, and result order matches input order.
func (c *Calculator) BatchConvertWithRates(
	requests []ConversionRequest,
	rates map[currency.Pair]*exchange.Rate,
) []ConversionResult {
	results := make([]ConversionResult, len(requests))
	for i, req := range requests {
		rate, ok := rates[req.Pair()]
		if !ok && req.Pair().IsIdentity() {
			rate, ok = exchange.Identity(req.From), true
		}
		if !ok {
			results[i] = ConversionResult{
				Request: req,
				Err:     &exchange.RateNotAvailableError{From: req.From, To: req.To},
			}
			continue
		}
		results[i] = ConversionResult{
			Request:         req,
			ConvertedAmount: req.Amount * rate.Value,
			RateUsed:        rate,
			Succeeded:       true,
		}
	}
	return results
}

// BatchConvert converts requests using rates fetched from source. Requests
// are grouped by pair first so at most one fetch happens per distinct pair;
// a fetch failure fails every request in its group with the same underlying
// error while other groups proceed independently.
func (c *Calculator) BatchConvert(
	ctx context.Context,
	requests []ConversionRequest,
	source RateSource,
) []ConversionResult {
	pairs := make([]currency.Pair, 0)
	seen := make(map[currency.Pair]struct{})
	for _, req := range requests {
		if _, ok := seen[req.Pair()]; ok {
			continue
		}
		seen[req.Pair()] = struct{}{}
		pairs = append(pairs, req.Pair())
	}

	var (
		mu     sync.Mutex
		rates  = make(map[currency.Pair]*exchange.Rate, len(pairs))
		errors = make(map[currency.Pair]error)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			rate, err := source.GetRate(gctx, pair.From, pair.To)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errors[pair] = err
			} else {
				rates[pair] = rate
			}
			// Group failures are per-pair; never cancel sibling fetches.
			return nil
		})
	}
	_ = g.Wait()

	results := make([]ConversionResult, len(requests))
	for i, req := range requests {
		if rate, ok := rates[req.Pair()]; ok {
			results[i] = ConversionResult{
				Request:         req,
				ConvertedAmount: req.Amount * rate.Value,
				RateUsed:        rate,
				Succeeded:       true,
			}
			continue
		}
		err := errors[req.Pair()]
		if err == nil {
			err = &exchange.RateNotAvailableError{From: req.From, To: req.To}
		}
		results[i] = ConversionResult{Request: req, Err: err}
	}
	return results
}

// PortfolioValue values holdings in the target currency. Each holding
// becomes one request tagged with its asset ID; same-currency holdings go
// through the same path with an identity rate. Partial failures reduce the
// total, not the whole valuation.
func (c *Calculator) PortfolioValue(
	ctx context.Context,
	holdings []Holding,
	target currency.Currency,
	source RateSource,
) *PortfolioValue {
	requests := make([]ConversionRequest, len(holdings))
	for i, h := range holdings {
		requests[i] = ConversionRequest{
			Amount:   h.Amount,
			From:     h.Currency,
			To:       target,
			Metadata: map[string]string{metadataAssetID: h.AssetID},
		}
	}

	results := c.BatchConvert(ctx, requests, source)

	pv := &PortfolioValue{
		Currency:      target,
		ValuesByAsset: make(map[string]float64, len(holdings)),
		ComputedAt:    time.Now().UTC(),
	}
	for _, res := range results {
		if !res.Succeeded {
			pv.FailedConversions++
			continue
		}
		pv.SuccessfulConversions++
		pv.TotalValue += res.ConvertedAmount
		if id, ok := res.Request.Metadata[metadataAssetID]; ok {
			pv.ValuesByAsset[id] = res.ConvertedAmount
		}
	}
	return pv
}

// CurrencyBreakdown reports what share of the portfolio each native
// currency represents. Holdings are grouped by currency and only the group
// subtotal is converted, once per currency: percentage-of-total reporting
// needs nothing finer.
func (c *Calculator) CurrencyBreakdown(
	ctx context.Context,
	holdings []Holding,
	target currency.Currency,
	source RateSource,
) *CurrencyBreakdown {
	type group struct {
		subtotal float64
		count    int
	}
	groups := make(map[currency.Currency]*group)
	order := make([]currency.Currency, 0)
	for _, h := range holdings {
		g, ok := groups[h.Currency]
		if !ok {
			g = &group{}
			groups[h.Currency] = g
			order = append(order, h.Currency)
		}
		g.subtotal += h.Amount
		g.count++
	}

	requests := make([]ConversionRequest, len(order))
	for i, cur := range order {
		requests[i] = ConversionRequest{
			Amount: groups[cur].subtotal,
			From:   cur,
			To:     target,
		}
	}
	results := c.BatchConvert(ctx, requests, source)

	breakdown := &CurrencyBreakdown{
		Currency:   target,
		ComputedAt: time.Now().UTC(),
	}
	for i, res := range results {
		if !res.Succeeded {
			continue
		}
		cur := order[i]
		breakdown.Items = append(breakdown.Items, BreakdownItem{
			Currency:        cur,
			NativeAmount:    groups[cur].subtotal,
			ConvertedAmount: res.ConvertedAmount,
			HoldingCount:    groups[cur].count,
		})
		breakdown.TotalValue += res.ConvertedAmount
	}

	if breakdown.TotalValue != 0 {
		for i := range breakdown.Items {
			breakdown.Items[i].Percentage =
				breakdown.Items[i].ConvertedAmount / breakdown.TotalValue * 100
		}
	}
	sort.SliceStable(breakdown.Items, func(i, j int) bool {
		return breakdown.Items[i].ConvertedAmount > breakdown.Items[j].ConvertedAmount
	})
	return breakdown
}
