// Package provider contains the thin HTTP adapters that implement
// provider.RateProvider against real exchange-rate sources, plus a
// deterministic mock for tests.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/fluxfin/fxengine/pkg/exchange"
	"golang.org/x/time/rate"
)

const defaultHTTPTimeout = 10 * time.Second

// httpClient wraps the outbound plumbing every adapter shares: a paced
// http.Client and a circuit breaker so one dead upstream trips fast instead
// of eating its timeout on every fallback walk.
type httpClient struct {
	client  *http.Client
	limiter *rate.Limiter
	breaker *breaker.Breaker
}

func newHTTPClient(timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &httpClient{
		client: &http.Client{Timeout: timeout},
		// One request burst per second keeps adapters inside the polite
		// envelope of free-tier hosts regardless of quota configuration.
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		breaker: breaker.New(3, 1, 30*time.Second),
	}
}

// getJSON performs a GET and decodes the body into v. Transport failures
// come back wrapped in exchange.NetworkError; non-2xx statuses and decode
// failures in exchange.ErrInvalidResponse.
func (h *httpClient) getJSON(ctx context.Context, url string, v any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return &exchange.NetworkError{Underlying: err}
	}

	return h.breaker.Run(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			return &exchange.NetworkError{Underlying: err}
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("%w: status %d: %s",
				exchange.ErrInvalidResponse, resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("%w: %v", exchange.ErrInvalidResponse, err)
		}
		return nil
	})
}
