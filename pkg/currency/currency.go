// Package currency defines the closed set of currency codes the engine
// understands and the ordered pair type used as a rate lookup key.
package currency

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 style currency code (e.g. "USD", "EUR").
type Currency string

// Supported currency codes.
const (
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	JPY Currency = "JPY" // Japanese Yen
	CHF Currency = "CHF" // Swiss Franc
	CAD Currency = "CAD" // Canadian Dollar
	AUD Currency = "AUD" // Australian Dollar
	NZD Currency = "NZD" // New Zealand Dollar
	CNY Currency = "CNY" // Chinese Yuan
	HKD Currency = "HKD" // Hong Kong Dollar
	SGD Currency = "SGD" // Singapore Dollar
	SEK Currency = "SEK" // Swedish Krona
	NOK Currency = "NOK" // Norwegian Krone
	DKK Currency = "DKK" // Danish Krone
	PLN Currency = "PLN" // Polish Zloty
	CZK Currency = "CZK" // Czech Koruna
	TRY Currency = "TRY" // Turkish Lira
	INR Currency = "INR" // Indian Rupee
	BRL Currency = "BRL" // Brazilian Real
	ZAR Currency = "ZAR" // South African Rand
	MXN Currency = "MXN" // Mexican Peso
	KRW Currency = "KRW" // South Korean Won
)

var supported = map[Currency]struct{}{
	USD: {}, EUR: {}, GBP: {}, JPY: {}, CHF: {}, CAD: {}, AUD: {}, NZD: {},
	CNY: {}, HKD: {}, SGD: {}, SEK: {}, NOK: {}, DKK: {}, PLN: {}, CZK: {},
	TRY: {}, INR: {}, BRL: {}, ZAR: {}, MXN: {}, KRW: {},
}

// Common is the subset of heavily traded currencies among which the cache
// synthesizes cross-rates during bulk ingestion.
var Common = []Currency{USD, EUR, GBP, JPY, CHF}

// String returns the code as a plain string.
func (c Currency) String() string { return string(c) }

// IsValid reports whether the code belongs to the supported set.
func (c Currency) IsValid() bool {
	_, ok := supported[c]
	return ok
}

// Supported returns all supported currency codes.
func Supported() []Currency {
	out := make([]Currency, 0, len(supported))
	for c := range supported {
		out = append(out, c)
	}
	return out
}

// Parse normalizes and validates a currency code string.
func Parse(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unsupported currency code %q", s)
	}
	return c, nil
}

// Pair is an ordered (from, to) currency tuple identifying a conversion
// direction. It is the lookup key for current-rate caching.
type Pair struct {
	From Currency `json:"from"`
	To   Currency `json:"to"`
}

// NewPair builds a pair from two codes.
func NewPair(from, to Currency) Pair { return Pair{From: from, To: to} }

// IsIdentity reports whether both sides of the pair are the same currency.
// Identity pairs are never dispatched to a provider.
func (p Pair) IsIdentity() bool { return p.From == p.To }

// Inverse returns the pair with direction reversed.
func (p Pair) Inverse() Pair { return Pair{From: p.To, To: p.From} }

// String renders the pair as "FROM/TO".
func (p Pair) String() string { return string(p.From) + "/" + string(p.To) }
