package exchange

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxfin/fxengine/pkg/currency"
)

func TestNewRate_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"zero", 0},
		{"negative", -0.5},
		{"NaN", math.NaN()},
		{"positive infinity", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRate(currency.USD, currency.EUR, tt.value, time.Now(), "test")
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestRate_Inverse(t *testing.T) {
	observed := time.Now().UTC()
	r, err := NewRate(currency.USD, currency.EUR, 0.85, observed, "test")
	require.NoError(t, err)

	inv := r.Inverse()
	assert.Equal(t, currency.EUR, inv.From)
	assert.Equal(t, currency.USD, inv.To)
	assert.InDelta(t, 1/0.85, inv.Value, 1e-9)
	assert.Equal(t, observed, inv.ObservedAt)
	assert.Equal(t, "test", inv.Source)
}

func TestRate_Expired(t *testing.T) {
	now := time.Now()
	r, err := NewRate(currency.USD, currency.EUR, 0.85, now.Add(-3*time.Hour), "test")
	require.NoError(t, err)

	assert.False(t, r.Expired(4*time.Hour, now))
	assert.True(t, r.Expired(2*time.Hour, now))
}

func TestIdentity(t *testing.T) {
	r := Identity(currency.USD)
	assert.Equal(t, currency.USD, r.From)
	assert.Equal(t, currency.USD, r.To)
	assert.Equal(t, 1.0, r.Value)
	assert.Equal(t, "identity", r.Source)
}

func TestNewRateSet_DropsUnusableQuotes(t *testing.T) {
	set := NewRateSet(currency.USD, map[currency.Currency]float64{
		currency.EUR: 0.9,
		currency.GBP: -1,
		currency.JPY: 0,
		currency.USD: 1, // base itself is skipped
	}, time.Now(), "test")

	require.Len(t, set.Rates, 1)
	assert.InDelta(t, 0.9, set.Rates[currency.EUR].Value, 1e-9)
}

func TestNormalizeDate(t *testing.T) {
	ts := time.Date(2026, 1, 15, 23, 45, 12, 900, time.UTC)
	day := NormalizeDate(ts)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), day)
}
