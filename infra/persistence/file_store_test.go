package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxfin/fxengine/pkg/cache"
	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rates.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	rate, err := exchange.NewRate(currency.USD, currency.EUR, 0.85,
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), "test")
	require.NoError(t, err)
	hist, err := exchange.NewRate(currency.USD, currency.JPY, 150,
		time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), "test")
	require.NoError(t, err)

	snap := &cache.Snapshot{
		Rates:      []*exchange.Rate{rate},
		Historical: []*exchange.Rate{hist},
		LastUpdate: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(snap))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Rates, 1)
	require.Len(t, loaded.Historical, 1)
	assert.InDelta(t, 0.85, loaded.Rates[0].Value, 1e-9)
	assert.Equal(t, currency.JPY, loaded.Historical[0].To)
	assert.True(t, snap.LastUpdate.Equal(loaded.LastUpdate))
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "rates.json"))
	require.NoError(t, err)

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap, "missing snapshot means a cold start, not an error")
}

func TestFileStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Load()
	assert.Error(t, err)
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	first, err := exchange.NewRate(currency.USD, currency.EUR, 0.85, time.Now(), "test")
	require.NoError(t, err)
	second, err := exchange.NewRate(currency.USD, currency.EUR, 0.90, time.Now(), "test")
	require.NoError(t, err)

	require.NoError(t, store.Save(&cache.Snapshot{Rates: []*exchange.Rate{first}}))
	require.NoError(t, store.Save(&cache.Snapshot{Rates: []*exchange.Rate{second}}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Rates, 1)
	assert.InDelta(t, 0.90, loaded.Rates[0].Value, 1e-9)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}
