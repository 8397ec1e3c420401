package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Currency
		wantErr bool
	}{
		{"uppercase", "USD", USD, false},
		{"lowercase", "eur", EUR, false},
		{"padded", " gbp ", GBP, false},
		{"unknown code", "XXX", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSupported(t *testing.T) {
	codes := Supported()
	assert.NotEmpty(t, codes)
	for _, c := range codes {
		assert.True(t, c.IsValid())
	}
	for _, c := range Common {
		assert.True(t, c.IsValid(), "common subset must be inside the supported set")
	}
}

func TestPair(t *testing.T) {
	p := NewPair(USD, EUR)
	assert.False(t, p.IsIdentity())
	assert.Equal(t, Pair{From: EUR, To: USD}, p.Inverse())
	assert.Equal(t, "USD/EUR", p.String())

	assert.True(t, NewPair(JPY, JPY).IsIdentity())
}
