package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConverter() *Converter {
	return NewConverter("MXN", map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("20.85"),
		"EUR": decimal.RequireFromString("24.19"),
	}, decimal.NewFromInt(1))
}

func TestConverter_ToReference(t *testing.T) {
	c := newTestConverter()

	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
	}{
		{"usd", "100", "USD", "2085"},
		{"eur", "10", "EUR", "241.9"},
		{"reference", "55.5", "MXN", "55.5"},
		{"lowercase code", "1", "usd", "20.85"},
		{"unknown falls back", "7", "GBP", "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ToReference(decimal.RequireFromString(tt.amount), tt.currency)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestConverter_RoundTrip(t *testing.T) {
	c := newTestConverter()
	tolerance := decimal.RequireFromString("0.000001")

	amounts := []string{"0.01", "1", "123.45", "99999.99"}
	currencies := []string{"USD", "EUR", "MXN", "GBP"}

	for _, a := range amounts {
		for _, cur := range currencies {
			amount := decimal.RequireFromString(a)
			back := c.FromReference(c.ToReference(amount, cur), cur)
			assert.True(t, back.Sub(amount).Abs().LessThan(tolerance), "%s %s round trip gave %s", a, cur, back)
		}
	}
}

func TestConverter_Convert(t *testing.T) {
	c := newTestConverter()

	got := c.Convert(decimal.NewFromInt(100), "USD", "EUR")
	want := decimal.NewFromInt(2085).Div(decimal.RequireFromString("24.19"))
	assert.True(t, got.Equal(want))

	same := c.Convert(decimal.NewFromInt(5), "USD", "usd")
	assert.True(t, same.Equal(decimal.NewFromInt(5)))
}

func TestConverter_WithQuotesOverridesDefaults(t *testing.T) {
	c := newTestConverter()

	fresh := c.WithQuotes(map[string]Quote{
		"USDMXN=X": {Symbol: "USDMXN=X", Price: decimal.RequireFromString("18.5")},
		"EURMXN=X": {Symbol: "EURMXN=X", Price: decimal.Zero},
		"AAPL":     {Symbol: "AAPL", Price: decimal.NewFromInt(190)},
	})

	assert.True(t, fresh.Rate("USD").Equal(decimal.RequireFromString("18.5")))
	assert.True(t, fresh.Rate("EUR").Equal(decimal.RequireFromString("24.19")), "unusable quote must not replace default")
	assert.True(t, c.Rate("USD").Equal(decimal.RequireFromString("20.85")), "original converter must stay untouched")
}

func TestConverter_NonPositiveFallbackDefaultsToOne(t *testing.T) {
	c := NewConverter("MXN", nil, decimal.Zero)
	assert.True(t, c.Rate("JPY").Equal(decimal.NewFromInt(1)))
}

func TestFXSymbols(t *testing.T) {
	c := newTestConverter()

	got := c.FXSymbols([]string{"usd", "MXN", "EUR", "USD", ""})
	assert.Equal(t, []string{"EURMXN=X", "USDMXN=X"}, got)

	currency, ok := ParseFXSymbol("USDMXN=X", "MXN")
	require.True(t, ok)
	assert.Equal(t, "USD", currency)

	_, ok = ParseFXSymbol("USDEUR=X", "MXN")
	assert.False(t, ok)
	assert.True(t, IsFXSymbol("eurmxn=x"))
	assert.False(t, IsFXSymbol("AAPL"))
}
