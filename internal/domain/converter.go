package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const fxSuffix = "=X"

// Converter translates amounts between currencies and a reference currency.
// rate[C] is the number of reference units one unit of C is worth, so
// ToReference(a, C) = a × rate[C]. The reference currency always has rate 1
// and unknown currencies use the fallback rate.
type Converter struct {
	reference string
	rates     map[string]decimal.Decimal
	fallback  decimal.Decimal
}

// NewConverter creates a Converter over a copy of rates.
func NewConverter(reference string, rates map[string]decimal.Decimal, fallback decimal.Decimal) *Converter {
	if !fallback.IsPositive() {
		fallback = decimal.NewFromInt(1)
	}
	c := &Converter{
		reference: strings.ToUpper(reference),
		rates:     make(map[string]decimal.Decimal, len(rates)),
		fallback:  fallback,
	}
	for code, rate := range rates {
		if rate.IsPositive() {
			c.rates[strings.ToUpper(code)] = rate
		}
	}
	return c
}

// Reference returns the reference currency code.
func (c *Converter) Reference() string {
	return c.reference
}

// Rate returns the reference units per unit of currency.
func (c *Converter) Rate(currency string) decimal.Decimal {
	currency = strings.ToUpper(currency)
	if currency == "" || currency == c.reference {
		return decimal.NewFromInt(1)
	}
	if rate, ok := c.rates[currency]; ok {
		return rate
	}
	return c.fallback
}

// HasRate reports whether currency has an explicit rate.
func (c *Converter) HasRate(currency string) bool {
	currency = strings.ToUpper(currency)
	if currency == c.reference {
		return true
	}
	_, ok := c.rates[currency]
	return ok
}

// ToReference converts amount in currency into the reference currency.
func (c *Converter) ToReference(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Mul(c.Rate(currency))
}

// FromReference converts amount in the reference currency into currency.
func (c *Converter) FromReference(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Div(c.Rate(currency))
}

// Convert converts amount between two currencies through the reference.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	if strings.EqualFold(from, to) {
		return amount
	}
	return c.FromReference(c.ToReference(amount, from), to)
}

// Rates returns a copy of the explicit rate table.
func (c *Converter) Rates() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.rates))
	for k, v := range c.rates {
		out[k] = v
	}
	return out
}

// WithRates returns a copy of c with rates overlaid on the existing table.
func (c *Converter) WithRates(rates map[string]decimal.Decimal) *Converter {
	merged := c.Rates()
	for code, rate := range rates {
		if rate.IsPositive() {
			merged[strings.ToUpper(code)] = rate
		}
	}
	return NewConverter(c.reference, merged, c.fallback)
}

// WithQuotes returns a copy of c updated from any FX quotes in quotes.
func (c *Converter) WithQuotes(quotes map[string]Quote) *Converter {
	fresh := make(map[string]decimal.Decimal)
	for symbol, q := range quotes {
		currency, ok := ParseFXSymbol(symbol, c.reference)
		if !ok || !q.IsUsable() {
			continue
		}
		fresh[currency] = q.Price
	}
	if len(fresh) == 0 {
		return c
	}
	return c.WithRates(fresh)
}

// FXSymbols returns the quote symbols needed to refresh the rates of
// currencies, skipping the reference currency.
func (c *Converter) FXSymbols(currencies []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(currencies))
	for _, cur := range currencies {
		cur = strings.ToUpper(strings.TrimSpace(cur))
		if cur == "" || cur == c.reference || seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, FXSymbol(cur, c.reference))
	}
	sort.Strings(out)
	return out
}

// FXSymbol returns the quote symbol whose price is the reference units per
// unit of currency, e.g. USDMXN=X.
func FXSymbol(currency, reference string) string {
	return strings.ToUpper(currency) + strings.ToUpper(reference) + fxSuffix
}

// ParseFXSymbol extracts the foreign currency from an FX quote symbol
// against reference.
func ParseFXSymbol(symbol, reference string) (string, bool) {
	symbol = strings.ToUpper(symbol)
	reference = strings.ToUpper(reference)
	if !strings.HasSuffix(symbol, reference+fxSuffix) {
		return "", false
	}
	currency := strings.TrimSuffix(symbol, reference+fxSuffix)
	if len(currency) != 3 {
		return "", false
	}
	return currency, true
}

// IsFXSymbol reports whether symbol is a currency pair quote.
func IsFXSymbol(symbol string) bool {
	return strings.HasSuffix(strings.ToUpper(symbol), fxSuffix)
}
