package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidOwner    = errors.New("invalid owner")
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrAmountTooLarge  = errors.New("amount exceeds maximum allowed")
	ErrNoteTooLong     = errors.New("note too long")
)

// Validation constants
const (
	MaxOwnerLength = 64
	MaxNoteLength  = 512
	MaxAmount      = "1000000000000" // 1 trillion
)

// Valid currency codes (ISO 4217)
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
	"SEK": true, "NZD": true, "KRW": true, "SGD": true,
	"NOK": true, "MXN": true, "INR": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true, "HKD": true,
	"DKK": true, "PLN": true, "CZK": true, "ILS": true,
	"CLP": true, "COP": true, "ARS": true, "PEN": true,
}

var (
	ownerRegex  = regexp.MustCompile(`^[A-Za-z0-9_.@-]+$`)
	symbolRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.^=-]{0,19}$`)
)

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidateOwner validates an owner identifier
func ValidateOwner(owner string) error {
	owner = strings.TrimSpace(owner)

	if owner == "" {
		return fmt.Errorf("%w: owner cannot be empty", ErrInvalidOwner)
	}

	if len(owner) > MaxOwnerLength {
		return fmt.Errorf("%w: owner exceeds %d characters", ErrInvalidOwner, MaxOwnerLength)
	}

	if !ownerRegex.MatchString(owner) {
		return fmt.Errorf("%w: contains forbidden characters", ErrInvalidOwner)
	}

	return nil
}

// ValidateSymbol validates a ticker symbol
func ValidateSymbol(symbol string) error {
	if !symbolRegex.MatchString(NormalizeSymbol(symbol)) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	return nil
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	currency = NormalizeCurrency(currency)

	if !validCurrencies[currency] {
		return fmt.Errorf("%w: %s is not a valid ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// IsKnownCurrency reports whether currency is a supported ISO code.
func IsKnownCurrency(currency string) bool {
	return validCurrencies[NormalizeCurrency(currency)]
}

// ValidateAmount validates a cash amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	return validateMax(amount)
}

// ValidateQuantity validates a share quantity
func ValidateQuantity(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}

	return validateMax(quantity)
}

// ValidatePrice validates a unit price
func ValidatePrice(price decimal.Decimal) error {
	if price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidPrice
	}

	return validateMax(price)
}

// ValidateNote validates free-text notes
func ValidateNote(note string) error {
	if len(note) > MaxNoteLength {
		return fmt.Errorf("%w: maximum is %d characters", ErrNoteTooLong, MaxNoteLength)
	}

	return nil
}

func validateMax(v decimal.Decimal) error {
	maxAmount, _ := decimal.NewFromString(MaxAmount)
	if v.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum is %s", ErrAmountTooLarge, MaxAmount)
	}

	return nil
}
