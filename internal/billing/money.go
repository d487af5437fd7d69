package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a document is created without a currency.
const DefaultCurrency = "USD"

var hundred = decimal.NewFromInt(100)

// MinorUnits returns the number of decimal places of the currency's minor unit.
func MinorUnits(currency string) int32 {
	switch NormalizeCurrency(currency) {
	case "JPY", "KRW", "VND", "CLP", "PYG", "IDR":
		return 0
	case "BHD", "KWD", "OMR", "JOD", "TND":
		return 3
	default:
		return 2
	}
}

// NormalizeCurrency upper-cases and trims an ISO 4217 code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidCurrency reports whether currency looks like an ISO 4217 alphabetic code.
func ValidCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// RoundMoney rounds half-up (away from zero) to the currency's minor unit.
func RoundMoney(d decimal.Decimal, currency string) decimal.Decimal {
	return d.Round(MinorUnits(currency))
}

// FitsMinorUnit reports whether d has no more decimals than the currency allows.
func FitsMinorUnit(d decimal.Decimal, currency string) bool {
	return d.Equal(d.Truncate(MinorUnits(currency)))
}
