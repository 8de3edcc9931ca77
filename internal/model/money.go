package model

import (
	"fmt"
	"math"
	"strconv"
)

// PriceToMinorUnits converts a major-unit amount (e.g. 42.50) to minor
// units (4250). Catalog prices are stored in major units per currency;
// everything on the wire is minor units.
func PriceToMinorUnits(major float64) int64 {
	// math.Round handles both positive and negative numbers correctly
	return int64(math.Round(major * 100))
}

// ParseCents converts decimal string amounts (major units) to minor units.
// Handles edge cases: empty strings, missing decimals, large values.
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0
func ParseCents(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return PriceToMinorUnits(f)
}

// FormatMinorUnits renders a minor-unit amount as a major-unit decimal
// string with the currency code, e.g. 4250, "GBP" → "42.50 GBP".
func FormatMinorUnits(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, currency)
}
