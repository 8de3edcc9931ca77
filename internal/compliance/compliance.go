// Package compliance evaluates market-level legal rules for checkout:
// minimum purchase age per market, restricted markets, and date-of-birth
// verification. All lookups are total functions over static configuration.
package compliance

import (
	"time"
)

// Rules holds the static compliance configuration.
type Rules struct {
	// AgeThresholds maps market (ISO 3166-1 alpha-2) to minimum purchase
	// age. Markets not listed fall back to DefaultAge.
	AgeThresholds map[string]int `json:"age_thresholds"`

	// DefaultAge applies to unmapped markets. Zero disables the age gate
	// for unmapped markets.
	DefaultAge int `json:"default_age"`

	// RestrictedMarkets lists markets where the service is not offered.
	// Enforcement happens at the edge gateway; the evaluator only reports.
	RestrictedMarkets []string `json:"restricted_markets"`
}

// DefaultRules returns the built-in rule set for alcohol retail.
func DefaultRules() Rules {
	return Rules{
		AgeThresholds: map[string]int{
			"GB": 18,
			"US": 21,
			"DE": 16,
			"FR": 18,
			"JP": 20,
		},
		DefaultAge:        18,
		RestrictedMarkets: []string{"SA", "KW", "IR", "LY"},
	}
}

// Evaluator answers compliance questions against a fixed rule set.
// The zero value is not usable; construct with New.
type Evaluator struct {
	rules      Rules
	restricted map[string]bool
}

// New creates an evaluator for the given rules.
func New(rules Rules) *Evaluator {
	restricted := make(map[string]bool, len(rules.RestrictedMarkets))
	for _, m := range rules.RestrictedMarkets {
		restricted[m] = true
	}
	return &Evaluator{rules: rules, restricted: restricted}
}

// AgeThreshold returns the minimum purchase age for the market, or the
// default for unmapped markets.
func (e *Evaluator) AgeThreshold(market string) int {
	if age, ok := e.rules.AgeThresholds[market]; ok {
		return age
	}
	return e.rules.DefaultAge
}

// IsRestricted reports whether the service must not be offered in the
// market at all.
func (e *Evaluator) IsRestricted(market string) bool {
	return e.restricted[market]
}

// VerificationResult is the outcome of a date-of-birth check.
type VerificationResult struct {
	Verified    bool
	RequiredAge int
}

// VerifyAge checks a date of birth (ISO 8601 date) against the market's
// threshold as of now. Age is exact elapsed years: the birthday must have
// occurred, month and day considered, not calendar-year subtraction.
// An unparsable date of birth verifies false.
func (e *Evaluator) VerifyAge(dateOfBirth, market string, now time.Time) VerificationResult {
	required := e.AgeThreshold(market)

	dob, err := time.Parse("2006-01-02", dateOfBirth)
	if err != nil {
		return VerificationResult{Verified: false, RequiredAge: required}
	}

	age := yearsBetween(dob, now)
	return VerificationResult{Verified: age >= required, RequiredAge: required}
}

// yearsBetween returns complete calendar years elapsed from dob to now.
func yearsBetween(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() ||
		(now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}
