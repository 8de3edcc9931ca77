package compliance

import (
	"testing"
	"time"
)

func TestAgeThreshold(t *testing.T) {
	ev := New(DefaultRules())

	tests := []struct {
		market string
		want   int
	}{
		{"GB", 18},
		{"US", 21},
		{"DE", 16},
		{"FR", 18},
		{"JP", 20},
		{"BR", 18}, // unlisted market falls back to default
	}

	for _, tt := range tests {
		if got := ev.AgeThreshold(tt.market); got != tt.want {
			t.Errorf("AgeThreshold(%s) = %d, want %d", tt.market, got, tt.want)
		}
	}
}

func TestIsRestricted(t *testing.T) {
	ev := New(DefaultRules())

	for _, market := range []string{"SA", "KW", "IR", "LY"} {
		if !ev.IsRestricted(market) {
			t.Errorf("IsRestricted(%s) = false, want true", market)
		}
	}
	for _, market := range []string{"GB", "US", "JP"} {
		if ev.IsRestricted(market) {
			t.Errorf("IsRestricted(%s) = true, want false", market)
		}
	}
}

func TestVerifyAge(t *testing.T) {
	ev := New(DefaultRules())
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		dob          string
		market       string
		wantVerified bool
		wantRequired int
	}{
		{"well over threshold", "1990-05-01", "GB", true, 18},
		{"18th birthday today", "2008-08-28", "GB", true, 18},
		{"one day short of 18", "2008-08-29", "GB", false, 18},
		{"18 but US requires 21", "2008-08-28", "US", false, 21},
		{"21 in US", "2005-08-28", "US", true, 21},
		{"16 in DE", "2010-08-28", "DE", true, 16},
		{"birthday later this year", "2008-12-01", "GB", false, 18},
		{"unparseable date", "not-a-date", "GB", false, 18},
		{"empty date", "", "GB", false, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ev.VerifyAge(tt.dob, tt.market, now)
			if got.Verified != tt.wantVerified {
				t.Errorf("Verified = %v, want %v", got.Verified, tt.wantVerified)
			}
			if got.RequiredAge != tt.wantRequired {
				t.Errorf("RequiredAge = %d, want %d", got.RequiredAge, tt.wantRequired)
			}
		})
	}
}

func TestCustomRules(t *testing.T) {
	ev := New(Rules{
		AgeThresholds:     map[string]int{"XX": 25},
		DefaultAge:        18,
		RestrictedMarkets: []string{"YY"},
	})

	if got := ev.AgeThreshold("XX"); got != 25 {
		t.Errorf("AgeThreshold(XX) = %d, want 25", got)
	}
	if !ev.IsRestricted("YY") {
		t.Error("IsRestricted(YY) = false, want true")
	}
}
